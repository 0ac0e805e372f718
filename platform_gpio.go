package mcb

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// GPIOLine wraps a single requested GPIO line, used both as the IRQ input
// the engine polls via IrqIsHigh and as a Sync0/Sync1 output pulsed by
// SyncPulse. It satisfies irqLine and syncLine from platform_spidev.go.
type GPIOLine struct {
	line *gpiocdev.Line
}

// OpenGPIOInput requests chipName/offset (e.g. "gpiochip0", 17) as an
// input line for use as an IRQ or data-ready signal.
func OpenGPIOInput(chipName string, offset int) (*GPIOLine, error) {
	l, err := gpiocdev.RequestLine(chipName, offset, gpiocdev.AsInput)
	if err != nil {
		return nil, errors.Wrapf(err, "mcb: request gpio input %s:%d", chipName, offset)
	}
	return &GPIOLine{line: l}, nil
}

// OpenGPIOOutput requests chipName/offset as an output line, initially
// low, for use as a Sync0/Sync1 pulse source.
func OpenGPIOOutput(chipName string, offset int) (*GPIOLine, error) {
	l, err := gpiocdev.RequestLine(chipName, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, errors.Wrapf(err, "mcb: request gpio output %s:%d", chipName, offset)
	}
	return &GPIOLine{line: l}, nil
}

func (g *GPIOLine) IsHigh() (bool, error) {
	v, err := g.line.Value()
	if err != nil {
		return false, errors.Wrap(err, "mcb: gpio read")
	}
	return v != 0, nil
}

// Pulse drives the line high then low. Sync0/Sync1 are edge references
// for the slave's cyclic sampling instant, §3/§6; the width is whatever
// the caller's scheduling jitter leaves it, same as a bit-banged PTT line.
func (g *GPIOLine) Pulse() error {
	if err := g.line.SetValue(1); err != nil {
		return errors.Wrap(err, "mcb: gpio set high")
	}
	return errors.Wrap(g.line.SetValue(0), "mcb: gpio set low")
}

func (g *GPIOLine) Close() error {
	return g.line.Close()
}
