package mcb

import (
	"context"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// spidev ioctl numbers, linux/spi/spidev.h. Not exported by x/sys/unix, so
// they're built the same way the teacher's ptt.go reaches for raw TIOCM*
// ioctls: the _IOW encoding derived from the kernel header rather than a
// missing constant.
const (
	spiIOCMagic = 'k'
	iocWrite    = 1
	iocNrWrite  = 0 // SPI_IOC_MESSAGE(1) base number
)

func spiIOCMessage(n uintptr) uintptr {
	// #define SPI_IOC_MESSAGE(N) _IOW(SPI_IOC_MAGIC, 0, char[N*sizeof(struct spi_ioc_transfer)])
	size := n * unsafe.Sizeof(spiIOCTransfer{})
	return (iocWrite << 30) | (size << 16) | (uintptr(spiIOCMagic) << 8) | iocNrWrite
}

// spiIOCTransfer mirrors struct spi_ioc_transfer from linux/spi/spidev.h.
type spiIOCTransfer struct {
	txBuf, rxBuf          uint64
	len                   uint32
	speedHz               uint32
	delayUsecs            uint16
	bitsPerWord           uint8
	csChange              uint8
	txNbits, rxNbits      uint8
	pad                   uint16
}

// SpidevPort is a PlatformPort backed by a single Linux /dev/spidevB.C
// character device, one GPIO-driven IRQ line, and a software CRC, grounded
// on the raw-ioctl idiom of the teacher's TIOCM* PTT driver.
type SpidevPort struct {
	devPath string
	fd      int
	irq     irqLine
	sync0   syncLine
	sync1   syncLine
	speedHz uint32
	locks   map[int]ResourceLock
	crc     CRCProvider
}

// irqLine and syncLine are satisfied by *GPIOLine from platform_gpio.go;
// kept as narrow interfaces here so this file has no gpiocdev import of
// its own when only the spidev half of a deployment is linked in.
type irqLine interface {
	IsHigh() (bool, error)
}

type syncLine interface {
	Pulse() error
}

// SpidevOption configures a SpidevPort.
type SpidevOption func(*SpidevPort)

// WithSpidevSpeed sets the SPI clock rate used for every transfer.
func WithSpidevSpeed(hz uint32) SpidevOption {
	return func(p *SpidevPort) { p.speedHz = hz }
}

// WithSpidevIRQ attaches the GPIO line used by IrqIsHigh.
func WithSpidevIRQ(line irqLine) SpidevOption {
	return func(p *SpidevPort) { p.irq = line }
}

// WithSpidevSync attaches the Sync0 and Sync1 GPIO output lines. SyncPulse
// pulses only the Sync0 line; the Sync1 line is held but never pulsed.
// Either may be a nil *GPIOLine when
// that sync output isn't configured; the option skips assigning it rather
// than storing a non-nil syncLine wrapping a nil pointer.
func WithSpidevSync(sync0, sync1 *GPIOLine) SpidevOption {
	return func(p *SpidevPort) {
		if sync0 != nil {
			p.sync0 = sync0
		}
		if sync1 != nil {
			p.sync1 = sync1
		}
	}
}

// OpenSpidev opens devPath (e.g. "/dev/spidev0.0") and returns a ready
// PlatformPort for node id 0, the only node a single spidev device can
// address.
func OpenSpidev(devPath string, opts ...SpidevOption) (*SpidevPort, error) {
	f, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mcb: open %s", devPath)
	}
	p := &SpidevPort{
		devPath: devPath,
		fd:      int(f.Fd()),
		speedHz: 1_000_000,
		locks:   make(map[int]ResourceLock),
		crc:     defaultCRC,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *SpidevPort) SpiTransfer(ctx context.Context, id int, in, out []uint16, nWords int) error {
	if id != 0 {
		return errors.Errorf("mcb: spidev port only serves node id 0, got %d", id)
	}
	txBytes := make([]byte, nWords*2)
	for i := 0; i < nWords; i++ {
		txBytes[2*i] = byte(in[i] >> 8)
		txBytes[2*i+1] = byte(in[i])
	}
	rxBytes := make([]byte, nWords*2)

	xfer := spiIOCTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&txBytes[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rxBytes[0]))),
		len:         uint32(len(txBytes)),
		speedHz:     p.speedHz,
		bitsPerWord: 8,
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(p.fd), spiIOCMessage(1), uintptr(unsafe.Pointer(&xfer))); errno != 0 {
		return errors.Wrap(errno, "mcb: spidev SPI_IOC_MESSAGE(1)")
	}

	for i := 0; i < nWords; i++ {
		out[i] = uint16(rxBytes[2*i])<<8 | uint16(rxBytes[2*i+1])
	}
	return nil
}

func (p *SpidevPort) IrqIsHigh(id int) (bool, error) {
	if p.irq == nil {
		return true, nil
	}
	return p.irq.IsHigh()
}

func (p *SpidevPort) Ready(id int) bool {
	high, err := p.IrqIsHigh(id)
	return err == nil && high
}

func (p *SpidevPort) NowMs() uint32 {
	return nowMs()
}

func (p *SpidevPort) YieldCPU() {
	yieldCPU()
}

func (p *SpidevPort) SyncPulse(id int) error {
	if p.sync0 != nil {
		return p.sync0.Pulse()
	}
	return nil
}

func (p *SpidevPort) ResourceLock(id int) ResourceLock {
	if l, ok := p.locks[id]; ok {
		return l
	}
	l := NewResourceLock()
	p.locks[id] = l
	return l
}

func (p *SpidevPort) CRC() CRCProvider { return p.crc }

func (p *SpidevPort) Close() error {
	return unix.Close(p.fd)
}
