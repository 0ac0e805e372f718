package main

import (
	mcb "github.com/motioncontrolbus/mcb"
)

// openInstance wires a Config into a live spidev+GPIO PlatformPort and
// Instance, mirroring the options a production deployment would set from
// its own config file.
func openInstance(cfg *mcb.Config) (*mcb.Instance, func(), error) {
	syncMode, err := mcb.ParseSyncMode(cfg.SyncMode)
	if err != nil {
		return nil, nil, err
	}

	var spiOpts []mcb.SpidevOption
	if cfg.IRQChip != "" {
		irq, err := mcb.OpenGPIOInput(cfg.IRQChip, cfg.IRQLine)
		if err != nil {
			return nil, nil, err
		}
		spiOpts = append(spiOpts, mcb.WithSpidevIRQ(irq))
	}
	if cfg.Sync0Chip != "" || cfg.Sync1Chip != "" {
		var sync0, sync1 *mcb.GPIOLine
		if cfg.Sync0Chip != "" {
			sync0, err = mcb.OpenGPIOOutput(cfg.Sync0Chip, cfg.Sync0Line)
			if err != nil {
				return nil, nil, err
			}
		}
		if cfg.Sync1Chip != "" {
			sync1, err = mcb.OpenGPIOOutput(cfg.Sync1Chip, cfg.Sync1Line)
			if err != nil {
				return nil, nil, err
			}
		}
		spiOpts = append(spiOpts, mcb.WithSpidevSync(sync0, sync1))
	}

	port, err := mcb.OpenSpidev(cfg.Device, spiOpts...)
	if err != nil {
		return nil, nil, err
	}

	ins, err := mcb.New(0, port, mcb.ModeBlocking,
		mcb.WithTimeout(cfg.TimeoutMs),
		mcb.WithCRC(cfg.CalcCRC),
		mcb.WithSyncMode(syncMode),
	)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	closeFn := func() {
		ins.Deinit()
		port.Close()
	}
	return ins, closeFn, nil
}
