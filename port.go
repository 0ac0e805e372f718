package mcb

import "context"

// PlatformPort is the set of hardware collaborators the protocol engine
// calls through, §6/§9. Integrators supply a concrete implementation; two
// are shipped here (platform_spidev.go, platform_sim.go) alongside the
// bundled default CRC (crc.go).
type PlatformPort interface {
	// SpiTransfer performs one synchronous full-duplex exchange of
	// nWords 16-bit words for bus id. out is written with the words
	// received from the slave.
	SpiTransfer(ctx context.Context, id int, in []uint16, out []uint16, nWords int) error

	// IrqIsHigh reads the slave's IRQ GPIO line: true means the slave
	// asserts "data ready" / "present".
	IrqIsHigh(id int) (bool, error)

	// Ready reports whether the SPI peripheral is idle and can accept a
	// new transfer.
	Ready(id int) bool

	// NowMs returns a monotonic millisecond clock used for blocking-mode
	// timeouts.
	NowMs() uint32

	// YieldCPU cooperatively yields inside a blocking poll loop.
	YieldCPU()

	// SyncPulse drives the optional Sync0/Sync1 hardware timing
	// reference for bus id.
	SyncPulse(id int) error

	// ResourceLock returns the per-instance mutual-exclusion primitive
	// used to serialize foreground and cyclic-tick access to the bus.
	ResourceLock(id int) ResourceLock

	// CRC returns the CRC implementation to use; the bundled CRCCCITT
	// is used when a port does not override it (see WithCRC).
	CRC() CRCProvider
}

// CRCProvider computes and checks the frame trailer CRC. Swappable for a
// hardware-CRC backend, in which case calcCRC is set false on the engine
// so the wire CRC is not duplicated in software.
type CRCProvider interface {
	Sum(buf []uint16) uint16
	Check(buf []uint16) bool
}

// ResourceLock is the per-instance mutual-exclusion primitive protecting
// the SPI path from reentrant entry while cyclic ticks and foreground
// requests race, §5/§6.
type ResourceLock interface {
	TryTake() bool
	Take(ctx context.Context) error
	Release()
}

var _ CRCProvider = CRCCCITT{}
