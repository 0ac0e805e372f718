package mcb

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/creack/pty"
	"github.com/pkg/errors"
)

// SimPort is a loopback PlatformPort over a pseudo-terminal pair, grounded
// on the teacher's kisspt_open_pt virtual-TNC device: a master end the
// CoCo side drives and a named slave end (SlaveName()) a separate MoCo
// simulator process or goroutine can open and answer on. cmd/mcbsim
// answers on the slave end; the package tests use an in-memory fake port
// instead.
type SimPort struct {
	master *os.File
	slave  *os.File

	mu     sync.Mutex
	irqHi  bool
	lock   ResourceLock
	crc    CRCProvider
}

// OpenSimPort creates a fresh pty pair and returns a ready PlatformPort.
// SlaveName() gives the path a simulator should open to answer transfers.
func OpenSimPort() (*SimPort, error) {
	m, s, err := pty.Open()
	if err != nil {
		return nil, errors.Wrap(err, "mcb: open simulator pty pair")
	}
	return &SimPort{
		master: m,
		slave:  s,
		irqHi:  true,
		lock:   NewResourceLock(),
		crc:    defaultCRC,
	}, nil
}

// SlaveName is the pseudo-terminal path a MoCo simulator should open.
func (p *SimPort) SlaveName() string { return p.slave.Name() }

// Slave returns the slave end directly, for an in-process simulator that
// doesn't need to reopen the pty by path.
func (p *SimPort) Slave() io.ReadWriteCloser { return p.slave }

// SetIrqHigh lets a simulator or test announce slave presence / data-ready.
func (p *SimPort) SetIrqHigh(high bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.irqHi = high
}

func (p *SimPort) SpiTransfer(ctx context.Context, id int, in, out []uint16, nWords int) error {
	txBytes := make([]byte, nWords*2)
	for i := 0; i < nWords; i++ {
		txBytes[2*i] = byte(in[i] >> 8)
		txBytes[2*i+1] = byte(in[i])
	}
	if _, err := p.master.Write(txBytes); err != nil {
		return errors.Wrap(err, "mcb: sim write")
	}
	rxBytes := make([]byte, nWords*2)
	if _, err := io.ReadFull(p.master, rxBytes); err != nil {
		return errors.Wrap(err, "mcb: sim read")
	}
	for i := 0; i < nWords; i++ {
		out[i] = uint16(rxBytes[2*i])<<8 | uint16(rxBytes[2*i+1])
	}
	return nil
}

func (p *SimPort) IrqIsHigh(id int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.irqHi, nil
}

func (p *SimPort) Ready(id int) bool { return true }

func (p *SimPort) NowMs() uint32 { return nowMs() }

func (p *SimPort) YieldCPU() { yieldCPU() }

func (p *SimPort) SyncPulse(id int) error { return nil }

func (p *SimPort) ResourceLock(id int) ResourceLock { return p.lock }

func (p *SimPort) CRC() CRCProvider { return p.crc }

func (p *SimPort) Close() error {
	p.master.Close()
	return p.slave.Close()
}
