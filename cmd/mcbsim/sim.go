package main

import (
	"io"

	mcb "github.com/motioncontrolbus/mcb"
)

// slaveSim holds the MoCo-side register file: the comm-state/mapping
// registers plus whatever plain registers a test has pre-seeded.
type slaveSim struct {
	regs map[uint16][]uint16
}

func newSlaveSim() *slaveSim {
	s := &slaveSim{regs: make(map[uint16][]uint16)}
	s.regs[mcb.AddrCommState] = []uint16{0}
	s.regs[mcb.AddrCyclicMode] = []uint16{uint16(mcb.SyncNone)}
	s.regs[mcb.RxMapBase] = []uint16{0}
	s.regs[mcb.TxMapBase] = []uint16{0}
	return s
}

// run answers config-frame requests on rw until it returns io.EOF. Every
// transfer is a fixed-size config frame: 5 words, plus a trailing CRC
// word when calcCRC is set.
func (s *slaveSim) run(port *mcb.SimPort, calcCRC bool) error {
	rw := port.Slave()
	frameWords := mcb.ConfigWords + 1
	if calcCRC {
		frameWords++
	}
	buf := make([]byte, frameWords*2)

	for {
		if _, err := io.ReadFull(rw, buf); err != nil {
			return err
		}
		var rx mcb.Frame
		rx.Size = uint16(frameWords)
		for i := 0; i < frameWords; i++ {
			rx.Buf[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
		}

		tx := s.handle(&rx, calcCRC)

		out := make([]byte, frameWords*2)
		for i := 0; i < frameWords; i++ {
			out[2*i] = byte(tx.Buf[i] >> 8)
			out[2*i+1] = byte(tx.Buf[i])
		}
		if _, err := rw.Write(out); err != nil {
			return err
		}
	}
}

func (s *slaveSim) handle(rx *mcb.Frame, calcCRC bool) mcb.Frame {
	addr := rx.HeaderAddr()
	cmd := rx.HeaderCmd()

	var tx mcb.Frame
	if cmd == mcb.CmdIdle {
		_ = tx.CreateConfig(addr, mcb.CmdIdle, 0, nil, calcCRC)
		return tx
	}

	var cfg [mcb.ConfigWords]uint16
	_ = rx.ReadConfigInto(cfg[:])

	switch cmd {
	case mcb.CmdWrite:
		s.regs[addr] = append([]uint16(nil), cfg[:]...)
		_ = tx.CreateConfig(addr, mcb.CmdAck, 0, cfg[:], calcCRC)
	case mcb.CmdRead:
		reply, ok := s.regs[addr]
		if !ok {
			_ = tx.CreateConfig(addr, mcb.CmdReadErr, 0, nil, calcCRC)
			break
		}
		var data [mcb.ConfigWords]uint16
		copy(data[:], reply)
		_ = tx.CreateConfig(addr, mcb.CmdAck, 0, data[:], calcCRC)
	case mcb.CmdGetInfo:
		desc := mcb.InfoDescriptor{Size: 2, DataType: 0, CyclicType: 0, AccessType: 1}
		var data [mcb.ConfigWords]uint16
		desc.Pack(data[:])
		_ = tx.CreateConfig(addr, mcb.CmdAck, 0, data[:], calcCRC)
	default:
		_ = tx.CreateConfig(addr, mcb.CmdError, 0, nil, calcCRC)
	}
	return tx
}
