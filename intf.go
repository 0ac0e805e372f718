package mcb

import "context"

// requestKind selects which of the three structurally-similar sub-state
// machines (write / read / get-info) InterfaceState is currently driving,
// §4.2. Only one may be active at a time; calling code must not start a
// different kind while one is in flight.
type requestKind uint8

const (
	reqNone requestKind = iota
	reqWrite
	reqRead
	reqGetInfo
)

// InterfaceState holds the SPI-level protocol state for one bus, §3/§4.2:
// one Tx frame, one Rx frame, and the segmentation bookkeeping for
// whichever request sub-SM is currently active.
//
// Resolved open question (spec.md §9): the source is ambiguous about
// whether a slave IDLE reply to an in-flight WRITE fragment means "resend
// the identical fragment" or "advance anyway". This implementation treats
// every SPI exchange as synchronous (the reply evaluated by *_ANSWER
// belongs to the frame *_REQUEST just sent in the same tick) and resends
// the identical outstanding fragment on IDLE, never silently dropping
// unacknowledged words. pendingWords/isPending mirror spec.md's naming.
// For a write, pendingWords is the word count not yet staged into any
// fragment and isPending is the pending bit carried by the in-flight
// fragment. For a read/get-info, pendingWords counts the words received
// in pending (pending=1) fragments and isPending is true until the single
// READ/GETINFO request has been sent.
type InterfaceState struct {
	ID      uint16
	CalcCRC bool

	kind requestKind

	addr  uint16
	buf   [MaxDataSz]uint16
	total uint16 // size_words for the whole logical request
	sent  uint16 // words already ACKed (write) or delivered to caller (read/get-info)

	fragLen uint16 // length of the in-flight, not-yet-resolved fragment (0 = none staged)

	pendingWords uint16
	isPending    bool

	TxFrm Frame
	RxFrm Frame

	// config-over-cyclic overlay, §4.2/§4.3.
	NewCfgOverCyclic    bool
	CfgOverCyclicActive bool
}

// Reset reinitializes the engine to STANDBY, §4.2.
func (s *InterfaceState) Reset() {
	s.kind = reqNone
	s.addr = 0
	s.total = 0
	s.sent = 0
	s.fragLen = 0
	s.pendingWords = 0
	s.isPending = false
	s.TxFrm = Frame{}
	s.RxFrm = Frame{}
}

func cmdFor(kind requestKind) (req, ack, errCmd uint16) {
	switch kind {
	case reqWrite:
		return CmdWrite, CmdAck, CmdWriteErr
	case reqRead:
		return CmdRead, CmdAck, CmdReadErr
	case reqGetInfo:
		return CmdGetInfo, CmdAck, CmdError
	default:
		return CmdIdle, CmdAck, CmdError
	}
}

func successStatus(kind requestKind) Status {
	switch kind {
	case reqWrite:
		return StatusWriteSuccess
	case reqRead:
		return StatusReadSuccess
	case reqGetInfo:
		return StatusGetInfoSuccess
	default:
		return StatusStandby
	}
}

func errorStatus(kind requestKind) Status {
	switch kind {
	case reqWrite:
		return StatusWriteError
	case reqRead:
		return StatusReadError
	case reqGetInfo:
		return StatusGetInfoError
	default:
		return StatusStandby
	}
}

// start begins a fresh logical request of the given kind.
func (s *InterfaceState) start(kind requestKind, msg *Msg) {
	s.kind = kind
	s.addr = msg.Addr
	s.sent = 0
	s.fragLen = 0
	if kind == reqWrite {
		s.total = msg.Size
		copy(s.buf[:], msg.Data[:msg.Size])
		s.pendingWords = msg.Size
		s.isPending = false
	} else {
		// read / get-info: nothing staged yet, one READ/GETINFO is
		// posted exactly once, §4.2.
		s.total = 0
		s.pendingWords = 0
		s.isPending = true
	}
}

// step runs exactly one SPI exchange for whichever request is active and
// reports whether a terminal state was reached.
func (s *InterfaceState) step(ctx context.Context, port PlatformPort, msg *Msg) (done bool, err error) {
	switch s.kind {
	case reqWrite:
		return s.stepWrite(ctx, port, msg)
	case reqRead, reqGetInfo:
		return s.stepReadLike(ctx, port, msg)
	default:
		return true, nil
	}
}

// stepWrite drives one WRITE_REQUEST -> (transfer) -> WRITE_ANSWER round.
func (s *InterfaceState) stepWrite(ctx context.Context, port PlatformPort, msg *Msg) (bool, error) {
	remaining := s.total - s.sent

	if s.fragLen == 0 {
		// Stage a fresh fragment.
		switch {
		case remaining > ConfigWords:
			s.fragLen = ConfigWords
			s.isPending = true
		case remaining == 0:
			s.fragLen = 0
			s.isPending = false
		default:
			s.fragLen = remaining
			s.isPending = false
		}
		s.pendingWords = remaining - s.fragLen
	}

	var cfg [ConfigWords]uint16
	cmd := CmdWrite
	pending := uint16(segNotPending)
	if s.fragLen == 0 && remaining == 0 {
		cmd = CmdIdle
	} else {
		copy(cfg[:], s.buf[s.sent:s.sent+s.fragLen])
		if s.isPending {
			pending = segPending
		}
	}

	if err := s.TxFrm.CreateConfig(s.addr, cmd, pending, cfg[:], s.CalcCRC); err != nil {
		return false, err
	}

	if err := s.exchange(ctx, port); err != nil {
		return false, err
	}

	if !s.rxCRCOk(port) {
		msg.markError(StatusWriteError)
		s.Reset()
		return true, nil
	}

	rAddr := s.RxFrm.HeaderAddr()
	rCmd := s.RxFrm.HeaderCmd()

	switch {
	case rCmd == CmdIdle:
		// Slave not ready yet; resend the identical staged fragment.
		return false, nil
	case rCmd == CmdAck && rAddr == s.addr:
		var reply [ConfigWords]uint16
		_ = s.RxFrm.ReadConfigInto(reply[:])
		copy(msg.Data[:ConfigWords], reply[:])
		if s.isPending {
			s.sent += s.fragLen
			s.fragLen = 0
			return false, nil
		}
		s.sent += s.fragLen
		msg.Size = s.sent
		msg.markSuccess(StatusWriteSuccess)
		s.Reset()
		return true, nil
	default:
		var reply [ConfigWords]uint16
		_ = s.RxFrm.ReadConfigInto(reply[:])
		copy(msg.Data[:ConfigWords], reply[:])
		msg.markError(StatusWriteError)
		s.Reset()
		return true, nil
	}
}

// stepReadLike drives READ and GET_INFO, which are structurally
// identical per spec.md §4.2 aside from command codes and Status values.
func (s *InterfaceState) stepReadLike(ctx context.Context, port PlatformPort, msg *Msg) (bool, error) {
	reqCmd, _, errCmd := cmdFor(s.kind)

	cmd := CmdIdle
	if s.isPending {
		cmd = reqCmd
		s.isPending = false
	}

	if err := s.TxFrm.CreateConfig(s.addr, cmd, segNotPending, nil, s.CalcCRC); err != nil {
		return false, err
	}

	if err := s.exchange(ctx, port); err != nil {
		return false, err
	}

	if !s.rxCRCOk(port) {
		msg.markError(errorStatus(s.kind))
		s.Reset()
		return true, nil
	}

	rAddr := s.RxFrm.HeaderAddr()
	rCmd := s.RxFrm.HeaderCmd()
	rPending := s.RxFrm.HeaderPending()

	switch {
	case rCmd == CmdAck && rAddr == s.addr && rPending == segPending:
		var frag [ConfigWords]uint16
		_ = s.RxFrm.ReadConfigInto(frag[:])
		copy(msg.Data[s.sent:s.sent+ConfigWords], frag[:])
		s.sent += ConfigWords
		s.pendingWords += ConfigWords
		return false, nil
	case rCmd == CmdAck && rAddr == s.addr && rPending == segNotPending:
		var frag [ConfigWords]uint16
		_ = s.RxFrm.ReadConfigInto(frag[:])
		copy(msg.Data[s.sent:s.sent+ConfigWords], frag[:])
		s.sent += ConfigWords
		msg.Size = s.sent
		msg.markSuccess(successStatus(s.kind))
		s.Reset()
		return true, nil
	case rCmd == errCmd && rAddr == s.addr:
		var frag [ConfigWords]uint16
		_ = s.RxFrm.ReadConfigInto(frag[:])
		copy(msg.Data[:ConfigWords], frag[:])
		msg.markError(errorStatus(s.kind))
		s.Reset()
		return true, nil
	case rCmd == CmdIdle:
		return false, nil
	default:
		msg.markError(errorStatus(s.kind))
		s.Reset()
		return true, nil
	}
}

// exchange performs the single SPI transfer shared by every sub-SM tick.
func (s *InterfaceState) exchange(ctx context.Context, port PlatformPort) error {
	n := int(s.TxFrm.Size)
	if err := port.SpiTransfer(ctx, int(s.ID), s.TxFrm.Buf[:n], s.RxFrm.Buf[:n], n); err != nil {
		return err
	}
	s.RxFrm.Size = s.TxFrm.Size
	return nil
}

func (s *InterfaceState) rxCRCOk(port PlatformPort) bool {
	if !s.CalcCRC {
		return true
	}
	crc := port.CRC()
	if crc == nil {
		return s.RxFrm.CRCOk(s.RxFrm.Size)
	}
	return crc.Check(s.RxFrm.Buf[:s.RxFrm.Size])
}
