package mcb

import "context"

// cfgOverCyclic drives one tick of the config-over-cyclic overlay, §4.2
// "Config-over-cyclic variants" / §4.5. When a config request is pending
// it installs a config header (with calcCRC=false; the cyclic composer
// appends one CRC over the whole composite frame) into the engine's Tx
// frame and reports whether the overlay request just completed.
type cfgOverCyclic struct {
	InterfaceState
}

// startOverlay stages a new config-over-cyclic request using the
// overlay's own (calcCRC=false) config-header encoder, §4.2.
func (c *cfgOverCyclic) startOverlay(kind requestKind, msg *Msg) {
	c.InterfaceState.CalcCRC = false
	c.InterfaceState.start(kind, msg)
}

// The config-over-cyclic sub-SM advances by one tick without performing
// its own SPI transfer: the composite cyclic frame carries the header this
// tick built, and the reply is supplied by the cyclic transfer's single
// SPI exchange (stepOverlayAnswer).
//
// stepOverlayRequest composes the outbound config header (or leaves the
// Tx frame as IDLE/zero if there is nothing new to send).
func (c *cfgOverCyclic) stepOverlayRequest() error {
	switch c.kind {
	case reqWrite:
		remaining := c.total - c.sent
		if c.fragLen == 0 {
			switch {
			case remaining > ConfigWords:
				c.fragLen = ConfigWords
				c.isPending = true
			case remaining == 0:
				c.fragLen = 0
				c.isPending = false
			default:
				c.fragLen = remaining
				c.isPending = false
			}
			c.pendingWords = remaining - c.fragLen
		}
		var cfg [ConfigWords]uint16
		cmd := CmdWrite
		pending := uint16(segNotPending)
		if c.fragLen == 0 && remaining == 0 {
			cmd = CmdIdle
		} else {
			copy(cfg[:], c.buf[c.sent:c.sent+c.fragLen])
			if c.isPending {
				pending = segPending
			}
		}
		return c.TxFrm.CreateConfig(c.addr, cmd, pending, cfg[:], false)
	case reqRead, reqGetInfo:
		reqCmd, _, _ := cmdFor(c.kind)
		cmd := CmdIdle
		if c.isPending {
			cmd = reqCmd
			c.isPending = false
		}
		return c.TxFrm.CreateConfig(c.addr, cmd, segNotPending, nil, false)
	default:
		return c.TxFrm.CreateConfig(0, CmdIdle, segNotPending, nil, false)
	}
}

// stepOverlayAnswer evaluates the reply header+config words already placed
// in the Rx frame by the cyclic transfer's SPI exchange, returning true
// once the overlay request reaches a terminal state.
func (c *cfgOverCyclic) stepOverlayAnswer(msg *Msg) (done bool) {
	if c.kind == reqNone {
		return false
	}

	rAddr := c.RxFrm.HeaderAddr()
	rCmd := c.RxFrm.HeaderCmd()
	rPending := c.RxFrm.HeaderPending()
	var reply [ConfigWords]uint16
	_ = c.RxFrm.ReadConfigInto(reply[:])

	switch c.kind {
	case reqWrite:
		switch {
		case rCmd == CmdIdle:
			return false
		case rCmd == CmdAck && rAddr == c.addr:
			copy(msg.Data[:ConfigWords], reply[:])
			if c.isPending {
				c.sent += c.fragLen
				c.fragLen = 0
				return false
			}
			c.sent += c.fragLen
			msg.Size = c.sent
			msg.markSuccess(StatusWriteSuccess)
			c.Reset()
			return true
		default:
			copy(msg.Data[:ConfigWords], reply[:])
			msg.markError(StatusWriteError)
			c.Reset()
			return true
		}
	case reqRead, reqGetInfo:
		_, _, errCmd := cmdFor(c.kind)
		switch {
		case rCmd == CmdAck && rAddr == c.addr && rPending == segPending:
			copy(msg.Data[c.sent:c.sent+ConfigWords], reply[:])
			c.sent += ConfigWords
			c.pendingWords += ConfigWords
			return false
		case rCmd == CmdAck && rAddr == c.addr && rPending == segNotPending:
			copy(msg.Data[c.sent:c.sent+ConfigWords], reply[:])
			c.sent += ConfigWords
			msg.Size = c.sent
			msg.markSuccess(successStatus(c.kind))
			c.Reset()
			return true
		case rCmd == errCmd && rAddr == c.addr:
			copy(msg.Data[:ConfigWords], reply[:])
			msg.markError(errorStatus(c.kind))
			c.Reset()
			return true
		case rCmd == CmdIdle:
			return false
		default:
			msg.markError(errorStatus(c.kind))
			c.Reset()
			return true
		}
	default:
		return false
	}
}

// composeCyclicFrame builds the next outbound cyclic frame, §4.5: if the
// overlay has a config header staged it is already in TxFrm (from
// stepOverlayRequest); otherwise a fresh IDLE/zero header is installed.
// The cyclic TX payload (0..cyclicSize words) is appended and a CRC
// placed over the whole composite frame when calcCRC is set.
func composeCyclicFrame(txFrm *Frame, hasOverlayHeader bool, cyclicTx []uint16, cyclicSize uint16, calcCRC bool) error {
	if !hasOverlayHeader {
		if err := txFrm.CreateConfig(0, CmdIdle, segNotPending, nil, false); err != nil {
			return err
		}
	}
	return txFrm.AppendCyclic(cyclicTx, int(cyclicSize), calcCRC)
}

// cyclicExchange performs the single per-tick SPI transfer of §4.3 step 3
// / §4.5 and, on a verified CRC, extracts the cyclic RX payload. CRC
// verification mirrors InterfaceState.rxCRCOk: skipped entirely when
// calcCRC is false (hardware CRC / no trailer appended), and falling back
// to Frame.CRCOk when the port itself has no software CRCProvider.
func cyclicExchange(ctx context.Context, port PlatformPort, id int, txFrm *Frame, rxFrm *Frame, cyclicRx []uint16, cyclicSize uint16, calcCRC bool) (crcOK bool, err error) {
	n := int(txFrm.Size)
	if err := port.SpiTransfer(ctx, id, txFrm.Buf[:n], rxFrm.Buf[:n], n); err != nil {
		return false, err
	}
	rxFrm.Size = txFrm.Size

	ok := true
	if calcCRC {
		if crc := port.CRC(); crc != nil {
			ok = crc.Check(rxFrm.Buf[:rxFrm.Size])
		} else {
			ok = rxFrm.CRCOk(rxFrm.Size)
		}
	}
	if !ok {
		return false, nil
	}
	if cyclicSize > 0 {
		base := 1 + ConfigWords
		copy(cyclicRx, rxFrm.Buf[base:base+int(cyclicSize)])
	}
	return true, nil
}
