package mcb

import "fmt"

// Status is the terminal outcome of a request, §7. Engine-internal
// *_REQUEST/*_ANSWER states are never exposed through Status.
type Status uint8

const (
	StatusStandby Status = iota
	StatusWriteSuccess
	StatusWriteError
	StatusReadSuccess
	StatusReadError
	StatusGetInfoSuccess
	StatusGetInfoError
	StatusCyclicRequest
	StatusCyclicSuccess
	StatusCyclicError
)

func (s Status) String() string {
	switch s {
	case StatusStandby:
		return "standby"
	case StatusWriteSuccess:
		return "write-success"
	case StatusWriteError:
		return "write-error"
	case StatusReadSuccess:
		return "read-success"
	case StatusReadError:
		return "read-error"
	case StatusGetInfoSuccess:
		return "get-info-success"
	case StatusGetInfoError:
		return "get-info-error"
	case StatusCyclicRequest:
		return "cyclic-request"
	case StatusCyclicSuccess:
		return "cyclic-success"
	case StatusCyclicError:
		return "cyclic-error"
	default:
		return "unknown-status"
	}
}

// success reports whether the status is one of the *_SUCCESS terminals.
func (s Status) success() bool {
	switch s {
	case StatusWriteSuccess, StatusReadSuccess, StatusGetInfoSuccess, StatusCyclicSuccess:
		return true
	default:
		return false
	}
}

// Msg is the public request/reply container, §3.
type Msg struct {
	Node   uint16
	Addr   uint16
	Cmd    uint16
	Size   uint16 // size_words
	Data   [MaxDataSz]uint16
	Status Status
}

// markSuccess sets Cmd to MCB_REP_ACK the way §7 requires: every call
// mutates Cmd itself, so callers can inspect outcome without a second field.
func (m *Msg) markSuccess(status Status) {
	m.Status = status
	m.Cmd = CmdAck
}

// markError ORs in MCB_REP_ERROR (4) into Cmd on error, §7.
func (m *Msg) markError(status Status) {
	m.Status = status
	m.Cmd |= CmdError
}

func (m Msg) String() string {
	return fmt.Sprintf("Msg{node=%d addr=0x%03x cmd=%d size=%d status=%s}", m.Node, m.Addr, m.Cmd, m.Size, m.Status)
}

// InfoDescriptor is the packed 19-bit descriptor carried by a get-info
// reply's Data field: size:8 | data_type:6 | cyclic_type:2 | access_type:3.
type InfoDescriptor struct {
	Size        uint8
	DataType    uint8
	CyclicType  uint8
	AccessType  uint8
}

// Pack writes the descriptor into the first two words of dst, LSB-first:
// bits [0:8) = Size, [8:14) = DataType, [14:16) = CyclicType fill word 0;
// AccessType occupies bits [0:3) of word 1.
func (d InfoDescriptor) Pack(dst []uint16) {
	if len(dst) < 2 {
		panic("mcb: InfoDescriptor.Pack needs at least 2 words")
	}
	packed := uint32(d.Size&0xff) | uint32(d.DataType&0x3f)<<8 | uint32(d.CyclicType&0x3)<<14 | uint32(d.AccessType&0x7)<<16
	dst[0] = uint16(packed & 0xffff)
	dst[1] = uint16((packed >> 16) & 0xffff)
}

// UnpackInfoDescriptor reads the packed descriptor back out of src.
func UnpackInfoDescriptor(src []uint16) InfoDescriptor {
	if len(src) < 2 {
		panic("mcb: UnpackInfoDescriptor needs at least 2 words")
	}
	packed := uint32(src[0]) | uint32(src[1])<<16
	return InfoDescriptor{
		Size:       uint8(packed & 0xff),
		DataType:   uint8((packed >> 8) & 0x3f),
		CyclicType: uint8((packed >> 14) & 0x3),
		AccessType: uint8((packed >> 16) & 0x7),
	}
}
