package mcb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T, port *fakePort) *Instance {
	t.Helper()
	ins, err := New(0, port, ModeBlocking, WithTimeout(1000))
	require.NoError(t, err)
	return ins
}

func TestWrite_SingleFragmentSuccess(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	var cfg [ConfigWords]uint16
	cfg[0] = 0x1234
	port.queueReply(replyFrame(0x010, CmdAck, segNotPending, cfg)...)

	msg := &Msg{Addr: 0x010, Cmd: CmdWrite, Size: 1}
	msg.Data[0] = 0x1234

	err := ins.Write(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, StatusWriteSuccess, msg.Status)
	require.Equal(t, CmdAck, msg.Cmd)
}

func TestWrite_SegmentedAcrossTwoFragments(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	// 6 words of payload: first fragment (4 words) acked pending,
	// second fragment (2 words) acked final.
	var cfg1, cfg2 [ConfigWords]uint16
	port.queueReply(replyFrame(0x020, CmdAck, segPending, cfg1)...)
	port.queueReply(replyFrame(0x020, CmdAck, segNotPending, cfg2)...)

	msg := &Msg{Addr: 0x020, Cmd: CmdWrite, Size: 6}
	for i := range msg.Data[:6] {
		msg.Data[i] = uint16(i + 1)
	}

	err := ins.Write(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, StatusWriteSuccess, msg.Status)
	require.Equal(t, uint16(6), msg.Size)
	require.Len(t, port.sent, 2)
}

func TestWrite_IdleRetriesIdenticalFragment(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	var cfg [ConfigWords]uint16
	idleFrame := func() []uint16 {
		var f Frame
		_ = f.CreateConfig(0x030, CmdIdle, segNotPending, nil, true)
		return f.Buf[:f.Size]
	}
	port.queueReply(idleFrame()...)
	port.queueReply(idleFrame()...)
	port.queueReply(replyFrame(0x030, CmdAck, segNotPending, cfg)...)

	msg := &Msg{Addr: 0x030, Cmd: CmdWrite, Size: 1}
	msg.Data[0] = 0xabcd

	err := ins.Write(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, StatusWriteSuccess, msg.Status)
	require.Len(t, port.sent, 3)
	// Every retried fragment carries the identical staged payload.
	require.Equal(t, port.sent[0][1:5], port.sent[1][1:5])
	require.Equal(t, port.sent[0][1:5], port.sent[2][1:5])
}

func TestWrite_SlaveErrorReply(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	var cfg [ConfigWords]uint16
	port.queueReply(replyFrame(0x040, CmdWriteErr, segNotPending, cfg)...)

	msg := &Msg{Addr: 0x040, Cmd: CmdWrite, Size: 1}
	err := ins.Write(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, StatusWriteError, msg.Status)
	require.NotZero(t, msg.Cmd&CmdError)
}

func TestRead_AccumulatesFragmentedPayload(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	cfg1 := [ConfigWords]uint16{10, 20, 30, 40}
	cfg2 := [ConfigWords]uint16{50, 60, 0, 0}
	port.queueReply(replyFrame(0x050, CmdAck, segPending, cfg1)...)
	port.queueReply(replyFrame(0x050, CmdAck, segNotPending, cfg2)...)

	msg := &Msg{Addr: 0x050, Cmd: CmdRead, Size: 6}
	err := ins.Read(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, StatusReadSuccess, msg.Status)
	require.Equal(t, uint16(8), msg.Size)
	require.Equal(t, []uint16{10, 20, 30, 40, 50, 60, 0, 0}, msg.Data[:8])
}

func TestGetInfo_Success(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	var data [ConfigWords]uint16
	desc := InfoDescriptor{Size: 2, DataType: 1, CyclicType: 0, AccessType: 3}
	desc.Pack(data[:2])
	port.queueReply(replyFrame(0x060, CmdAck, segNotPending, data)...)

	msg := &Msg{Addr: 0x060, Cmd: CmdGetInfo}
	err := ins.GetInfo(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, StatusGetInfoSuccess, msg.Status)

	got := UnpackInfoDescriptor(msg.Data[:2])
	require.Equal(t, desc, got)
}

func TestWrite_TimesOutWhenSlaveNeverAnswers(t *testing.T) {
	port := newFakePort()
	// Empty reply queue makes every transfer answer IDLE, §4.2's never-ready case.
	ins, err := New(0, port, ModeBlocking, WithTimeout(2))
	require.NoError(t, err)

	msg := &Msg{Addr: 0x070, Cmd: CmdWrite, Size: 1}
	err = ins.Write(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, StatusWriteError, msg.Status)
}
