package mcb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func ackReply(addr uint16, cfg [ConfigWords]uint16) []uint16 {
	return replyFrame(addr, CmdAck, segNotPending, cfg)
}

func TestEnableCyclic_HandshakeSucceeds(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	// Pre-map one TX register (slave acks the mapping-slot write).
	port.queueReply(ackReply(TxMapBase+1, [ConfigWords]uint16{0x200, 2})...)
	view, err := ins.TxMap(context.Background(), 0x200, 2)
	require.NoError(t, err)
	require.Len(t, view, 1)

	// EnableCyclic's four-step handshake.
	port.queueReply(ackReply(AddrCyclicMode, [ConfigWords]uint16{uint16(SyncNone)})...)
	port.queueReply(ackReply(RxMapBase, [ConfigWords]uint16{0})...)
	port.queueReply(ackReply(TxMapBase, [ConfigWords]uint16{1})...)
	port.queueReply(ackReply(AddrCommState, [ConfigWords]uint16{2})...)

	size, err := ins.EnableCyclic(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, size)
	require.True(t, ins.GetCyclicMode())
}

func TestEnableCyclic_RejectsWhenAlreadyCyclic(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)
	ins.isCyclic = true

	_, err := ins.EnableCyclic(context.Background())
	require.Error(t, err)
}

func TestCyclicProcess_PerformsOneTransferAndReleasesLock(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)
	ins.isCyclic = true
	ins.cyclicSize = 2

	port.queueReply(0, 0, 0, 0, 0, 0, 0)

	didTransfer, err := ins.CyclicProcess(context.Background())
	require.NoError(t, err)
	require.True(t, didTransfer)

	// The resource lock must be available again for the next tick.
	lock := port.ResourceLock(0)
	require.True(t, lock.TryTake())
	lock.Release()
}

func TestCyclicProcess_NoOpWhenNotCyclic(t *testing.T) {
	port := newFakePort()
	ins := newTestInstance(t, port)

	didTransfer, err := ins.CyclicProcess(context.Background())
	require.NoError(t, err)
	require.False(t, didTransfer)
}
