package mcb

import (
	"context"

	"github.com/pkg/errors"
)

// ErrCyclicBusy is returned by DisableCyclic when the engine is currently
// mid-config-over-cyclic and cannot accept the stop-cyclic overlay write.
var ErrCyclicBusy = errors.New("mcb: cyclic engine busy with an in-flight config-over-cyclic request")

// EnableCyclic runs the four-step handshake of §4.3 and, on success,
// returns the negotiated cyclic_size. If a handshake write fails it
// returns one of the CyclicErr* codes from §6; if the instance is already
// cyclic it returns 0 with an error.
func (ins *Instance) EnableCyclic(ctx context.Context) (int, error) {
	ins.mu.Lock()
	if ins.isCyclic {
		ins.mu.Unlock()
		return 0, errors.New("mcb: already in cyclic mode")
	}
	syncMode := ins.syncMode
	ins.mu.Unlock()

	steps := []struct {
		addr uint16
		data uint16
		size uint16
		fail int
	}{
		{AddrCyclicMode, uint16(syncMode), 1, CyclicErrSync},
		{RxMapBase, uint16(ins.rxList.count()), 1, CyclicErrRxMap},
		{TxMapBase, uint16(ins.txList.count()), 1, CyclicErrTxMap},
		{AddrCommState, 2, 1, CyclicErrValidation},
	}

	for _, step := range steps {
		msg := &Msg{Node: MoCoNodeID, Addr: step.addr, Cmd: CmdWrite, Size: step.size}
		msg.Data[0] = step.data
		if err := ins.Write(ctx, msg); err != nil {
			return step.fail, err
		}
		if msg.Status != StatusWriteSuccess {
			return step.fail, errors.Errorf("mcb: enable_cyclic step 0x%03x failed: %s", step.addr, msg.Status)
		}
	}

	ins.mu.Lock()
	size := ins.rxList.mappedWords
	if ins.txList.mappedWords > size {
		size = ins.txList.mappedWords
	}
	ins.cyclicSize = size
	ins.isCyclic = true
	ins.mu.Unlock()

	ins.log.Info("cyclic mode enabled", "cyclic_size", size, "sync_mode", syncMode)
	return int(size), nil
}

// DisableCyclic posts a write of 1 to ADDR_COMM_STATE through the
// cyclic-overlay path, §4.3. It returns ErrCyclicBusy if a
// config-over-cyclic transaction is already in flight.
func (ins *Instance) DisableCyclic(ctx context.Context) error {
	ins.mu.Lock()
	if !ins.isCyclic {
		ins.mu.Unlock()
		return errors.New("mcb: not in cyclic mode")
	}
	if ins.newCfgOverCyclic || ins.cfgOverCyc.kind != reqNone {
		ins.mu.Unlock()
		return ErrCyclicBusy
	}
	ins.mu.Unlock()

	msg := &Msg{Node: MoCoNodeID, Addr: AddrCommState, Cmd: CmdWrite, Size: 1}
	msg.Data[0] = 1
	return ins.requestCyclic(ctx, reqWrite, msg)
}

// CyclicProcess is the periodic tick driven by the slave-IRQ event, §4.3
// step-by-step:
//  1. Bail out fast if not cyclic, the port isn't ready, or the resource
//     lock can't be taken.
//  2. Advance the config-over-cyclic sub-SM on the reply captured by the
//     previous tick's exchange; report completion via the callback and,
//     for the designated stop-cyclic write, clear cyclic mode and skip
//     this tick's transfer entirely.
//  3. Otherwise compose and send exactly one cyclic frame.
func (ins *Instance) CyclicProcess(ctx context.Context) (didTransfer bool, err error) {
	ins.mu.Lock()
	if !ins.isCyclic {
		ins.mu.Unlock()
		return false, nil
	}
	ins.mu.Unlock()

	if !ins.port.Ready(ins.id) {
		return false, nil
	}
	lock := ins.port.ResourceLock(ins.id)
	if !lock.TryTake() {
		return false, nil
	}
	defer lock.Release()

	ins.mu.Lock()

	if ins.cfgOverCyc.kind != reqNone {
		if done := ins.cfgOverCyc.stepOverlayAnswer(&ins.cfgRpy); done {
			*ins.userCfgMsg = ins.cfgRpy
			cb := ins.onCfgOverCyclic
			rpy := ins.cfgRpy
			ins.mu.Unlock()
			if cb != nil {
				cb(ins, &rpy)
			}
			ins.mu.Lock()

			if rpy.Addr == AddrCommState && rpy.Status == StatusWriteSuccess && rpy.Data[0] == 1 {
				ins.isCyclic = false
				ins.cyclicSize = 0
				ins.mu.Unlock()
				ins.log.Info("cyclic mode stopped via overlay")
				return false, nil
			}
		}
	}

	if ins.cfgOverCyc.kind == reqNone && ins.newCfgOverCyclic {
		ins.cfgOverCyc.startOverlay(ins.pendingOverlayKind, &ins.cfgReq)
		ins.newCfgOverCyclic = false
	}

	hasOverlay := ins.cfgOverCyc.kind != reqNone
	if hasOverlay {
		if err := ins.cfgOverCyc.stepOverlayRequest(); err != nil {
			ins.mu.Unlock()
			return false, err
		}
	}

	if err := composeCyclicFrame(&ins.cfgOverCyc.TxFrm, hasOverlay, ins.cyclicTx[:ins.cyclicSize], ins.cyclicSize, ins.calcCRC); err != nil {
		ins.mu.Unlock()
		return false, err
	}

	size := ins.cyclicSize
	ins.mu.Unlock()

	ok, err := cyclicExchange(ctx, ins.port, ins.id, &ins.cfgOverCyc.TxFrm, &ins.cfgOverCyc.RxFrm, ins.cyclicRx[:size], size, ins.calcCRC)
	if err != nil {
		return false, err
	}
	if !ok {
		ins.log.Warn("cyclic exchange CRC check failed")
	}
	didTransfer = true
	return true, nil
}
