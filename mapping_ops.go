package mcb

import (
	"context"

	"github.com/pkg/errors"
)

// TxMap registers a slave register to be packed into the slave's cyclic
// TX channel, which the master observes in its cyclic RX buffer, §4.3.
// Mapping operations are only safe while the instance is not cyclic, §3.
// Calling it twice with the same addr is a no-op that returns the
// existing view.
func (ins *Instance) TxMap(ctx context.Context, addr, sizeBytes uint16) ([]uint16, error) {
	return ins.mapRegister(ctx, ins.txList, TxMapBase, addr, sizeBytes, ins.cyclicRx[:], true)
}

// RxMap registers a slave register to be unpacked from the slave's cyclic
// RX channel, which the master supplies via its cyclic TX buffer, §4.3.
func (ins *Instance) RxMap(ctx context.Context, addr, sizeBytes uint16) ([]uint16, error) {
	return ins.mapRegister(ctx, ins.rxList, RxMapBase, addr, sizeBytes, ins.cyclicTx[:], false)
}

func (ins *Instance) mapRegister(ctx context.Context, list *mappingList, base uint16, addr, sizeBytes uint16, masterBuf []uint16, dedup bool) ([]uint16, error) {
	ins.mu.Lock()
	if ins.isCyclic {
		ins.mu.Unlock()
		return nil, errors.New("mcb: cannot map registers while cyclic mode is active")
	}
	if dedup {
		if idx := list.indexOf(addr); idx >= 0 {
			off := cumulativeWords(list, idx)
			words := wordsForBytes(list.entries[idx].sizeBytes)
			ins.mu.Unlock()
			return masterBuf[off : off+words], nil
		}
	}
	if list.count() >= MaxMappedReg {
		ins.mu.Unlock()
		return nil, errors.Errorf("mcb: mapping list full (max %d entries)", MaxMappedReg)
	}
	slot := base + uint16(list.count()) + 1
	ins.mu.Unlock()

	msg := &Msg{Node: MoCoNodeID, Addr: slot, Cmd: CmdWrite, Size: 2}
	msg.Data[0] = addr
	msg.Data[1] = sizeBytes
	if err := ins.Write(ctx, msg); err != nil {
		return nil, err
	}
	if msg.Status != StatusWriteSuccess {
		return nil, errors.Errorf("mcb: mapping write to 0x%03x failed: %s", slot, msg.Status)
	}

	ins.mu.Lock()
	offset, err := list.append(addr, sizeBytes)
	ins.mu.Unlock()
	if err != nil {
		return nil, err
	}
	words := wordsForBytes(sizeBytes)
	return masterBuf[offset : offset+words], nil
}

func cumulativeWords(list *mappingList, uptoIndex int) uint16 {
	var words uint16
	for i := 0; i < uptoIndex; i++ {
		words += wordsForBytes(list.entries[i].sizeBytes)
	}
	return words
}

// TxUnmap posts a zero-payload write to the slot just past the last live
// TX mapping entry and, on ACK, pops that entry, §4.3.
//
// Resolved open question (spec.md §9): the source computes the unmap
// slot as base+count+1 *before* decrementing count, i.e. the slot one
// past the last live entry, not the last live entry itself. This
// implementation keeps that behavior deliberately: unmap zeroes the
// next free slot (a defensive clear of slave-side state that might
// otherwise be stale) and then pops the last live list entry, whose
// registration was made at slot base+count.
func (ins *Instance) TxUnmap(ctx context.Context) error {
	return ins.unmapRegister(ctx, ins.txList, TxMapBase)
}

// RxUnmap is the RX-list counterpart of TxUnmap.
func (ins *Instance) RxUnmap(ctx context.Context) error {
	return ins.unmapRegister(ctx, ins.rxList, RxMapBase)
}

func (ins *Instance) unmapRegister(ctx context.Context, list *mappingList, base uint16) error {
	ins.mu.Lock()
	if ins.isCyclic {
		ins.mu.Unlock()
		return errors.New("mcb: cannot unmap registers while cyclic mode is active")
	}
	if list.count() == 0 {
		ins.mu.Unlock()
		return errors.New("mcb: mapping list already empty")
	}
	slot := base + uint16(list.count()) + 1
	ins.mu.Unlock()

	msg := &Msg{Node: MoCoNodeID, Addr: slot, Cmd: CmdWrite, Size: 2}
	if err := ins.Write(ctx, msg); err != nil {
		return err
	}
	if msg.Status != StatusWriteSuccess {
		return errors.Errorf("mcb: unmap write to 0x%03x failed: %s", slot, msg.Status)
	}

	ins.mu.Lock()
	_, err := list.popLast()
	ins.mu.Unlock()
	return err
}

// UnmapAll writes a zero count to the RX and then the TX mapping base
// register and, on ACK of each, clears the corresponding list, §4.3.
func (ins *Instance) UnmapAll(ctx context.Context) error {
	ins.mu.Lock()
	if ins.isCyclic {
		ins.mu.Unlock()
		return errors.New("mcb: cannot unmap registers while cyclic mode is active")
	}
	ins.mu.Unlock()

	for _, spec := range []struct {
		base uint16
		list *mappingList
	}{{RxMapBase, ins.rxList}, {TxMapBase, ins.txList}} {
		msg := &Msg{Node: MoCoNodeID, Addr: spec.base, Cmd: CmdWrite, Size: 1}
		if err := ins.Write(ctx, msg); err != nil {
			return err
		}
		if msg.Status != StatusWriteSuccess {
			return errors.Errorf("mcb: unmap_all write to 0x%03x failed: %s", spec.base, msg.Status)
		}
		ins.mu.Lock()
		spec.list.clear()
		ins.mu.Unlock()
	}
	return nil
}
