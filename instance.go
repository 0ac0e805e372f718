package mcb

import (
	"context"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// OnCfgOverCyclicFunc is invoked once, from cyclic_process, when a
// config-over-cyclic transaction reaches a terminal state, §4.3/§9.
type OnCfgOverCyclicFunc func(ins *Instance, msg *Msg)

// Instance is the top-level handle driving one bus, §3.
type Instance struct {
	id   int
	port PlatformPort
	log  *log.Logger

	mode      Mode
	timeoutMs uint32
	calcCRC   bool
	syncMode  SyncMode

	mu        sync.Mutex
	isCyclic  bool
	cyclicSize uint16
	cyclicTx  [MaxCyclicWords]uint16
	cyclicRx  [MaxCyclicWords]uint16

	rxList *mappingList
	txList *mappingList

	intf InterfaceState

	cfgOverCyc         cfgOverCyclic
	newCfgOverCyclic   bool
	pendingOverlayKind requestKind
	cfgReq             Msg
	cfgRpy             Msg
	userCfgMsg         *Msg
	onCfgOverCyclic    OnCfgOverCyclicFunc
}

// New initializes an Instance, §4.3. Init returns InitKO (as an error)
// unless the slave's IRQ line reads high, signalling its presence.
func New(id int, port PlatformPort, mode Mode, opts ...Option) (*Instance, error) {
	if port == nil {
		return nil, errors.New("mcb: PlatformPort must not be nil")
	}

	ins := &Instance{
		id:        id,
		port:      port,
		mode:      mode,
		timeoutMs: DefaultTimeoutMs,
		calcCRC:   true,
		syncMode:  SyncNone,
		rxList:    newMappingList(),
		txList:    newMappingList(),
		log:       NewLogger(os.Stderr),
	}
	for _, opt := range opts {
		opt(ins)
	}

	ins.intf = InterfaceState{ID: uint16(id), CalcCRC: ins.calcCRC}
	ins.cfgOverCyc = cfgOverCyclic{InterfaceState: InterfaceState{ID: uint16(id), CalcCRC: false}}

	high, err := port.IrqIsHigh(id)
	if err != nil {
		return nil, errors.Wrap(err, "mcb: init: irq_is_high")
	}
	if !high {
		return nil, errors.Errorf("mcb: init: slave not present (irq low), init_ko=%d", InitKO)
	}

	ins.log.Info("instance initialized", "id", id, "mode", mode)
	return ins, nil
}

// Deinit clears mappings, drops to blocking mode, and resets the
// interface engine, §3 Lifecycle.
func (ins *Instance) Deinit() {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	ins.rxList.clear()
	ins.txList.clear()
	ins.mode = ModeBlocking
	ins.isCyclic = false
	ins.cyclicSize = 0
	ins.intf.Reset()
	ins.cfgOverCyc.Reset()
}

// AttachCfgOverCyclicCB registers the callback invoked by cyclic_process
// when an overlay config request completes, §4.3.
func (ins *Instance) AttachCfgOverCyclicCB(cb OnCfgOverCyclicFunc) {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	ins.onCfgOverCyclic = cb
}

// GetCyclicMode reports whether the instance is currently in cyclic mode.
func (ins *Instance) GetCyclicMode() bool {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	return ins.isCyclic
}

// SetCyclicMode sets the sync regime requested at the next enable_cyclic,
// §9 (kept as an explicit setter alongside folding it into EnableCyclic).
func (ins *Instance) SetCyclicMode(mode SyncMode) {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	ins.syncMode = mode
}

// Write performs a register write, blocking or non-blocking per mode,
// §4.3.
func (ins *Instance) Write(ctx context.Context, msg *Msg) error {
	return ins.request(ctx, reqWrite, msg)
}

// Read performs a register read, blocking or non-blocking per mode, §4.3.
func (ins *Instance) Read(ctx context.Context, msg *Msg) error {
	return ins.request(ctx, reqRead, msg)
}

// GetInfo requests a register's descriptor, §4.3/§9 (optional in the
// public API, per spec.md's Open Questions).
func (ins *Instance) GetInfo(ctx context.Context, msg *Msg) error {
	return ins.request(ctx, reqGetInfo, msg)
}

func (ins *Instance) request(ctx context.Context, kind requestKind, msg *Msg) error {
	ins.mu.Lock()
	cyclic := ins.isCyclic
	ins.mu.Unlock()

	if cyclic {
		return ins.requestCyclic(ctx, kind, msg)
	}
	return ins.requestDirect(ctx, kind, msg)
}

func (ins *Instance) requestDirect(ctx context.Context, kind requestKind, msg *Msg) error {
	ins.intf.start(kind, msg)

	if ins.mode == ModeNonBlocking {
		done, err := ins.intf.step(ctx, ins.port, msg)
		if err != nil {
			return err
		}
		if done && kind == reqWrite {
			ins.checkStopCyclic(msg)
		}
		return nil
	}

	start := ins.port.NowMs()
	for {
		done, err := ins.intf.step(ctx, ins.port, msg)
		if err != nil {
			ins.intf.Reset()
			return err
		}
		if done {
			if kind == reqWrite {
				ins.checkStopCyclic(msg)
			}
			return nil
		}
		if ins.port.NowMs()-start > ins.timeoutMs {
			ins.intf.Reset()
			msg.markError(errorStatus(kind))
			ins.log.Warn("request timed out", "addr", msg.Addr, "kind", kind)
			return nil
		}
		ins.port.YieldCPU()
	}
}

// requestCyclic drives a config request over the cyclic overlay, §4.3.
func (ins *Instance) requestCyclic(ctx context.Context, kind requestKind, msg *Msg) error {
	ins.mu.Lock()
	if ins.newCfgOverCyclic || ins.cfgOverCyc.kind != reqNone {
		ins.mu.Unlock()
		return errors.New("mcb: a config-over-cyclic request is already in flight")
	}
	ins.cfgReq = *msg
	ins.cfgRpy = *msg
	ins.userCfgMsg = msg
	ins.newCfgOverCyclic = true
	ins.pendingOverlayKind = kind
	ins.mu.Unlock()

	if ins.mode == ModeNonBlocking {
		return nil
	}

	start := ins.port.NowMs()
	for {
		ins.mu.Lock()
		pending := ins.newCfgOverCyclic
		active := ins.cfgOverCyc.kind != reqNone
		ins.mu.Unlock()
		if !pending && !active {
			break
		}
		if ins.port.NowMs()-start > ins.timeoutMs {
			ins.mu.Lock()
			ins.newCfgOverCyclic = false
			ins.cfgOverCyc.Reset()
			ins.mu.Unlock()
			msg.markError(StatusCyclicError)
			return nil
		}
		ins.port.YieldCPU()
	}

	ins.mu.Lock()
	*msg = ins.cfgRpy
	ins.mu.Unlock()
	return nil
}

// checkStopCyclic implements the designated "stop cyclic" signal, §4.3:
// a successful write of 1 to ADDR_COMM_STATE clears cyclic mode.
func (ins *Instance) checkStopCyclic(msg *Msg) {
	if msg.Addr == AddrCommState && msg.Status == StatusWriteSuccess && msg.Data[0] == 1 {
		ins.mu.Lock()
		ins.isCyclic = false
		ins.cyclicSize = 0
		ins.mu.Unlock()
		ins.log.Info("cyclic mode stopped")
	}
}
