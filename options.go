package mcb

import "github.com/charmbracelet/log"

// Option configures an Instance at construction time. spec.md §9 calls
// for the caller to supply platform ports "by reference"; functional
// options are the idiomatic Go vehicle for the handful of optional knobs
// (logger, timeout, CRC toggle) layered on top of the mandatory port.
type Option func(*Instance)

// WithLogger overrides the default logger. The default is a
// charmbracelet/log logger writing to stderr at Info level.
func WithLogger(logger *log.Logger) Option {
	return func(i *Instance) { i.log = logger }
}

// WithTimeout overrides the default 1000ms blocking-mode timeout, §6.
func WithTimeout(timeoutMs uint32) Option {
	return func(i *Instance) { i.timeoutMs = timeoutMs }
}

// WithCRC sets whether a software CRC word is appended to outgoing frames
// and checked on replies (default true). Pass false for a hardware-CRC
// backend, §6/§9.
func WithCRC(calcCRC bool) Option {
	return func(i *Instance) { i.calcCRC = calcCRC }
}

// WithSyncMode sets the cyclic synchronization regime requested at
// enable_cyclic time, §3/§6. Defaults to SyncNone.
func WithSyncMode(mode SyncMode) Option {
	return func(i *Instance) { i.syncMode = mode }
}
