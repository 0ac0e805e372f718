package mcb

import (
	"runtime"
	"time"
)

var processStart = time.Now()

// nowMs gives the bundled platform backends a monotonic millisecond clock
// for PlatformPort.NowMs without each one reimplementing it.
func nowMs() uint32 {
	return uint32(time.Since(processStart).Milliseconds())
}

// yieldCPU backs PlatformPort.YieldCPU for the bundled backends.
func yieldCPU() {
	runtime.Gosched()
}
