package mcb

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// semaphoreLock is the default ResourceLock, a weighted semaphore of
// size 1, §5/§6. It protects the SPI path from reentrant entry while an
// IRQ is being processed and a foreground request races it.
type semaphoreLock struct {
	sem *semaphore.Weighted
}

// NewResourceLock returns the default ResourceLock implementation shared
// by the bundled platform backends.
func NewResourceLock() ResourceLock {
	return &semaphoreLock{sem: semaphore.NewWeighted(1)}
}

func (l *semaphoreLock) TryTake() bool {
	return l.sem.TryAcquire(1)
}

func (l *semaphoreLock) Take(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *semaphoreLock) Release() {
	l.sem.Release(1)
}
