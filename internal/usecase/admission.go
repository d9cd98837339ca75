package usecase

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// AdmissionGate bounds the number of concurrently executing pipeline runs.
// Each browser session costs significant memory, so the limit stays small on
// constrained hosts. Waiters are served in FIFO order.
type AdmissionGate struct {
	sem      *semaphore.Weighted
	capacity int
}

// NewAdmissionGate builds a gate admitting at most capacity runs at once.
func NewAdmissionGate(capacity int) *AdmissionGate {
	if capacity < 1 {
		capacity = 1
	}
	return &AdmissionGate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *AdmissionGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release frees a previously acquired slot.
func (g *AdmissionGate) Release() {
	g.sem.Release(1)
}

// Capacity reports the configured admission limit.
func (g *AdmissionGate) Capacity() int {
	return g.capacity
}
