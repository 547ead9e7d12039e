package tx

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory stores that participate in a
// MemoryRunner transaction. Snapshot returns an opaque copy of the store's
// state; Restore puts it back.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// MemoryRunner serializes transactions over in-memory stores with a coarse
// lock and gives them rollback semantics via snapshot/restore. It exists so
// multi-store atomicity (approve = request transition + role promotion) is
// honored, and testable, without a database.
type MemoryRunner struct {
	mu     sync.Mutex
	stores []Snapshotter
}

// NewMemoryRunner builds a runner over the given stores. Every store mutated
// inside RunInTx must be registered here or its writes survive a rollback.
func NewMemoryRunner(stores ...Snapshotter) *MemoryRunner {
	return &MemoryRunner{stores: stores}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]any, len(r.stores))
	for i, s := range r.stores {
		snapshots[i] = s.Snapshot()
	}

	if err := fn(ctx); err != nil {
		for i, s := range r.stores {
			s.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
