package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalManager serializes buyers inside one process. It backs sqlite development
// runs and tests where no redis is available.
type LocalManager struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func NewLocalManager() *LocalManager {
	return &LocalManager{slots: map[uuid.UUID]chan struct{}{}}
}

func (m *LocalManager) slot(unitID uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[unitID]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[unitID] = ch
	}
	return ch
}

func (m *LocalManager) Acquire(ctx context.Context, unitID uuid.UUID, timeout time.Duration) (*Lease, error) {
	ch := m.slot(unitID)
	release := func(context.Context) error {
		<-ch
		return nil
	}

	select {
	case ch <- struct{}{}:
		return newLease(unitID, release), nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return newLease(unitID, release), nil
	case <-timer.C:
		return nil, errLockBusy(unitID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
