// Package reservation serializes buyers of the same inventory unit behind a short lease.
package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
)

// Manager hands out exclusive leases scoped to one inventory unit.
// Different units never contend.
type Manager interface {
	Acquire(ctx context.Context, unitID uuid.UUID, timeout time.Duration) (*Lease, error)
}

// Lease is held for the duration of one buy. Release is safe to call more than once.
type Lease struct {
	UnitID  uuid.UUID
	once    sync.Once
	release func(context.Context) error
	err     error
}

func newLease(unitID uuid.UUID, release func(context.Context) error) *Lease {
	return &Lease{UnitID: unitID, release: release}
}

// Release gives the unit back. It keeps working after ctx is canceled.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	l.once.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		l.err = l.release(context.WithoutCancel(ctx))
	})
	return l.err
}

func errLockBusy(unitID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeLockBusy, "inventory unit is busy, retry shortly").
		WithDetails(map[string]any{"unit_id": unitID.String()})
}
