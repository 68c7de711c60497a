package reservation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
)

func TestLocalManagerProvidesMutualExclusion(t *testing.T) {
	m := NewLocalManager()
	unitID := uuid.New()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := m.Acquire(ctx, unitID, time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer lease.Release(ctx)
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
}

func TestLocalManagerTimesOut(t *testing.T) {
	m := NewLocalManager()
	unitID := uuid.New()
	ctx := context.Background()

	lease, err := m.Acquire(ctx, unitID, time.Second)
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = m.Acquire(ctx, unitID, 10*time.Millisecond)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeLockBusy))

	other, err := m.Acquire(ctx, uuid.New(), 0)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))
}
