package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjper/arkctl/cmd/arkctl/jobs"
	itime "github.com/tjper/arkctl/internal/time"
)

func TestUpdateLockGrantsFIFO(t *testing.T) {
	lock := jobs.NewUpdateLock()
	require.NoError(t, lock.Lock(context.Background(), "first", ""))

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range []string{"second", "third", "fourth"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			require.NoError(t, lock.Lock(context.Background(), name, ""))
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			lock.Unlock()
		}(name)
		time.Sleep(10 * time.Millisecond) // ensure arrival order
	}

	lock.Unlock() // release "first"
	wg.Wait()

	assert.Equal(t, []string{"second", "third", "fourth"}, order)
}

func TestUpdateLockRespectsContextCancellation(t *testing.T) {
	lock := jobs.NewUpdateLock()
	require.NoError(t, lock.Lock(context.Background(), "holder", ""))
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lock.Lock(ctx, "impatient", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpdateLockStatusReportsHolder(t *testing.T) {
	lock := jobs.NewUpdateLock()
	assert.False(t, lock.Status().Locked)

	require.NoError(t, lock.Lock(context.Background(), "owner-1", "install-steamcmd"))
	status := lock.Status()
	assert.True(t, status.Locked)
	assert.Equal(t, "owner-1", status.Owner)

	lock.Unlock()
	assert.False(t, lock.Status().Locked)
}

func TestUpdateLockStatusReportsMockedAcquiredAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	lock := jobs.NewUpdateLockWithClock(itime.NewMock(now))

	require.NoError(t, lock.Lock(context.Background(), "owner-1", "install-steamcmd"))
	assert.Equal(t, now, lock.Status().AcquiredAt)
}
