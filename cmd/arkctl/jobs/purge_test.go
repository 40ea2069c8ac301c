package jobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/jobs"
)

func TestStartTTLPurgeRunsOnSchedule(t *testing.T) {
	store := newFakeStore()
	store.purgeN = 3
	engine := jobs.New(zap.NewNop(), store, jobs.NewUpdateLock(), &fakeSink{})
	defer engine.Stop()

	stop, err := engine.StartTTLPurge("* * * * * *", 0)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		return store.purgeCallCount() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartTTLPurgeUsesProvidedTTL(t *testing.T) {
	store := newFakeStore()
	engine := jobs.New(zap.NewNop(), store, jobs.NewUpdateLock(), &fakeSink{})
	defer engine.Stop()

	ttl := 2 * time.Hour
	stop, err := engine.StartTTLPurge("* * * * * *", ttl)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		return store.purgeCallCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	got := store.purgeTTL
	store.mu.Unlock()
	assert.Equal(t, ttl, got)
}

func TestStartTTLPurgeRejectsInvalidSchedule(t *testing.T) {
	store := newFakeStore()
	engine := jobs.New(zap.NewNop(), store, jobs.NewUpdateLock(), &fakeSink{})
	defer engine.Stop()

	_, err := engine.StartTTLPurge("not a schedule", 0)
	assert.Error(t, err)
}
