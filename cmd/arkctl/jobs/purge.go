package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// defaultJobTTL is how long a terminal job's row survives before
// PurgeTerminalJobs sweeps it, absent an explicit override (§4.9's
// "purged after configurable TTL" rule).
const defaultJobTTL = 7 * 24 * time.Hour

// StartTTLPurge schedules a recurring sweep of terminal jobs older than
// ttl (defaultJobTTL if ttl <= 0) on the given cron expression. The
// expression takes six fields, the first of which is seconds
// (cron.WithSeconds). The returned stop func cancels the schedule and waits
// for an in-flight sweep to finish.
func (e *Engine) StartTTLPurge(schedule string, ttl time.Duration) (stop func(), err error) {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}

	c := cron.New(cron.WithSeconds())
	_, err = c.AddFunc(schedule, func() {
		removed, err := e.store.PurgeTerminalJobs(context.Background(), ttl)
		if err != nil {
			e.logger.Error("failed to purge terminal jobs", zap.Error(err))
			return
		}
		if removed > 0 {
			e.logger.Info("purged terminal jobs past TTL", zap.Int64("removed", removed), zap.Duration("ttl", ttl))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
