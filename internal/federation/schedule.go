package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// pruneParser accepts the same schedule grammar the rest of the corpus
// uses for cron expressions, including "@every" descriptors — the
// idle connection-pool prune cadence is operator-configurable the same
// way a scheduled task's cadence is, rather than hardcoded to a fixed
// ticker interval like the liveness sweep.
var pruneParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// DefaultPruneSchedule prunes idle peer connections once a minute.
const DefaultPruneSchedule = "@every 1m"

// PrunerConfig configures Pool's background idle-connection-pruning
// loop.
type PrunerConfig struct {
	// Schedule is a cron expression or descriptor (e.g. "@every 1m",
	// "@hourly"). Empty defaults to DefaultPruneSchedule.
	Schedule string
}

// StartPruning runs pool.Prune on the configured schedule until ctx is
// canceled. It returns an error immediately if Schedule doesn't parse,
// rather than silently falling back, since a malformed operator-supplied
// cron expression should fail loudly at startup.
func StartPruning(ctx context.Context, pool *Pool, cfg PrunerConfig) error {
	expr := cfg.Schedule
	if expr == "" {
		expr = DefaultPruneSchedule
	}
	schedule, err := pruneParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("federation: invalid prune schedule %q: %w", expr, err)
	}

	go func() {
		now := time.Now()
		for {
			next := schedule.Next(now)
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case now = <-timer.C:
				pool.Prune(now)
			}
		}
	}()
	return nil
}
