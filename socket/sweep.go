package socket

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// SchedulePresenceSweep registers a job that drops presence records offline
// for longer than staleAfter
func SchedulePresenceSweep(scheduler gocron.Scheduler, presence *PresenceRegistry, interval, staleAfter time.Duration) (gocron.Job, error) {
	job, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			removed := presence.Sweep(staleAfter)
			if len(removed) > 0 {
				presenceSweptTotal.Add(float64(len(removed)))
				hubLog().Debug().Int("removed", len(removed)).Int("remaining", presence.Len()).Msg("presence sweep")
			}
		}),
		gocron.WithName("presence_sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule presence sweep: %w", err)
	}
	return job, nil
}
