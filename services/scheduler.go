// services/scheduler.go
package services

import (
	"context"
	"log"
	"os"
	"time"

	"tournament-registration-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartReconcileScheduler periodically re-counts every active
// tournament and re-broadcasts the snapshot through the feed. This is
// the healing path for the push channel: a subscriber that missed a
// delta converges on the next tick. The job is read-only — it never
// mutates the ledger, so a pending registration an admin ignores keeps
// its slot until an explicit rejection.
func (s *RegistrationService) StartReconcileScheduler() gocron.Scheduler {
	interval := 30 * time.Second
	if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		} else {
			log.Printf("[Scheduler] Invalid RECONCILE_INTERVAL=%q, using %s", v, interval)
		}
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			var tournaments []models.Tournament
			err := s.DB.Where("active = ?", true).Find(&tournaments).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for i := range tournaments {
				s.broadcastAvailability(context.Background(), &tournaments[i])
			}
		}),
	)

	return sched
}
