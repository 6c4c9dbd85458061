// Package scheduler wires up the cron job that periodically checks for
// students without an assigned mentor and alerts the administrators.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"smartod/od-service/internal/notify"
)

// Scheduler wraps robfig/cron and manages the recurring admin alerts.
type Scheduler struct {
	cron          *cron.Cron
	notifications *notify.Service
	spec          string // cron spec, e.g. "@every 24h"
}

// New creates a Scheduler that fires every intervalHours hours.
func New(notifications *notify.Service, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithLogger(cron.DefaultLogger)),
		notifications: notifications,
		spec:          fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so a fresh deployment alerts without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started with schedule %s", s.spec)

	go s.runSweep(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	count := s.notifications.CheckAndNotifyUnassignedStudents(ctx)
	if count > 0 {
		log.Printf("[scheduler] %d student(s) without a mentor", count)
	}
}
