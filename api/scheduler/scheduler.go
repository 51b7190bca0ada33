package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepSchedule runs the support room sweep every ten minutes
const SweepSchedule = "*/10 * * * *"

// Sweeper evicts support rooms that have been idle for longer than retention
type Sweeper interface {
	Sweep(retention time.Duration) []string
}

// Scheduler handles periodic background jobs for the chat server
type Scheduler struct {
	cron      *cron.Cron
	sweeper   Sweeper
	retention time.Duration
}

// NewScheduler creates a new scheduler instance. A retention of zero or less
// disables the sweep job.
func NewScheduler(sweeper Sweeper, retention time.Duration) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		sweeper:   sweeper,
		retention: retention,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	if s.retention > 0 {
		_, err := s.cron.AddFunc(SweepSchedule, s.sweepSupportRooms)
		if err != nil {
			zap.S().Errorw("failed to register support room sweep job", "error", err)
		}
	}

	s.cron.Start()
	zap.S().Infow("scheduler started", "supportRoomRetention", s.retention)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

// Jobs reports how many jobs are registered
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) sweepSupportRooms() {
	evicted := s.sweeper.Sweep(s.retention)
	if len(evicted) == 0 {
		zap.S().Debug("support room sweep found nothing to evict")
		return
	}
	zap.S().Infow("evicted idle support rooms",
		"count", len(evicted),
		"rooms", evicted)
}
