package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// NoShowSweeper is implemented by the appointment service.
type NoShowSweeper interface {
	SweepNoShows(ctx context.Context, grace time.Duration) (int, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron *gocron.Scheduler
	log  *zap.Logger
}

// NewScheduler registers the no-show sweep every interval.
func NewScheduler(log *zap.Logger, loc *time.Location, sweeper NoShowSweeper, interval, grace time.Duration) (*Scheduler, error) {
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()

	minutes := int(interval.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	_, err := cron.Every(minutes).Minutes().Tag("no-show-sweep").Do(func() {
		RunNoShowSweep(context.Background(), log, sweeper, grace)
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: cron, log: log}, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.log.Info("job scheduler started", zap.Int("jobs", len(s.cron.Jobs())))
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunNoShowSweep runs one sweep and logs its outcome.
func RunNoShowSweep(ctx context.Context, log *zap.Logger, sweeper NoShowSweeper, grace time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	marked, err := sweeper.SweepNoShows(ctx, grace)
	if err != nil {
		log.Error("no-show sweep failed", zap.Error(err))
		return
	}
	log.Debug("no-show sweep finished", zap.Int("marked", marked))
}
