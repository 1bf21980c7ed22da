// Package worker runs the cron-scheduled maintenance jobs. Currently
// that is one job: sweeping expired sessions out of the local store.
// Reads already expire sessions lazily, so the sweep bounds memory
// rather than correctness.
package worker

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
)

const sweepSchedule = "@every 5m"

// Sweeper periodically purges expired sessions from the local store.
type Sweeper struct {
	cron  *cron.Cron
	local *store.Local
	log   *zap.Logger
}

func NewSweeper(local *store.Local, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cron:  cron.New(),
		local: local,
		log:   logger,
	}
}

// Start registers the sweep job and starts the scheduler. Call Stop()
// to shut down.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(sweepSchedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("session sweeper started", zap.String("schedule", sweepSchedule))
	return nil
}

// Stop waits for a running sweep to finish before returning.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("session sweeper stopped")
}

func (s *Sweeper) sweep() {
	if n := s.local.Sweep(); n > 0 {
		s.log.Info("expired sessions swept", zap.Int("purged", n))
	}
}
