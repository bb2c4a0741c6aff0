// Package jobs runs the scheduled maintenance of the exchange.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SuspensionLifter reactivates members whose suspension has expired
type SuspensionLifter interface {
	LiftExpiredSuspensions(ctx context.Context) (int, error)
}

// Scheduler wraps a cron runner
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	timeout time.Duration
}

// NewScheduler creates a stopped scheduler. Overlapping runs of one job are skipped.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	l := cronLogger{logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		logger:  logger,
		timeout: time.Minute,
	}
}

// AddSuspensionSweep schedules the suspension expiry sweep. An empty spec leaves it disabled.
func (s *Scheduler) AddSuspensionSweep(spec string, lifter SuspensionLifter) error {
	if spec == "" {
		s.logger.Info().Msg("Suspension sweep disabled")
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.SweepSuspensions(lifter) })
	if err != nil {
		return err
	}
	s.logger.Info().Str("schedule", spec).Msg("Suspension sweep scheduled")
	return nil
}

// SweepSuspensions runs one sweep
func (s *Scheduler) SweepSuspensions(lifter SuspensionLifter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	lifted, err := lifter.LiftExpiredSuspensions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Suspension sweep failed")
		return
	}
	if lifted > 0 {
		s.logger.Info().Int("lifted", lifted).Msg("Expired suspensions lifted")
	}
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info().Msg("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stop timed out")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
