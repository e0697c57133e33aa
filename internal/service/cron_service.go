package service

import (
	"context"
	"time"

	"hero-mint-service/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const reconcileLockKey = "cron:reconcile"

// CronService runs scheduled maintenance jobs. With a JobLock only one
// instance runs a job at a time; without one every instance runs it.
type CronService struct {
	cron       *cron.Cron
	reconciler ports.Reconciler
	lock       ports.JobLock
	lockTTL    time.Duration
	log        zerolog.Logger
}

// NewCronService creates a new CronService. lock may be nil.
func NewCronService(reconciler ports.Reconciler, lock ports.JobLock, lockTTL time.Duration, log zerolog.Logger) *CronService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	l := log.With().Str("component", "cron").Logger()
	return &CronService{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l}))),
		reconciler: reconciler,
		lock:       lock,
		lockTTL:    lockTTL,
		log:        l,
	}
}

// Start registers the reconciliation job on schedule and starts the scheduler.
func (s *CronService) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.RunReconcile); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Msg("cron service started")
	return nil
}

// Stop stops the scheduler and waits for a running job until ctx is done.
func (s *CronService) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("cron job still running at shutdown")
	}
	s.log.Info().Msg("cron service stopped")
}

// RunReconcile performs one reconciliation pass, bounded by the lock TTL.
func (s *CronService) RunReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
	defer cancel()

	if s.lock != nil {
		locked, err := s.lock.Acquire(ctx, reconcileLockKey, s.lockTTL)
		if err != nil {
			s.log.Warn().Err(err).Msg("reconcile: lock unavailable, skipping")
			return
		}
		if !locked {
			s.log.Debug().Msg("reconcile: running on another instance")
			return
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), reconcileLockKey); err != nil {
				s.log.Warn().Err(err).Msg("reconcile: failed to release lock")
			}
		}()
	}

	report, err := s.reconciler.Run(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reconcile failed")
		return
	}
	if len(report.Drifted) > 0 {
		s.log.Error().Int("drifted", len(report.Drifted)).Msg("reconcile found drifted wallets")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
