package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/upi-payments/internal/cache"
	"github.com/robfig/cron/v3"
)

const sweepLockKey = "upi:sweep-lock"

// Expirer moves pending submissions past their window to expired.
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

type Config struct {
	Schedule string
	Timeout  time.Duration
}

// Scheduler runs the expiry sweep on a cron schedule. When several replicas
// share a redis, only the one holding the sweep lock runs a given tick.
type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	locker  cache.Cache
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

func New(expirer Expirer, locker cache.Cache, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = cache.NoopCache{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:    c,
		expirer: expirer,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunExpirySweep(context.Background()); err != nil {
			s.logger.Error("expiry sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "job", "expiry_sweep", "schedule", s.cfg.Schedule)
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// RunExpirySweep runs one sweep and reports how many submissions expired.
func (s *Scheduler) RunExpirySweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ok, err := s.locker.AcquireLock(ctx, sweepLockKey, s.cfg.Timeout)
	if err != nil {
		// redis trouble should not stop expiry, the conditional update keeps it safe
		s.logger.Warn("sweep lock unavailable, running anyway", "error", err)
	} else if !ok {
		s.logger.Debug("expiry sweep skipped, lock held elsewhere")
		return 0, nil
	}

	started := s.now()
	n, err := s.expirer.ExpireStale(ctx, started.UTC())
	if err != nil {
		return n, err
	}

	s.logger.Info("expiry sweep finished",
		"expired", n,
		"duration_ms", time.Since(started).Milliseconds())
	return n, nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
