// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	pruneSpec     = "0 3 * * *"
	downgradeSpec = "@hourly"
	jobTimeout    = 5 * time.Minute
)

type DevicePruner interface {
	PruneStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type SubscriptionDowngrader interface {
	DowngradeExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron       *cron.Cron
	devices    DevicePruner
	profiles   SubscriptionDowngrader
	staleAfter time.Duration
	logger     *zap.Logger
}

// New registers the jobs. staleDays of zero disables device pruning.
func New(devices DevicePruner, profiles SubscriptionDowngrader, staleDays int, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{s: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		devices:    devices,
		profiles:   profiles,
		staleAfter: time.Duration(staleDays) * 24 * time.Hour,
		logger:     logger,
	}

	if staleDays > 0 {
		if _, err := s.cron.AddFunc(pruneSpec, s.PruneDevices); err != nil {
			return nil, err
		}
	}
	if _, err := s.cron.AddFunc(downgradeSpec, s.DowngradeSubscriptions); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) PruneDevices() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.devices.PruneStale(ctx, s.staleAfter)
	if err != nil {
		s.logger.Error("failed to prune stale devices", zap.Error(err))
		return
	}
	s.logger.Info("stale devices pruned", zap.Int("count", n))
}

func (s *Scheduler) DowngradeSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.profiles.DowngradeExpired(ctx); err != nil {
		s.logger.Error("failed to downgrade expired subscriptions", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, kv ...any) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}
