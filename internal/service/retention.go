package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"photostore/internal/config"
)

// RetentionScheduler runs the expiry sweep on a cron schedule. A run that is
// still in progress when the next tick fires suppresses that tick.
type RetentionScheduler struct {
	cron   *cron.Cron
	photos PhotoService
	cfg    config.RetentionConfig
	log    zerolog.Logger
}

// NewRetentionScheduler wires the sweep job but does not start it.
func NewRetentionScheduler(photos PhotoService, cfg config.RetentionConfig, log zerolog.Logger) *RetentionScheduler {
	retLog := log.With().Str("component", "retention").Logger()
	cronLog := cron.PrintfLogger(&retLog)
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLog),
		cron.Recover(cronLog),
	))
	return &RetentionScheduler{cron: c, photos: photos, cfg: cfg, log: log}
}

// Start registers the sweep on the configured schedule and begins the cron
// loop. Disabled config makes Start a no-op.
func (r *RetentionScheduler) Start() error {
	if !r.cfg.Enabled {
		r.log.Info().Msg("retention sweep disabled")
		return nil
	}
	if _, err := r.cron.AddFunc(r.cfg.Schedule, r.runSweep); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info().Str("schedule", r.cfg.Schedule).Int("days_to_keep", r.cfg.DaysToKeep).Msg("retention sweep scheduled")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (r *RetentionScheduler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *RetentionScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -r.cfg.DaysToKeep)
	purged := r.photos.SweepExpired(ctx, cutoff)
	r.log.Info().Time("cutoff", cutoff).Int("purged", purged).Msg("retention sweep run complete")
}
