package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photostore/internal/config"
)

// sweepRecorder records SweepExpired invocations; the embedded interface
// covers the methods the scheduler never touches.
type sweepRecorder struct {
	PhotoService
	cutoffs []time.Time
}

func (r *sweepRecorder) SweepExpired(_ context.Context, before time.Time) int {
	r.cutoffs = append(r.cutoffs, before)
	return 2
}

func TestRetentionScheduler_DisabledIsNoOp(t *testing.T) {
	rec := &sweepRecorder{}
	sched := NewRetentionScheduler(rec, config.RetentionConfig{Enabled: false}, zerolog.Nop())

	require.NoError(t, sched.Start())
	sched.Stop()
	assert.Empty(t, rec.cutoffs)
}

func TestRetentionScheduler_StartAndStop(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	rec := &sweepRecorder{}
	sched := NewRetentionScheduler(rec, config.RetentionConfig{
		Enabled:    true,
		DaysToKeep: 1,
		Schedule:   "@daily",
	}, log)

	require.NoError(t, sched.Start())
	sched.Stop()
	assert.Empty(t, rec.cutoffs)
}

func TestRetentionScheduler_RejectsBadSchedule(t *testing.T) {
	rec := &sweepRecorder{}
	sched := NewRetentionScheduler(rec, config.RetentionConfig{
		Enabled:  true,
		Schedule: "not a cron expression",
	}, zerolog.Nop())

	assert.Error(t, sched.Start())
}

func TestRetentionScheduler_SweepUsesRetentionWindow(t *testing.T) {
	rec := &sweepRecorder{}
	sched := NewRetentionScheduler(rec, config.RetentionConfig{
		Enabled:    true,
		DaysToKeep: 30,
		Schedule:   "0 2 * * *",
	}, zerolog.Nop())

	sched.runSweep()

	require.Len(t, rec.cutoffs, 1)
	want := time.Now().UTC().AddDate(0, 0, -30)
	assert.WithinDuration(t, want, rec.cutoffs[0], time.Minute)
}
