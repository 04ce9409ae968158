// Package quota tracks aggregate storage consumption against a fixed
// capacity. Usage is recomputed from the authoritative record set rather
// than kept as an independently drifting counter, so crash-interrupted
// operations cannot skew it permanently.
package quota

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"photostore/internal/model"
	"photostore/internal/repository"
)

// ErrStorageFull is returned when an ingest would exceed the configured capacity.
var ErrStorageFull = errors.New("storage capacity exceeded")

var usedBytesGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "photostore_storage_used_bytes",
	Help: "Total bytes consumed by non-deleted photos at last usage check.",
})

// Tracker derives aggregate usage from the photo repository and checks
// reservations against a fixed capacity.
//
// Reserve is a point-in-time check against a pre-write snapshot: no lock is
// held across the subsequent storage write, so concurrent ingests can
// transiently overshoot the capacity. This is an accepted best-effort bound.
type Tracker struct {
	repo     repository.PhotoRepository
	capacity int64
}

// New creates a Tracker with the given capacity in bytes.
func New(repo repository.PhotoRepository, capacityBytes int64) *Tracker {
	return &Tracker{repo: repo, capacity: capacityBytes}
}

// Usage returns the total bytes of all non-deleted photos.
func (t *Tracker) Usage(ctx context.Context) (int64, error) {
	used, err := t.repo.SumActiveSize(ctx)
	if err != nil {
		return 0, err
	}
	usedBytesGauge.Set(float64(used))
	return used, nil
}

// Reserve checks whether size additional bytes fit within capacity.
// Returns ErrStorageFull when they do not.
func (t *Tracker) Reserve(ctx context.Context, size int64) error {
	used, err := t.Usage(ctx)
	if err != nil {
		return err
	}
	if used+size > t.capacity {
		return ErrStorageFull
	}
	return nil
}

// Capacity returns the configured capacity in bytes.
func (t *Tracker) Capacity() int64 {
	return t.capacity
}

// Info returns the aggregate storage accounting snapshot.
func (t *Tracker) Info(ctx context.Context) (*model.StorageInfo, error) {
	used, err := t.Usage(ctx)
	if err != nil {
		return nil, err
	}
	count, err := t.repo.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	free := t.capacity - used
	if free < 0 {
		free = 0
	}

	// Zero capacity must not turn the percentage into NaN or +Inf.
	pct := 0.0
	if t.capacity > 0 {
		pct = float64(used) / float64(t.capacity) * 100
	}

	return &model.StorageInfo{
		UsedBytes:        used,
		UsedReadable:     model.FormatSize(used),
		CapacityBytes:    t.capacity,
		CapacityReadable: model.FormatSize(t.capacity),
		FreeBytes:        free,
		FreeReadable:     model.FormatSize(free),
		UsagePercentage:  pct,
		TotalActiveFiles: count,
	}, nil
}
