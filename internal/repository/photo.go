package repository

import (
	"context"
	"time"

	"photostore/internal/model"
)

// PhotoRepository defines data access for photo metadata using SQL queries
// only. No business logic here — strictly persistence operations.
//
// Create relies on the partial unique index over content_hash for non-deleted
// rows: a concurrent duplicate insert fails with a unique-constraint
// violation, which the service layer treats as losing the dedup race.
type PhotoRepository interface {
	// Create inserts a new photo row and returns the stored record.
	Create(ctx context.Context, p *model.Photo) (*model.Photo, error)

	// FindByID returns a photo by id, including soft-deleted rows.
	FindByID(ctx context.Context, id string) (*model.Photo, error)

	// FindByContentHash returns the non-deleted photo carrying the hash.
	FindByContentHash(ctx context.Context, hash string) (*model.Photo, error)

	// FindByStorageKey returns a photo by its storage key.
	FindByStorageKey(ctx context.Context, key string) (*model.Photo, error)

	// ListByOwner returns the owner's non-deleted photos, newest first.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.Photo], error)

	// ListPublic returns public non-deleted photos, newest first.
	ListPublic(ctx context.Context, pq PageQuery) (*PageResult[model.Photo], error)

	// ListPopular returns public non-deleted photos ordered by access count.
	ListPopular(ctx context.Context, pq PageQuery) (*PageResult[model.Photo], error)

	// SearchByFilename returns non-deleted photos whose original filename
	// contains the keyword, newest first.
	SearchByFilename(ctx context.Context, keyword string, pq PageQuery) (*PageResult[model.Photo], error)

	// SoftDelete flips the deleted flag, releasing the content hash for reuse.
	SoftDelete(ctx context.Context, id string) error

	// Delete removes the row. Missing rows are not an error.
	Delete(ctx context.Context, id string) error

	// IncrementAccessCount atomically bumps the access counter and records
	// the access time in a single statement.
	IncrementAccessCount(ctx context.Context, id string, accessedAt time.Time) error

	// IncrementDownloadCount atomically bumps the download counter.
	IncrementDownloadCount(ctx context.Context, id string) error

	// SumActiveSize returns the total bytes of all non-deleted photos.
	SumActiveSize(ctx context.Context) (int64, error)

	// SumOwnerSize returns the total bytes of an owner's non-deleted photos.
	SumOwnerSize(ctx context.Context, ownerID string) (int64, error)

	// CountActive returns the number of non-deleted photos.
	CountActive(ctx context.Context) (int64, error)

	// FindExpired returns non-deleted photos created before the cutoff.
	FindExpired(ctx context.Context, before time.Time) ([]model.Photo, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
