package storage

import (
	"context"
	"errors"
	"io"
)

// Package storage contains blob storage backends addressed by opaque keys.
// Keys are generated by the ingest pipeline and never derived from
// user-supplied names.

var (
	// ErrNotFound is returned when no blob exists at the given key.
	ErrNotFound = errors.New("blob not found")
	// ErrRangeInvalid is returned when a range read starts at or beyond the blob size.
	ErrRangeInvalid = errors.New("range start beyond blob size")
	// ErrIO wraps transient read/write failures of the underlying store.
	ErrIO = errors.New("storage io failure")
)

// RangeResult carries the bytes of a partial read together with the
// effective (clamped) range and the total blob size, so the caller can
// build a partial-content response.
type RangeResult struct {
	Data      []byte
	Start     int64
	End       int64
	TotalSize int64
}

// Backend is a durable byte store for originals and derivatives.
//
// Store and ReplaceInPlace are atomic with respect to concurrent readers:
// once either returns, a full read of the key returns exactly the written
// bytes, and a reader racing a replacement observes either the old or the
// new content in full, never a mix.
type Backend interface {
	// Store persists the reader's bytes under key and returns the byte count.
	// On failure no partial blob remains at the key.
	Store(ctx context.Context, key string, r io.Reader) (int64, error)

	// ReadFull returns the complete blob, or ErrNotFound.
	ReadFull(ctx context.Context, key string) ([]byte, error)

	// ReadRange returns bytes [start, end] inclusive. end < 0 or past the
	// blob size is clamped to size-1. Fails with ErrRangeInvalid when
	// start >= size or when a non-negative end precedes start.
	ReadRange(ctx context.Context, key string, start, end int64) (*RangeResult, error)

	// ReplaceInPlace atomically swaps the blob at key for newData.
	// On failure the original bytes are left untouched.
	ReplaceInPlace(ctx context.Context, key string, newData []byte) error

	// Exists reports whether a blob is present at key.
	Exists(ctx context.Context, key string) bool

	// Size returns the blob's byte length, or ErrNotFound.
	Size(ctx context.Context, key string) (int64, error)

	// Delete removes the blob. Absence is not an error.
	Delete(ctx context.Context, key string) error
}
