package model

import (
	"fmt"
	"time"
)

// Visibility controls whether a photo shows up in public listings.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Photo represents one distinct stored image and its metadata.
// This is a pure domain model with no database-specific dependencies or tags.
// Exactly one non-deleted Photo may carry a given ContentHash; StorageKey is
// unique and never reused, even after deletion.
type Photo struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	StorageKey       string     `json:"storage_key"`
	ThumbnailKey     string     `json:"thumbnail_key,omitempty"`
	SizeBytes        int64      `json:"size_bytes"`
	ContentType      string     `json:"content_type"`
	Extension        string     `json:"extension"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	ContentHash      string     `json:"content_hash"`
	OwnerID          string     `json:"owner_id"`
	Description      string     `json:"description,omitempty"`
	AccessCount      int64      `json:"access_count"`
	DownloadCount    int64      `json:"download_count"`
	Visibility       Visibility `json:"visibility"`
	Deleted          bool       `json:"deleted"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
}

// HasThumbnail reports whether a thumbnail was ever successfully derived.
func (p *Photo) HasThumbnail() bool {
	return p.ThumbnailKey != ""
}

// PhotoUploadResponse is the summary returned after a successful ingest.
type PhotoUploadResponse struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	StorageKey       string    `json:"storage_key"`
	SizeBytes        int64     `json:"size_bytes"`
	SizeReadable     string    `json:"size_readable"`
	ContentType      string    `json:"content_type"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	ContentHash      string    `json:"content_hash"`
	URL              string    `json:"url"`
	ThumbnailURL     string    `json:"thumbnail_url"`
	DownloadURL      string    `json:"download_url"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// PhotoDTO is the presentation record for listings and detail lookups.
type PhotoDTO struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	SizeBytes        int64      `json:"size_bytes"`
	SizeReadable     string     `json:"size_readable"`
	ContentType      string     `json:"content_type"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	URL              string     `json:"url"`
	ThumbnailURL     string     `json:"thumbnail_url"`
	DownloadURL      string     `json:"download_url"`
	AccessCount      int64      `json:"access_count"`
	DownloadCount    int64      `json:"download_count"`
	Visibility       Visibility `json:"visibility"`
	Description      string     `json:"description,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
}

// StorageInfo is the aggregate storage accounting snapshot.
type StorageInfo struct {
	UsedBytes        int64   `json:"used_bytes"`
	UsedReadable     string  `json:"used_readable"`
	CapacityBytes    int64   `json:"capacity_bytes"`
	CapacityReadable string  `json:"capacity_readable"`
	FreeBytes        int64   `json:"free_bytes"`
	FreeReadable     string  `json:"free_readable"`
	UsagePercentage  float64 `json:"usage_percentage"`
	TotalActiveFiles int64   `json:"total_active_files"`
}

// OwnerUsage is one owner's share of the stored bytes.
type OwnerUsage struct {
	OwnerID      string `json:"owner_id"`
	UsedBytes    int64  `json:"used_bytes"`
	UsedReadable string `json:"used_readable"`
}

// FormatSize renders a byte count in human-readable form (B/KB/MB/GB).
func FormatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(size)/1024.0)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.2f MB", float64(size)/(1024.0*1024.0))
	default:
		return fmt.Sprintf("%.2f GB", float64(size)/(1024.0*1024.0*1024.0))
	}
}
