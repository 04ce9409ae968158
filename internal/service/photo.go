package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"photostore/internal/cache"
	"photostore/internal/config"
	"photostore/internal/derivative"
	"photostore/internal/model"
	"photostore/internal/quota"
	"photostore/internal/repository"
	"photostore/internal/storage"
)

// thumbnailPrefix marks derivative keys. Thumbnails are always JPEG.
const thumbnailPrefix = "thumb_"

// UploadFile is one file of a (possibly batch) upload.
type UploadFile struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// Content is a full blob read plus the metadata a caller needs to serve it.
type Content struct {
	Data        []byte
	ContentType string
	Filename    string
}

// RangeContent is a partial blob read with the effective byte range.
type RangeContent struct {
	Data        []byte
	Start       int64
	End         int64
	TotalSize   int64
	ContentType string
}

// PhotoListResult is the service-level DTO for paginated photos.
type PhotoListResult struct {
	Items []model.PhotoDTO `json:"data"`
	Total int              `json:"total"`
}

// PhotoService defines the use cases for ingesting and serving photos.
type PhotoService interface {
	// Upload validates, dedups, stores, and derives one uploaded image.
	// Uploading bytes that already exist returns the existing record.
	Upload(ctx context.Context, file UploadFile, ownerID, description string) (*model.PhotoUploadResponse, error)

	// UploadBatch ingests up to the configured number of files; a failing
	// file is skipped, and only successful records are returned.
	UploadBatch(ctx context.Context, files []UploadFile, ownerID, description string) ([]model.PhotoUploadResponse, error)

	// Get returns the metadata record for a non-deleted photo.
	Get(ctx context.Context, id string) (*model.PhotoDTO, error)

	// View returns the full original bytes and bumps the access counter.
	View(ctx context.Context, storageKey string) (*Content, error)

	// Download returns the full original bytes and bumps the download counter.
	Download(ctx context.Context, storageKey string) (*Content, error)

	// ReadRange returns a byte subrange of the original. end < 0 means
	// "through the last byte". No counter is incremented.
	ReadRange(ctx context.Context, storageKey string, start, end int64) (*RangeContent, error)

	// Thumbnail returns the derived thumbnail bytes, or ErrNotFound when no
	// thumbnail was ever successfully derived.
	Thumbnail(ctx context.Context, storageKey string) (*Content, error)

	// ListByOwner, ListPublic, ListPopular, and Search page through
	// non-deleted records.
	ListByOwner(ctx context.Context, ownerID string, page, size int) (*PhotoListResult, error)
	ListPublic(ctx context.Context, page, size int) (*PhotoListResult, error)
	ListPopular(ctx context.Context, page, size int) (*PhotoListResult, error)
	Search(ctx context.Context, keyword string, page, size int) (*PhotoListResult, error)

	// Delete soft-deletes a photo; bytes stay readable by storage key.
	Delete(ctx context.Context, id, callerID string) error

	// PermanentDelete removes bytes, thumbnail, and record.
	PermanentDelete(ctx context.Context, id, callerID string) error

	// SweepExpired purges non-deleted photos created before the cutoff,
	// acting with system authority. Per-record failures are logged and do
	// not abort the sweep. Returns the number of purged records.
	SweepExpired(ctx context.Context, before time.Time) int

	// StorageInfo returns the aggregate storage accounting snapshot.
	StorageInfo(ctx context.Context) (*model.StorageInfo, error)

	// OwnerUsage returns the total bytes of one owner's non-deleted photos.
	OwnerUsage(ctx context.Context, ownerID string) (*model.OwnerUsage, error)
}

type photoService struct {
	backend storage.Backend
	repo    repository.PhotoRepository
	cache   *cache.PhotoCache
	quota   *quota.Tracker
	storCfg config.StorageConfig
	thumb   config.ThumbnailConfig
	comp    config.CompressionConfig
	log     zerolog.Logger
}

// NewPhotoService constructs a new PhotoService.
func NewPhotoService(
	backend storage.Backend,
	repo repository.PhotoRepository,
	photoCache *cache.PhotoCache,
	tracker *quota.Tracker,
	cfg *config.AppConfig,
	log zerolog.Logger,
) PhotoService {
	return &photoService{
		backend: backend,
		repo:    repo,
		cache:   photoCache,
		quota:   tracker,
		storCfg: cfg.Storage,
		thumb:   cfg.Thumbnail,
		comp:    cfg.Compression,
		log:     log,
	}
}

func (s *photoService) Upload(ctx context.Context, file UploadFile, ownerID, description string) (*model.PhotoUploadResponse, error) {
	if file.Reader == nil {
		return nil, ErrReaderNil
	}
	if file.Size > s.storCfg.MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes declared", ErrFileTooLarge, file.Size)
	}

	// An interrupted client stream fails here, before any bytes are written.
	data, err := io.ReadAll(file.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", storage.ErrIO, err)
	}

	ext, mime, err := s.validate(data, file.Filename)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	// Dedup: identical bytes are a no-op returning the existing record.
	existing, err := s.repo.FindByContentHash(ctx, hash)
	if err == nil {
		s.log.Info().Str("photo_id", existing.ID).Str("content_hash", hash).Msg("duplicate upload deduplicated")
		return s.toUploadResponse(existing), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	// Best-effort quota guard against a pre-write snapshot.
	if err := s.quota.Reserve(ctx, int64(len(data))); err != nil {
		return nil, err
	}

	key := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
	if _, err := s.backend.Store(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}

	width, height := derivative.Dimensions(data)
	if width == 0 {
		s.log.Warn().Str("storage_key", key).Msg("could not detect image dimensions")
	}

	thumbKey := s.deriveThumbnail(ctx, key, data)
	sizeBytes := s.compressInPlace(ctx, key, data)

	now := time.Now().UTC()
	photo := &model.Photo{
		ID:               uuid.NewString(),
		OriginalFilename: file.Filename,
		StorageKey:       key,
		ThumbnailKey:     thumbKey,
		SizeBytes:        sizeBytes,
		ContentType:      mime,
		Extension:        ext,
		Width:            width,
		Height:           height,
		ContentHash:      hash,
		OwnerID:          ownerID,
		Description:      description,
		Visibility:       model.VisibilityPublic,
		CreatedAt:        now,
	}

	stored, err := s.repo.Create(ctx, photo)
	if err != nil {
		// Two-phase dedup: a unique violation means a concurrent upload of
		// the same bytes won the race. Discard our orphaned blobs and
		// re-read the winning record.
		if isUniqueViolation(err) {
			s.discardBlobs(ctx, key, thumbKey)
			winner, ferr := s.repo.FindByContentHash(ctx, hash)
			if ferr != nil {
				return nil, fmt.Errorf("dedup race re-read: %w", ferr)
			}
			s.log.Info().Str("photo_id", winner.ID).Str("content_hash", hash).Msg("lost dedup race, returning winner")
			return s.toUploadResponse(winner), nil
		}
		// Metadata save failed: roll back storage like any other orphan.
		s.discardBlobs(ctx, key, thumbKey)
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	s.cache.Put(stored)
	s.log.Info().Str("photo_id", stored.ID).Str("storage_key", key).Int64("size_bytes", stored.SizeBytes).Msg("photo ingested")
	return s.toUploadResponse(stored), nil
}

// validate enforces the image allow-list by sniffing content, checks the
// filename extension against the allow-list, and rejects undecodable bytes.
func (s *photoService) validate(data []byte, filename string) (ext, mime string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: empty file", ErrValidation)
	}
	if int64(len(data)) > s.storCfg.MaxFileSizeBytes {
		return "", "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	detected := mimetype.Detect(data)
	mime = detected.String()
	if !contains(s.storCfg.AllowedTypes, mime) {
		return "", "", fmt.Errorf("%w: type %s not allowed", ErrValidation, mime)
	}

	ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !contains(s.storCfg.AllowedExtensions, ext) {
		return "", "", fmt.Errorf("%w: extension %q not allowed", ErrValidation, ext)
	}

	if !derivative.Decodable(data) {
		return "", "", fmt.Errorf("%w: undecodable image", ErrValidation)
	}
	return ext, mime, nil
}

// deriveThumbnail generates and stores the thumbnail. Failure is logged and
// yields an empty key; it never fails the ingest.
func (s *photoService) deriveThumbnail(ctx context.Context, key string, data []byte) string {
	thumb, err := derivative.Thumbnail(data, s.thumb.Width, s.thumb.Height, s.thumb.Quality)
	if err != nil {
		s.log.Warn().Err(err).Str("storage_key", key).Msg("thumbnail generation failed")
		return ""
	}
	thumbKey := thumbnailPrefix + key
	if _, err := s.backend.Store(ctx, thumbKey, bytes.NewReader(thumb)); err != nil {
		s.log.Warn().Err(err).Str("storage_key", key).Msg("thumbnail store failed")
		return ""
	}
	return thumbKey
}

// compressInPlace optionally recompresses the stored original and returns
// the byte size now persisted at the key. Failure is logged, never fatal.
func (s *photoService) compressInPlace(ctx context.Context, key string, data []byte) int64 {
	size := int64(len(data))
	if !s.comp.Enabled {
		return size
	}
	compressed, err := derivative.Compress(data, s.comp.Quality, s.comp.MaxWidth, s.comp.MaxHeight)
	if err != nil {
		s.log.Warn().Err(err).Str("storage_key", key).Msg("compression failed")
		return size
	}
	if int64(len(compressed)) >= size {
		return size
	}
	if err := s.backend.ReplaceInPlace(ctx, key, compressed); err != nil {
		s.log.Warn().Err(err).Str("storage_key", key).Msg("compressed replace failed")
		return size
	}
	return int64(len(compressed))
}

func (s *photoService) discardBlobs(ctx context.Context, key, thumbKey string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.log.Error().Err(err).Str("storage_key", key).Msg("orphan blob cleanup failed")
	}
	if thumbKey != "" {
		if err := s.backend.Delete(ctx, thumbKey); err != nil {
			s.log.Error().Err(err).Str("storage_key", thumbKey).Msg("orphan thumbnail cleanup failed")
		}
	}
}

func (s *photoService) UploadBatch(ctx context.Context, files []UploadFile, ownerID, description string) ([]model.PhotoUploadResponse, error) {
	if len(files) > s.storCfg.MaxFilesPerUpload {
		return nil, fmt.Errorf("%w: %d files, limit %d", ErrTooManyFiles, len(files), s.storCfg.MaxFilesPerUpload)
	}

	responses := make([]model.PhotoUploadResponse, 0, len(files))
	for _, f := range files {
		resp, err := s.Upload(ctx, f, ownerID, description)
		if err != nil {
			s.log.Warn().Err(err).Str("filename", f.Filename).Msg("batch file skipped")
			continue
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

func (s *photoService) Get(ctx context.Context, id string) (*model.PhotoDTO, error) {
	if p, ok := s.cache.GetByID(id); ok {
		if p.Deleted {
			return nil, ErrNotFound
		}
		return s.toDTO(p), nil
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Deleted {
		return nil, ErrNotFound
	}
	s.cache.Put(p)
	return s.toDTO(p), nil
}

// photoByStorageKey is the read-through path serving blob reads. Soft-deleted
// records stay resolvable here until permanent deletion.
func (s *photoService) photoByStorageKey(ctx context.Context, key string) (*model.Photo, error) {
	if p, ok := s.cache.GetByStorageKey(key); ok {
		return p, nil
	}
	p, err := s.repo.FindByStorageKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.cache.Put(p)
	return p, nil
}

func (s *photoService) View(ctx context.Context, storageKey string) (*Content, error) {
	p, err := s.photoByStorageKey(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	data, err := s.backend.ReadFull(ctx, p.StorageKey)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if err := s.repo.IncrementAccessCount(ctx, p.ID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("photo_id", p.ID).Msg("access counter increment failed")
	}
	s.cache.Invalidate(p)
	return &Content{Data: data, ContentType: p.ContentType, Filename: p.OriginalFilename}, nil
}

func (s *photoService) Download(ctx context.Context, storageKey string) (*Content, error) {
	p, err := s.photoByStorageKey(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	data, err := s.backend.ReadFull(ctx, p.StorageKey)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if err := s.repo.IncrementDownloadCount(ctx, p.ID); err != nil {
		s.log.Warn().Err(err).Str("photo_id", p.ID).Msg("download counter increment failed")
	}
	s.cache.Invalidate(p)
	return &Content{Data: data, ContentType: p.ContentType, Filename: p.OriginalFilename}, nil
}

func (s *photoService) ReadRange(ctx context.Context, storageKey string, start, end int64) (*RangeContent, error) {
	p, err := s.photoByStorageKey(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.ReadRange(ctx, p.StorageKey, start, end)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &RangeContent{
		Data:        res.Data,
		Start:       res.Start,
		End:         res.End,
		TotalSize:   res.TotalSize,
		ContentType: p.ContentType,
	}, nil
}

func (s *photoService) Thumbnail(ctx context.Context, storageKey string) (*Content, error) {
	p, err := s.photoByStorageKey(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	if !p.HasThumbnail() {
		return nil, fmt.Errorf("%w: no thumbnail derived", ErrNotFound)
	}
	data, err := s.backend.ReadFull(ctx, p.ThumbnailKey)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &Content{Data: data, ContentType: "image/jpeg", Filename: thumbnailPrefix + p.OriginalFilename}, nil
}

func (s *photoService) ListByOwner(ctx context.Context, ownerID string, page, size int) (*PhotoListResult, error) {
	res, err := s.repo.ListByOwner(ctx, ownerID, pageQuery(page, size))
	if err != nil {
		return nil, err
	}
	return s.toListResult(res), nil
}

func (s *photoService) ListPublic(ctx context.Context, page, size int) (*PhotoListResult, error) {
	res, err := s.repo.ListPublic(ctx, pageQuery(page, size))
	if err != nil {
		return nil, err
	}
	return s.toListResult(res), nil
}

func (s *photoService) ListPopular(ctx context.Context, page, size int) (*PhotoListResult, error) {
	res, err := s.repo.ListPopular(ctx, pageQuery(page, size))
	if err != nil {
		return nil, err
	}
	return s.toListResult(res), nil
}

func (s *photoService) Search(ctx context.Context, keyword string, page, size int) (*PhotoListResult, error) {
	res, err := s.repo.SearchByFilename(ctx, keyword, pageQuery(page, size))
	if err != nil {
		return nil, err
	}
	return s.toListResult(res), nil
}

func (s *photoService) Delete(ctx context.Context, id, callerID string) error {
	p, err := s.ownedPhoto(ctx, id, callerID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, p.ID); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	s.cache.Invalidate(p)
	s.log.Info().Str("photo_id", p.ID).Msg("photo soft-deleted")
	return nil
}

func (s *photoService) PermanentDelete(ctx context.Context, id, callerID string) error {
	p, err := s.ownedPhoto(ctx, id, callerID)
	if err != nil {
		return err
	}
	return s.purge(ctx, p)
}

// purge removes the blobs and the record. Blob deletion failures are logged
// and not escalated: the authoritative state is the record disappearing.
func (s *photoService) purge(ctx context.Context, p *model.Photo) error {
	if err := s.backend.Delete(ctx, p.StorageKey); err != nil {
		s.log.Error().Err(err).Str("storage_key", p.StorageKey).Msg("blob delete failed")
	}
	if p.HasThumbnail() {
		if err := s.backend.Delete(ctx, p.ThumbnailKey); err != nil {
			s.log.Error().Err(err).Str("storage_key", p.ThumbnailKey).Msg("thumbnail delete failed")
		}
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.cache.Invalidate(p)
	s.log.Info().Str("photo_id", p.ID).Msg("photo permanently deleted")
	return nil
}

func (s *photoService) ownedPhoto(ctx context.Context, id, callerID string) (*model.Photo, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.OwnerID != callerID {
		return nil, ErrAccessDenied
	}
	return p, nil
}

// SweepExpired purges expired photos with system authority, bypassing the
// caller ownership check. One failing record does not abort the sweep.
func (s *photoService) SweepExpired(ctx context.Context, before time.Time) int {
	expired, err := s.repo.FindExpired(ctx, before)
	if err != nil {
		s.log.Error().Err(err).Msg("expired photo lookup failed")
		return 0
	}

	purged := 0
	for i := range expired {
		p := expired[i]
		if err := s.purge(ctx, &p); err != nil {
			s.log.Error().Err(err).Str("photo_id", p.ID).Msg("sweep purge failed")
			continue
		}
		purged++
	}
	if len(expired) > 0 {
		s.log.Info().Int("eligible", len(expired)).Int("purged", purged).Msg("retention sweep finished")
	}
	return purged
}

func (s *photoService) StorageInfo(ctx context.Context) (*model.StorageInfo, error) {
	return s.quota.Info(ctx)
}

func (s *photoService) OwnerUsage(ctx context.Context, ownerID string) (*model.OwnerUsage, error) {
	used, err := s.repo.SumOwnerSize(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &model.OwnerUsage{
		OwnerID:      ownerID,
		UsedBytes:    used,
		UsedReadable: model.FormatSize(used),
	}, nil
}

func (s *photoService) toUploadResponse(p *model.Photo) *model.PhotoUploadResponse {
	return &model.PhotoUploadResponse{
		ID:               p.ID,
		OriginalFilename: p.OriginalFilename,
		StorageKey:       p.StorageKey,
		SizeBytes:        p.SizeBytes,
		SizeReadable:     model.FormatSize(p.SizeBytes),
		ContentType:      p.ContentType,
		Width:            p.Width,
		Height:           p.Height,
		ContentHash:      p.ContentHash,
		URL:              "/photos/view/" + p.StorageKey,
		ThumbnailURL:     "/photos/thumbnail/" + p.StorageKey,
		DownloadURL:      "/photos/download/" + p.StorageKey,
		UploadedAt:       p.CreatedAt,
	}
}

func (s *photoService) toDTO(p *model.Photo) *model.PhotoDTO {
	return &model.PhotoDTO{
		ID:               p.ID,
		OriginalFilename: p.OriginalFilename,
		SizeBytes:        p.SizeBytes,
		SizeReadable:     model.FormatSize(p.SizeBytes),
		ContentType:      p.ContentType,
		Width:            p.Width,
		Height:           p.Height,
		URL:              "/photos/view/" + p.StorageKey,
		ThumbnailURL:     "/photos/thumbnail/" + p.StorageKey,
		DownloadURL:      "/photos/download/" + p.StorageKey,
		AccessCount:      p.AccessCount,
		DownloadCount:    p.DownloadCount,
		Visibility:       p.Visibility,
		Description:      p.Description,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		LastAccessedAt:   p.LastAccessedAt,
	}
}

func (s *photoService) toListResult(res *repository.PageResult[model.Photo]) *PhotoListResult {
	items := make([]model.PhotoDTO, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, *s.toDTO(&res.Items[i]))
	}
	return &PhotoListResult{Items: items, Total: res.Total}
}

func pageQuery(page, size int) repository.PageQuery {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	return repository.PageQuery{Limit: size, Offset: page * size}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation, the losing side of the dedup race.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func mapStorageErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
