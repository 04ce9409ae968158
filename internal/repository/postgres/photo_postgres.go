package postgres

import (
	"context"
	"database/sql"
	"time"

	"photostore/internal/model"
	"photostore/internal/repository"
)

// PhotoPostgres is a PostgreSQL implementation of repository.PhotoRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type PhotoPostgres struct {
	db *sql.DB
}

// NewPhotoPostgres creates a new PhotoPostgres repository.
func NewPhotoPostgres(db *sql.DB) *PhotoPostgres {
	return &PhotoPostgres{db: db}
}

var _ repository.PhotoRepository = (*PhotoPostgres)(nil)

const photoColumns = `id, original_filename, storage_key, thumbnail_key, size_bytes,
	content_type, extension, width, height, content_hash, owner_id, description,
	access_count, download_count, visibility, deleted, created_at, updated_at, last_accessed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*model.Photo, error) {
	var p model.Photo
	var lastAccessed sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.OriginalFilename,
		&p.StorageKey,
		&p.ThumbnailKey,
		&p.SizeBytes,
		&p.ContentType,
		&p.Extension,
		&p.Width,
		&p.Height,
		&p.ContentHash,
		&p.OwnerID,
		&p.Description,
		&p.AccessCount,
		&p.DownloadCount,
		&p.Visibility,
		&p.Deleted,
		&p.CreatedAt,
		&p.UpdatedAt,
		&lastAccessed,
	); err != nil {
		return nil, err
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		p.LastAccessedAt = &t
	}
	return &p, nil
}

// Create inserts a new photo row and returns the stored record.
// A unique violation on the content-hash index propagates to the caller,
// which resolves the dedup race by re-reading the winning row.
func (r *PhotoPostgres) Create(ctx context.Context, p *model.Photo) (*model.Photo, error) {
	const q = `
		INSERT INTO photos (id, original_filename, storage_key, thumbnail_key, size_bytes,
			content_type, extension, width, height, content_hash, owner_id, description,
			visibility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING ` + photoColumns
	row := r.db.QueryRowContext(ctx, q,
		p.ID,
		p.OriginalFilename,
		p.StorageKey,
		p.ThumbnailKey,
		p.SizeBytes,
		p.ContentType,
		p.Extension,
		p.Width,
		p.Height,
		p.ContentHash,
		p.OwnerID,
		p.Description,
		p.Visibility,
		p.CreatedAt,
	)
	return scanPhoto(row)
}

// FindByID fetches a single photo by its id.
func (r *PhotoPostgres) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	const q = `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`
	return scanPhoto(r.db.QueryRowContext(ctx, q, id))
}

// FindByContentHash fetches the non-deleted photo with the given hash.
func (r *PhotoPostgres) FindByContentHash(ctx context.Context, hash string) (*model.Photo, error) {
	const q = `SELECT ` + photoColumns + ` FROM photos WHERE content_hash = $1 AND NOT deleted`
	return scanPhoto(r.db.QueryRowContext(ctx, q, hash))
}

// FindByStorageKey fetches a single photo by its storage key.
func (r *PhotoPostgres) FindByStorageKey(ctx context.Context, key string) (*model.Photo, error) {
	const q = `SELECT ` + photoColumns + ` FROM photos WHERE storage_key = $1`
	return scanPhoto(r.db.QueryRowContext(ctx, q, key))
}

func (r *PhotoPostgres) listPage(ctx context.Context, countQuery, listQuery string, countArgs, listArgs []any) (*repository.PageResult[model.Photo], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Photo]{Items: items, Total: total}, nil
}

// ListByOwner returns the owner's non-deleted photos, newest first.
func (r *PhotoPostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	const qCount = `SELECT COUNT(*) FROM photos WHERE owner_id = $1 AND NOT deleted`
	const qList = `SELECT ` + photoColumns + `
		FROM photos
		WHERE owner_id = $1 AND NOT deleted
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.listPage(ctx, qCount, qList, []any{ownerID}, []any{ownerID, pq.Limit, pq.Offset})
}

// ListPublic returns public non-deleted photos, newest first.
func (r *PhotoPostgres) ListPublic(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	const qCount = `SELECT COUNT(*) FROM photos WHERE visibility = 'public' AND NOT deleted`
	const qList = `SELECT ` + photoColumns + `
		FROM photos
		WHERE visibility = 'public' AND NOT deleted
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	return r.listPage(ctx, qCount, qList, nil, []any{pq.Limit, pq.Offset})
}

// ListPopular returns public non-deleted photos ordered by access count.
func (r *PhotoPostgres) ListPopular(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	const qCount = `SELECT COUNT(*) FROM photos WHERE visibility = 'public' AND NOT deleted`
	const qList = `SELECT ` + photoColumns + `
		FROM photos
		WHERE visibility = 'public' AND NOT deleted
		ORDER BY access_count DESC, id DESC
		LIMIT $1 OFFSET $2`
	return r.listPage(ctx, qCount, qList, nil, []any{pq.Limit, pq.Offset})
}

// SearchByFilename returns non-deleted photos matching the keyword, newest first.
func (r *PhotoPostgres) SearchByFilename(ctx context.Context, keyword string, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	const qCount = `SELECT COUNT(*) FROM photos WHERE original_filename ILIKE '%' || $1 || '%' AND NOT deleted`
	const qList = `SELECT ` + photoColumns + `
		FROM photos
		WHERE original_filename ILIKE '%' || $1 || '%' AND NOT deleted
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.listPage(ctx, qCount, qList, []any{keyword}, []any{keyword, pq.Limit, pq.Offset})
}

// SoftDelete flips the deleted flag on a photo.
func (r *PhotoPostgres) SoftDelete(ctx context.Context, id string) error {
	const q = `UPDATE photos SET deleted = TRUE, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Delete removes a photo row by id. It does not return an error if the row
// does not exist.
func (r *PhotoPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM photos WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

// IncrementAccessCount bumps the access counter and access time atomically
// at the store, avoiding any read-modify-write race.
func (r *PhotoPostgres) IncrementAccessCount(ctx context.Context, id string, accessedAt time.Time) error {
	const q = `UPDATE photos
		SET access_count = access_count + 1, last_accessed_at = $2, updated_at = now()
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, accessedAt)
	return err
}

// IncrementDownloadCount bumps the download counter atomically at the store.
func (r *PhotoPostgres) IncrementDownloadCount(ctx context.Context, id string) error {
	const q = `UPDATE photos
		SET download_count = download_count + 1, updated_at = now()
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// SumActiveSize recomputes aggregate usage from the authoritative record set.
func (r *PhotoPostgres) SumActiveSize(ctx context.Context) (int64, error) {
	const q = `SELECT COALESCE(SUM(size_bytes), 0) FROM photos WHERE NOT deleted`
	var sum int64
	err := r.db.QueryRowContext(ctx, q).Scan(&sum)
	return sum, err
}

// SumOwnerSize returns the total bytes of an owner's non-deleted photos.
func (r *PhotoPostgres) SumOwnerSize(ctx context.Context, ownerID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(size_bytes), 0) FROM photos WHERE owner_id = $1 AND NOT deleted`
	var sum int64
	err := r.db.QueryRowContext(ctx, q, ownerID).Scan(&sum)
	return sum, err
}

// CountActive returns the number of non-deleted photos.
func (r *PhotoPostgres) CountActive(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM photos WHERE NOT deleted`
	var n int64
	err := r.db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

// FindExpired returns non-deleted photos created before the cutoff.
func (r *PhotoPostgres) FindExpired(ctx context.Context, before time.Time) ([]model.Photo, error) {
	const q = `SELECT ` + photoColumns + `
		FROM photos
		WHERE created_at < $1 AND NOT deleted
		ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}
