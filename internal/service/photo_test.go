package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"photostore/internal/cache"
	"photostore/internal/config"
	"photostore/internal/model"
	"photostore/internal/quota"
	repoMocks "photostore/internal/repository/mocks"
	"photostore/internal/storage"
	storageMocks "photostore/internal/storage/mocks"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Storage: config.StorageConfig{
			AllowedTypes:      []string{"image/jpeg", "image/png"},
			AllowedExtensions: []string{"jpg", "jpeg", "png"},
			MaxFileSizeBytes:  10 * 1024 * 1024,
			MaxFilesPerUpload: 3,
			CapacityBytes:     1 << 30,
		},
		Thumbnail:   config.ThumbnailConfig{Width: 64, Height: 64, Quality: 80},
		Compression: config.CompressionConfig{Enabled: false},
		Cache:       config.CacheConfig{MaxEntries: 16, TTLMinutes: 5},
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

type fixture struct {
	backend *storageMocks.MockBackend
	repo    *repoMocks.MockPhotoRepository
	cache   *cache.PhotoCache
	svc     PhotoService
}

func newFixture(cfg *config.AppConfig) *fixture {
	f := &fixture{
		backend: new(storageMocks.MockBackend),
		repo:    new(repoMocks.MockPhotoRepository),
		cache:   cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute),
	}
	tracker := quota.New(f.repo, cfg.Storage.CapacityBytes)
	f.svc = NewPhotoService(f.backend, f.repo, f.cache, tracker, cfg, zerolog.Nop())
	return f
}

func TestUpload_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	data := jpegBytes(t, 320, 240)
	sum := sha256.Sum256(data)
	wantHash := hex.EncodeToString(sum[:])

	f.repo.On("FindByContentHash", mock.Anything, wantHash).Return(nil, sql.ErrNoRows).Once()
	f.repo.On("SumActiveSize", mock.Anything).Return(int64(0), nil).Once()
	f.backend.On("Store", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, ".jpg") && !strings.HasPrefix(key, "thumb_")
	}), mock.Anything).Return(int64(len(data)), nil).Once()
	f.backend.On("Store", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "thumb_")
	}), mock.Anything).Return(int64(1024), nil).Once()

	var created model.Photo
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Photo")).
		Run(func(args mock.Arguments) {
			created = *(args.Get(1).(*model.Photo))
		}).
		Return(&created, nil).Once()

	resp, err := f.svc.Upload(ctx, UploadFile{Filename: "vacation.jpg", Size: int64(len(data)), Reader: bytes.NewReader(data)}, "user-1", "beach day")
	require.NoError(t, err)

	assert.Equal(t, wantHash, resp.ContentHash)
	assert.Equal(t, "vacation.jpg", resp.OriginalFilename)
	assert.Equal(t, int64(len(data)), resp.SizeBytes)
	assert.Equal(t, 320, resp.Width)
	assert.Equal(t, 240, resp.Height)
	assert.Equal(t, "/photos/view/"+resp.StorageKey, resp.URL)
	assert.True(t, strings.HasSuffix(resp.StorageKey, ".jpg"))

	assert.Equal(t, "thumb_"+created.StorageKey, created.ThumbnailKey)
	assert.Equal(t, "user-1", created.OwnerID)
	assert.Equal(t, model.VisibilityPublic, created.Visibility)

	// The fresh record lands in the cache.
	assert.Equal(t, 1, f.cache.Len())

	f.repo.AssertExpectations(t)
	f.backend.AssertExpectations(t)
}

func TestUpload_DeduplicatesIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	data := jpegBytes(t, 100, 100)
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing := &model.Photo{ID: "existing-id", StorageKey: "abc.jpg", ContentHash: hash, SizeBytes: 42}
	f.repo.On("FindByContentHash", mock.Anything, hash).Return(existing, nil).Once()

	resp, err := f.svc.Upload(ctx, UploadFile{Filename: "dup.jpg", Size: int64(len(data)), Reader: bytes.NewReader(data)}, "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, "existing-id", resp.ID)
	f.backend.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpload_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		data     []byte
		declared int64
		wantErr  error
	}{
		{name: "nil reader", wantErr: ErrReaderNil},
		{name: "declared size too large", filename: "big.jpg", data: []byte("x"), declared: 11 * 1024 * 1024, wantErr: ErrFileTooLarge},
		{name: "empty file", filename: "empty.jpg", data: []byte{}, wantErr: ErrValidation},
		{name: "disallowed type", filename: "notes.jpg", data: []byte("plain text, not an image"), wantErr: ErrValidation},
		{name: "disallowed extension", filename: "photo.tiff", wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(testConfig())

			data := tt.data
			if data == nil && tt.name != "nil reader" {
				data = jpegBytes(t, 50, 50)
			}
			file := UploadFile{Filename: tt.filename, Size: tt.declared}
			if tt.name != "nil reader" {
				file.Reader = bytes.NewReader(data)
			}
			if tt.declared == 0 {
				file.Size = int64(len(data))
			}

			_, err := f.svc.Upload(ctx, file, "user-1", "")
			assert.ErrorIs(t, err, tt.wantErr)
			f.backend.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpload_StorageFull(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Storage.CapacityBytes = 100
	f := newFixture(cfg)

	data := jpegBytes(t, 200, 200)
	f.repo.On("FindByContentHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, sql.ErrNoRows).Once()
	f.repo.On("SumActiveSize", mock.Anything).Return(int64(100), nil).Once()

	_, err := f.svc.Upload(ctx, UploadFile{Filename: "p.jpg", Size: int64(len(data)), Reader: bytes.NewReader(data)}, "user-1", "")
	assert.ErrorIs(t, err, quota.ErrStorageFull)
	f.backend.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_LosesDedupRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	data := jpegBytes(t, 120, 80)
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	winner := &model.Photo{ID: "winner-id", StorageKey: "winner.jpg", ContentHash: hash}

	f.repo.On("FindByContentHash", mock.Anything, hash).Return(nil, sql.ErrNoRows).Once()
	f.repo.On("SumActiveSize", mock.Anything).Return(int64(0), nil).Once()
	f.backend.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(int64(len(data)), nil).Twice()
	f.repo.On("Create", mock.Anything, mock.Anything).
		Return(nil, &pgconn.PgError{Code: pgerrcode.UniqueViolation}).Once()
	f.backend.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil).Twice()
	f.repo.On("FindByContentHash", mock.Anything, hash).Return(winner, nil).Once()

	resp, err := f.svc.Upload(ctx, UploadFile{Filename: "race.jpg", Size: int64(len(data)), Reader: bytes.NewReader(data)}, "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, "winner-id", resp.ID)
	f.repo.AssertExpectations(t)
	f.backend.AssertExpectations(t)
}

func TestUpload_RollsBackBlobsOnMetadataFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	data := jpegBytes(t, 120, 80)
	f.repo.On("FindByContentHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, sql.ErrNoRows).Once()
	f.repo.On("SumActiveSize", mock.Anything).Return(int64(0), nil).Once()
	f.backend.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(int64(len(data)), nil).Twice()
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
	f.backend.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil).Twice()

	_, err := f.svc.Upload(ctx, UploadFile{Filename: "p.jpg", Size: int64(len(data)), Reader: bytes.NewReader(data)}, "user-1", "")
	require.Error(t, err)
	f.backend.AssertExpectations(t)
}

func TestUploadBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("too many files", func(t *testing.T) {
		f := newFixture(testConfig())
		files := make([]UploadFile, 4)
		_, err := f.svc.UploadBatch(ctx, files, "user-1", "")
		assert.ErrorIs(t, err, ErrTooManyFiles)
	})

	t.Run("failing file is skipped", func(t *testing.T) {
		f := newFixture(testConfig())

		good := jpegBytes(t, 60, 60)
		sum := sha256.Sum256(good)
		hash := hex.EncodeToString(sum[:])
		existing := &model.Photo{ID: "kept", StorageKey: "kept.jpg", ContentHash: hash}
		f.repo.On("FindByContentHash", mock.Anything, hash).Return(existing, nil).Once()

		files := []UploadFile{
			{Filename: "bad.jpg", Size: 3, Reader: strings.NewReader("bad")},
			{Filename: "good.jpg", Size: int64(len(good)), Reader: bytes.NewReader(good)},
		}
		resps, err := f.svc.UploadBatch(ctx, files, "user-1", "")
		require.NoError(t, err)
		require.Len(t, resps, 1)
		assert.Equal(t, "kept", resps[0].ID)
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("hides soft-deleted records", func(t *testing.T) {
		f := newFixture(testConfig())
		f.repo.On("FindByID", mock.Anything, "p1").
			Return(&model.Photo{ID: "p1", StorageKey: "k1.jpg", Deleted: true}, nil).Once()

		_, err := f.svc.Get(ctx, "p1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("caches on read-through", func(t *testing.T) {
		f := newFixture(testConfig())
		f.repo.On("FindByID", mock.Anything, "p2").
			Return(&model.Photo{ID: "p2", StorageKey: "k2.jpg"}, nil).Once()

		_, err := f.svc.Get(ctx, "p2")
		require.NoError(t, err)
		_, err = f.svc.Get(ctx, "p2")
		require.NoError(t, err)
		f.repo.AssertNumberOfCalls(t, "FindByID", 1)
	})

	t.Run("missing record", func(t *testing.T) {
		f := newFixture(testConfig())
		f.repo.On("FindByID", mock.Anything, "nope").Return(nil, sql.ErrNoRows).Once()
		_, err := f.svc.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestView_IncrementsAccessCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	p := &model.Photo{ID: "p1", StorageKey: "k1.jpg", ContentType: "image/jpeg", OriginalFilename: "a.jpg"}
	f.repo.On("FindByStorageKey", mock.Anything, "k1.jpg").Return(p, nil).Once()
	f.backend.On("ReadFull", mock.Anything, "k1.jpg").Return([]byte{1, 2, 3}, nil).Once()
	f.repo.On("IncrementAccessCount", mock.Anything, "p1", mock.AnythingOfType("time.Time")).Return(nil).Once()

	c, err := f.svc.View(ctx, "k1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, c.Data)
	assert.Equal(t, "image/jpeg", c.ContentType)
	f.repo.AssertExpectations(t)

	// Counter changed, so the cached record must be gone.
	assert.Equal(t, 0, f.cache.Len())
}

func TestView_ServesSoftDeletedBlob(t *testing.T) {
	// Soft-deleted records disappear from listings but their bytes stay
	// readable by storage key until permanent deletion.
	ctx := context.Background()
	f := newFixture(testConfig())

	p := &model.Photo{ID: "p1", StorageKey: "k1.jpg", ContentType: "image/jpeg", Deleted: true}
	f.repo.On("FindByStorageKey", mock.Anything, "k1.jpg").Return(p, nil).Once()
	f.backend.On("ReadFull", mock.Anything, "k1.jpg").Return([]byte{5}, nil).Once()
	f.repo.On("IncrementAccessCount", mock.Anything, "p1", mock.AnythingOfType("time.Time")).Return(nil).Once()

	c, err := f.svc.View(ctx, "k1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, c.Data)
}

func TestDownload_IncrementsDownloadCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	p := &model.Photo{ID: "p1", StorageKey: "k1.jpg", ContentType: "image/png", OriginalFilename: "a.png"}
	f.repo.On("FindByStorageKey", mock.Anything, "k1.jpg").Return(p, nil).Once()
	f.backend.On("ReadFull", mock.Anything, "k1.jpg").Return([]byte{9}, nil).Once()
	f.repo.On("IncrementDownloadCount", mock.Anything, "p1").Return(nil).Once()

	c, err := f.svc.Download(ctx, "k1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a.png", c.Filename)
	f.repo.AssertExpectations(t)
}

func TestReadRange(t *testing.T) {
	ctx := context.Background()

	t.Run("passes range through without counters", func(t *testing.T) {
		f := newFixture(testConfig())
		p := &model.Photo{ID: "p1", StorageKey: "k1.jpg", ContentType: "image/jpeg"}
		f.repo.On("FindByStorageKey", mock.Anything, "k1.jpg").Return(p, nil).Once()
		f.backend.On("ReadRange", mock.Anything, "k1.jpg", int64(10), int64(19)).
			Return(&storage.RangeResult{Data: make([]byte, 10), Start: 10, End: 19, TotalSize: 100}, nil).Once()

		rc, err := f.svc.ReadRange(ctx, "k1.jpg", 10, 19)
		require.NoError(t, err)
		assert.Equal(t, int64(10), rc.Start)
		assert.Equal(t, int64(19), rc.End)
		assert.Equal(t, int64(100), rc.TotalSize)
		f.repo.AssertNotCalled(t, "IncrementAccessCount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid range surfaces", func(t *testing.T) {
		f := newFixture(testConfig())
		p := &model.Photo{ID: "p1", StorageKey: "k1.jpg"}
		f.repo.On("FindByStorageKey", mock.Anything, "k1.jpg").Return(p, nil).Once()
		f.backend.On("ReadRange", mock.Anything, "k1.jpg", int64(500), int64(-1)).
			Return(nil, storage.ErrRangeInvalid).Once()

		_, err := f.svc.ReadRange(ctx, "k1.jpg", 500, -1)
		assert.ErrorIs(t, err, storage.ErrRangeInvalid)
	})
}

func TestThumbnail(t *testing.T) {
	ctx := context.Background()

	t.Run("no derived thumbnail", func(t *testing.T) {
		f := newFixture(testConfig())
		p := &model.Photo{ID: "p1", StorageKey: "k1.jpg", ThumbnailKey: ""}
		f.repo.On("FindByStorageKey", mock.Anything, "k1.jpg").Return(p, nil).Once()

		_, err := f.svc.Thumbnail(ctx, "k1.jpg")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("serves jpeg thumbnail", func(t *testing.T) {
		f := newFixture(testConfig())
		p := &model.Photo{ID: "p1", StorageKey: "k1.png", ThumbnailKey: "thumb_k1.png", ContentType: "image/png"}
		f.repo.On("FindByStorageKey", mock.Anything, "k1.png").Return(p, nil).Once()
		f.backend.On("ReadFull", mock.Anything, "thumb_k1.png").Return([]byte{7}, nil).Once()

		c, err := f.svc.Thumbnail(ctx, "k1.png")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", c.ContentType)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("access denied for non-owner", func(t *testing.T) {
		f := newFixture(testConfig())
		f.repo.On("FindByID", mock.Anything, "p1").
			Return(&model.Photo{ID: "p1", OwnerID: "owner"}, nil).Once()

		err := f.svc.Delete(ctx, "p1", "intruder")
		assert.ErrorIs(t, err, ErrAccessDenied)
		f.repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
	})

	t.Run("soft delete keeps blobs", func(t *testing.T) {
		f := newFixture(testConfig())
		f.repo.On("FindByID", mock.Anything, "p1").
			Return(&model.Photo{ID: "p1", OwnerID: "owner", StorageKey: "k1.jpg"}, nil).Once()
		f.repo.On("SoftDelete", mock.Anything, "p1").Return(nil).Once()

		err := f.svc.Delete(ctx, "p1", "owner")
		require.NoError(t, err)
		f.backend.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestPermanentDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	p := &model.Photo{ID: "p1", OwnerID: "owner", StorageKey: "k1.jpg", ThumbnailKey: "thumb_k1.jpg"}
	f.repo.On("FindByID", mock.Anything, "p1").Return(p, nil).Once()
	f.backend.On("Delete", mock.Anything, "k1.jpg").Return(nil).Once()
	f.backend.On("Delete", mock.Anything, "thumb_k1.jpg").Return(nil).Once()
	f.repo.On("Delete", mock.Anything, "p1").Return(nil).Once()

	err := f.svc.PermanentDelete(ctx, "p1", "owner")
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.backend.AssertExpectations(t)
}

func TestOwnerUsage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())
	f.repo.On("SumOwnerSize", mock.Anything, "user-1").Return(int64(2048), nil).Once()

	usage, err := f.svc.OwnerUsage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), usage.UsedBytes)
	assert.Equal(t, "2.00 KB", usage.UsedReadable)
}

func TestSweepExpired_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	before := time.Now().UTC()
	expired := []model.Photo{
		{ID: "old-1", StorageKey: "a.jpg"},
		{ID: "old-2", StorageKey: "b.jpg"},
	}
	f.repo.On("FindExpired", mock.Anything, before).Return(expired, nil).Once()
	f.backend.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	f.repo.On("Delete", mock.Anything, "old-1").Return(errors.New("db hiccup")).Once()
	f.repo.On("Delete", mock.Anything, "old-2").Return(nil).Once()

	purged := f.svc.SweepExpired(ctx, before)
	assert.Equal(t, 1, purged)
	f.repo.AssertExpectations(t)
}
