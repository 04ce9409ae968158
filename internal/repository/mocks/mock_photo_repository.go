package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"photostore/internal/model"
	"photostore/internal/repository"
)

type MockPhotoRepository struct {
	mock.Mock
}

func (m *MockPhotoRepository) Create(ctx context.Context, p *model.Photo) (*model.Photo, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Photo), args.Error(1)
}

func (m *MockPhotoRepository) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Photo), args.Error(1)
}

func (m *MockPhotoRepository) FindByContentHash(ctx context.Context, hash string) (*model.Photo, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Photo), args.Error(1)
}

func (m *MockPhotoRepository) FindByStorageKey(ctx context.Context, key string) (*model.Photo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Photo), args.Error(1)
}

func (m *MockPhotoRepository) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	args := m.Called(ctx, ownerID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Photo]), args.Error(1)
}

func (m *MockPhotoRepository) ListPublic(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Photo]), args.Error(1)
}

func (m *MockPhotoRepository) ListPopular(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Photo]), args.Error(1)
}

func (m *MockPhotoRepository) SearchByFilename(ctx context.Context, keyword string, pq repository.PageQuery) (*repository.PageResult[model.Photo], error) {
	args := m.Called(ctx, keyword, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Photo]), args.Error(1)
}

func (m *MockPhotoRepository) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPhotoRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPhotoRepository) IncrementAccessCount(ctx context.Context, id string, accessedAt time.Time) error {
	args := m.Called(ctx, id, accessedAt)
	return args.Error(0)
}

func (m *MockPhotoRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPhotoRepository) SumActiveSize(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPhotoRepository) SumOwnerSize(ctx context.Context, ownerID string) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPhotoRepository) CountActive(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPhotoRepository) FindExpired(ctx context.Context, before time.Time) ([]model.Photo, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Photo), args.Error(1)
}
