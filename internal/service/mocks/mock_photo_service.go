package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"photostore/internal/model"
	"photostore/internal/service"
)

type MockPhotoService struct {
	mock.Mock
}

func (m *MockPhotoService) Upload(ctx context.Context, file service.UploadFile, ownerID, description string) (*model.PhotoUploadResponse, error) {
	args := m.Called(ctx, file, ownerID, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PhotoUploadResponse), args.Error(1)
}

func (m *MockPhotoService) UploadBatch(ctx context.Context, files []service.UploadFile, ownerID, description string) ([]model.PhotoUploadResponse, error) {
	args := m.Called(ctx, files, ownerID, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PhotoUploadResponse), args.Error(1)
}

func (m *MockPhotoService) Get(ctx context.Context, id string) (*model.PhotoDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PhotoDTO), args.Error(1)
}

func (m *MockPhotoService) View(ctx context.Context, storageKey string) (*service.Content, error) {
	args := m.Called(ctx, storageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Content), args.Error(1)
}

func (m *MockPhotoService) Download(ctx context.Context, storageKey string) (*service.Content, error) {
	args := m.Called(ctx, storageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Content), args.Error(1)
}

func (m *MockPhotoService) ReadRange(ctx context.Context, storageKey string, start, end int64) (*service.RangeContent, error) {
	args := m.Called(ctx, storageKey, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RangeContent), args.Error(1)
}

func (m *MockPhotoService) Thumbnail(ctx context.Context, storageKey string) (*service.Content, error) {
	args := m.Called(ctx, storageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Content), args.Error(1)
}

func (m *MockPhotoService) ListByOwner(ctx context.Context, ownerID string, page, size int) (*service.PhotoListResult, error) {
	args := m.Called(ctx, ownerID, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PhotoListResult), args.Error(1)
}

func (m *MockPhotoService) ListPublic(ctx context.Context, page, size int) (*service.PhotoListResult, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PhotoListResult), args.Error(1)
}

func (m *MockPhotoService) ListPopular(ctx context.Context, page, size int) (*service.PhotoListResult, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PhotoListResult), args.Error(1)
}

func (m *MockPhotoService) Search(ctx context.Context, keyword string, page, size int) (*service.PhotoListResult, error) {
	args := m.Called(ctx, keyword, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PhotoListResult), args.Error(1)
}

func (m *MockPhotoService) Delete(ctx context.Context, id, callerID string) error {
	args := m.Called(ctx, id, callerID)
	return args.Error(0)
}

func (m *MockPhotoService) PermanentDelete(ctx context.Context, id, callerID string) error {
	args := m.Called(ctx, id, callerID)
	return args.Error(0)
}

func (m *MockPhotoService) SweepExpired(ctx context.Context, before time.Time) int {
	args := m.Called(ctx, before)
	return args.Int(0)
}

func (m *MockPhotoService) StorageInfo(ctx context.Context) (*model.StorageInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StorageInfo), args.Error(1)
}

func (m *MockPhotoService) OwnerUsage(ctx context.Context, ownerID string) (*model.OwnerUsage, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OwnerUsage), args.Error(1)
}
