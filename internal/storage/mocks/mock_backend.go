package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"photostore/internal/storage"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Store(ctx context.Context, key string, r io.Reader) (int64, error) {
	args := m.Called(ctx, key, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBackend) ReadFull(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBackend) ReadRange(ctx context.Context, key string, start, end int64) (*storage.RangeResult, error) {
	args := m.Called(ctx, key, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.RangeResult), args.Error(1)
}

func (m *MockBackend) ReplaceInPlace(ctx context.Context, key string, newData []byte) error {
	args := m.Called(ctx, key, newData)
	return args.Error(0)
}

func (m *MockBackend) Exists(ctx context.Context, key string) bool {
	args := m.Called(ctx, key)
	return args.Bool(0)
}

func (m *MockBackend) Size(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
