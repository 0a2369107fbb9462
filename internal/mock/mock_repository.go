package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/oatdump/pkg/model"
)

// MockDumpRepository is a mock implementation of the DumpRepository interface.
type MockDumpRepository struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockDumpRepository) Save(ctx context.Context, s *model.DumpSummary) (int64, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(int64), args.Error(1)
}

// List mocks the List method.
func (m *MockDumpRepository) List(ctx context.Context, artifactPath string, limit int) ([]*model.DumpSummary, error) {
	args := m.Called(ctx, artifactPath, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DumpSummary), args.Error(1)
}

// Latest mocks the Latest method.
func (m *MockDumpRepository) Latest(ctx context.Context, artifactPath string) (*model.DumpSummary, error) {
	args := m.Called(ctx, artifactPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DumpSummary), args.Error(1)
}
