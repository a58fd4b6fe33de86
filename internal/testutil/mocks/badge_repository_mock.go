package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBadgeRepository is a mock implementation of repository.BadgeRepository
type MockBadgeRepository struct {
	mock.Mock
}

func (m *MockBadgeRepository) Celebrated(ctx context.Context, student string) (map[string]bool, error) {
	args := m.Called(ctx, student)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockBadgeRepository) MarkCelebrated(ctx context.Context, student, badgeID string) (bool, error) {
	args := m.Called(ctx, student, badgeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBadgeRepository) ClearAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
