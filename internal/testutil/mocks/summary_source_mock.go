package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/starcards/internal/models"
)

// MockSummarySource is a mock implementation of services.SummarySource
type MockSummarySource struct {
	mock.Mock
}

func (m *MockSummarySource) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockSummarySource) PullStudentSummary(ctx context.Context, student, accessCode string) (models.RemoteStudent, bool) {
	args := m.Called(ctx, student, accessCode)
	return args.Get(0).(models.RemoteStudent), args.Bool(1)
}

func (m *MockSummarySource) PullAllStudentsSummary(ctx context.Context, pin string) (map[string]models.RemoteStudent, bool) {
	args := m.Called(ctx, pin)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(map[string]models.RemoteStudent), args.Bool(1)
}
