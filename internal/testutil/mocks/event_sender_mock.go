package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/starcards/internal/models"
)

// MockEventSender is a mock implementation of worker.EventSender
type MockEventSender struct {
	mock.Mock
}

func (m *MockEventSender) PushEvent(ctx context.Context, ev models.SyncEvent) bool {
	args := m.Called(ctx, ev)
	return args.Bool(0)
}
