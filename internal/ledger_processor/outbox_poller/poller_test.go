package outbox_poller

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mybank-ledger/internal/config"
	"github.com/mybank-ledger/internal/domain/outbox"
	"github.com/mybank-ledger/internal/domain/shared"
)

// MockProjector for testing
type MockProjector struct {
	mock.Mock
}

func (m *MockProjector) Project(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func TestPoller_ProcessPendingMessages(t *testing.T) {
	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	tests := []struct {
		name          string
		setupMocks    func(*MockOutboxRepo, *MockProjector)
		expectedError string
	}{
		{
			name: "successful processing of pending messages",
			setupMocks: func(repo *MockOutboxRepo, projector *MockProjector) {
				m1, _ := transferMessage(t, 1)
				m2, _ := transferMessage(t, 2)
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{m1, m2}, nil).Once()
				projector.On("Project", mock.Anything, m1).Return(nil).Once()
				projector.On("Project", mock.Anything, m2).Return(nil).Once()
			},
		},
		{
			name: "no pending messages",
			setupMocks: func(repo *MockOutboxRepo, _ *MockProjector) {
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil).Once()
			},
		},
		{
			name: "error getting pending messages",
			setupMocks: func(repo *MockOutboxRepo, _ *MockProjector) {
				repo.On("GetPending", mock.Anything, 10).Return(nil, errors.New("database error")).Once()
			},
			expectedError: "failed to get pending outbox messages",
		},
		{
			name: "failed projection increments attempts",
			setupMocks: func(repo *MockOutboxRepo, projector *MockProjector) {
				m1, _ := transferMessage(t, 1)
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{m1}, nil).Once()
				projector.On("Project", mock.Anything, m1).Return(errors.New("mongo down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(1)).Return(nil).Once()
			},
		},
		{
			name: "last attempt marks message failed",
			setupMocks: func(repo *MockOutboxRepo, projector *MockProjector) {
				m1, _ := transferMessage(t, 1)
				m1.Attempts = 2
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{m1}, nil).Once()
				projector.On("Project", mock.Anything, m1).Return(errors.New("mongo down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(1)).Return(nil).Once()
				repo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusFailedToPublish).Return(nil).Once()
			},
		},
		{
			name: "increment failure skips status update",
			setupMocks: func(repo *MockOutboxRepo, projector *MockProjector) {
				m1, _ := transferMessage(t, 1)
				m1.Attempts = 2
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{m1}, nil).Once()
				projector.On("Project", mock.Anything, m1).Return(errors.New("mongo down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(1)).Return(errors.New("pg down")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, projector := &MockOutboxRepo{}, &MockProjector{}
			tt.setupMocks(repo, projector)

			poller := NewPoller(cfg, repo, projector, slog.Default())
			err := poller.processPendingMessages(context.Background())

			if tt.expectedError != "" {
				assert.ErrorContains(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
			projector.AssertExpectations(t)
		})
	}
}

func TestPoller_Start(t *testing.T) {
	cfg := &config.OutboxConfig{
		PollingInterval:  10 * time.Millisecond,
		BatchSize:        5,
		MaxRetryAttempts: 3,
	}
	repo, projector := &MockOutboxRepo{}, &MockProjector{}
	repo.On("GetPending", mock.Anything, 5).Return([]*outbox.Message{}, nil)

	poller := NewPoller(cfg, repo, projector, slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	repo.AssertCalled(t, "GetPending", mock.Anything, 5)
}
