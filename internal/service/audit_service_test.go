package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	userID := uuid.New()
	done := make(chan *domain.AuditLog, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, entry *domain.AuditLog) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			done <- entry
			return nil
		},
	)

	// the request context is already gone by the time the write happens
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Log(reqCtx, &domain.AuditLog{
		UserID:       &userID,
		Action:       domain.AuditActionCardFreeze,
		ResourceType: "card",
		ResourceID:   uuid.NewString(),
		IPAddress:    "127.0.0.1",
	})

	select {
	case entry := <-done:
		assert.Equal(t, domain.AuditActionCardFreeze, entry.Action)
		assert.NotEqual(t, uuid.Nil, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.AuditLog) error {
			close(done)
			return errors.New("db down")
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin, ResourceType: "session"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit write not attempted")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{
			Action:       domain.AuditActionLogin,
			ResourceType: "session",
			IPAddress:    "127.0.0.1",
		})
	})
	time.Sleep(50 * time.Millisecond) // let goroutine run
}
