package service

import (
	"context"
	"errors"
	"testing"

	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTransactionService_ListCardTransactions_Paging(t *testing.T) {
	tests := []struct {
		name         string
		page, size   int
		wantPage     int
		wantPageSize int
	}{
		{"defaults", 0, 0, 1, 20},
		{"explicit", 3, 50, 3, 50},
		{"capped", 1, 1000, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			txRepo := mocks.NewMockTransactionRepository(ctrl)
			cardRepo := mocks.NewMockCardRepository(ctrl)
			svc := NewTransactionService(txRepo, cardRepo)

			userID := uuid.New()
			card := activeCard(userID)
			status := domain.TransactionStatusCompleted

			cardRepo.EXPECT().GetByID(gomock.Any(), card.ID).Return(card, nil)
			txRepo.EXPECT().List(gomock.Any(), domain.TransactionFilter{
				CardID:   card.ID,
				Status:   &status,
				Page:     tt.wantPage,
				PageSize: tt.wantPageSize,
			}).Return([]domain.Transaction{{ID: uuid.New()}}, int64(41), nil)

			txns, total, err := svc.ListCardTransactions(context.Background(), userID, domain.TransactionFilter{
				CardID:   card.ID,
				Status:   &status,
				Page:     tt.page,
				PageSize: tt.size,
			})
			require.NoError(t, err)
			assert.Len(t, txns, 1)
			assert.Equal(t, int64(41), total)
		})
	}
}

func TestTransactionService_ListCardTransactions_Errors(t *testing.T) {
	t.Run("foreign card", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cardRepo := mocks.NewMockCardRepository(ctrl)
		svc := NewTransactionService(mocks.NewMockTransactionRepository(ctrl), cardRepo)
		card := activeCard(uuid.New())
		cardRepo.EXPECT().GetByID(gomock.Any(), card.ID).Return(card, nil)

		_, _, err := svc.ListCardTransactions(context.Background(), uuid.New(), domain.TransactionFilter{CardID: card.ID})
		assertAppError(t, err, "PAY_004")
	})

	t.Run("repository failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		txRepo := mocks.NewMockTransactionRepository(ctrl)
		cardRepo := mocks.NewMockCardRepository(ctrl)
		svc := NewTransactionService(txRepo, cardRepo)
		userID := uuid.New()
		card := activeCard(userID)
		cardRepo.EXPECT().GetByID(gomock.Any(), card.ID).Return(card, nil)
		txRepo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, int64(0), errors.New("db down"))

		_, _, err := svc.ListCardTransactions(context.Background(), userID, domain.TransactionFilter{CardID: card.ID})
		assertAppError(t, err, "SYS_001")
	})
}
