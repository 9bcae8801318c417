package service

import (
	"context"
	"fmt"

	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// transactionService implements ports.TransactionService.
type transactionService struct {
	txRepo   ports.TransactionRepository
	cardRepo ports.CardRepository
}

// NewTransactionService creates a new transaction listing service.
func NewTransactionService(txRepo ports.TransactionRepository, cardRepo ports.CardRepository) ports.TransactionService {
	return &transactionService{
		txRepo:   txRepo,
		cardRepo: cardRepo,
	}
}

// ListCardTransactions returns a page of the caller's card transactions,
// newest first.
func (s *transactionService) ListCardTransactions(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	card, err := s.cardRepo.GetByID(ctx, filter.CardID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil || card.UserID != userID {
		return nil, 0, apperror.ErrNotFound("Card")
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	txns, total, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}
