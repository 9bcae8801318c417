package ports

import (
	"context"
	"time"

	"vcard-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// CardRepository defines persistence operations for cards.
// Methods accepting pgx.Tx run on the pool when tx is nil.
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Card, error)
	// UpdateStatus moves the card from one status to another and reports
	// false if the card was no longer in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.CardStatus) (bool, error)
	// ApplyBalanceDelta is the only way a balance changes. It adds delta in a
	// single guarded update and reports false when the result would go negative.
	ApplyBalanceDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (bool, error)
}

// TransactionRepository defines persistence operations for transactions.
type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// FindByCorrelation returns the most recent transaction whose provider
	// reference or stored provider ids match any of ids.
	FindByCorrelation(ctx context.Context, ids []string) (*domain.Transaction, error)
	// AppendMetadata merges patch into the stored metadata, key by key.
	AppendMetadata(ctx context.Context, id uuid.UUID, patch domain.Metadata) error
	// TransitionStatus is the only status writer. It reports whether this
	// call moved the row out of from.
	TransitionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error)
	ListPending(ctx context.Context, txType domain.TransactionType, createdBefore time.Time, limit int) ([]domain.Transaction, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
