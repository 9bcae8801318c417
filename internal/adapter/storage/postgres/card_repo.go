package postgres

import (
	"context"
	"errors"
	"fmt"

	"vcard-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CardRepo implements ports.CardRepository.
type CardRepo struct {
	pool Pool
}

// NewCardRepo creates a new CardRepo.
func NewCardRepo(pool Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

const cardColumns = `id, user_id, card_type, card_number_masked, card_number_encrypted, cvv_encrypted,
		expiry_date, status, balance, currency, provider_card_id, created_at, updated_at`

// Create inserts a new card into the database.
func (r *CardRepo) Create(ctx context.Context, c *domain.Card) error {
	query := `INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.UserID, c.CardType, c.MaskedNumber, c.NumberEncrypted, c.CVVEncrypted,
		c.ExpiryDate, c.Status, c.Balance, c.Currency, c.ProviderCardID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// GetByID fetches a card by its UUID.
func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	c, err := scanCard(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get card by id: %w", err)
	}
	return c, nil
}

// ListByUser returns a user's cards, newest first.
func (r *CardRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card row: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card rows: %w", err)
	}
	return cards, nil
}

// UpdateStatus changes the card status only if it is still in from.
func (r *CardRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.CardStatus) (bool, error) {
	query := `UPDATE cards SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	tag, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update card status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ApplyBalanceDelta adds delta to the balance in one statement. The guard
// keeps the balance non-negative without a read-modify-write.
func (r *CardRepo) ApplyBalanceDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (bool, error) {
	query := `UPDATE cards SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0`

	tag, err := execerFor(r.pool, tx).Exec(ctx, query, delta, id)
	if err != nil {
		return false, fmt.Errorf("apply card balance delta: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	c := &domain.Card{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.CardType, &c.MaskedNumber, &c.NumberEncrypted, &c.CVVEncrypted,
		&c.ExpiryDate, &c.Status, &c.Balance, &c.Currency, &c.ProviderCardID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
