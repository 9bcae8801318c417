package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vcard-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, card_id, user_id, amount, currency, type, status,
		description, provider_reference, metadata, created_at, updated_at`

// Create inserts a new transaction.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	meta, err := t.Metadata.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		t.ID, t.CardID, t.UserID, t.Amount, t.Currency, t.Type, t.Status,
		t.Description, t.ProviderReference, meta, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// FindByCorrelation matches the local order reference or any provider id
// stored in metadata.
func (r *TransactionRepo) FindByCorrelation(ctx context.Context, ids []string) (*domain.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE provider_reference = ANY($1)
		   OR metadata->>'ptn' = ANY($1)
		   OR metadata->>'trid' = ANY($1)
		   OR metadata->>'order_id' = ANY($1)
		ORDER BY created_at DESC LIMIT 1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, ids))
	if err != nil {
		return nil, fmt.Errorf("find transaction by correlation: %w", err)
	}
	return t, nil
}

// AppendMetadata merges patch into the stored document server-side, so
// concurrent writers never overwrite each other's keys.
func (r *TransactionRepo) AppendMetadata(ctx context.Context, id uuid.UUID, patch domain.Metadata) error {
	raw, err := patch.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode metadata patch: %w", err)
	}

	query := `UPDATE transactions SET metadata = metadata || $1::jsonb, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, raw, id)
	if err != nil {
		return fmt.Errorf("append transaction metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// TransitionStatus moves a transaction out of from. Exactly one concurrent
// caller sees true for a given row.
func (r *TransactionRepo) TransitionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	query := `UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	tag, err := execerFor(r.pool, tx).Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("transition transaction status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches a card's transactions with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("card_id = $%d", argIdx))
	args = append(args, filter.CardID)
	argIdx++

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *filter.Type)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (filter.Page - 1) * filter.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, filter.PageSize, offset)

	txns, err := r.queryTransactions(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListPending returns the oldest PENDING transactions of a type created before the cutoff.
func (r *TransactionRepo) ListPending(ctx context.Context, txType domain.TransactionType, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = 'PENDING' AND type = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3`

	return r.queryTransactions(ctx, query, txType, createdBefore, limit)
}

func (r *TransactionRepo) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// scanTransaction scans a single-row query; a missing row yields nil, nil.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var meta []byte
	err := row.Scan(
		&t.ID, &t.CardID, &t.UserID, &t.Amount, &t.Currency, &t.Type, &t.Status,
		&t.Description, &t.ProviderReference, &meta, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Metadata, err = domain.ParseMetadata(meta); err != nil {
		return nil, fmt.Errorf("decode transaction metadata: %w", err)
	}
	return t, nil
}
