package postgres

import (
	"context"
	"testing"
	"time"

	"vcard-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCard(userID uuid.UUID) *domain.Card {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Card{
		ID:              uuid.New(),
		UserID:          userID,
		CardType:        domain.CardTypeVisa,
		MaskedNumber:    "****4242",
		NumberEncrypted: "aes_encrypted_pan",
		CVVEncrypted:    "aes_encrypted_cvv",
		ExpiryDate:      "12/29",
		Status:          domain.CardStatusActive,
		Balance:         decimal.RequireFromString("10.00"),
		Currency:        "XAF",
		ProviderCardID:  "acpe_card_1",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func cardColumnNames() []string {
	return []string{"id", "user_id", "card_type", "card_number_masked", "card_number_encrypted", "cvv_encrypted",
		"expiry_date", "status", "balance", "currency", "provider_card_id", "created_at", "updated_at"}
}

func cardRow(c *domain.Card) *pgxmock.Rows {
	return pgxmock.NewRows(cardColumnNames()).AddRow(
		c.ID, c.UserID, c.CardType, c.MaskedNumber, c.NumberEncrypted, c.CVVEncrypted,
		c.ExpiryDate, c.Status, c.Balance, c.Currency, c.ProviderCardID, c.CreatedAt, c.UpdatedAt,
	)
}

func TestCardRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCardRepo(mock)
	c := newTestCard(uuid.New())

	mock.ExpectExec("INSERT INTO cards").
		WithArgs(c.ID, c.UserID, c.CardType, c.MaskedNumber, c.NumberEncrypted, c.CVVEncrypted,
			c.ExpiryDate, c.Status, c.Balance, c.Currency, c.ProviderCardID, c.CreatedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), c)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCardRepo(mock)
	c := newTestCard(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM cards WHERE id").
		WithArgs(c.ID).
		WillReturnRows(cardRow(c))

	result, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, c.ID, result.ID)
	assert.Equal(t, "****4242", result.MaskedNumber)
	assert.True(t, c.Balance.Equal(result.Balance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM cards WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(cardColumnNames()))

	result, err := NewCardRepo(mock).GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	a, b := newTestCard(userID), newTestCard(userID)
	rows := pgxmock.NewRows(cardColumnNames()).
		AddRow(a.ID, a.UserID, a.CardType, a.MaskedNumber, a.NumberEncrypted, a.CVVEncrypted,
			a.ExpiryDate, a.Status, a.Balance, a.Currency, a.ProviderCardID, a.CreatedAt, a.UpdatedAt).
		AddRow(b.ID, b.UserID, b.CardType, b.MaskedNumber, b.NumberEncrypted, b.CVVEncrypted,
			b.ExpiryDate, b.Status, b.Balance, b.Currency, b.ProviderCardID, b.CreatedAt, b.UpdatedAt)

	mock.ExpectQuery("SELECT .+ FROM cards WHERE user_id").
		WithArgs(userID).
		WillReturnRows(rows)

	cards, err := NewCardRepo(mock).ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, a.ID, cards[0].ID)
	assert.Equal(t, b.ID, cards[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"status matched", 1, true},
		{"status changed concurrently", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			id := uuid.New()
			mock.ExpectExec(`UPDATE cards SET status = \$1, updated_at = NOW\(\) WHERE id = \$2 AND status = \$3`).
				WithArgs(domain.CardStatusFrozen, id, domain.CardStatusActive).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			ok, err := NewCardRepo(mock).UpdateStatus(context.Background(), id, domain.CardStatusActive, domain.CardStatusFrozen)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCardRepo_ApplyBalanceDelta_Credit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCardRepo(mock)
	id := uuid.New()
	delta := decimal.RequireFromString("100.00")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cards SET balance = balance \+ \$1, updated_at = NOW\(\) WHERE id = \$2 AND balance \+ \$1 >= 0`).
		WithArgs(delta, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	applied, err := repo.ApplyBalanceDelta(context.Background(), dbTx, id, delta)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_ApplyBalanceDelta_InsufficientBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	delta := decimal.RequireFromString("-8.00")

	mock.ExpectExec("UPDATE cards SET balance").
		WithArgs(delta, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := NewCardRepo(mock).ApplyBalanceDelta(context.Background(), nil, id, delta)
	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
