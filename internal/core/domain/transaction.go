package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeTopup    TransactionType = "TOPUP"
	TransactionTypeWithdraw TransactionType = "WITHDRAW"
	TransactionTypePurchase TransactionType = "PURCHASE"
	TransactionTypeRefund   TransactionType = "REFUND"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is a money movement on a card. Status only moves out of
// PENDING, through a conditional update.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	CardID            uuid.UUID         `json:"card_id"`
	UserID            uuid.UUID         `json:"user_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	Type              TransactionType   `json:"type"`
	Status            TransactionStatus `json:"status"`
	Description       *string           `json:"description,omitempty"`
	ProviderReference *string           `json:"provider_reference,omitempty"`
	Metadata          Metadata          `json:"metadata"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

// PaymentReference is the identifier shown to the payer: the provider's
// tracking number when known, else the local order reference.
func (t *Transaction) PaymentReference() string {
	switch {
	case t.Metadata.PTN != "":
		return t.Metadata.PTN
	case t.Metadata.TRID != "":
		return t.Metadata.TRID
	case t.Metadata.OrderID != "":
		return t.Metadata.OrderID
	case t.ProviderReference != nil:
		return *t.ProviderReference
	}
	return ""
}

// TransactionFilter narrows card transaction listings.
type TransactionFilter struct {
	CardID   uuid.UUID
	Status   *TransactionStatus
	Type     *TransactionType
	Page     int
	PageSize int
}
