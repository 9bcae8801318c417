package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardStatus represents the lifecycle state of a virtual card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusFrozen  CardStatus = "FROZEN"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// CardType is the card network.
type CardType string

const (
	CardTypeVisa       CardType = "VISA"
	CardTypeMastercard CardType = "MASTERCARD"
)

// Card is a virtual card issued by the card issuer. Balance is only ever
// changed through CardRepository.ApplyBalanceDelta.
type Card struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	CardType        CardType        `json:"card_type"`
	MaskedNumber    string          `json:"card_number_masked"`
	NumberEncrypted string          `json:"-"` // AES-256 encrypted PAN, never expose
	CVVEncrypted    string          `json:"-"`
	ExpiryDate      string          `json:"expiry_date"`
	Status          CardStatus      `json:"status"`
	Balance         decimal.Decimal `json:"balance"`
	Currency        string          `json:"currency"`
	ProviderCardID  string          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

var cardTransitions = map[CardStatus][]CardStatus{
	CardStatusActive: {CardStatusFrozen, CardStatusBlocked},
	CardStatusFrozen: {CardStatusActive, CardStatusBlocked},
}

// CanTransitionTo reports whether the card may move to the target status.
// BLOCKED and EXPIRED are terminal.
func (c *Card) CanTransitionTo(to CardStatus) bool {
	for _, allowed := range cardTransitions[c.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsUsable returns true if the card can still receive funds.
func (c *Card) IsUsable() bool {
	return c.Status == CardStatusActive || c.Status == CardStatusFrozen
}

// MaskCardNumber keeps the last four digits of a PAN.
func MaskCardNumber(pan string) string {
	if len(pan) < 4 {
		return "****0000"
	}
	return "****" + pan[len(pan)-4:]
}
