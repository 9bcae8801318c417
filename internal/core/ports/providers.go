package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vcard-gateway/internal/core/domain"

	"github.com/shopspring/decimal"
)

// PaymentProvider wraps one aggregator's wire protocol.
type PaymentProvider interface {
	Method() domain.PaymentMethod
	// Validate checks and normalizes the payer fields this provider needs.
	// Its errors are client-facing validation messages.
	Validate(req *domain.InitiatePayment) error
	Initiate(ctx context.Context, req ProviderInitiateRequest) (*ProviderInitiateResult, error)
	CheckStatus(ctx context.Context, txn *domain.Transaction) (*ProviderStatus, error)
	Close()
}

// ProviderInitiateRequest is what an adapter needs to start a payment.
type ProviderInitiateRequest struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	Phone         string
	CustomerName  string
	CustomerEmail string
}

// ProviderInitiateResult is a provider's acceptance of a payment request.
type ProviderInitiateResult struct {
	Reference  string
	PaymentURL string
	Metadata   domain.Metadata
}

// ProviderStatus is the provider's view of a payment.
type ProviderStatus struct {
	Outcome domain.OutcomeStatus
	Amount  decimal.NullDecimal
	Detail  string
	Raw     json.RawMessage
}

// CardIssuer is the external virtual card platform.
type CardIssuer interface {
	CreateCard(ctx context.Context, req IssueCardRequest) (*IssuedCard, error)
	Freeze(ctx context.Context, providerCardID string) error
	Unfreeze(ctx context.Context, providerCardID string) error
	Block(ctx context.Context, providerCardID string) error
	// Withdraw returns the issuer's transaction id.
	Withdraw(ctx context.Context, providerCardID string, amount decimal.Decimal, currency string) (string, error)
}

// IssueCardRequest asks the issuer for a new card.
type IssueCardRequest struct {
	UserID   string
	CardType domain.CardType
}

// IssuedCard is the issuer's response to a purchase.
type IssuedCard struct {
	CardID     string
	CardNumber string
	ExpiryDate string
	CVV        string
}

// ProviderErrorKind separates a definitive refusal from an unknown result.
type ProviderErrorKind int

const (
	// ProviderRejected means the provider answered and refused the request.
	ProviderRejected ProviderErrorKind = iota + 1
	// ProviderUnavailable covers transport errors, timeouts, 5xx and garbled responses.
	ProviderUnavailable
)

func (k ProviderErrorKind) String() string {
	switch k {
	case ProviderRejected:
		return domain.FailureKindRejected
	case ProviderUnavailable:
		return domain.FailureKindUnavailable
	}
	return "unknown"
}

var (
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ProviderError is returned by adapters. Match it with errors.Is against
// ErrProviderRejected or ErrProviderUnavailable.
type ProviderError struct {
	Kind     ProviderErrorKind
	Provider string
	Code     string
	Message  string // safe to show to the payer
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Kind)
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProviderRejected:
		return e.Kind == ProviderRejected
	case ErrProviderUnavailable:
		return e.Kind == ProviderUnavailable
	}
	return false
}

// NewRejected builds a definitive provider refusal.
func NewRejected(provider, code, message string) *ProviderError {
	return &ProviderError{Kind: ProviderRejected, Provider: provider, Code: code, Message: message}
}

// NewUnavailable builds an error for a provider call with an unknown outcome.
func NewUnavailable(provider string, err error) *ProviderError {
	return &ProviderError{Kind: ProviderUnavailable, Provider: provider, Err: err}
}

// AsProviderError extracts a *ProviderError from err's chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
