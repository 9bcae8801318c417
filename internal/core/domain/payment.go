package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies the aggregator used to fund a top-up.
type PaymentMethod string

const (
	PaymentMethodMobileMoney   PaymentMethod = "mobile_money"
	PaymentMethodRedirectOrder PaymentMethod = "redirect_order"
)

// ParsePaymentMethod accepts the canonical names plus the aggregator
// aliases older clients send.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile_money", "s3p":
		return PaymentMethodMobileMoney, true
	case "redirect_order", "enkap":
		return PaymentMethodRedirectOrder, true
	}
	return "", false
}

// zeroDecimalCurrencies have no minor unit. The aggregators collect them in
// whole units only.
var zeroDecimalCurrencies = map[string]bool{"XAF": true, "XOF": true}

// AmountScale is the number of decimal places a currency allows.
func AmountScale(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// HasValidScale reports whether amount is expressible in currency without
// rounding.
func HasValidScale(amount decimal.Decimal, currency string) bool {
	return amount.Equal(amount.Truncate(AmountScale(currency)))
}

// OutcomeStatus is a provider's verdict on a payment.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "SUCCESS"
	OutcomeFailed  OutcomeStatus = "FAILED"
	OutcomePending OutcomeStatus = "PENDING"
)

// OutcomeSource records which signal produced an outcome.
type OutcomeSource string

const (
	SourceWebhook    OutcomeSource = "webhook"
	SourcePoll       OutcomeSource = "poll"
	SourceReconciler OutcomeSource = "reconciler"
)

// ProviderOutcome is a completion signal for a pending transaction.
type ProviderOutcome struct {
	Status  OutcomeStatus
	Source  OutcomeSource
	Payload json.RawMessage
	Detail  string
}

// TargetStatus maps a terminal outcome to the transaction status it produces.
func (o ProviderOutcome) TargetStatus() (TransactionStatus, bool) {
	switch o.Status {
	case OutcomeSuccess:
		return TransactionStatusCompleted, true
	case OutcomeFailed:
		return TransactionStatusFailed, true
	}
	return "", false
}

// CompletionState is what a completion attempt did.
type CompletionState string

const (
	CompletionApplied          CompletionState = "APPLIED"
	CompletionAlreadyProcessed CompletionState = "ALREADY_PROCESSED"
	CompletionStillPending     CompletionState = "STILL_PENDING"
)

// CompletionResult reports the outcome of CompleteIfPending.
type CompletionResult struct {
	State       CompletionState
	Transaction *Transaction
}

// Failure kinds recorded in metadata when an initiate call fails.
const (
	FailureKindRejected    = "rejected"
	FailureKindUnavailable = "unavailable"
)

// InitiatePayment is a request to fund a card through a provider.
type InitiatePayment struct {
	UserID         uuid.UUID
	CardID         uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Method         PaymentMethod
	Phone          string
	CustomerName   string
	CustomerEmail  string
	IdempotencyKey string
}

// InitiatedPayment is returned once a provider accepted the payment request.
type InitiatedPayment struct {
	TransactionID    uuid.UUID         `json:"transaction_id"`
	Status           TransactionStatus `json:"status"`
	PaymentReference string            `json:"payment_reference"`
	PaymentURL       string            `json:"payment_url,omitempty"`
	Message          string            `json:"message"`
}

// NewOrderReference builds the local correlation string stored as
// provider_reference: CARD-<card prefix>-<random>.
func NewOrderReference(cardID uuid.UUID) string {
	cardHex := strings.ReplaceAll(cardID.String(), "-", "")
	randHex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("CARD-%s-%s", cardHex[:8], randHex[:8])
}
