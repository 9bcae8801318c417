package service

import (
	"context"
	"fmt"
	"strings"

	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var webhookJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Webhook ack statuses.
const (
	AckSuccess = "success"
	AckIgnored = "ignored"
)

// mobileMoneyNotification is the mobile-money aggregator's callback body.
type mobileMoneyNotification struct {
	TrackingID string              `json:"tracking_id"`
	PTN        string              `json:"ptn"`
	TRID       string              `json:"trid"`
	Status     string              `json:"status"`
	Amount     decimal.NullDecimal `json:"amount"`
}

// redirectOrderNotification is the hosted-checkout callback body.
type redirectOrderNotification struct {
	OrderID           string              `json:"order_id"`
	MerchantReference string              `json:"merchant_reference"`
	Status            string              `json:"status"`
	Amount            decimal.NullDecimal `json:"amount"`
}

// WebhookServiceImpl implements ports.WebhookService. Requests reach it only
// after the transport layer authenticated them.
type WebhookServiceImpl struct {
	txRepo   ports.TransactionRepository
	payments ports.PaymentService
	log      zerolog.Logger
}

// NewWebhookService creates a new webhook ingestor.
func NewWebhookService(txRepo ports.TransactionRepository, payments ports.PaymentService, log zerolog.Logger) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		txRepo:   txRepo,
		payments: payments,
		log:      log,
	}
}

// HandleMobileMoney ingests a mobile-money notification.
func (s *WebhookServiceImpl) HandleMobileMoney(ctx context.Context, body []byte) (*ports.WebhookAck, error) {
	var n mobileMoneyNotification
	if err := webhookJSON.Unmarshal(body, &n); err != nil {
		return s.unparseable(domain.PaymentMethodMobileMoney, err), nil
	}

	var outcome domain.OutcomeStatus
	switch strings.ToUpper(strings.TrimSpace(n.Status)) {
	case "SUCCESS":
		outcome = domain.OutcomeSuccess
	case "FAILED", "ERRORED":
		outcome = domain.OutcomeFailed
	default:
		outcome = domain.OutcomePending
	}

	return s.ingest(ctx, notification{
		method:  domain.PaymentMethodMobileMoney,
		ids:     correlationIDs(n.TrackingID, n.PTN, n.TRID),
		status:  n.Status,
		outcome: outcome,
		amount:  n.Amount,
		body:    body,
	})
}

// HandleRedirectOrder ingests a hosted-checkout notification.
func (s *WebhookServiceImpl) HandleRedirectOrder(ctx context.Context, body []byte) (*ports.WebhookAck, error) {
	var n redirectOrderNotification
	if err := webhookJSON.Unmarshal(body, &n); err != nil {
		return s.unparseable(domain.PaymentMethodRedirectOrder, err), nil
	}

	var outcome domain.OutcomeStatus
	switch strings.ToUpper(strings.TrimSpace(n.Status)) {
	case "COMPLETED":
		outcome = domain.OutcomeSuccess
	case "FAILED", "CANCELLED":
		outcome = domain.OutcomeFailed
	default:
		outcome = domain.OutcomePending
	}

	return s.ingest(ctx, notification{
		method:  domain.PaymentMethodRedirectOrder,
		ids:     correlationIDs(n.OrderID, n.MerchantReference),
		status:  n.Status,
		outcome: outcome,
		amount:  n.Amount,
		body:    body,
	})
}

// unparseable acknowledges a body that will never decode. A retry cannot
// fix it, so the provider is told to stop.
func (s *WebhookServiceImpl) unparseable(method domain.PaymentMethod, err error) *ports.WebhookAck {
	s.log.Warn().Err(err).Str("method", string(method)).Msg("Unparseable webhook payload")
	return &ports.WebhookAck{Status: AckIgnored, Message: "Invalid payload"}
}

type notification struct {
	method  domain.PaymentMethod
	ids     []string
	status  string
	outcome domain.OutcomeStatus
	amount  decimal.NullDecimal
	body    []byte
}

func (s *WebhookServiceImpl) ingest(ctx context.Context, n notification) (*ports.WebhookAck, error) {
	log := s.log.With().
		Str("method", string(n.method)).
		Strs("ids", n.ids).
		Str("provider_status", n.status).
		Logger()

	if len(n.ids) == 0 {
		log.Warn().Msg("Webhook without any transaction reference")
		return &ports.WebhookAck{Status: AckIgnored, Message: "No transaction reference"}, nil
	}

	txn, err := s.txRepo.FindByCorrelation(ctx, n.ids)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find transaction: %w", err))
	}
	if txn == nil {
		log.Warn().Msg("Webhook for unknown transaction")
		return &ports.WebhookAck{Status: AckIgnored, Message: "Transaction not found"}, nil
	}
	log = log.With().Str("transaction_id", txn.ID.String()).Logger()

	if n.amount.Valid && !n.amount.Decimal.Equal(txn.Amount) {
		log.Warn().
			Str("expected", txn.Amount.String()).
			Str("reported", n.amount.Decimal.String()).
			Msg("Webhook amount differs from transaction amount")
	}

	var detail string
	if n.outcome == domain.OutcomeFailed {
		detail = fmt.Sprintf("provider reported %s", strings.ToUpper(n.status))
	}
	result, err := s.payments.CompleteIfPending(ctx, txn.ID, domain.ProviderOutcome{
		Status:  n.outcome,
		Source:  domain.SourceWebhook,
		Payload: n.body,
		Detail:  detail,
	})
	if err != nil {
		if apperror.HasCode(err, "PAY_004") {
			return &ports.WebhookAck{Status: AckIgnored, Message: "Transaction not found"}, nil
		}
		log.Error().Err(err).Msg("Webhook processing failed")
		return nil, err
	}

	return &ports.WebhookAck{Status: AckSuccess, Message: ackMessage(result.State, n.outcome)}, nil
}

func ackMessage(state domain.CompletionState, outcome domain.OutcomeStatus) string {
	switch state {
	case domain.CompletionAlreadyProcessed:
		return "Transaction already processed"
	case domain.CompletionStillPending:
		return "Webhook received"
	}
	if outcome == domain.OutcomeFailed {
		return "Payment marked as failed"
	}
	return "Payment processed"
}

// correlationIDs drops empty and repeated ids.
func correlationIDs(ids ...string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ ports.WebhookService = (*WebhookServiceImpl)(nil)
