package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentConfig bounds top-ups and provider calls.
type PaymentConfig struct {
	Currency        string
	MaxAmount       decimal.Decimal
	ProviderTimeout time.Duration
	PollInterval    time.Duration
	IdempotencyTTL  time.Duration
}

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	providers  map[domain.PaymentMethod]ports.PaymentProvider
	txRepo     ports.TransactionRepository
	cardRepo   ports.CardRepository
	userRepo   ports.UserRepository
	transactor ports.DBTransactor
	idempCache ports.IdempotencyCache
	pollGuard  ports.PollGuard
	cfg        PaymentConfig
	now        func() time.Time
	log        zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	providers []ports.PaymentProvider,
	txRepo ports.TransactionRepository,
	cardRepo ports.CardRepository,
	userRepo ports.UserRepository,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	pollGuard ports.PollGuard,
	cfg PaymentConfig,
	log zerolog.Logger,
) *PaymentServiceImpl {
	byMethod := make(map[domain.PaymentMethod]ports.PaymentProvider, len(providers))
	for _, p := range providers {
		byMethod[p.Method()] = p
	}
	return &PaymentServiceImpl{
		providers:  byMethod,
		txRepo:     txRepo,
		cardRepo:   cardRepo,
		userRepo:   userRepo,
		transactor: transactor,
		idempCache: idempCache,
		pollGuard:  pollGuard,
		cfg:        cfg,
		now:        time.Now,
		log:        log,
	}
}

// Initiate validates the request, records a PENDING top-up and asks the
// provider to collect. The row is written before the provider is called so
// that a webhook can always be correlated.
func (s *PaymentServiceImpl) Initiate(ctx context.Context, req domain.InitiatePayment) (*domain.InitiatedPayment, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if s.cfg.MaxAmount.IsPositive() && req.Amount.GreaterThan(s.cfg.MaxAmount) {
		return nil, apperror.ErrAmountAboveLimit(s.cfg.MaxAmount.String())
	}
	provider, ok := s.providers[req.Method]
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("Unsupported payment method: %s", req.Method))
	}
	if err := requireMethodFields(req); err != nil {
		return nil, err
	}
	if req.Currency == "" {
		req.Currency = s.cfg.Currency
	}
	// The card is credited with exactly what the provider collects.
	if !domain.HasValidScale(req.Amount, req.Currency) {
		return nil, apperror.Validation(fmt.Sprintf("Amount %s has too many decimal places for %s", req.Amount, req.Currency))
	}

	if err := s.fillFromProfile(ctx, &req); err != nil {
		return nil, err
	}
	if err := provider.Validate(&req); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	card, err := s.cardRepo.GetByID(ctx, req.CardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil || card.UserID != req.UserID {
		return nil, apperror.ErrNotFound("Card")
	}
	if !card.IsUsable() {
		return nil, apperror.ErrCardNotUsable(string(card.Status))
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.UserID, req.IdempotencyKey)
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("Idempotency cache read failed")
		}
		if cached != nil {
			return cached, nil
		}
	}

	now := s.now().UTC()
	reference := domain.NewOrderReference(card.ID)
	description := fmt.Sprintf("Card top-up via %s", req.Method)
	txn := &domain.Transaction{
		ID:                uuid.New(),
		CardID:            card.ID,
		UserID:            req.UserID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Type:              domain.TransactionTypeTopup,
		Status:            domain.TransactionStatusPending,
		Description:       &description,
		ProviderReference: &reference,
		Metadata: domain.Metadata{
			PaymentMethod: string(req.Method),
			Phone:         req.Phone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.txRepo.Create(ctx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	result, err := provider.Initiate(pctx, ports.ProviderInitiateRequest{
		Reference:     reference,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   description,
		Phone:         req.Phone,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	cancel()
	if err != nil {
		return nil, s.failInitiate(ctx, txn, err)
	}

	// The row already correlates through provider_reference, so losing the
	// provider ids here only costs webhook lookups by ptn or order id.
	if err := s.txRepo.AppendMetadata(ctx, txn.ID, result.Metadata); err != nil {
		s.log.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("Failed to store provider metadata")
	}
	txn.Metadata.Merge(result.Metadata)

	paymentRef := result.Reference
	if paymentRef == "" {
		paymentRef = txn.PaymentReference()
	}
	out := &domain.InitiatedPayment{
		TransactionID:    txn.ID,
		Status:           domain.TransactionStatusPending,
		PaymentReference: paymentRef,
		PaymentURL:       result.PaymentURL,
		Message:          initiatedMessage(req.Method),
	}

	if idempKey != "" {
		if err := s.idempCache.Set(ctx, idempKey, out, s.cfg.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("Idempotency cache write failed")
		}
	}

	s.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("card_id", card.ID.String()).
		Str("method", string(req.Method)).
		Str("amount", req.Amount.String()).
		Str("payment_reference", paymentRef).
		Msg("Payment initiated")

	return out, nil
}

func requireMethodFields(req domain.InitiatePayment) error {
	switch req.Method {
	case domain.PaymentMethodMobileMoney:
		if strings.TrimSpace(req.Phone) == "" {
			return apperror.Validation("Phone number is required for mobile money payments")
		}
	case domain.PaymentMethodRedirectOrder:
		if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerEmail) == "" {
			return apperror.Validation("Customer name and email are required for redirect order payments")
		}
	}
	return nil
}

// fillFromProfile defaults the payer name and phone from the user's profile.
func (s *PaymentServiceImpl) fillFromProfile(ctx context.Context, req *domain.InitiatePayment) error {
	if req.CustomerName != "" && req.Phone != "" {
		return nil
	}
	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil
	}
	if req.CustomerName == "" {
		req.CustomerName = user.FullName()
	}
	if req.Phone == "" {
		req.Phone = user.Phone
	}
	return nil
}

func initiatedMessage(method domain.PaymentMethod) string {
	if method == domain.PaymentMethodRedirectOrder {
		return "Complete the payment on the provider page"
	}
	return "Payment request sent. Please confirm on your phone"
}

// failInitiate records a failed initiate call and maps it to a client error.
// Both kinds end FAILED; an unavailable provider may still have taken the
// payment, so those rows are flagged for manual review.
func (s *PaymentServiceImpl) failInitiate(ctx context.Context, txn *domain.Transaction, cause error) error {
	ctx = context.WithoutCancel(ctx)

	kind := domain.FailureKindUnavailable
	pe, isProviderErr := ports.AsProviderError(cause)
	if isProviderErr && pe.Kind == ports.ProviderRejected {
		kind = domain.FailureKindRejected
	}

	if err := s.txRepo.AppendMetadata(ctx, txn.ID, domain.Metadata{Error: cause.Error(), FailureKind: kind}); err != nil {
		s.log.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("Failed to record initiate error")
	}
	if _, err := s.txRepo.TransitionStatus(ctx, nil, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusFailed); err != nil {
		s.log.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("Failed to mark transaction failed")
	}

	if kind == domain.FailureKindRejected {
		s.log.Warn().Err(cause).Str("transaction_id", txn.ID.String()).Msg("Payment rejected by provider")
		return apperror.ErrProviderRejected(pe.Message, cause)
	}
	s.log.Error().Err(cause).
		Str("transaction_id", txn.ID.String()).
		Str("failure_kind", kind).
		Msg("Payment provider unavailable during initiate, needs manual review")
	return apperror.ErrProviderUnavailable(cause)
}

// CompleteIfPending applies a provider verdict at most once. Every signal is
// recorded in metadata; only the caller whose conditional update moves the
// row out of PENDING credits the card.
func (s *PaymentServiceImpl) CompleteIfPending(ctx context.Context, txnID uuid.UUID, outcome domain.ProviderOutcome) (*domain.CompletionResult, error) {
	txn, err := s.txRepo.GetByID(ctx, txnID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}

	patch := outcomePatch(outcome)
	if err := s.txRepo.AppendMetadata(ctx, txn.ID, patch); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append metadata: %w", err))
	}
	txn.Metadata.Merge(patch)

	logEvt := func(state domain.CompletionState) {
		s.log.Info().
			Str("transaction_id", txn.ID.String()).
			Str("source", string(outcome.Source)).
			Str("outcome", string(outcome.Status)).
			Str("status", string(txn.Status)).
			Str("state", string(state)).
			Msg("Payment completion")
	}

	if txn.IsTerminal() {
		logEvt(domain.CompletionAlreadyProcessed)
		return &domain.CompletionResult{State: domain.CompletionAlreadyProcessed, Transaction: txn}, nil
	}
	target, ok := outcome.TargetStatus()
	if !ok {
		logEvt(domain.CompletionStillPending)
		return &domain.CompletionResult{State: domain.CompletionStillPending, Transaction: txn}, nil
	}

	applied, err := s.applyTransition(ctx, txn, target)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another signal won the race; report the row as it now stands.
		current, err := s.txRepo.GetByID(ctx, txn.ID)
		if err == nil && current != nil {
			txn = current
		}
		logEvt(domain.CompletionAlreadyProcessed)
		return &domain.CompletionResult{State: domain.CompletionAlreadyProcessed, Transaction: txn}, nil
	}

	txn.Status = target
	txn.UpdatedAt = s.now().UTC()
	logEvt(domain.CompletionApplied)
	return &domain.CompletionResult{State: domain.CompletionApplied, Transaction: txn}, nil
}

func outcomePatch(outcome domain.ProviderOutcome) domain.Metadata {
	var patch domain.Metadata
	if len(outcome.Payload) > 0 {
		if outcome.Source == domain.SourceWebhook {
			patch.WebhookData = outcome.Payload
		} else {
			patch.Verification = outcome.Payload
		}
	}
	if outcome.Status == domain.OutcomeFailed {
		patch.Error = outcome.Detail
		if patch.Error == "" {
			patch.Error = "payment failed at provider"
		}
	}
	return patch
}

// applyTransition moves the row to target and, for a completed top-up,
// credits the card in the same database transaction.
func (s *PaymentServiceImpl) applyTransition(ctx context.Context, txn *domain.Transaction, target domain.TransactionStatus) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	moved, err := s.txRepo.TransitionStatus(ctx, dbTx, txn.ID, domain.TransactionStatusPending, target)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("transition status: %w", err))
	}
	if !moved {
		return false, nil
	}

	if target == domain.TransactionStatusCompleted && txn.Type == domain.TransactionTypeTopup {
		credited, err := s.cardRepo.ApplyBalanceDelta(ctx, dbTx, txn.CardID, txn.Amount)
		if err != nil {
			return false, apperror.InternalError(fmt.Errorf("credit card: %w", err))
		}
		if !credited {
			return false, apperror.InternalError(fmt.Errorf("credit card %s: card not found", txn.CardID))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit: %w", err))
	}
	return true, nil
}

// CheckStatus returns the caller's transaction, asking the provider for a
// verdict first when it is still pending.
func (s *PaymentServiceImpl) CheckStatus(ctx context.Context, userID, txnID uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, txnID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil || txn.UserID != userID {
		return nil, apperror.ErrNotFound("Transaction")
	}
	if txn.IsTerminal() {
		return txn, nil
	}

	resolved, polled, err := s.resolvePending(ctx, txn, domain.SourcePoll)
	if err != nil {
		return nil, err
	}
	if !polled {
		return resolved, nil
	}

	fresh, err := s.txRepo.GetByID(ctx, txnID)
	if err != nil || fresh == nil {
		return resolved, nil
	}
	return fresh, nil
}

// resolvePending asks the provider about a pending transaction and applies
// its verdict. polled is false when no provider call was made. Provider
// errors leave the transaction pending and are not returned.
func (s *PaymentServiceImpl) resolvePending(ctx context.Context, txn *domain.Transaction, source domain.OutcomeSource) (*domain.Transaction, bool, error) {
	log := s.log.With().Str("transaction_id", txn.ID.String()).Str("source", string(source)).Logger()

	provider, ok := s.providers[domain.PaymentMethod(txn.Metadata.PaymentMethod)]
	if !ok {
		log.Warn().Str("method", txn.Metadata.PaymentMethod).Msg("No provider for pending transaction")
		return txn, false, nil
	}

	acquired, err := s.pollGuard.Acquire(ctx, txn.ID.String(), s.cfg.PollInterval)
	if err != nil {
		log.Warn().Err(err).Msg("Poll guard unavailable, polling anyway")
		acquired = true
	}
	if !acquired {
		return txn, false, nil
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	status, err := provider.CheckStatus(pctx, txn)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Provider status check failed")
		return txn, false, nil
	}
	if status.Amount.Valid && !status.Amount.Decimal.Equal(txn.Amount) {
		log.Warn().
			Str("expected", txn.Amount.String()).
			Str("reported", status.Amount.Decimal.String()).
			Msg("Provider amount differs from transaction amount")
	}

	result, err := s.CompleteIfPending(ctx, txn.ID, domain.ProviderOutcome{
		Status:  status.Outcome,
		Source:  source,
		Payload: status.Raw,
		Detail:  status.Detail,
	})
	if err != nil {
		return nil, false, err
	}
	return result.Transaction, true, nil
}

// ReconcilePending polls providers for PENDING top-ups older than olderThan
// and returns how many reached a terminal status.
func (s *PaymentServiceImpl) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	pending, err := s.txRepo.ListPending(ctx, domain.TransactionTypeTopup, cutoff, limit)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list pending: %w", err))
	}

	resolved := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		txn, _, err := s.resolvePending(ctx, &pending[i], domain.SourceReconciler)
		if err != nil {
			s.log.Error().Err(err).Str("transaction_id", pending[i].ID.String()).Msg("Reconcile failed")
			continue
		}
		if txn.IsTerminal() {
			resolved++
		}
	}
	return resolved, nil
}

var _ ports.PaymentService = (*PaymentServiceImpl)(nil)
