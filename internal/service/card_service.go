package service

import (
	"context"
	"fmt"
	"time"

	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CardConfig holds card defaults and the issuer call budget.
type CardConfig struct {
	Currency      string
	IssuerTimeout time.Duration
}

// CardServiceImpl implements ports.CardService.
type CardServiceImpl struct {
	cardRepo   ports.CardRepository
	txRepo     ports.TransactionRepository
	issuer     ports.CardIssuer
	encSvc     ports.EncryptionService
	transactor ports.DBTransactor
	cfg        CardConfig
	log        zerolog.Logger
}

// NewCardService creates a new CardServiceImpl.
func NewCardService(
	cardRepo ports.CardRepository,
	txRepo ports.TransactionRepository,
	issuer ports.CardIssuer,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	cfg CardConfig,
	log zerolog.Logger,
) *CardServiceImpl {
	return &CardServiceImpl{
		cardRepo:   cardRepo,
		txRepo:     txRepo,
		issuer:     issuer,
		encSvc:     encSvc,
		transactor: transactor,
		cfg:        cfg,
		log:        log,
	}
}

// Purchase issues a new card and stores it ACTIVE with a zero balance.
func (s *CardServiceImpl) Purchase(ctx context.Context, userID uuid.UUID, cardType domain.CardType) (*domain.Card, error) {
	if cardType != domain.CardTypeVisa && cardType != domain.CardTypeMastercard {
		return nil, apperror.Validation("card_type must be VISA or MASTERCARD")
	}

	ictx, cancel := context.WithTimeout(ctx, s.cfg.IssuerTimeout)
	issued, err := s.issuer.CreateCard(ictx, ports.IssueCardRequest{UserID: userID.String(), CardType: cardType})
	cancel()
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("Card issuer purchase failed")
		return nil, apperror.ErrCardIssuerUnavailable(err)
	}

	numberEnc, err := s.encSvc.Encrypt(issued.CardNumber)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt card number: %w", err))
	}
	cvvEnc, err := s.encSvc.Encrypt(issued.CVV)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt cvv: %w", err))
	}

	now := time.Now().UTC()
	card := &domain.Card{
		ID:              uuid.New(),
		UserID:          userID,
		CardType:        cardType,
		MaskedNumber:    domain.MaskCardNumber(issued.CardNumber),
		NumberEncrypted: numberEnc,
		CVVEncrypted:    cvvEnc,
		ExpiryDate:      issued.ExpiryDate,
		Status:          domain.CardStatusActive,
		Balance:         decimal.Zero,
		Currency:        s.cfg.Currency,
		ProviderCardID:  issued.CardID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.cardRepo.Create(ctx, card); err != nil {
		s.log.Error().Err(err).Str("provider_card_id", issued.CardID).Msg("Issued card could not be stored")
		return nil, apperror.InternalError(fmt.Errorf("create card: %w", err))
	}

	s.log.Info().Str("card_id", card.ID.String()).Str("user_id", userID.String()).Msg("Card purchased")
	return card, nil
}

func (s *CardServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	cards, err := s.cardRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list cards: %w", err))
	}
	return cards, nil
}

func (s *CardServiceImpl) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	return s.ownedCard(ctx, userID, cardID)
}

func (s *CardServiceImpl) Freeze(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	return s.changeStatus(ctx, userID, cardID, domain.CardStatusFrozen, s.issuer.Freeze)
}

func (s *CardServiceImpl) Unfreeze(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	return s.changeStatus(ctx, userID, cardID, domain.CardStatusActive, s.issuer.Unfreeze)
}

func (s *CardServiceImpl) Block(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	return s.changeStatus(ctx, userID, cardID, domain.CardStatusBlocked, s.issuer.Block)
}

// changeStatus asks the issuer first and then moves the stored status with
// a compare-and-swap, so a concurrent change surfaces as a conflict.
func (s *CardServiceImpl) changeStatus(
	ctx context.Context,
	userID, cardID uuid.UUID,
	to domain.CardStatus,
	issuerCall func(ctx context.Context, providerCardID string) error,
) (*domain.Card, error) {
	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	from := card.Status
	if !card.CanTransitionTo(to) {
		return nil, apperror.ErrInvalidCardTransition(string(from), string(to))
	}

	ictx, cancel := context.WithTimeout(ctx, s.cfg.IssuerTimeout)
	err = issuerCall(ictx, card.ProviderCardID)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Str("card_id", card.ID.String()).Str("to", string(to)).Msg("Card issuer status change failed")
		return nil, apperror.ErrCardIssuerUnavailable(err)
	}

	moved, err := s.cardRepo.UpdateStatus(ctx, card.ID, from, to)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update card status: %w", err))
	}
	if !moved {
		return nil, apperror.ErrInvalidCardTransition(string(from), string(to))
	}

	card.Status = to
	card.UpdatedAt = time.Now().UTC()
	s.log.Info().Str("card_id", card.ID.String()).Str("from", string(from)).Str("to", string(to)).Msg("Card status changed")
	return card, nil
}

// Reveal decrypts the full card number and CVV for the card's owner.
func (s *CardServiceImpl) Reveal(ctx context.Context, userID, cardID uuid.UUID) (*ports.CardSecrets, error) {
	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	number, err := s.encSvc.Decrypt(card.NumberEncrypted)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt card number: %w", err))
	}
	cvv, err := s.encSvc.Decrypt(card.CVVEncrypted)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt cvv: %w", err))
	}
	return &ports.CardSecrets{CardNumber: number, CVV: cvv, ExpiryDate: card.ExpiryDate}, nil
}

// Withdraw debits the card first, then asks the issuer to pay out. The debit
// is a single guarded update, so concurrent withdrawals can never overdraw.
// An issuer failure fails the transaction and re-credits in one DB
// transaction.
func (s *CardServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	card, err := s.ownedCard(ctx, req.UserID, req.CardID)
	if err != nil {
		return nil, err
	}
	if card.Status != domain.CardStatusActive {
		return nil, apperror.ErrCardNotUsable(string(card.Status))
	}
	currency := req.Currency
	if currency == "" {
		currency = card.Currency
	}
	if !domain.HasValidScale(req.Amount, currency) {
		return nil, apperror.Validation(fmt.Sprintf("Amount %s has too many decimal places for %s", req.Amount, currency))
	}

	now := time.Now().UTC()
	description := "Card withdrawal"
	txn := &domain.Transaction{
		ID:          uuid.New(),
		CardID:      card.ID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    currency,
		Type:        domain.TransactionTypeWithdraw,
		Status:      domain.TransactionStatusPending,
		Description: &description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.txRepo.Create(ctx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	log := s.log.With().Str("transaction_id", txn.ID.String()).Str("card_id", card.ID.String()).Logger()

	debited, err := s.debit(ctx, card.ID, req.Amount)
	if err != nil {
		s.markFailed(ctx, txn, err.Error())
		return nil, err
	}
	if !debited {
		s.markFailed(ctx, txn, "insufficient balance")
		log.Info().Str("amount", req.Amount.String()).Msg("Withdrawal refused: insufficient balance")
		return nil, apperror.ErrInsufficientFunds()
	}

	ictx, cancel := context.WithTimeout(ctx, s.cfg.IssuerTimeout)
	issuerTxID, err := s.issuer.Withdraw(ictx, card.ProviderCardID, req.Amount, currency)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("Card issuer withdrawal failed, refunding card")
		if rerr := s.refund(ctx, txn, err); rerr != nil {
			log.Error().Err(rerr).Msg("Refund after failed withdrawal did not complete, needs manual review")
		}
		return nil, apperror.ErrCardIssuerUnavailable(err)
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.txRepo.AppendMetadata(ctx, txn.ID, domain.Metadata{IssuerTransactionID: issuerTxID}); err != nil {
		log.Error().Err(err).Str("issuer_transaction_id", issuerTxID).Msg("Failed to store issuer transaction id")
	}
	moved, err := s.txRepo.TransitionStatus(ctx, nil, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusCompleted)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete withdrawal: %w", err))
	}
	if !moved {
		log.Warn().Msg("Withdrawal left PENDING by a concurrent writer")
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.Metadata.IssuerTransactionID = issuerTxID
	log.Info().Str("amount", req.Amount.String()).Str("issuer_transaction_id", issuerTxID).Msg("Withdrawal completed")
	return txn, nil
}

func (s *CardServiceImpl) debit(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.cardRepo.ApplyBalanceDelta(ctx, dbTx, cardID, amount.Neg())
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("debit card: %w", err))
	}
	if !ok {
		return false, nil
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit: %w", err))
	}
	return true, nil
}

// refund fails a debited withdrawal and puts the amount back on the card.
func (s *CardServiceImpl) refund(ctx context.Context, txn *domain.Transaction, cause error) error {
	ctx = context.WithoutCancel(ctx)

	kind := domain.FailureKindUnavailable
	if pe, ok := ports.AsProviderError(cause); ok && pe.Kind == ports.ProviderRejected {
		kind = domain.FailureKindRejected
	}
	if err := s.txRepo.AppendMetadata(ctx, txn.ID, domain.Metadata{Error: cause.Error(), FailureKind: kind}); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", txn.ID.String()).Msg("Failed to record withdrawal error")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	moved, err := s.txRepo.TransitionStatus(ctx, dbTx, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusFailed)
	if err != nil {
		return fmt.Errorf("fail withdrawal: %w", err)
	}
	if !moved {
		return nil
	}
	if _, err := s.cardRepo.ApplyBalanceDelta(ctx, dbTx, txn.CardID, txn.Amount); err != nil {
		return fmt.Errorf("re-credit card: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	txn.Status = domain.TransactionStatusFailed
	return nil
}

// markFailed fails a withdrawal that never touched the balance.
func (s *CardServiceImpl) markFailed(ctx context.Context, txn *domain.Transaction, reason string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.txRepo.AppendMetadata(ctx, txn.ID, domain.Metadata{Error: reason}); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", txn.ID.String()).Msg("Failed to record withdrawal error")
	}
	if _, err := s.txRepo.TransitionStatus(ctx, nil, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusFailed); err != nil {
		s.log.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("Failed to mark withdrawal failed")
	}
	txn.Status = domain.TransactionStatusFailed
}

func (s *CardServiceImpl) ownedCard(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil || card.UserID != userID {
		return nil, apperror.ErrNotFound("Card")
	}
	return card, nil
}

var _ ports.CardService = (*CardServiceImpl)(nil)
