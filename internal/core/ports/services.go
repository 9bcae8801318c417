package ports

import (
	"context"
	"time"

	"vcard-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// IdempotencyCache caches initiate responses per client Idempotency-Key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*domain.InitiatedPayment, error) // nil when absent
	Set(ctx context.Context, key string, result *domain.InitiatedPayment, ttl time.Duration) error
}

// PollGuard throttles provider status polls for one transaction.
type PollGuard interface {
	// Acquire returns true if no poll for key ran within ttl, and claims the slot.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// PaymentService drives top-up payments through a provider and owns the
// single PENDING to terminal transition.
type PaymentService interface {
	Initiate(ctx context.Context, req domain.InitiatePayment) (*domain.InitiatedPayment, error)
	CheckStatus(ctx context.Context, userID, txnID uuid.UUID) (*domain.Transaction, error)
	CompleteIfPending(ctx context.Context, txnID uuid.UUID, outcome domain.ProviderOutcome) (*domain.CompletionResult, error)
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// WebhookService ingests provider notifications. Callers authenticate the
// request before handing over the body.
type WebhookService interface {
	HandleMobileMoney(ctx context.Context, body []byte) (*WebhookAck, error)
	HandleRedirectOrder(ctx context.Context, body []byte) (*WebhookAck, error)
}

// WebhookAck is the body returned to the provider.
type WebhookAck struct {
	Status  string
	Message string
}

// CardService manages the virtual card lifecycle.
type CardService interface {
	Purchase(ctx context.Context, userID uuid.UUID, cardType domain.CardType) (*domain.Card, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Card, error)
	Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error)
	Freeze(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error)
	Unfreeze(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error)
	Block(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error)
	Reveal(ctx context.Context, userID, cardID uuid.UUID) (*CardSecrets, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error)
}

// CardSecrets is the decrypted card data shown to its owner.
type CardSecrets struct {
	CardNumber string
	CVV        string
	ExpiryDate string
}

// WithdrawRequest holds validated input for a card withdrawal.
type WithdrawRequest struct {
	UserID   uuid.UUID
	CardID   uuid.UUID
	Amount   decimal.Decimal
	Currency string
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// TransactionService lists card transactions.
type TransactionService interface {
	ListCardTransactions(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, int64, error)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
