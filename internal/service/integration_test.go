package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vcard-gateway/internal/adapter/provider"
	"vcard-gateway/internal/adapter/provider/cardissuer"
	"vcard-gateway/internal/adapter/provider/mobilemoney"
	redisstore "vcard-gateway/internal/adapter/storage/redis"
	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger is an in-memory card and transaction store with the same
// conditional-update semantics as the Postgres repositories. An open
// ledgerTx holds txLock, which stands in for row locks.
type memLedger struct {
	txLock sync.Mutex
	mu     sync.Mutex
	cards  map[uuid.UUID]domain.Card
	txns   map[uuid.UUID]domain.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{
		cards: map[uuid.UUID]domain.Card{},
		txns:  map[uuid.UUID]domain.Transaction{},
	}
}

type ledgerTx struct {
	pgx.Tx
	l    *memLedger
	undo []func()
	done bool
}

func (t *ledgerTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.l.txLock.Unlock()
	return nil
}

func (t *ledgerTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.l.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.l.mu.Unlock()
	t.l.txLock.Unlock()
	return nil
}

func (l *memLedger) Begin(context.Context) (pgx.Tx, error) {
	l.txLock.Lock()
	return &ledgerTx{l: l}, nil
}

// record registers an undo step when the write runs inside a ledgerTx.
// Callers hold l.mu.
func record(tx pgx.Tx, undo func()) {
	if lt, ok := tx.(*ledgerTx); ok && lt != nil {
		lt.undo = append(lt.undo, undo)
	}
}

// --- CardRepository ---

func (l *memLedger) Create(_ context.Context, card *domain.Card) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cards[card.ID] = *card
	return nil
}

func (l *memLedger) GetByID(_ context.Context, id uuid.UUID) (*domain.Card, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.cards[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (l *memLedger) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Card, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Card
	for _, c := range l.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (l *memLedger) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.CardStatus) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.cards[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	l.cards[id] = c
	return true, nil
}

func (l *memLedger) ApplyBalanceDelta(_ context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.cards[id]
	if !ok {
		return false, nil
	}
	next := c.Balance.Add(delta)
	if next.IsNegative() {
		return false, nil
	}
	prev := c.Balance
	c.Balance = next
	l.cards[id] = c
	record(tx, func() {
		c := l.cards[id]
		c.Balance = prev
		l.cards[id] = c
	})
	return true, nil
}

func (l *memLedger) balance(id uuid.UUID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cards[id].Balance
}

// txnStore exposes the transaction half of memLedger, whose method names
// collide with the card half.
type txnStore struct{ l *memLedger }

func (s txnStore) Create(_ context.Context, txn *domain.Transaction) error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	s.l.txns[txn.ID] = *txn
	return nil
}

func (s txnStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	t, ok := s.l.txns[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s txnStore) FindByCorrelation(_ context.Context, ids []string) (*domain.Transaction, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	for _, t := range s.l.txns {
		for _, id := range ids {
			if (t.ProviderReference != nil && *t.ProviderReference == id) ||
				t.Metadata.PTN == id || t.Metadata.TRID == id || t.Metadata.OrderID == id {
				found := t
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (s txnStore) AppendMetadata(_ context.Context, id uuid.UUID, patch domain.Metadata) error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	t, ok := s.l.txns[id]
	if !ok {
		return nil
	}
	t.Metadata.Merge(patch)
	s.l.txns[id] = t
	return nil
}

func (s txnStore) TransitionStatus(_ context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	t, ok := s.l.txns[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	s.l.txns[id] = t
	record(tx, func() {
		t := s.l.txns[id]
		t.Status = from
		s.l.txns[id] = t
	})
	return true, nil
}

func (s txnStore) List(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	var out []domain.Transaction
	for _, t := range s.l.txns {
		if t.CardID == filter.CardID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (s txnStore) ListPending(_ context.Context, txType domain.TransactionType, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	var out []domain.Transaction
	for _, t := range s.l.txns {
		if t.Type == txType && t.Status == domain.TransactionStatusPending && t.CreatedAt.Before(createdBefore) && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

// noUsers satisfies UserRepository for requests that carry payer fields.
type noUsers struct{}

func (noUsers) Create(context.Context, *domain.User) error { return nil }

func (noUsers) GetByID(context.Context, uuid.UUID) (*domain.User, error) { return nil, nil }

func (noUsers) GetByEmail(context.Context, string) (*domain.User, error) { return nil, nil }

// fakeAggregator answers the mobile-money endpoints the client uses.
type fakeAggregator struct {
	verifyStatus atomic.Value // string
	verifyError  atomic.Int64
	verifyCalls  atomic.Int64
	ptnSeq       atomic.Int64
}

func (f *fakeAggregator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/cashout":
		_, _ = w.Write([]byte(`[{"serviceid":"20056","payItemId":"pi-mtn"},{"serviceid":"30056","payItemId":"pi-orange"}]`))
	case "/quotestd":
		_, _ = w.Write([]byte(`{"quoteId":"q-1"}`))
	case "/collectstd":
		n := f.ptnSeq.Add(1)
		_, _ = w.Write([]byte(`{"ptn":"PTN-` + strconv.FormatInt(n, 10) + `","status":"PENDING"}`))
	case "/verifytx":
		f.verifyCalls.Add(1)
		status, _ := f.verifyStatus.Load().(string)
		if status == "" {
			status = "PENDING"
		}
		_, _ = w.Write([]byte(`[{"ptn":"` + r.URL.Query().Get("ptn") + `","status":"` + status +
			`","priceLocalCur":5000,"errorCode":` + strconv.FormatInt(f.verifyError.Load(), 10) + `}]`))
	default:
		http.NotFound(w, r)
	}
}

type flowEnv struct {
	ledger   *memLedger
	txns     txnStore
	agg      *fakeAggregator
	payments *PaymentServiceImpl
	webhooks *WebhookServiceImpl
	cards    *CardServiceImpl
	card     domain.Card
}

func newFlowEnv(t *testing.T, aggregatorURL string, issuerHandler http.Handler) *flowEnv {
	t.Helper()
	env := &flowEnv{ledger: newMemLedger(), agg: &fakeAggregator{}}
	env.txns = txnStore{l: env.ledger}

	if aggregatorURL == "" {
		srv := httptest.NewServer(env.agg)
		t.Cleanup(srv.Close)
		aggregatorURL = srv.URL
	}
	if issuerHandler == nil {
		issuerHandler = http.NotFoundHandler()
	}
	issuerSrv := httptest.NewServer(issuerHandler)
	t.Cleanup(issuerSrv.Close)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	httpClient := provider.NewHTTPClient(5 * time.Second)
	momo := mobilemoney.New(mobilemoney.Config{
		BaseURL: aggregatorURL, APIKey: "k", APISecret: "s",
		NotifyPhone: "237600000000", NotifyEmail: "ops@example.com",
	}, httpClient, log)
	issuer := cardissuer.New(cardissuer.Config{BaseURL: issuerSrv.URL, APIKey: "issuer-key"}, httpClient, log)

	env.payments = NewPaymentService(
		[]ports.PaymentProvider{momo},
		env.txns, env.ledger, noUsers{}, env.ledger,
		redisstore.NewIdempotencyCache(rdb), redisstore.NewPollGuard(rdb),
		PaymentConfig{
			Currency:        "XAF",
			MaxAmount:       decimal.NewFromInt(1000000),
			ProviderTimeout: 5 * time.Second,
			PollInterval:    0,
			IdempotencyTTL:  time.Hour,
		}, log)
	env.webhooks = NewWebhookService(env.txns, env.payments, log)
	env.cards = NewCardService(env.ledger, env.txns, issuer, nil, env.ledger,
		CardConfig{Currency: "XAF", IssuerTimeout: 5 * time.Second}, log)

	env.card = domain.Card{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Status:         domain.CardStatusActive,
		Balance:        decimal.Zero,
		Currency:       "XAF",
		ProviderCardID: "iss-card-1",
	}
	require.NoError(t, env.ledger.Create(context.Background(), &env.card))
	return env
}

func (env *flowEnv) initiate(t *testing.T, amount int64) *domain.Transaction {
	t.Helper()
	out, err := env.payments.Initiate(context.Background(), domain.InitiatePayment{
		UserID:       env.card.UserID,
		CardID:       env.card.ID,
		Amount:       decimal.NewFromInt(amount),
		Method:       domain.PaymentMethodMobileMoney,
		Phone:        "677123456",
		CustomerName: "Jean Mbarga",
	})
	require.NoError(t, err)
	txn, err := env.txns.GetByID(context.Background(), out.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, txn)
	return txn
}

func TestFlow_ConcurrentSignalsCreditOnce(t *testing.T) {
	env := newFlowEnv(t, "", nil)
	txn := env.initiate(t, 5000)
	require.Equal(t, domain.TransactionStatusPending, txn.Status)
	require.NotEmpty(t, txn.Metadata.PTN)
	env.agg.verifyStatus.Store("SUCCESS")

	const workers = 24
	var applied atomic.Int64
	var wg sync.WaitGroup
	body := []byte(`{"ptn":"` + txn.Metadata.PTN + `","status":"SUCCESS","amount":5000}`)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			switch i % 3 {
			case 0:
				res, err := env.payments.CompleteIfPending(ctx, txn.ID, domain.ProviderOutcome{
					Status: domain.OutcomeSuccess, Source: domain.SourceWebhook,
				})
				if assert.NoError(t, err) && res.State == domain.CompletionApplied {
					applied.Add(1)
				}
			case 1:
				ack, err := env.webhooks.HandleMobileMoney(ctx, body)
				if assert.NoError(t, err) && ack.Message == "Payment processed" {
					applied.Add(1)
				}
			default:
				_, err := env.payments.CheckStatus(ctx, env.card.UserID, txn.ID)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	final, err := env.txns.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, final.Status)
	assert.True(t, env.ledger.balance(env.card.ID).Equal(decimal.NewFromInt(5000)),
		"balance %s", env.ledger.balance(env.card.ID))
	// polls may have won the race, so at most one signal reports applying it
	assert.LessOrEqual(t, applied.Load(), int64(1))
}

func TestFlow_WebhookThenPollDoesNotRecredit(t *testing.T) {
	env := newFlowEnv(t, "", nil)
	txn := env.initiate(t, 5000)

	ack, err := env.webhooks.HandleMobileMoney(context.Background(),
		[]byte(`{"ptn":"`+txn.Metadata.PTN+`","status":"SUCCESS"}`))
	require.NoError(t, err)
	assert.Equal(t, "Payment processed", ack.Message)

	got, err := env.payments.CheckStatus(context.Background(), env.card.UserID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	assert.Zero(t, env.agg.verifyCalls.Load(), "terminal rows are not polled")

	again, err := env.webhooks.HandleMobileMoney(context.Background(),
		[]byte(`{"ptn":"`+txn.Metadata.PTN+`","status":"SUCCESS"}`))
	require.NoError(t, err)
	assert.Equal(t, "Transaction already processed", again.Message)
	assert.True(t, env.ledger.balance(env.card.ID).Equal(decimal.NewFromInt(5000)))
}

func TestFlow_PolledFailureNeverCredits(t *testing.T) {
	env := newFlowEnv(t, "", nil)
	txn := env.initiate(t, 5000)
	env.agg.verifyStatus.Store("FAILED")
	env.agg.verifyError.Store(703202)

	got, err := env.payments.CheckStatus(context.Background(), env.card.UserID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)
	assert.Equal(t, mobilemoney.ErrorMessage(703202), got.Metadata.Error)
	assert.NotEmpty(t, got.Metadata.Verification)

	// a late success webhook cannot resurrect it
	ack, err := env.webhooks.HandleMobileMoney(context.Background(),
		[]byte(`{"ptn":"`+txn.Metadata.PTN+`","status":"SUCCESS"}`))
	require.NoError(t, err)
	assert.Equal(t, "Transaction already processed", ack.Message)
	assert.True(t, env.ledger.balance(env.card.ID).IsZero())
}

func TestFlow_ReconcilerResolvesStalePayments(t *testing.T) {
	env := newFlowEnv(t, "", nil)
	txn := env.initiate(t, 5000)
	env.agg.verifyStatus.Store("SUCCESS")

	resolved, err := env.payments.ReconcilePending(context.Background(), -time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	final, err := env.txns.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, final.Status)
	assert.True(t, env.ledger.balance(env.card.ID).Equal(decimal.NewFromInt(5000)))
}

func TestFlow_InitiateTransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	env := newFlowEnv(t, deadURL, nil)
	_, err := env.payments.Initiate(context.Background(), domain.InitiatePayment{
		UserID:       env.card.UserID,
		CardID:       env.card.ID,
		Amount:       decimal.NewFromInt(5000),
		Method:       domain.PaymentMethodMobileMoney,
		Phone:        "677123456",
		CustomerName: "Jean Mbarga",
	})
	assertAppError(t, err, "PAY_007")

	txns, _, err := env.txns.List(context.Background(), domain.TransactionFilter{CardID: env.card.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionStatusFailed, txns[0].Status)
	assert.Equal(t, domain.FailureKindUnavailable, txns[0].Metadata.FailureKind)
	assert.True(t, env.ledger.balance(env.card.ID).IsZero())
}

func TestFlow_FractionalTopUpNeverReachesProvider(t *testing.T) {
	env := newFlowEnv(t, "", nil)

	_, err := env.payments.Initiate(context.Background(), domain.InitiatePayment{
		UserID:       env.card.UserID,
		CardID:       env.card.ID,
		Amount:       decimal.RequireFromString("100.99"),
		Method:       domain.PaymentMethodMobileMoney,
		Phone:        "677123456",
		CustomerName: "Jean Mbarga",
	})
	assertAppError(t, err, "PAY_002")

	txns, _, err := env.txns.List(context.Background(), domain.TransactionFilter{CardID: env.card.ID})
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Zero(t, env.agg.ptnSeq.Load(), "no collection was requested")
	assert.True(t, env.ledger.balance(env.card.ID).IsZero())
}

func TestFlow_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	var issued atomic.Int64
	issuer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/withdraw") {
			http.NotFound(w, r)
			return
		}
		n := issued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction_id":"iss-tx-` + strconv.FormatInt(n, 10) + `"}`))
	})
	env := newFlowEnv(t, "", issuer)
	ok, err := env.ledger.ApplyBalanceDelta(context.Background(), nil, env.card.ID, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	require.True(t, ok)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.cards.Withdraw(context.Background(), ports.WithdrawRequest{
				UserID: env.card.UserID,
				CardID: env.card.ID,
				Amount: decimal.RequireFromString("8.00"),
			})
		}(i)
	}
	wg.Wait()

	var succeeded, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.HasCode(err, "PAY_001"):
			refused++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)
	assert.Equal(t, int64(1), issued.Load())
	assert.True(t, env.ledger.balance(env.card.ID).Equal(decimal.RequireFromString("2.00")),
		"balance %s", env.ledger.balance(env.card.ID))
}

func TestFlow_WithdrawIssuerFailureRestoresBalance(t *testing.T) {
	issuer := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	env := newFlowEnv(t, "", issuer)
	_, err := env.ledger.ApplyBalanceDelta(context.Background(), nil, env.card.ID, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = env.cards.Withdraw(context.Background(), ports.WithdrawRequest{
		UserID: env.card.UserID, CardID: env.card.ID, Amount: decimal.NewFromInt(60),
	})
	assertAppError(t, err, "CARD_003")
	assert.True(t, env.ledger.balance(env.card.ID).Equal(decimal.NewFromInt(100)))

	txns, _, err := env.txns.List(context.Background(), domain.TransactionFilter{CardID: env.card.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionStatusFailed, txns[0].Status)
}
