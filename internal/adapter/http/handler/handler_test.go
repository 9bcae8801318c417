package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vcard-gateway/internal/adapter/http/middleware"
	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/internal/core/ports/mocks"
	"vcard-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestContext builds a handler context, authenticated when userID is set.
func newTestContext(method, path, body string, userID *uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if userID != nil {
		c.Set(middleware.CtxUserID, *userID)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := decodeEnvelope(t, w)["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	assert.Equal(t, code, decodeEnvelope(t, w)["error_code"])
}

func testCard(userID uuid.UUID) *domain.Card {
	return &domain.Card{
		ID:              uuid.New(),
		UserID:          userID,
		CardType:        domain.CardTypeVisa,
		MaskedNumber:    "****4242",
		NumberEncrypted: "enc-pan",
		CVVEncrypted:    "enc-cvv",
		ExpiryDate:      "12/29",
		Status:          domain.CardStatusActive,
		Balance:         decimal.RequireFromString("1500.5"),
		Currency:        "XAF",
		CreatedAt:       time.Now(),
	}
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Email:     "alice@example.cm",
		Password:  "p<ss>word123",
		FirstName: "Alice",
		LastName:  "Ngono",
		Phone:     "677123456",
	}).Return(&domain.User{
		ID:        userID,
		Email:     "alice@example.cm",
		FirstName: "Alice",
		LastName:  "Ngono",
		Phone:     "677123456",
		CreatedAt: time.Now(),
	}, nil)

	body := `{"email":"alice@example.cm","password":"p<ss>word123","first_name":" Alice ","last_name":"Ngono","phone":"677123456"}`
	c, w := newTestContext(http.MethodPost, "/api/v1/auth/register", body, nil)
	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, userID.String(), data["id"])
	assert.Equal(t, "alice@example.cm", data["email"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_ValidationError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `{}`},
		{"bad email", `{"email":"nope","password":"password123","first_name":"A","last_name":"B"}`},
		{"short password", `{"email":"a@b.cm","password":"short","first_name":"A","last_name":"B"}`},
		{"bad phone", `{"email":"a@b.cm","password":"password123","first_name":"A","last_name":"B","phone":"12"}`},
		{"malformed json", `{"email":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

			c, w := newTestContext(http.MethodPost, "/api/v1/auth/register", tt.body, nil)
			h.Register(c)

			assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)
	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrEmailExists())

	c, w := newTestContext(http.MethodPost, "/api/v1/auth/register",
		`{"email":"a@b.cm","password":"password123","first_name":"A","last_name":"B"}`, nil)
	h.Register(c)

	assertErrorCode(t, w, http.StatusConflict, "AUTH_002")
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "a@b.cm", "password123").Return("jwt-token", expiry, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.cm","password":"password123"}`, nil)
	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)
	mockAuth.EXPECT().Login(gomock.Any(), "a@b.cm", "wrong").Return("", time.Time{}, apperror.ErrInvalidCredentials())

	c, w := newTestContext(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.cm","password":"wrong"}`, nil)
	h.Login(c)

	assertErrorCode(t, w, http.StatusUnauthorized, "AUTH_001")
}

// --- Payment Handler Tests ---

func TestInitiate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockPay := mocks.NewMockPaymentService(ctrl)
	h := NewPaymentHandler(mockPay)

	userID, cardID, txnID := uuid.New(), uuid.New(), uuid.New()
	mockPay.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req domain.InitiatePayment) (*domain.InitiatedPayment, error) {
			assert.Equal(t, userID, req.UserID)
			assert.Equal(t, cardID, req.CardID)
			assert.Equal(t, domain.PaymentMethodRedirectOrder, req.Method)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("2500.50")))
			assert.Equal(t, "retry-1", req.IdempotencyKey)
			return &domain.InitiatedPayment{
				TransactionID:    txnID,
				Status:           domain.TransactionStatusPending,
				PaymentReference: "ord-1",
				PaymentURL:       "https://pay.example/ord-1",
				Message:          "Redirect to complete payment",
			}, nil
		},
	)

	body := `{"method":"enkap","amount":"2500.50","card_id":"` + cardID.String() + `"}`
	c, w := newTestContext(http.MethodPost, "/api/v1/payments/initiate", body, &userID)
	c.Request.Header.Set(HeaderIdempotencyKey, "retry-1")
	h.Initiate(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, txnID.String(), data["transaction_id"])
	assert.Equal(t, "ord-1", data["payment_reference"])
	assert.Equal(t, "https://pay.example/ord-1", data["payment_url"])
	assert.Equal(t, txnID.String(), c.GetString(middleware.CtxAuditResourceID))
}

func TestInitiate_BindingErrors(t *testing.T) {
	userID := uuid.New()
	tests := []struct {
		name string
		body string
	}{
		{"unknown method", `{"method":"paypal","amount":100,"card_id":"` + uuid.NewString() + `"}`},
		{"card id not uuid", `{"method":"mobile_money","amount":100,"card_id":"abc","phone":"677123456"}`},
		{"bad phone", `{"method":"mobile_money","amount":100,"card_id":"` + uuid.NewString() + `","phone":"555"}`},
		{"amount not numeric", `{"method":"mobile_money","amount":"lots","card_id":"` + uuid.NewString() + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewPaymentHandler(mocks.NewMockPaymentService(ctrl))

			c, w := newTestContext(http.MethodPost, "/api/v1/payments/initiate", tt.body, &userID)
			h.Initiate(c)

			assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
		})
	}
}

func TestInitiate_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"card not found", apperror.ErrNotFound("Card"), http.StatusNotFound, "PAY_004"},
		{"provider rejected", apperror.ErrProviderRejected("Subscriber not found", nil), http.StatusBadRequest, "PAY_006"},
		{"provider down", apperror.ErrProviderUnavailable(errors.New("timeout")), http.StatusServiceUnavailable, "PAY_007"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "SYS_000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockPay := mocks.NewMockPaymentService(ctrl)
			h := NewPaymentHandler(mockPay)
			mockPay.EXPECT().Initiate(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			userID := uuid.New()
			body := `{"method":"mobile_money","amount":5000,"card_id":"` + uuid.NewString() + `","phone":"677123456"}`
			c, w := newTestContext(http.MethodPost, "/api/v1/payments/initiate", body, &userID)
			h.Initiate(c)

			assertErrorCode(t, w, tt.status, tt.code)
		})
	}
}

func TestInitiate_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewPaymentHandler(mocks.NewMockPaymentService(ctrl))

	c, w := newTestContext(http.MethodPost, "/api/v1/payments/initiate", `{}`, nil)
	h.Initiate(c)

	assertErrorCode(t, w, http.StatusUnauthorized, "AUTH_003")
}

func TestStatus_Failed(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockPay := mocks.NewMockPaymentService(ctrl)
	h := NewPaymentHandler(mockPay)

	userID, txnID := uuid.New(), uuid.New()
	mockPay.EXPECT().CheckStatus(gomock.Any(), userID, txnID).Return(&domain.Transaction{
		ID:       txnID,
		Amount:   decimal.NewFromInt(5000),
		Currency: "XAF",
		Status:   domain.TransactionStatusFailed,
		Metadata: domain.Metadata{PTN: "PTN-9", Error: "Insufficient balance in wallet"},
	}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/payments/status/"+txnID.String(), "", &userID)
	c.Params = gin.Params{{Key: "transaction_id", Value: txnID.String()}}
	h.Status(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "FAILED", data["status"])
	assert.Equal(t, "5000.00", data["amount"])
	assert.Equal(t, "PTN-9", data["payment_reference"])
	assert.Equal(t, "Insufficient balance in wallet", data["message"])
}

func TestStatus_MalformedID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewPaymentHandler(mocks.NewMockPaymentService(ctrl))

	userID := uuid.New()
	c, w := newTestContext(http.MethodGet, "/api/v1/payments/status/xyz", "", &userID)
	c.Params = gin.Params{{Key: "transaction_id", Value: "xyz"}}
	h.Status(c)

	assertErrorCode(t, w, http.StatusNotFound, "PAY_004")
}

// --- Webhook Handler Tests ---

func TestWebhook_MobileMoneyAck(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHook := mocks.NewMockWebhookService(ctrl)
	h := NewWebhookHandler(mockHook)

	body := `{"ptn":"PTN-1","status":"SUCCESS","amount":5000}`
	mockHook.EXPECT().HandleMobileMoney(gomock.Any(), []byte(body)).
		Return(&ports.WebhookAck{Status: "success", Message: "Payment processed"}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/payments/webhook/mobile_money", body, nil)
	h.MobileMoney(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"Payment processed"}`, w.Body.String())
}

func TestWebhook_RedirectOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad payload", apperror.Validation("missing order id"), http.StatusBadRequest},
		{"storage failure is retryable", apperror.InternalError(errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockHook := mocks.NewMockWebhookService(ctrl)
			h := NewWebhookHandler(mockHook)
			mockHook.EXPECT().HandleRedirectOrder(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			c, w := newTestContext(http.MethodPost, "/api/v1/payments/webhook/redirect_order", `{}`, nil)
			h.RedirectOrder(c)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

// --- Card Handler Tests ---

func TestPurchaseCard_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCards := mocks.NewMockCardService(ctrl)
	h := NewCardHandler(mockCards, mocks.NewMockTransactionService(ctrl))

	userID := uuid.New()
	card := testCard(userID)
	mockCards.EXPECT().Purchase(gomock.Any(), userID, domain.CardTypeMastercard).Return(card, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/cards", `{"card_type":"mastercard"}`, &userID)
	h.Purchase(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, card.ID.String(), data["id"])
	assert.Equal(t, "****4242", data["card_number_masked"])
	assert.Equal(t, "1500.50", data["balance"])
	assert.NotContains(t, w.Body.String(), "enc-pan")
	assert.NotContains(t, w.Body.String(), "enc-cvv")
}

func TestPurchaseCard_UnknownType(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewCardHandler(mocks.NewMockCardService(ctrl), mocks.NewMockTransactionService(ctrl))

	userID := uuid.New()
	c, w := newTestContext(http.MethodPost, "/api/v1/cards", `{"card_type":"AMEX"}`, &userID)
	h.Purchase(c)

	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

func TestListCards(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCards := mocks.NewMockCardService(ctrl)
	h := NewCardHandler(mockCards, mocks.NewMockTransactionService(ctrl))

	userID := uuid.New()
	mockCards.EXPECT().List(gomock.Any(), userID).Return([]domain.Card{*testCard(userID), *testCard(userID)}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/cards", "", &userID)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data, ok := decodeEnvelope(t, w)["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestCardStatusChanges(t *testing.T) {
	tests := []struct {
		name   string
		call   func(h *CardHandler) gin.HandlerFunc
		expect func(m *mocks.MockCardService, userID, cardID uuid.UUID) *gomock.Call
	}{
		{
			"freeze",
			func(h *CardHandler) gin.HandlerFunc { return h.Freeze },
			func(m *mocks.MockCardService, u, id uuid.UUID) *gomock.Call { return m.EXPECT().Freeze(gomock.Any(), u, id) },
		},
		{
			"unfreeze",
			func(h *CardHandler) gin.HandlerFunc { return h.Unfreeze },
			func(m *mocks.MockCardService, u, id uuid.UUID) *gomock.Call { return m.EXPECT().Unfreeze(gomock.Any(), u, id) },
		},
		{
			"block",
			func(h *CardHandler) gin.HandlerFunc { return h.Block },
			func(m *mocks.MockCardService, u, id uuid.UUID) *gomock.Call { return m.EXPECT().Block(gomock.Any(), u, id) },
		},
		{
			"get",
			func(h *CardHandler) gin.HandlerFunc { return h.Get },
			func(m *mocks.MockCardService, u, id uuid.UUID) *gomock.Call { return m.EXPECT().Get(gomock.Any(), u, id) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockCards := mocks.NewMockCardService(ctrl)
			h := NewCardHandler(mockCards, mocks.NewMockTransactionService(ctrl))

			userID := uuid.New()
			card := testCard(userID)
			tt.expect(mockCards, userID, card.ID).Return(card, nil)

			c, w := newTestContext(http.MethodPost, "/api/v1/cards/"+card.ID.String(), "", &userID)
			c.Params = gin.Params{{Key: "id", Value: card.ID.String()}}
			tt.call(h)(c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, card.ID.String(), decodeData(t, w)["id"])
		})
	}
}

func TestFreezeCard_IllegalTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCards := mocks.NewMockCardService(ctrl)
	h := NewCardHandler(mockCards, mocks.NewMockTransactionService(ctrl))

	userID, cardID := uuid.New(), uuid.New()
	mockCards.EXPECT().Freeze(gomock.Any(), userID, cardID).
		Return(nil, apperror.ErrInvalidCardTransition("BLOCKED", "FROZEN"))

	c, w := newTestContext(http.MethodPost, "/api/v1/cards/"+cardID.String()+"/freeze", "", &userID)
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.Freeze(c)

	assertErrorCode(t, w, http.StatusConflict, "CARD_001")
}

func TestRevealCard(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCards := mocks.NewMockCardService(ctrl)
	h := NewCardHandler(mockCards, mocks.NewMockTransactionService(ctrl))

	userID, cardID := uuid.New(), uuid.New()
	mockCards.EXPECT().Reveal(gomock.Any(), userID, cardID).Return(&ports.CardSecrets{
		CardNumber: "4242424242424242",
		CVV:        "123",
		ExpiryDate: "12/29",
	}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/cards/"+cardID.String()+"/reveal", "", &userID)
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.Reveal(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	data := decodeData(t, w)
	assert.Equal(t, "4242424242424242", data["card_number"])
	assert.Equal(t, "123", data["cvv"])
}

func TestWithdraw(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCards := mocks.NewMockCardService(ctrl)
	h := NewCardHandler(mockCards, mocks.NewMockTransactionService(ctrl))

	userID, cardID, txnID := uuid.New(), uuid.New(), uuid.New()
	mockCards.EXPECT().Withdraw(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.WithdrawRequest) (*domain.Transaction, error) {
			assert.Equal(t, userID, req.UserID)
			assert.Equal(t, cardID, req.CardID)
			assert.Equal(t, "XAF", req.Currency)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(800)))
			return &domain.Transaction{
				ID:       txnID,
				CardID:   cardID,
				Amount:   req.Amount,
				Currency: "XAF",
				Type:     domain.TransactionTypeWithdraw,
				Status:   domain.TransactionStatusCompleted,
			}, nil
		},
	)

	c, w := newTestContext(http.MethodPost, "/api/v1/cards/"+cardID.String()+"/withdraw", `{"amount":800,"currency":"xaf"}`, &userID)
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.Withdraw(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "WITHDRAW", data["type"])
	assert.Equal(t, "800.00", data["amount"])
	assert.Equal(t, txnID.String(), c.GetString(middleware.CtxAuditResourceID))
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCards := mocks.NewMockCardService(ctrl)
	h := NewCardHandler(mockCards, mocks.NewMockTransactionService(ctrl))

	userID, cardID := uuid.New(), uuid.New()
	mockCards.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	c, w := newTestContext(http.MethodPost, "/api/v1/cards/"+cardID.String()+"/withdraw", `{"amount":"99999"}`, &userID)
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.Withdraw(c)

	assertErrorCode(t, w, http.StatusPaymentRequired, "PAY_001")
}

func TestCardTransactions(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockTxns := mocks.NewMockTransactionService(ctrl)
	h := NewCardHandler(mocks.NewMockCardService(ctrl), mockTxns)

	userID, cardID := uuid.New(), uuid.New()
	ref := "CARD-abcd1234-ef567890"
	mockTxns.EXPECT().ListCardTransactions(gomock.Any(), userID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, f domain.TransactionFilter) ([]domain.Transaction, int64, error) {
			assert.Equal(t, cardID, f.CardID)
			assert.Equal(t, 2, f.Page)
			assert.Equal(t, 0, f.PageSize)
			require.NotNil(t, f.Status)
			assert.Equal(t, domain.TransactionStatusCompleted, *f.Status)
			assert.Nil(t, f.Type)
			return []domain.Transaction{{
				ID:                uuid.New(),
				CardID:            cardID,
				Amount:            decimal.NewFromInt(100),
				Type:              domain.TransactionTypeTopup,
				Status:            domain.TransactionStatusCompleted,
				ProviderReference: &ref,
			}}, 21, nil
		},
	)

	c, w := newTestContext(http.MethodGet, "/api/v1/cards/"+cardID.String()+"/transactions?page=2&status=COMPLETED", "", &userID)
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.Transactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(21), data["total"])
	assert.Equal(t, float64(2), data["page"])
	assert.Equal(t, float64(20), data["page_size"])
	txns := data["transactions"].([]interface{})
	require.Len(t, txns, 1)
	assert.Equal(t, ref, txns[0].(map[string]interface{})["payment_reference"])
}

func TestCardTransactions_BadQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewCardHandler(mocks.NewMockCardService(ctrl), mocks.NewMockTransactionService(ctrl))

	userID, cardID := uuid.New(), uuid.New()
	c, w := newTestContext(http.MethodGet, "/api/v1/cards/"+cardID.String()+"/transactions?status=LOST", "", &userID)
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.Transactions(c)

	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

// --- Health Check ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	rd := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgres").AnyTimes()
	rd.EXPECT().Name().Return("redis").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)
	rd.EXPECT().Ping(gomock.Any()).Return(nil)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	handler := HealthCheck(pg, rd)

	c, w := newTestContext(http.MethodGet, "/health", "", nil)
	handler(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeEnvelope(t, w)["status"])

	c, w = newTestContext(http.MethodGet, "/health", "", nil)
	handler(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["postgres"].(map[string]interface{})["status"])
	assert.Equal(t, "connection refused", deps["redis"].(map[string]interface{})["error"])
}

// --- Router wiring ---

type routerMocks struct {
	auth     *mocks.MockAuthService
	payments *mocks.MockPaymentService
	webhooks *mocks.MockWebhookService
	cards    *mocks.MockCardService
	txns     *mocks.MockTransactionService
	tokens   *mocks.MockTokenService
	sig      *mocks.MockSignatureService
	audit    *mocks.MockAuditService
}

func setupTestRouter(t *testing.T) (*gin.Engine, *routerMocks) {
	ctrl := gomock.NewController(t)
	m := &routerMocks{
		auth:     mocks.NewMockAuthService(ctrl),
		payments: mocks.NewMockPaymentService(ctrl),
		webhooks: mocks.NewMockWebhookService(ctrl),
		cards:    mocks.NewMockCardService(ctrl),
		txns:     mocks.NewMockTransactionService(ctrl),
		tokens:   mocks.NewMockTokenService(ctrl),
		sig:      mocks.NewMockSignatureService(ctrl),
		audit:    mocks.NewMockAuditService(ctrl),
	}
	r := SetupRouter(RouterDeps{
		AuthSvc:                    m.auth,
		PaymentSvc:                 m.payments,
		WebhookSvc:                 m.webhooks,
		CardSvc:                    m.cards,
		TransactionSvc:             m.txns,
		TokenSvc:                   m.tokens,
		SigSvc:                     m.sig,
		AuditSvc:                   m.audit,
		MobileMoneyWebhookSecret:   "momo-secret",
		RedirectOrderWebhookSecret: "consumer-secret",
		Logger:                     zerolog.Nop(),
	})
	gin.SetMode(gin.TestMode)
	return r, m
}

func TestRouter_CardsRequireJWT(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cards", nil))

	assertErrorCode(t, w, http.StatusUnauthorized, "AUTH_003")
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestRouter_AuthenticatedCardList(t *testing.T) {
	r, m := setupTestRouter(t)
	userID := uuid.New()
	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{UserID: userID, Email: "a@b.cm"}, nil)
	m.cards.EXPECT().List(gomock.Any(), userID).Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cards", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decodeEnvelope(t, w)["data"])
}

func TestRouter_MobileMoneyWebhookNeedsSecret(t *testing.T) {
	r, m := setupTestRouter(t)
	body := `{"ptn":"PTN-1","status":"SUCCESS"}`

	// rejected before any lookup
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/mobile_money", bytes.NewBufferString(body)))
	assertErrorCode(t, w, http.StatusUnauthorized, "SEC_001")

	m.webhooks.EXPECT().HandleMobileMoney(gomock.Any(), []byte(body)).
		Return(&ports.WebhookAck{Status: "success", Message: "Payment processed"}, nil)
	m.audit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionPaymentComplete, entry.Action)
		assert.Nil(t, entry.UserID)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/mobile_money", bytes.NewBufferString(body))
	req.Header.Set(middleware.HeaderWebhookSecret, "momo-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"Payment processed"}`, w.Body.String())
}

func TestRouter_RedirectOrderWebhookSignature(t *testing.T) {
	r, m := setupTestRouter(t)
	body := `{"order_id":"ord-1","status":"COMPLETED"}`

	m.sig.EXPECT().Verify("consumer-secret", body, "bad").Return(false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/redirect_order", bytes.NewBufferString(body))
	req.Header.Set(middleware.HeaderWebhookSignature, "bad")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assertErrorCode(t, w, http.StatusUnauthorized, "SEC_002")

	m.sig.EXPECT().Verify("consumer-secret", body, "good").Return(true)
	m.webhooks.EXPECT().HandleRedirectOrder(gomock.Any(), []byte(body)).
		Return(&ports.WebhookAck{Status: "ignored", Message: "Transaction not found"}, nil)
	m.audit.EXPECT().Log(gomock.Any(), gomock.Any())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/redirect_order", bytes.NewBufferString(body))
	req.Header.Set(middleware.HeaderWebhookSignature, "good")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestRouter_OversizedBody(t *testing.T) {
	r, _ := setupTestRouter(t)

	big := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(big)))

	assertErrorCode(t, w, http.StatusRequestEntityTooLarge, "REQ_001")
}
