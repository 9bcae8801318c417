// Package redirectorder is the adapter for the E-nkap hosted checkout. The
// payer is redirected to the aggregator's page; the outcome arrives by
// webhook or status poll.
package redirectorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vcard-gateway/internal/adapter/provider"
	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const providerName = "redirect_order"

var (
	ErrNameRequired  = errors.New("customer name is required for redirect order payments")
	ErrEmailRequired = errors.New("customer email is required for redirect order payments")

	errNoOrderID = errors.New("transaction has no order_id to check")
)

// Config holds the consumer credentials and merchant callback URLs.
type Config struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ReturnURL       string
	NotificationURL string
	Lang            string
}

// Client implements ports.PaymentProvider for redirect orders.
type Client struct {
	baseURL         string
	consumerKey     string
	consumerSecret  string
	returnURL       string
	notificationURL string
	lang            string
	httpClient      provider.HTTPClient
	tokens          tokenCache
	now             func() time.Time
	log             zerolog.Logger
}

func New(cfg Config, httpClient provider.HTTPClient, log zerolog.Logger) *Client {
	lang := cfg.Lang
	if lang == "" {
		lang = "fr"
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		consumerKey:     cfg.ConsumerKey,
		consumerSecret:  cfg.ConsumerSecret,
		returnURL:       cfg.ReturnURL,
		notificationURL: cfg.NotificationURL,
		lang:            lang,
		httpClient:      httpClient,
		now:             time.Now,
		log:             log,
	}
}

func (c *Client) Method() domain.PaymentMethod {
	return domain.PaymentMethodRedirectOrder
}

// Validate requires the payer's name and email and normalizes the phone.
func (c *Client) Validate(req *domain.InitiatePayment) error {
	if strings.TrimSpace(req.CustomerName) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(req.CustomerEmail) == "" {
		return ErrEmailRequired
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return err
	}
	req.Phone = phone
	return nil
}

type customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type orderRequest struct {
	MerchantReference string   `json:"merchant_reference"`
	Amount            int64    `json:"amount"`
	Currency          string   `json:"currency"`
	Description       string   `json:"description"`
	Customer          customer `json:"customer"`
	ReturnURL         string   `json:"return_url"`
	NotificationURL   string   `json:"notification_url"`
	Lang              string   `json:"lang"`
}

type orderResponse struct {
	OrderID            string `json:"order_id"`
	OrderTransactionID string `json:"order_transaction_id"`
	RedirectURL        string `json:"redirect_url"`
}

type statusResponse struct {
	Status string              `json:"status"`
	Amount decimal.NullDecimal `json:"amount"`
}

// Initiate creates a hosted order and returns its checkout URL.
func (c *Client) Initiate(ctx context.Context, req ports.ProviderInitiateRequest) (*ports.ProviderInitiateResult, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, ports.NewRejected(providerName, "", err.Error())
	}
	description := req.Description
	if description == "" {
		description = "Card top-up " + req.Reference
	}

	order := orderRequest{
		MerchantReference: req.Reference,
		Amount:            provider.WholeUnits(req.Amount),
		Currency:          req.Currency,
		Description:       description,
		Customer: customer{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
			Phone: phone,
		},
		ReturnURL:       c.returnURL,
		NotificationURL: c.notificationURL,
		Lang:            c.lang,
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	var created orderResponse
	if err := c.authorized(ctx, http.MethodPost, "/api/order", payload, &created); err != nil {
		return nil, err
	}
	if created.RedirectURL == "" {
		return nil, ports.NewUnavailable(providerName, errors.New("order response has no redirect_url"))
	}

	c.log.Info().
		Str("reference", req.Reference).
		Str("order_id", created.OrderID).
		Msg("Redirect order created")

	ref := created.OrderID
	if ref == "" {
		ref = req.Reference
	}
	return &ports.ProviderInitiateResult{
		Reference:  ref,
		PaymentURL: created.RedirectURL,
		Metadata: domain.Metadata{
			Phone:              phone,
			OrderID:            created.OrderID,
			OrderTransactionID: created.OrderTransactionID,
			PaymentURL:         created.RedirectURL,
		},
	}, nil
}

// CheckStatus reads the order's current status.
func (c *Client) CheckStatus(ctx context.Context, txn *domain.Transaction) (*ports.ProviderStatus, error) {
	orderID := txn.Metadata.OrderID
	if orderID == "" {
		return nil, ports.NewUnavailable(providerName, errNoOrderID)
	}

	var raw jsoniter.RawMessage
	if err := c.authorized(ctx, http.MethodGet, "/api/order/"+url.PathEscape(orderID)+"/status", nil, &raw); err != nil {
		return nil, err
	}
	var st statusResponse
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, ports.NewUnavailable(providerName, fmt.Errorf("decode status: %w", err))
	}
	return &ports.ProviderStatus{
		Outcome: MapStatus(st.Status),
		Amount:  st.Amount,
		Detail:  st.Status,
		Raw:     []byte(raw),
	}, nil
}

// MapStatus maps an order status to an outcome.
func MapStatus(s string) domain.OutcomeStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETED":
		return domain.OutcomeSuccess
	case "FAILED", "CANCELLED":
		return domain.OutcomeFailed
	}
	return domain.OutcomePending
}

// Close releases pooled connections. The token cache dies with the client.
func (c *Client) Close() {
	c.tokens.invalidate()
	provider.CloseIdle(c.httpClient)
}

// authorized sends a bearer request. A 401 drops the cached token and the
// request is retried once with a fresh one.
func (c *Client) authorized(ctx context.Context, method, path string, payload []byte, out any) error {
	status, body, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.log.Info().Str("path", path).Msg("Redirect order token rejected, refreshing")
		c.tokens.invalidate()
		status, body, err = c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}
	}

	if !provider.IsSuccess(status) {
		c.log.Warn().Str("path", path).Int("status", status).Str("body", truncate(body)).Msg("Redirect order request failed")
		if provider.IsServerError(status) || status == http.StatusUnauthorized {
			return ports.NewUnavailable(providerName, fmt.Errorf("%s: http %d", path, status))
		}
		pe := ports.NewRejected(providerName, strconv.Itoa(status), "The payment order was refused by the provider.")
		pe.Err = fmt.Errorf("%s: %s", path, truncate(body))
		return pe
	}

	if err := json.Unmarshal(body, out); err != nil {
		return ports.NewUnavailable(providerName, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, ports.NewUnavailable(providerName, err)
	}
	body, err := provider.ReadBody(resp)
	if err != nil {
		return 0, nil, ports.NewUnavailable(providerName, fmt.Errorf("read body: %w", err))
	}
	return resp.StatusCode, body, nil
}

var _ ports.PaymentProvider = (*Client)(nil)
