// Package cardissuer is the client for the virtual card platform that issues
// cards and holds their funds on its side.
package cardissuer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vcard-gateway/internal/adapter/provider"
	"vcard-gateway/internal/core/ports"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const providerName = "card_issuer"

type Config struct {
	BaseURL string
	APIKey  string
}

// Client implements ports.CardIssuer and ports.HealthChecker.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient provider.HTTPClient
	log        zerolog.Logger
}

func New(cfg Config, httpClient provider.HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		log:        log,
	}
}

type purchaseRequest struct {
	UserID   string `json:"user_id"`
	CardType string `json:"card_type"`
}

type purchaseResponse struct {
	CardID     string `json:"card_id"`
	CardNumber string `json:"card_number"`
	ExpiryDate string `json:"expiry_date"`
	CVV        string `json:"cvv"`
}

type withdrawRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type withdrawResponse struct {
	TransactionID string `json:"transaction_id"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CreateCard purchases a new virtual card for a user.
func (c *Client) CreateCard(ctx context.Context, req ports.IssueCardRequest) (*ports.IssuedCard, error) {
	var out purchaseResponse
	if err := c.call(ctx, http.MethodPost, "/cards/purchase", purchaseRequest{
		UserID:   req.UserID,
		CardType: string(req.CardType),
	}, &out); err != nil {
		return nil, err
	}
	if out.CardID == "" || out.CardNumber == "" {
		return nil, ports.NewUnavailable(providerName, errors.New("purchase response missing card_id or card_number"))
	}
	return &ports.IssuedCard{
		CardID:     out.CardID,
		CardNumber: out.CardNumber,
		ExpiryDate: out.ExpiryDate,
		CVV:        out.CVV,
	}, nil
}

func (c *Client) Freeze(ctx context.Context, providerCardID string) error {
	return c.call(ctx, http.MethodPost, cardPath(providerCardID, "freeze"), nil, nil)
}

func (c *Client) Unfreeze(ctx context.Context, providerCardID string) error {
	return c.call(ctx, http.MethodPost, cardPath(providerCardID, "unfreeze"), nil, nil)
}

func (c *Client) Block(ctx context.Context, providerCardID string) error {
	return c.call(ctx, http.MethodPost, cardPath(providerCardID, "block"), nil, nil)
}

// Withdraw moves funds off the card at the issuer and returns its transaction id.
func (c *Client) Withdraw(ctx context.Context, providerCardID string, amount decimal.Decimal, currency string) (string, error) {
	var out withdrawResponse
	if err := c.call(ctx, http.MethodPost, cardPath(providerCardID, "withdraw"), withdrawRequest{
		Amount:   amount,
		Currency: currency,
	}, &out); err != nil {
		return "", err
	}
	return out.TransactionID, nil
}

// Ping checks the issuer's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Name() string {
	return providerName
}

func (c *Client) Close() {
	provider.CloseIdle(c.httpClient)
}

func cardPath(providerCardID, action string) string {
	return "/cards/" + url.PathEscape(providerCardID) + "/" + action
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.NewUnavailable(providerName, err)
	}
	respBody, err := provider.ReadBody(resp)
	if err != nil {
		return ports.NewUnavailable(providerName, fmt.Errorf("read body: %w", err))
	}

	if !provider.IsSuccess(resp.StatusCode) {
		var er errorResponse
		_ = json.Unmarshal(respBody, &er)
		c.log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("code", er.Code).
			Str("message", er.Message).
			Msg("Card issuer request failed")
		if provider.IsServerError(resp.StatusCode) {
			return ports.NewUnavailable(providerName, fmt.Errorf("%s: http %d", path, resp.StatusCode))
		}
		msg := er.Message
		if msg == "" {
			msg = fmt.Sprintf("card issuer refused the request (HTTP %d)", resp.StatusCode)
		}
		return ports.NewRejected(providerName, er.Code, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return ports.NewUnavailable(providerName, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

var (
	_ ports.CardIssuer    = (*Client)(nil)
	_ ports.HealthChecker = (*Client)(nil)
)
