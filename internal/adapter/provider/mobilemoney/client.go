// Package mobilemoney is the adapter for the S3P mobile-money aggregator
// (MTN MoMo and Orange Money). A payment is a four-step exchange:
// cashout lookup, quote, collect, then verify.
package mobilemoney

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vcard-gateway/internal/adapter/provider"
	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	providerName    = "mobile_money"
	customerAddress = "Cameroun"
	defaultCustomer = "Card holder"
)

var errNoReference = errors.New("transaction has no ptn or trid to verify")

// Config holds the aggregator credentials and notification contacts.
type Config struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	NotifyPhone string
	NotifyEmail string
}

// Client implements ports.PaymentProvider for mobile money.
type Client struct {
	baseURL     string
	signer      signer
	notifyPhone string
	notifyEmail string
	httpClient  provider.HTTPClient
	now         func() time.Time
	log         zerolog.Logger
}

// New creates a mobile-money adapter. httpClient is normally
// provider.NewHTTPClient(timeout).
func New(cfg Config, httpClient provider.HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		signer:      signer{token: cfg.APIKey, secret: cfg.APISecret},
		notifyPhone: cfg.NotifyPhone,
		notifyEmail: cfg.NotifyEmail,
		httpClient:  httpClient,
		now:         time.Now,
		log:         log,
	}
}

func (c *Client) Method() domain.PaymentMethod {
	return domain.PaymentMethodMobileMoney
}

// Validate requires a Cameroon mobile number and rewrites it to national form.
func (c *Client) Validate(req *domain.InitiatePayment) error {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return err
	}
	req.Phone = phone
	return nil
}

type service struct {
	ServiceID string `json:"serviceid"`
	PayItemID string `json:"payItemId"`
}

type quoteRequest struct {
	PayItemID string `json:"payItemId"`
	Amount    int64  `json:"amount"`
}

type quoteResponse struct {
	QuoteID string `json:"quoteId"`
}

type collectRequest struct {
	QuoteID              string `json:"quoteId"`
	CustomerPhonenumber  string `json:"customerPhonenumber"`
	CustomerEmailaddress string `json:"customerEmailaddress"`
	CustomerName         string `json:"customerName"`
	CustomerAddress      string `json:"customerAddress"`
	ServiceNumber        string `json:"serviceNumber"`
	TRID                 string `json:"trid"`
}

type collectResponse struct {
	PTN    string `json:"ptn"`
	Status string `json:"status"`
}

type verifyResponse struct {
	PTN           string              `json:"ptn"`
	Status        string              `json:"status"`
	PriceLocalCur decimal.NullDecimal `json:"priceLocalCur"`
	ErrorCode     int                 `json:"errorCode"`
}

// Initiate sends the collection request that triggers the payer's USSD prompt.
func (c *Client) Initiate(ctx context.Context, req ports.ProviderInitiateRequest) (*ports.ProviderInitiateResult, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, ports.NewRejected(providerName, "", err.Error())
	}
	serviceID := ServiceForPhone(phone)
	trid := fmt.Sprintf("LTC-%s-%d", req.Reference, c.now().UnixMilli())

	payItemID, err := c.payItemID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	var quote quoteResponse
	qreq := quoteRequest{PayItemID: payItemID, Amount: provider.WholeUnits(req.Amount)}
	if err := c.post(ctx, "/quotestd", qreq, map[string]string{
		"payItemId": qreq.PayItemID,
		"amount":    strconv.FormatInt(qreq.Amount, 10),
	}, &quote); err != nil {
		return nil, err
	}
	if quote.QuoteID == "" {
		return nil, ports.NewUnavailable(providerName, errors.New("quote response has no quoteId"))
	}

	name := req.CustomerName
	if name == "" {
		name = defaultCustomer
	}
	creq := collectRequest{
		QuoteID:              quote.QuoteID,
		CustomerPhonenumber:  c.notifyPhone,
		CustomerEmailaddress: c.notifyEmail,
		CustomerName:         name,
		CustomerAddress:      customerAddress,
		ServiceNumber:        phone,
		TRID:                 trid,
	}
	var collected collectResponse
	if err := c.post(ctx, "/collectstd", creq, map[string]string{
		"quoteId":              creq.QuoteID,
		"customerPhonenumber":  creq.CustomerPhonenumber,
		"customerEmailaddress": creq.CustomerEmailaddress,
		"customerName":         creq.CustomerName,
		"customerAddress":      creq.CustomerAddress,
		"serviceNumber":        creq.ServiceNumber,
		"trid":                 creq.TRID,
	}, &collected); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("reference", req.Reference).
		Str("ptn", collected.PTN).
		Str("trid", trid).
		Str("service_id", serviceID).
		Str("status", collected.Status).
		Msg("Mobile money collection requested")

	ref := collected.PTN
	if ref == "" {
		ref = trid
	}
	return &ports.ProviderInitiateResult{
		Reference: ref,
		Metadata: domain.Metadata{
			Phone: phone,
			PTN:   collected.PTN,
			TRID:  trid,
		},
	}, nil
}

// payItemID resolves the pay item for a carrier service. The cashout endpoint
// answers with either a list of services or a single object.
func (c *Client) payItemID(ctx context.Context, serviceID string) (string, error) {
	var raw jsoniter.RawMessage
	if err := c.get(ctx, "/cashout", map[string]string{"serviceid": serviceID}, &raw); err != nil {
		return "", err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var services []service
		if err := json.Unmarshal(trimmed, &services); err != nil {
			return "", ports.NewUnavailable(providerName, fmt.Errorf("decode cashout: %w", err))
		}
		for _, s := range services {
			if s.ServiceID == serviceID && s.PayItemID != "" {
				return s.PayItemID, nil
			}
		}
		return "", ports.NewUnavailable(providerName, fmt.Errorf("service %s not offered", serviceID))
	}

	var single service
	if err := json.Unmarshal(trimmed, &single); err != nil || single.PayItemID == "" {
		return "", ports.NewUnavailable(providerName, fmt.Errorf("unexpected cashout response: %s", trimmed))
	}
	return single.PayItemID, nil
}

// CheckStatus verifies a collection by ptn when one was issued, else by trid.
func (c *Client) CheckStatus(ctx context.Context, txn *domain.Transaction) (*ports.ProviderStatus, error) {
	var query map[string]string
	switch {
	case txn.Metadata.PTN != "":
		query = map[string]string{"ptn": txn.Metadata.PTN}
	case txn.Metadata.TRID != "":
		query = map[string]string{"trid": txn.Metadata.TRID}
	default:
		return nil, ports.NewUnavailable(providerName, errNoReference)
	}

	var raw jsoniter.RawMessage
	if err := c.get(ctx, "/verifytx", query, &raw); err != nil {
		return nil, err
	}

	record := bytes.TrimSpace(raw)
	if len(record) > 0 && record[0] == '[' {
		var list []jsoniter.RawMessage
		if err := json.Unmarshal(record, &list); err != nil {
			return nil, ports.NewUnavailable(providerName, fmt.Errorf("decode verifytx: %w", err))
		}
		if len(list) == 0 {
			return nil, ports.NewUnavailable(providerName, errors.New("verifytx returned no record"))
		}
		record = list[0]
	}

	var v verifyResponse
	if err := json.Unmarshal(record, &v); err != nil {
		return nil, ports.NewUnavailable(providerName, fmt.Errorf("decode verifytx: %w", err))
	}

	status := &ports.ProviderStatus{
		Outcome: MapStatus(v.Status),
		Amount:  v.PriceLocalCur,
		Raw:     record,
	}
	if v.ErrorCode != 0 {
		status.Detail = ErrorMessage(v.ErrorCode)
	}
	return status, nil
}

// MapStatus maps an aggregator status to an outcome.
func MapStatus(s string) domain.OutcomeStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS":
		return domain.OutcomeSuccess
	case "FAILED", "ERRORED":
		return domain.OutcomeFailed
	}
	return domain.OutcomePending
}

func (c *Client) Close() {
	provider.CloseIdle(c.httpClient)
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	endpoint := c.baseURL + path
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, endpoint, query, out)
}

func (c *Client) post(ctx context.Context, path string, body any, params map[string]string, out any) error {
	endpoint := c.baseURL + path
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, endpoint, params, out)
}

// do signs and sends req, then decodes a 2xx body into out.
func (c *Client) do(req *http.Request, endpoint string, params map[string]string, out any) error {
	now := c.now()
	req.Header.Set("Authorization", c.signer.header(req.Method, endpoint, params, uuid.NewString(), now.UnixMilli()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.NewUnavailable(providerName, err)
	}
	body, err := provider.ReadBody(resp)
	if err != nil {
		return ports.NewUnavailable(providerName, fmt.Errorf("read body: %w", err))
	}

	if !provider.IsSuccess(resp.StatusCode) {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		pe := classify(resp.StatusCode, eb)
		c.log.Warn().
			Str("path", req.URL.Path).
			Int("status", resp.StatusCode).
			Int("resp_code", eb.RespCode).
			Str("dev_msg", eb.DevMsg).
			Msg("Mobile money request failed")
		return pe
	}

	if err := json.Unmarshal(body, out); err != nil {
		return ports.NewUnavailable(providerName, fmt.Errorf("decode %s: %w", req.URL.Path, err))
	}
	return nil
}

var _ ports.PaymentProvider = (*Client)(nil)
