// Package provider holds the HTTP plumbing shared by the external payment
// and card-issuing adapters.
package provider

import (
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// maxResponseBody caps how much of a provider response is read into memory.
const maxResponseBody = 1 << 20

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a pooled client with an overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// CloseIdle releases pooled connections when the client supports it.
func CloseIdle(c HTTPClient) {
	if ci, ok := c.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// ReadBody drains and closes a response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
}

// WholeUnits truncates an amount to the integer units the aggregators accept.
func WholeUnits(amount decimal.Decimal) int64 {
	return amount.IntPart()
}

// IsServerError reports whether status is a 5xx.
func IsServerError(status int) bool {
	return status >= http.StatusInternalServerError
}

// IsSuccess reports whether status is a 2xx.
func IsSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
