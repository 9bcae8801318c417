// Package response renders the JSON envelopes every API endpoint returns.
package response

import (
	"errors"
	"net/http"
	"time"

	"vcard-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDKey matches the key the RequestID middleware stores under.
const requestIDKey = "request_id"

// SuccessResponse wraps the payload of a 2xx answer.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse carries a stable error code; clients switch on ErrorCode,
// never on Message.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// AckResponse is the bare body returned to webhook senders.
type AckResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// Error renders err. An *apperror.AppError anywhere in the chain decides the
// status and code; anything else becomes an opaque SYS_000. Server-side
// failures are attached to the context so the request logger records the
// cause the client never sees.
func Error(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

// Abort renders err like Error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// Ack sends a 200 acknowledgement to a provider webhook. Providers read the
// body verbatim, so it carries no envelope.
func Ack(c *gin.Context, status, message string) {
	c.JSON(http.StatusOK, AckResponse{Status: status, Message: message})
}

func success(c *gin.Context, status int, data interface{}) {
	id, ts := stamp(c)
	c.JSON(status, SuccessResponse{Data: data, RequestID: id, Timestamp: ts})
}

func errorBody(c *gin.Context, err error) (int, ErrorResponse) {
	id, ts := stamp(c)
	body := ErrorResponse{
		ErrorCode: "SYS_000",
		Message:   "Internal server error",
		RequestID: id,
		Timestamp: ts,
	}
	status := http.StatusInternalServerError

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		body.ErrorCode, body.Message = appErr.Code, appErr.Message
		status = appErr.HTTPStatus
	}
	return status, body
}

// stamp returns the request ID to echo and the current UTC time. Contexts
// that bypassed the RequestID middleware get a fresh ID.
func stamp(c *gin.Context) (string, string) {
	id := c.GetString(requestIDKey)
	if id == "" {
		id = uuid.NewString()
	}
	return id, time.Now().UTC().Format(time.RFC3339)
}
