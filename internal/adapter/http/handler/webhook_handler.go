package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"
	"vcard-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives provider notifications. Authentication is done
// by middleware before these run.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// MobileMoney handles POST /api/v1/payments/webhook/mobile_money.
func (h *WebhookHandler) MobileMoney(c *gin.Context) {
	h.ingest(c, h.webhookSvc.HandleMobileMoney)
}

// RedirectOrder handles POST /api/v1/payments/webhook/redirect_order.
func (h *WebhookHandler) RedirectOrder(c *gin.Context) {
	h.ingest(c, h.webhookSvc.HandleRedirectOrder)
}

func (h *WebhookHandler) ingest(c *gin.Context, handle func(context.Context, []byte) (*ports.WebhookAck, error)) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			response.Error(c, apperror.ErrBodyTooLarge())
			return
		}
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	ack, err := handle(c.Request.Context(), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Ack(c, ack.Status, ack.Message)
}
