package handler

import (
	"vcard-gateway/internal/adapter/http/dto"
	"vcard-gateway/internal/adapter/http/middleware"
	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"
	"vcard-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey lets clients retry an initiate call safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// PaymentHandler handles card top-up endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Initiate handles POST /api/v1/payments/initiate.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.InitiatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	method, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		response.Error(c, apperror.Validation("Unsupported payment method: "+req.Method))
		return
	}
	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		response.Error(c, apperror.Validation("card_id must be a UUID"))
		return
	}

	result, err := h.paymentSvc.Initiate(c.Request.Context(), domain.InitiatePayment{
		UserID:         userID,
		CardID:         cardID,
		Amount:         req.Amount,
		Method:         method,
		Phone:          req.Phone,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, result.TransactionID.String())
	response.Created(c, result)
}

// Status handles GET /api/v1/payments/status/:transaction_id. A pending
// payment may be resolved against the provider before this returns.
func (h *PaymentHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	txnID, ok := pathUUID(c, "transaction_id", "Transaction")
	if !ok {
		return
	}

	txn, err := h.paymentSvc.CheckStatus(c.Request.Context(), userID, txnID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentStatusResponse(txn))
}
