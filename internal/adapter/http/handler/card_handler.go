package handler

import (
	"context"
	"strings"

	"vcard-gateway/internal/adapter/http/dto"
	"vcard-gateway/internal/adapter/http/middleware"
	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/pkg/apperror"
	"vcard-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CardHandler handles virtual card endpoints.
type CardHandler struct {
	cardSvc ports.CardService
	txnSvc  ports.TransactionService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cardSvc ports.CardService, txnSvc ports.TransactionService) *CardHandler {
	return &CardHandler{cardSvc: cardSvc, txnSvc: txnSvc}
}

// Purchase handles POST /api/v1/cards.
func (h *CardHandler) Purchase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.PurchaseCardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.cardSvc.Purchase(c.Request.Context(), userID, domain.CardType(strings.ToUpper(req.CardType)))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, card.ID.String())
	response.Created(c, dto.NewCardResponse(card))
}

// List handles GET /api/v1/cards.
func (h *CardHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	cards, err := h.cardSvc.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.CardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, dto.NewCardResponse(&cards[i]))
	}
	response.OK(c, out)
}

// Get handles GET /api/v1/cards/:id.
func (h *CardHandler) Get(c *gin.Context) {
	h.withCard(c, h.cardSvc.Get)
}

// Freeze handles POST /api/v1/cards/:id/freeze.
func (h *CardHandler) Freeze(c *gin.Context) {
	h.withCard(c, h.cardSvc.Freeze)
}

// Unfreeze handles POST /api/v1/cards/:id/unfreeze.
func (h *CardHandler) Unfreeze(c *gin.Context) {
	h.withCard(c, h.cardSvc.Unfreeze)
}

// Block handles POST /api/v1/cards/:id/block.
func (h *CardHandler) Block(c *gin.Context) {
	h.withCard(c, h.cardSvc.Block)
}

func (h *CardHandler) withCard(c *gin.Context, op func(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := pathUUID(c, "id", "Card")
	if !ok {
		return
	}

	card, err := op(c.Request.Context(), userID, cardID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewCardResponse(card))
}

// Reveal handles GET /api/v1/cards/:id/reveal.
func (h *CardHandler) Reveal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := pathUUID(c, "id", "Card")
	if !ok {
		return
	}

	secrets, err := h.cardSvc.Reveal(c.Request.Context(), userID, cardID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	response.OK(c, dto.CardSecretsResponse{
		CardNumber: secrets.CardNumber,
		CVV:        secrets.CVV,
		ExpiryDate: secrets.ExpiryDate,
	})
}

// Withdraw handles POST /api/v1/cards/:id/withdraw.
func (h *CardHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := pathUUID(c, "id", "Card")
	if !ok {
		return
	}
	var req dto.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.cardSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		UserID:   userID,
		CardID:   cardID,
		Amount:   req.Amount,
		Currency: strings.ToUpper(req.Currency),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, txn.ID.String())
	response.OK(c, dto.NewTransactionResponse(txn))
}

// Transactions handles GET /api/v1/cards/:id/transactions.
func (h *CardHandler) Transactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := pathUUID(c, "id", "Card")
	if !ok {
		return
	}
	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	filter := domain.TransactionFilter{CardID: cardID, Page: q.Page, PageSize: q.PageSize}
	if q.Status != "" {
		status := domain.TransactionStatus(q.Status)
		filter.Status = &status
	}
	if q.Type != "" {
		typ := domain.TransactionType(q.Type)
		filter.Type = &typ
	}

	txns, total, err := h.txnSvc.ListCardTransactions(c.Request.Context(), userID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	out := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, dto.NewTransactionResponse(&txns[i]))
	}
	response.OK(c, dto.TransactionListResponse{
		Transactions: out,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	})
}
