package dto

import (
	"time"

	"vcard-gateway/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
	FirstName string `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string `json:"last_name" binding:"required,min=1,max=100"`
	Phone     string `json:"phone" binding:"omitempty,cm_phone"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// InitiatePaymentRequest funds a card through a payment provider.
// Amount accepts a JSON number or string.
type InitiatePaymentRequest struct {
	Method        string          `json:"method" binding:"required,payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	CardID        string          `json:"card_id" binding:"required,uuid"`
	Phone         string          `json:"phone" binding:"omitempty,cm_phone"`
	CustomerName  string          `json:"customer_name" binding:"omitempty,max=100"`
	CustomerEmail string          `json:"customer_email" binding:"omitempty,email"`
}

// PaymentStatusResponse reports where a top-up stands.
type PaymentStatusResponse struct {
	TransactionID    string `json:"transaction_id"`
	Status           string `json:"status"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	PaymentReference string `json:"payment_reference"`
	Message          string `json:"message,omitempty"`
}

// NewPaymentStatusResponse builds the status view; failed payments carry
// the recorded failure reason.
func NewPaymentStatusResponse(txn *domain.Transaction) PaymentStatusResponse {
	resp := PaymentStatusResponse{
		TransactionID:    txn.ID.String(),
		Status:           string(txn.Status),
		Amount:           txn.Amount.StringFixed(2),
		Currency:         txn.Currency,
		PaymentReference: txn.PaymentReference(),
	}
	if txn.Status == domain.TransactionStatusFailed {
		resp.Message = txn.Metadata.Error
	}
	return resp
}

// PurchaseCardRequest is the request body for buying a virtual card.
type PurchaseCardRequest struct {
	CardType string `json:"card_type" binding:"required,oneof=VISA MASTERCARD visa mastercard"`
}

// WithdrawRequest moves funds off a card.
type WithdrawRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"omitempty,len=3,alpha"`
}

// CardResponse is the owner's view of a card; the PAN is always masked.
type CardResponse struct {
	ID           string `json:"id"`
	CardType     string `json:"card_type"`
	MaskedNumber string `json:"card_number_masked"`
	ExpiryDate   string `json:"expiry_date"`
	Status       string `json:"status"`
	Balance      string `json:"balance"`
	Currency     string `json:"currency"`
	CreatedAt    string `json:"created_at"`
}

// NewCardResponse converts a card to its response body.
func NewCardResponse(card *domain.Card) CardResponse {
	return CardResponse{
		ID:           card.ID.String(),
		CardType:     string(card.CardType),
		MaskedNumber: card.MaskedNumber,
		ExpiryDate:   card.ExpiryDate,
		Status:       string(card.Status),
		Balance:      card.Balance.StringFixed(2),
		Currency:     card.Currency,
		CreatedAt:    card.CreatedAt.Format(time.RFC3339),
	}
}

// CardSecretsResponse carries the decrypted card data.
type CardSecretsResponse struct {
	CardNumber string `json:"card_number"`
	CVV        string `json:"cvv"`
	ExpiryDate string `json:"expiry_date"`
}

// TransactionResponse is the public view of a card transaction.
type TransactionResponse struct {
	ID               string  `json:"id"`
	CardID           string  `json:"card_id"`
	Type             string  `json:"type"`
	Status           string  `json:"status"`
	Amount           string  `json:"amount"`
	Currency         string  `json:"currency"`
	Description      *string `json:"description,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// NewTransactionResponse converts a transaction to its response body.
func NewTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:               txn.ID.String(),
		CardID:           txn.CardID.String(),
		Type:             string(txn.Type),
		Status:           string(txn.Status),
		Amount:           txn.Amount.StringFixed(2),
		Currency:         txn.Currency,
		Description:      txn.Description,
		PaymentReference: txn.PaymentReference(),
		CreatedAt:        txn.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        txn.UpdatedAt.Format(time.RFC3339),
	}
}

// TransactionListQuery holds pagination and filters for card transactions.
type TransactionListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=PENDING COMPLETED FAILED CANCELLED"`
	Type     string `form:"type" binding:"omitempty,oneof=TOPUP WITHDRAW PURCHASE REFUND"`
}

// TransactionListResponse is a page of transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
}
