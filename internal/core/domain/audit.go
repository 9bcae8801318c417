package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister        AuditAction = "REGISTER"
	AuditActionLogin           AuditAction = "LOGIN"
	AuditActionCardPurchase    AuditAction = "CARD_PURCHASE"
	AuditActionCardFreeze      AuditAction = "CARD_FREEZE"
	AuditActionCardUnfreeze    AuditAction = "CARD_UNFREEZE"
	AuditActionCardBlock       AuditAction = "CARD_BLOCK"
	AuditActionCardReveal      AuditAction = "CARD_REVEAL"
	AuditActionWithdraw        AuditAction = "WITHDRAW"
	AuditActionPaymentInitiate AuditAction = "PAYMENT_INITIATE"
	AuditActionPaymentComplete AuditAction = "PAYMENT_COMPLETE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
