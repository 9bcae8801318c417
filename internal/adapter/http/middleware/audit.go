package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"vcard-gateway/internal/core/domain"
	"vcard-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResourceID lets a handler name the resource it created or touched.
const CtxAuditResourceID = "audit_resource_id"

// AuditLog creates an audit middleware that records successful write
// operations, plus card reveals. Routes are matched on their template.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserID(c); ok {
			userID = &id
		}

		resourceID := c.GetString(CtxAuditResourceID)
		if resourceID == "" {
			resourceID = c.Param("id")
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method == http.MethodGet {
		if route == "/api/v1/cards/:id/reveal" {
			return domain.AuditActionCardReveal, "card"
		}
		return "", ""
	}
	if method != http.MethodPost {
		return "", ""
	}

	switch route {
	case "/api/v1/auth/register":
		return domain.AuditActionRegister, "user"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/payments/initiate":
		return domain.AuditActionPaymentInitiate, "transaction"
	case "/api/v1/payments/webhook/mobile_money", "/api/v1/payments/webhook/redirect_order":
		return domain.AuditActionPaymentComplete, "transaction"
	case "/api/v1/cards":
		return domain.AuditActionCardPurchase, "card"
	case "/api/v1/cards/:id/freeze":
		return domain.AuditActionCardFreeze, "card"
	case "/api/v1/cards/:id/unfreeze":
		return domain.AuditActionCardUnfreeze, "card"
	case "/api/v1/cards/:id/block":
		return domain.AuditActionCardBlock, "card"
	case "/api/v1/cards/:id/withdraw":
		return domain.AuditActionWithdraw, "transaction"
	}
	return "", ""
}
