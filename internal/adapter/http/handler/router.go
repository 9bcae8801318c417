package handler

import (
	"vcard-gateway/internal/adapter/http/middleware"
	redisStore "vcard-gateway/internal/adapter/storage/redis"
	"vcard-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PaymentSvc     ports.PaymentService
	WebhookSvc     ports.WebhookService
	CardSvc        ports.CardService
	TransactionSvc ports.TransactionService
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker

	// MobileMoneyWebhookSecret is the shared secret the aggregator sends.
	MobileMoneyWebhookSecret string
	// RedirectOrderWebhookSecret keys the redirect-order HMAC signature.
	RedirectOrderWebhookSecret string

	Logger zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Payments ---
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	payments := v1.Group("/payments")
	{
		payments.POST("/initiate", jwtAuth, rl("payments"), paymentHandler.Initiate)
		payments.GET("/status/:transaction_id", jwtAuth, rl("payments_status"), paymentHandler.Status)

		// Provider callbacks authenticate with their own schemes.
		payments.POST("/webhook/mobile_money",
			rl("webhooks"),
			middleware.WebhookSecretAuth(deps.MobileMoneyWebhookSecret, deps.Logger),
			webhookHandler.MobileMoney,
		)
		payments.POST("/webhook/redirect_order",
			rl("webhooks"),
			middleware.WebhookSignatureAuth(deps.RedirectOrderWebhookSecret, deps.SigSvc, deps.Logger),
			webhookHandler.RedirectOrder,
		)
	}

	// --- Cards ---
	cardHandler := NewCardHandler(deps.CardSvc, deps.TransactionSvc)
	cards := v1.Group("/cards", jwtAuth)
	{
		cards.POST("", rl("cards_sensitive"), cardHandler.Purchase)
		cards.GET("", rl("cards"), cardHandler.List)
		cards.GET("/:id", rl("cards"), cardHandler.Get)
		cards.POST("/:id/freeze", rl("cards"), cardHandler.Freeze)
		cards.POST("/:id/unfreeze", rl("cards"), cardHandler.Unfreeze)
		cards.POST("/:id/block", rl("cards"), cardHandler.Block)
		cards.GET("/:id/reveal", rl("cards_sensitive"), cardHandler.Reveal)
		cards.POST("/:id/withdraw", rl("cards_sensitive"), cardHandler.Withdraw)
		cards.GET("/:id/transactions", rl("cards"), cardHandler.Transactions)
	}

	return r
}
