package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"vcard-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are probed in parallel so
// one slow backend costs at most healthPingTimeout.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make([]dependencyHealth, len(checkers))

		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
				defer cancel()

				start := time.Now()
				err := checker.Ping(ctx)
				results[i] = dependencyHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					results[i].Status = "unhealthy"
					results[i].Error = err.Error()
				}
			}()
		}
		wg.Wait()

		deps := make(map[string]dependencyHealth, len(checkers))
		code, overall := http.StatusOK, "healthy"
		for i, checker := range checkers {
			deps[checker.Name()] = results[i]
			if results[i].Error != "" {
				code, overall = http.StatusServiceUnavailable, "degraded"
			}
		}

		c.JSON(code, gin.H{"status": overall, "dependencies": deps})
	}
}
