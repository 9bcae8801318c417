package postgres

import (
	"context"
	"fmt"
	"strings"
)

// requiredTables are the relations the gateway cannot serve without.
var requiredTables = []string{"users", "cards", "transactions", "audit_logs"}

// SchemaCheck reports PostgreSQL as healthy only when it answers and the
// migrations have been applied.
type SchemaCheck struct {
	pool Pool
}

func NewSchemaCheck(pool Pool) *SchemaCheck {
	return &SchemaCheck{pool: pool}
}

// Ping resolves every required table in a single round trip.
func (h *SchemaCheck) Ping(ctx context.Context) error {
	var missing []string
	err := h.pool.QueryRow(ctx,
		`SELECT COALESCE(array_agg(t), '{}') FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL`,
		requiredTables,
	).Scan(&missing)
	if err != nil {
		return fmt.Errorf("querying schema: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h *SchemaCheck) Name() string {
	return "postgres"
}
