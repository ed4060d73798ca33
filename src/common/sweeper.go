package common

import (
	"context"
	"ticketing/src/checkout"
	"time"
)

// ExpireStaleOrders is the scheduled task that releases PENDING orders
// older than ttl.
func ExpireStaleOrders(orch *checkout.Orchestrator, ttl time.Duration, batch int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := orch.ExpireStale(ctx, ttl, batch)
		return err
	}
}
