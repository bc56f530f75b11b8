package main

import (
	"context"
	"time"

	"budgetdash/internal/dashboard"
	"budgetdash/internal/feed"
	"budgetdash/internal/store"
)

// pollStore signals every watched collection each interval so the view
// re-reads the store when no broker announces changes.
func pollStore(ctx context.Context, hub *feed.Hub, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, c := range dashboard.Watched {
				hub.Notify(ctx, store.Change{Collection: c, Op: store.OpUpdate})
			}
		case <-ctx.Done():
			return nil
		}
	}
}
