package runtime

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"vpnrotator/internal/database"
)

const (
	historyRetentionInterval = time.Hour
	DefaultHistoryRetention  = 10_000
)

var pruneRotationRecordsFunc = database.PruneRotationRecords

// StartHistoryRetentionRoutine trims the rotation history to keep rows, once
// at start and then hourly.
func StartHistoryRetentionRoutine(ctx context.Context, keep int) {
	if keep <= 0 {
		keep = DefaultHistoryRetention
	}

	pruneHistory(ctx, keep)

	ticker := time.NewTicker(historyRetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneHistory(ctx, keep)
		}
	}
}

func pruneHistory(ctx context.Context, keep int) {
	start := time.Now()
	deleted, err := pruneRotationRecordsFunc(ctx, keep)
	if err != nil {
		log.Error("Failed to prune rotation history", "error", err)
		return
	}
	if deleted > 0 {
		log.Info("Rotation history pruned", "deleted", deleted, "duration", time.Since(start))
	}
}
