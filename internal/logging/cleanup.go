package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/unibvs/bvs-backend/internal/models"
	"gorm.io/gorm"
)

// StartCleanup deletes system_logs older than retentionDays once a day until
// ctx is cancelled.
func StartCleanup(ctx context.Context, db *gorm.DB, retentionDays int) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				PurgeOlderThan(ctx, db, retentionDays)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// PurgeOlderThan removes log rows past the retention window and returns how
// many were deleted.
func PurgeOlderThan(ctx context.Context, db *gorm.DB, retentionDays int) int64 {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		slog.Warn("log cleanup failed", "error", result.Error)
		return 0
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}
	return result.RowsAffected
}
