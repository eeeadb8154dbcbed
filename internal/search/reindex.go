package search

import (
	"context"
	"fmt"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reindexBatchSize = 200

// Reindex walks every thread in the database and indexes it. Used after the
// index is created so search sees threads written while it was missing.
func Reindex(ctx context.Context, db *gorm.DB, idx ThreadSearcher) (int, error) {
	indexed := 0
	var batch []*models.Thread

	err := db.WithContext(ctx).Preload("Author").Order("created_at").
		FindInBatches(&batch, reindexBatchSize, func(tx *gorm.DB, _ int) error {
			for _, t := range batch {
				if err := idx.IndexThread(ctx, t); err != nil {
					logger.Log.Warn("Failed to index thread", logger.WithThreadID(t.ID), zap.Error(err))
					continue
				}
				indexed++
			}
			return ctx.Err()
		}).Error
	if err != nil {
		return indexed, fmt.Errorf("reindex threads: %w", err)
	}

	logger.Log.Info("Reindexed threads", zap.Int("count", indexed))
	return indexed, nil
}
