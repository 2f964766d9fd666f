package workflow

import (
	"context"
	"errors"
	"sort"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/models"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRebuildSummary struct {
	PartId       int             `json:"part_id"`
	EntryCount   int             `json:"entry_count"`
	UpdatedCount int             `json:"updated_count"`
	FinalQty     decimal.Decimal `json:"final_qty"`
}

// RecomputeStockChain re-walks a part's ledger from the beginning, re-deriving
// sequence and the before/after pair of every entry from kind and qty, then
// sets the inventory record to the final quantity. Repair tool for chains
// damaged by manual intervention; a healthy chain comes out unchanged.
func RecomputeStockChain(ctx context.Context, logger *logrus.Logger, partId int) (*StockRebuildSummary, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[models.Part](ctx, businessId, partId); err != nil {
		return nil, errors.New("part not found")
	}

	lock, err := utils.PartLock(ctx, businessId, partId, "stockRebuild.go", "RecomputeStockChain")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	summary := &StockRebuildSummary{PartId: partId}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []*models.StockTransaction
		txErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND part_id = ?", businessId, partId).
			Order("sequence ASC, id ASC").
			Find(&entries).Error
		if txErr != nil {
			return txErr
		}

		// Sequence ties can exist in a damaged chain; transaction date then id
		// is the best available ordering for the re-walk.
		sort.SliceStable(entries, func(i, j int) bool {
			if !entries[i].TransactionDate.Equal(entries[j].TransactionDate) {
				return entries[i].TransactionDate.Before(entries[j].TransactionDate)
			}
			return entries[i].ID < entries[j].ID
		})

		running := decimal.Zero
		for i, e := range entries {
			delta, deltaErr := e.KindDelta()
			if deltaErr != nil {
				return deltaErr
			}
			beforeQty := running
			afterQty := running.Add(delta)
			if afterQty.IsNegative() {
				return utils.ErrorRollbackUnsupported
			}
			sequence := i + 1

			if !e.BeforeQty.Equal(beforeQty) || !e.AfterQty.Equal(afterQty) || e.Sequence != sequence {
				txErr = tx.Model(&models.StockTransaction{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
					"BeforeQty": beforeQty,
					"AfterQty":  afterQty,
					"Sequence":  sequence,
				}).Error
				if txErr != nil {
					return txErr
				}
				summary.UpdatedCount++
			}
			running = afterQty
		}

		summary.EntryCount = len(entries)
		summary.FinalQty = running

		return tx.Model(&models.InventoryRecord{}).
			Where("business_id = ? AND part_id = ?", businessId, partId).
			Updates(map[string]interface{}{
				"CurrentQty": running,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"businessId":   businessId,
		"partId":       partId,
		"entryCount":   summary.EntryCount,
		"updatedCount": summary.UpdatedCount,
		"finalQty":     summary.FinalQty.String(),
	}).Info("stock chain recomputed")
	return summary, nil
}
