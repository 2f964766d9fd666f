package workflow

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/models"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("mfg-backend")

type MrpRunInput struct {
	PartIds       []int `json:"part_ids"`
	SalesOrderIds []int `json:"sales_order_ids"`
	ClearExisting *bool `json:"clear_existing"`
}

type MrpRunSummary struct {
	ResultCount       int                    `json:"result_count"`
	PartsNeedingOrder int                    `json:"parts_needing_order"`
	TotalSuggestedQty decimal.Decimal        `json:"total_suggested_qty"`
	CountsByUrgency   map[models.Urgency]int `json:"counts_by_urgency"`
	CalculatedAt      time.Time              `json:"calculated_at"`
	DurationMs        int64                  `json:"duration_ms"`
}

// CalculateMrp runs one planning cycle: aggregate demand for the scoped sales
// orders, net per part against a shared stock snapshot, classify urgency, and
// replace the in-scope results in a single transaction. A failed run leaves
// prior results untouched.
func CalculateMrp(ctx context.Context, logger *logrus.Logger, input *MrpRunInput) (*MrpRunSummary, error) {
	startedAt := time.Now().UTC()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	ctx, span := tracer.Start(ctx, "CalculateMrp")
	defer span.End()
	span.SetAttributes(attribute.String("businessId", businessId))
	if input == nil {
		input = &MrpRunInput{}
	}
	// scope ids must exist; a typo'd part id silently matching nothing would
	// look like a clean zero-demand run
	if len(input.PartIds) > 0 {
		if err := utils.ValidateResourcesId[models.Part](ctx, businessId, input.PartIds); err != nil {
			return nil, err
		}
	}
	if len(input.SalesOrderIds) > 0 {
		if err := utils.ValidateResourcesId[models.SalesOrder](ctx, businessId, input.SalesOrderIds); err != nil {
			return nil, err
		}
	}

	// One run at a time per business. Concurrent runs would race on the
	// delete-then-insert of the shared result scope.
	lock, err := utils.BusinessLock(ctx, businessId, "mrpRunLock", "mrpWorkflow.go", "CalculateMrp")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	orders, err := models.GetActiveSalesOrders(ctx, input.SalesOrderIds)
	if err != nil {
		return nil, err
	}
	demand, err := AggregateRequirements(ctx, orders)
	if err != nil {
		return nil, err
	}
	if len(input.PartIds) > 0 {
		inScope := make(map[int]bool, len(input.PartIds))
		for _, id := range input.PartIds {
			inScope[id] = true
		}
		for key := range demand {
			if !inScope[key.PartId] {
				delete(demand, key)
			}
		}
	}

	keys := make([]demandKey, 0, len(demand))
	partIdSet := make(map[int]bool)
	for key := range demand {
		keys = append(keys, key)
		partIdSet[key.PartId] = true
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PartId != keys[j].PartId {
			return keys[i].PartId < keys[j].PartId
		}
		return keys[i].SalesOrderId < keys[j].SalesOrderId
	})

	demandPartIds := make([]int, 0, len(partIdSet))
	for id := range partIdSet {
		demandPartIds = append(demandPartIds, id)
	}
	sort.Ints(demandPartIds)

	parts, err := models.GetActiveParts(ctx, demandPartIds)
	if err != nil {
		return nil, err
	}
	partById := make(map[int]*models.Part, len(parts))
	for _, p := range parts {
		partById[p.ID] = p
	}

	clearExisting := true
	if input.ClearExisting != nil {
		clearExisting = *input.ClearExisting
	}

	summary := &MrpRunSummary{
		TotalSuggestedQty: decimal.Zero,
		CountsByUrgency:   make(map[models.Urgency]int),
		CalculatedAt:      startedAt,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		positions := make(map[int]StockPosition)
		results := make([]models.MrpResult, 0, len(keys))

		for _, key := range keys {
			part, active := partById[key.PartId]
			if !active {
				continue
			}
			position, snapshotted := positions[key.PartId]
			if !snapshotted {
				var txErr error
				position, txErr = snapshotStockPosition(tx, businessId, part)
				if txErr != nil {
					return txErr
				}
				positions[key.PartId] = position
			}

			row := demand[key]
			net, suggested := NetAndSuggest(row.GrossQty, position)
			urgency := ClassifyUrgency(row.DueDate, startedAt)

			// an order date only makes sense when something needs ordering
			var suggestedOrderDate *time.Time
			if suggested.IsPositive() {
				suggestedOrderDate = SuggestOrderDate(row.DueDate, part.LeadTimeDays)
			}

			result := models.MrpResult{
				BusinessId:         businessId,
				PartId:             key.PartId,
				SalesOrderId:       key.SalesOrderId,
				GrossQty:           row.GrossQty.Round(0),
				NetQty:             net.Round(0),
				CurrentQty:         position.CurrentQty,
				ReservedQty:        position.ReservedQty,
				IncomingQty:        position.IncomingQty,
				SafetyStock:        position.SafetyStock,
				SuggestedOrderQty:  suggested,
				SuggestedOrderDate: suggestedOrderDate,
				DueDate:            row.DueDate,
				Urgency:            urgency,
				Status:             models.MrpResultStatusPending,
				CalculatedAt:       startedAt,
			}
			results = append(results, result)

			summary.CountsByUrgency[urgency]++
			if suggested.IsPositive() {
				summary.TotalSuggestedQty = summary.TotalSuggestedQty.Add(suggested)
			}
		}

		needingOrder := make(map[int]bool)
		for i := range results {
			if results[i].SuggestedOrderQty.IsPositive() {
				needingOrder[results[i].PartId] = true
			}
		}
		summary.ResultCount = len(results)
		summary.PartsNeedingOrder = len(needingOrder)

		scopeParts := input.PartIds
		scopeOrders := input.SalesOrderIds
		if !clearExisting {
			// Keep rows outside the freshly computed parts; still replace the
			// computed ones so reruns stay idempotent.
			if len(demandPartIds) == 0 {
				return nil
			}
			scopeParts = demandPartIds
		}
		return models.ReplaceMrpResultsTx(tx, businessId, scopeParts, scopeOrders, results)
	})
	if err != nil {
		return nil, err
	}

	summary.DurationMs = time.Since(startedAt).Milliseconds()
	logger.WithFields(logrus.Fields{
		"businessId":        businessId,
		"resultCount":       summary.ResultCount,
		"partsNeedingOrder": summary.PartsNeedingOrder,
		"durationMs":        summary.DurationMs,
	}).Info("mrp run completed")
	return summary, nil
}

// snapshotStockPosition reads the supply picture for one part inside the run
// transaction. A part with no inventory record yet counts as zero stock.
func snapshotStockPosition(tx *gorm.DB, businessId string, part *models.Part) (StockPosition, error) {
	position := StockPosition{
		CurrentQty:  decimal.Zero,
		ReservedQty: decimal.Zero,
		SafetyStock: part.SafetyStock,
		MinOrderQty: part.MinOrderQty,
	}

	var rec models.InventoryRecord
	err := tx.
		Where("business_id = ?", businessId).
		Where("part_id = ?", part.ID).
		First(&rec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return position, err
	}
	if err == nil {
		position.CurrentQty = rec.CurrentQty
		position.ReservedQty = rec.ReservedQty
	}

	incoming, err := models.GetIncomingQty(tx, businessId, part.ID)
	if err != nil {
		return position, err
	}
	position.IncomingQty = incoming
	return position, nil
}
