package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MrpResult is one planning suggestion: a part short for a sales order, the
// stock snapshot the netting saw, and the order the planner should place.
// Results are replaced wholesale on every run for the run's scope.
type MrpResult struct {
	ID           int    `gorm:"primaryKey" json:"id"`
	BusinessId   string `gorm:"type:char(36);index:idx_mrp_results_scope" json:"business_id"`
	PartId       int    `gorm:"index:idx_mrp_results_scope" json:"part_id"`
	SalesOrderId int    `gorm:"index" json:"sales_order_id"`

	GrossQty decimal.Decimal `gorm:"type:decimal(20,4)" json:"gross_qty"`
	NetQty   decimal.Decimal `gorm:"type:decimal(20,4)" json:"net_qty"`

	CurrentQty  decimal.Decimal `gorm:"type:decimal(20,4)" json:"current_qty"`
	ReservedQty decimal.Decimal `gorm:"type:decimal(20,4)" json:"reserved_qty"`
	IncomingQty decimal.Decimal `gorm:"type:decimal(20,4)" json:"incoming_qty"`
	SafetyStock decimal.Decimal `gorm:"type:decimal(20,4)" json:"safety_stock"`

	SuggestedOrderQty  decimal.Decimal `gorm:"type:decimal(20,4)" json:"suggested_order_qty"`
	SuggestedOrderDate *time.Time      `json:"suggested_order_date"`
	DueDate            *time.Time      `json:"due_date"`
	Urgency            Urgency         `gorm:"size:16" json:"urgency"`
	Status             MrpResultStatus `gorm:"size:16" json:"status"`

	CalculatedAt time.Time `json:"calculated_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ReplaceMrpResultsTx deletes the prior results in scope and inserts the new
// batch inside the caller's transaction. Empty partIds and salesOrderIds mean
// the run covered everything, so all of the business's results are replaced.
func ReplaceMrpResultsTx(tx *gorm.DB, businessId string, partIds []int, salesOrderIds []int, results []MrpResult) error {
	query := tx.Where("business_id = ?", businessId)
	if len(partIds) > 0 {
		query = query.Where("part_id IN ?", partIds)
	}
	if len(salesOrderIds) > 0 {
		query = query.Where("sales_order_id IN ?", salesOrderIds)
	}
	if err := query.Delete(&MrpResult{}).Error; err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	return tx.Create(&results).Error
}

type MrpResultFilter struct {
	PartId       *int
	SalesOrderId *int
	Urgency      *Urgency
	Status       *MrpResultStatus
}

func GetMrpResults(ctx context.Context, filter *MrpResultFilter) ([]MrpResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	query := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter != nil {
		if filter.PartId != nil {
			query = query.Where("part_id = ?", *filter.PartId)
		}
		if filter.SalesOrderId != nil {
			query = query.Where("sales_order_id = ?", *filter.SalesOrderId)
		}
		if filter.Urgency != nil {
			query = query.Where("urgency = ?", *filter.Urgency)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
	}
	var results []MrpResult
	err := query.Order("part_id ASC, sales_order_id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func UpdateMrpResultStatus(ctx context.Context, id int, status MrpResultStatus) (*MrpResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !status.IsValid() {
		return nil, errors.New("invalid mrp result status")
	}
	result, err := utils.FetchModel[MrpResult](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(result).Updates(map[string]interface{}{
		"Status": status,
	}).Error; err != nil {
		return nil, err
	}
	result.Status = status
	return result, nil
}
