package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRecord is the materialized stock position of one part. CurrentQty
// is a projection of the part's ledger: it always equals the after-quantity of
// the part's latest stock transaction (zero when the part has no ledger yet).
// Every mutation goes through the ledger or the reservation calls; nothing
// writes these columns directly.
type InventoryRecord struct {
	ID               int             `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"uniqueIndex:idx_inventory_records_part,priority:1;not null" json:"business_id"`
	PartId           int             `gorm:"uniqueIndex:idx_inventory_records_part,priority:2;not null" json:"part_id"`
	CurrentQty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_qty"`
	ReservedQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reserved_qty"`
	LastInboundDate  *time.Time      `json:"last_inbound_date"`
	LastOutboundDate *time.Time      `json:"last_outbound_date"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj InventoryRecord) GetId() int {
	return obj.ID
}

// AvailableQty is what reservations may still claim.
func (rec *InventoryRecord) AvailableQty() decimal.Decimal {
	return rec.CurrentQty.Sub(rec.ReservedQty)
}

// getOrCreateInventoryRecordTx loads the part's record with a row lock,
// creating a zeroed record when the part has never moved.
func getOrCreateInventoryRecordTx(tx *gorm.DB, businessId string, partId int) (*InventoryRecord, error) {
	var rec InventoryRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND part_id = ?", businessId, partId).
		First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	rec = InventoryRecord{
		BusinessId:  businessId,
		PartId:      partId,
		CurrentQty:  decimal.Zero,
		ReservedQty: decimal.Zero,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInventoryRecord returns the part's stock record, auto-creating a zeroed
// one so callers never have to special-case unmoved parts.
func GetInventoryRecord(ctx context.Context, partId int) (*InventoryRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Part](ctx, businessId, partId); err != nil {
		return nil, errors.New("part not found")
	}

	db := config.GetDB()
	var rec *InventoryRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		rec, txErr = getOrCreateInventoryRecordTx(tx, businessId, partId)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

const incomingQtySql = `
SELECT COALESCE(SUM(pod.ordered_qty - pod.received_qty), 0)
FROM purchase_order_details pod
JOIN purchase_orders po ON pod.purchase_order_id = po.id
WHERE po.business_id = @businessId
  AND pod.part_id = @partId
  AND po.current_status IN @openStatuses
  AND pod.ordered_qty > pod.received_qty
`

// GetIncomingQty derives the part's on-order quantity from open purchase
// order lines. Incoming is computed, never stored.
func GetIncomingQty(tx *gorm.DB, businessId string, partId int) (decimal.Decimal, error) {
	var incoming decimal.Decimal
	err := tx.Raw(incomingQtySql, map[string]interface{}{
		"businessId":   businessId,
		"partId":       partId,
		"openStatuses": PurchaseOrderOpenStatuses(),
	}).Scan(&incoming).Error
	if err != nil {
		return decimal.Zero, err
	}
	return incoming, nil
}
