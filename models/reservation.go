package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reservation bookkeeping is orthogonal to the ledger: reserving stock claims
// part of the available quantity (current - reserved) without moving anything
// physically, so no StockTransaction is written. MRP reads ReservedQty when
// computing availability.

type NewReservation struct {
	PartId        int                `json:"part_id" binding:"required"`
	Qty           decimal.Decimal    `json:"qty" binding:"required"`
	ReferenceType StockReferenceType `json:"reference_type" binding:"required"`
	ReferenceId   int                `json:"reference_id" binding:"required"`
}

// ReserveStock increments the part's reserved quantity. Fails with
// ErrorInsufficientAvailableStock, changing nothing, when the claim exceeds
// current - reserved.
func ReserveStock(ctx context.Context, input *NewReservation) (*InventoryRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !input.Qty.IsPositive() {
		return nil, errors.New("reservation qty must be positive")
	}
	if err := utils.ValidateResourceId[Part](ctx, businessId, input.PartId); err != nil {
		return nil, errors.New("part not found")
	}

	lock, err := utils.PartLock(ctx, businessId, input.PartId, "reservation.go", "ReserveStock")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var rec *InventoryRecord
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		rec, txErr = getOrCreateInventoryRecordTx(tx, businessId, input.PartId)
		if txErr != nil {
			return txErr
		}
		if rec.AvailableQty().LessThan(input.Qty) {
			return utils.ErrorInsufficientAvailableStock
		}
		newReserved := rec.ReservedQty.Add(input.Qty)
		if txErr := tx.Model(rec).Updates(map[string]interface{}{
			"ReservedQty": newReserved,
		}).Error; txErr != nil {
			return txErr
		}
		rec.ReservedQty = newReserved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ReleaseStock decrements the part's reserved quantity, floored at zero.
func ReleaseStock(ctx context.Context, partId int, qty decimal.Decimal) (*InventoryRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !qty.IsPositive() {
		return nil, errors.New("release qty must be positive")
	}
	if err := utils.ValidateResourceId[Part](ctx, businessId, partId); err != nil {
		return nil, errors.New("part not found")
	}

	lock, err := utils.PartLock(ctx, businessId, partId, "reservation.go", "ReleaseStock")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var rec *InventoryRecord
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		rec, txErr = getOrCreateInventoryRecordTx(tx, businessId, partId)
		if txErr != nil {
			return txErr
		}
		newReserved := rec.ReservedQty.Sub(qty)
		if newReserved.IsNegative() {
			newReserved = decimal.Zero
		}
		if txErr := tx.Model(rec).Updates(map[string]interface{}{
			"ReservedQty": newReserved,
		}).Error; txErr != nil {
			return txErr
		}
		rec.ReservedQty = newReserved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
