package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
)

// BomItem is one (product, part) line of a bill of materials. LossRate is the
// fractional scrap allowance: demand per ordered product unit is
// qty_per_unit * (1 + loss_rate). Inactive lines are excluded from planning.
type BomItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	PartId     int             `gorm:"index;not null" json:"part_id"`
	QtyPerUnit decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_per_unit"`
	LossRate   decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"loss_rate"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBomItem struct {
	PartId     int             `json:"part_id" binding:"required"`
	QtyPerUnit decimal.Decimal `json:"qty_per_unit" binding:"required"`
	LossRate   decimal.Decimal `json:"loss_rate"`
	IsActive   *bool           `json:"is_active"`
}

func (input *NewBomItem) toBomItem(ctx context.Context, businessId string) (*BomItem, error) {
	if err := utils.ValidateResourceId[Part](ctx, businessId, input.PartId); err != nil {
		return nil, errors.New("part not found")
	}
	if !input.QtyPerUnit.IsPositive() {
		return nil, errors.New("qty per unit must be positive")
	}
	if input.LossRate.IsNegative() {
		return nil, errors.New("loss rate cannot be negative")
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	return &BomItem{
		BusinessId: businessId,
		PartId:     input.PartId,
		QtyPerUnit: input.QtyPerUnit,
		LossRate:   input.LossRate,
		IsActive:   isActive,
	}, nil
}

// AddBomItem appends a line to an existing product's bill of materials.
func AddBomItem(ctx context.Context, productId int, input *NewBomItem) (*BomItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Product](ctx, businessId, productId); err != nil {
		return nil, errors.New("product not found")
	}
	bomItem, err := input.toBomItem(ctx, businessId)
	if err != nil {
		return nil, err
	}
	bomItem.ProductId = productId

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(bomItem).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedis[Product](productId)
	return bomItem, nil
}

func GetActiveBomItemsForProduct(ctx context.Context, productId int) ([]*BomItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var items []*BomItem
	err := db.WithContext(ctx).
		Where("business_id = ? AND product_id = ? AND is_active = true", businessId, productId).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
