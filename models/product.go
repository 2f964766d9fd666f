package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
)

// Product is a sellable good built from parts via its bill of materials.
type Product struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Code       string    `gorm:"size:100;not null" json:"code"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	BomItems   []BomItem `gorm:"foreignKey:ProductId" json:"bom_items"`
}

type NewProduct struct {
	Code     string       `json:"code" binding:"required"`
	Name     string       `json:"name" binding:"required"`
	IsActive *bool        `json:"is_active"`
	BomItems []NewBomItem `json:"bom_items"`
}

func (obj Product) GetId() int {
	return obj.ID
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateUnique[Product](ctx, businessId, "code", input.Code, 0); err != nil {
		return nil, err
	}

	var bomItems []BomItem
	for _, item := range input.BomItems {
		bomItem, err := item.toBomItem(ctx, businessId)
		if err != nil {
			return nil, err
		}
		bomItems = append(bomItems, *bomItem)
	}

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	product := Product{
		BusinessId: businessId,
		Code:       input.Code,
		Name:       input.Name,
		IsActive:   isActive,
		BomItems:   bomItems,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if cached, err := utils.RetrieveRedis[Product](id); err == nil && cached != nil && cached.BusinessId == businessId {
		return cached, nil
	}
	product, err := utils.FetchModel[Product](ctx, businessId, id, "BomItems")
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[Product](product, id)
	return product, nil
}
