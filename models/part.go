package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
)

// Part is a purchasable component. Code is immutable once created; the
// planning fields (safety stock, lead time, min order qty) are editable.
type Part struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	Code          string          `gorm:"size:100;not null" json:"code"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	UnitOfMeasure string          `gorm:"size:50;default:'pcs'" json:"unit_of_measure"`
	SafetyStock   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"safety_stock"`
	LeadTimeDays  int             `gorm:"default:0" json:"lead_time_days"`
	MinOrderQty   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_order_qty"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPart struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	SafetyStock   decimal.Decimal `json:"safety_stock"`
	LeadTimeDays  int             `json:"lead_time_days"`
	MinOrderQty   decimal.Decimal `json:"min_order_qty"`
	IsActive      *bool           `json:"is_active"`
}

func (obj Part) GetId() int {
	return obj.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewPart) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Part](ctx, businessId, "code", input.Code, id); err != nil {
		return err
	}
	if input.SafetyStock.IsNegative() {
		return errors.New("safety stock cannot be negative")
	}
	if input.LeadTimeDays < 0 {
		return errors.New("lead time cannot be negative")
	}
	if input.MinOrderQty.IsNegative() {
		return errors.New("min order qty cannot be negative")
	}
	return nil
}

func CreatePart(ctx context.Context, input *NewPart) (*Part, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	unit := input.UnitOfMeasure
	if unit == "" {
		unit = "pcs"
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	part := Part{
		BusinessId:    businessId,
		Code:          input.Code,
		Name:          input.Name,
		UnitOfMeasure: unit,
		SafetyStock:   input.SafetyStock,
		LeadTimeDays:  input.LeadTimeDays,
		MinOrderQty:   input.MinOrderQty,
		IsActive:      isActive,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// UpdatePart edits the planner fields. Code is identity and never changes.
func UpdatePart(ctx context.Context, id int, input *NewPart) (*Part, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	part, err := utils.FetchModel[Part](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if input.Code != "" && input.Code != part.Code {
		return nil, errors.New("part code cannot be changed")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(part).Updates(map[string]interface{}{
		"Name":          input.Name,
		"UnitOfMeasure": input.UnitOfMeasure,
		"SafetyStock":   input.SafetyStock,
		"LeadTimeDays":  input.LeadTimeDays,
		"MinOrderQty":   input.MinOrderQty,
		"IsActive":      input.IsActive,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedis[Part](id)
	return part, nil
}

func GetPart(ctx context.Context, id int) (*Part, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if cached, err := utils.RetrieveRedis[Part](id); err == nil && cached != nil && cached.BusinessId == businessId {
		return cached, nil
	}
	part, err := utils.FetchModel[Part](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[Part](part, id)
	return part, nil
}

// GetActiveParts returns active parts, optionally filtered by id.
func GetActiveParts(ctx context.Context, partIds []int) ([]*Part, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("business_id = ? AND is_active = true", businessId)
	if len(partIds) > 0 {
		dbCtx = dbCtx.Where("id IN ?", utils.UniqueSlice(partIds))
	}
	var parts []*Part
	if err := dbCtx.Order("code").Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}
