package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalesOrder struct {
	ID            int                `gorm:"primaryKey" json:"id"`
	BusinessId    string             `gorm:"type:char(36);index" json:"business_id"`
	OrderNumber   string             `gorm:"size:64;index" json:"order_number"`
	CustomerName  string             `gorm:"size:255" json:"customer_name"`
	OrderDate     time.Time          `json:"order_date"`
	DueDate       *time.Time         `json:"due_date"`
	CurrentStatus SalesOrderStatus   `gorm:"size:32" json:"current_status"`
	Details       []SalesOrderDetail `json:"details"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type SalesOrderDetail struct {
	ID           int             `gorm:"primaryKey" json:"id"`
	BusinessId   string          `gorm:"type:char(36);index" json:"business_id"`
	SalesOrderId int             `gorm:"index" json:"sales_order_id"`
	ProductId    int             `json:"product_id"`
	Name         string          `gorm:"size:255" json:"name"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type NewSalesOrder struct {
	OrderNumber  string              `json:"order_number" binding:"required"`
	CustomerName string              `json:"customer_name"`
	OrderDate    *time.Time          `json:"order_date"`
	DueDate      *time.Time          `json:"due_date"`
	Details      []NewSalesOrderLine `json:"details" binding:"required,min=1,dive"`
}

type NewSalesOrderLine struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
}

func CreateSalesOrder(ctx context.Context, input *NewSalesOrder) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	orderDate := time.Now().UTC()
	if input.OrderDate != nil {
		orderDate = *input.OrderDate
	}

	so := &SalesOrder{
		BusinessId:    businessId,
		OrderNumber:   input.OrderNumber,
		CustomerName:  input.CustomerName,
		OrderDate:     orderDate,
		DueDate:       input.DueDate,
		CurrentStatus: SalesOrderStatusConfirmed,
	}
	for _, line := range input.Details {
		if !line.Qty.IsPositive() {
			return nil, fmt.Errorf("qty for product %d must be positive", line.ProductId)
		}
		product, err := GetProduct(ctx, line.ProductId)
		if err != nil {
			return nil, fmt.Errorf("product %d not found", line.ProductId)
		}
		so.Details = append(so.Details, SalesOrderDetail{
			BusinessId: businessId,
			ProductId:  line.ProductId,
			Name:       product.Name,
			Qty:        line.Qty,
		})
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(so).Error; txErr != nil {
			return txErr
		}
		if config.MrpAutoRecalculate() {
			return EnqueueMrpRecalculation(tx, ctx, MrpTriggerScope{SalesOrderIds: []int{so.ID}})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

// UpdateSalesOrderStatus moves the order between lifecycle states. Any change
// in or out of an active status shifts demand, so a recalculation is queued.
func UpdateSalesOrderStatus(ctx context.Context, id int, status SalesOrderStatus) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid sales order status: %s", status)
	}

	so, err := utils.FetchModel[SalesOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}
	if so.CurrentStatus == status {
		return so, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(so).Updates(map[string]interface{}{
			"CurrentStatus": status,
		}).Error; txErr != nil {
			return txErr
		}
		so.CurrentStatus = status
		if config.MrpAutoRecalculate() {
			return EnqueueMrpRecalculation(tx, ctx, MrpTriggerScope{SalesOrderIds: []int{so.ID}})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[SalesOrder](ctx, businessId, id, "Details")
}

func GetSalesOrders(ctx context.Context) ([]*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[SalesOrder](ctx, businessId, "Details")
}

// GetActiveSalesOrders returns demand-bearing orders, optionally narrowed to
// a set of order ids.
func GetActiveSalesOrders(ctx context.Context, salesOrderIds []int) ([]SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	query := db.WithContext(ctx).
		Preload("Details").
		Where("business_id = ?", businessId).
		Where("current_status IN ?", SalesOrderActiveStatuses())
	if len(salesOrderIds) > 0 {
		query = query.Where("id IN ?", salesOrderIds)
	}
	var orders []SalesOrder
	if err := query.Order("id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
