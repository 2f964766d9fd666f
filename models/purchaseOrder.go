package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	ID            int                   `gorm:"primaryKey" json:"id"`
	BusinessId    string                `gorm:"type:char(36);index" json:"business_id"`
	OrderNumber   string                `gorm:"size:64;index" json:"order_number"`
	SupplierName  string                `gorm:"size:255" json:"supplier_name"`
	OrderDate     time.Time             `json:"order_date"`
	ExpectedDate  *time.Time            `json:"expected_date"`
	CurrentStatus PurchaseOrderStatus   `gorm:"size:32" json:"current_status"`
	Details       []PurchaseOrderDetail `json:"details"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type PurchaseOrderDetail struct {
	ID              int             `gorm:"primaryKey" json:"id"`
	BusinessId      string          `gorm:"type:char(36);index" json:"business_id"`
	PurchaseOrderId int             `gorm:"index" json:"purchase_order_id"`
	PartId          int             `gorm:"index" json:"part_id"`
	Name            string          `gorm:"size:255" json:"name"`
	OrderedQty      decimal.Decimal `gorm:"type:decimal(20,4)" json:"ordered_qty"`
	ReceivedQty     decimal.Decimal `gorm:"type:decimal(20,4)" json:"received_qty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OutstandingQty is the undelivered remainder counted as incoming supply.
func (d *PurchaseOrderDetail) OutstandingQty() decimal.Decimal {
	outstanding := d.OrderedQty.Sub(d.ReceivedQty)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

type NewPurchaseOrder struct {
	OrderNumber  string                 `json:"order_number" binding:"required"`
	SupplierName string                 `json:"supplier_name"`
	OrderDate    *time.Time             `json:"order_date"`
	ExpectedDate *time.Time             `json:"expected_date"`
	Details      []NewPurchaseOrderLine `json:"details" binding:"required,min=1,dive"`
}

type NewPurchaseOrderLine struct {
	PartId int             `json:"part_id" binding:"required"`
	Qty    decimal.Decimal `json:"qty" binding:"required"`
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
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

	po := &PurchaseOrder{
		BusinessId:    businessId,
		OrderNumber:   input.OrderNumber,
		SupplierName:  input.SupplierName,
		OrderDate:     orderDate,
		ExpectedDate:  input.ExpectedDate,
		CurrentStatus: PurchaseOrderStatusOpen,
	}
	for _, line := range input.Details {
		if !line.Qty.IsPositive() {
			return nil, fmt.Errorf("qty for part %d must be positive", line.PartId)
		}
		part, err := GetPart(ctx, line.PartId)
		if err != nil {
			return nil, fmt.Errorf("part %d not found", line.PartId)
		}
		po.Details = append(po.Details, PurchaseOrderDetail{
			BusinessId:  businessId,
			PartId:      line.PartId,
			Name:        part.Name,
			OrderedQty:  line.Qty,
			ReceivedQty: decimal.Zero,
		})
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(po).Error; txErr != nil {
			return txErr
		}
		if config.MrpAutoRecalculate() {
			partIds := make([]int, 0, len(po.Details))
			for _, d := range po.Details {
				partIds = append(partIds, d.PartId)
			}
			return EnqueueMrpRecalculation(tx, ctx, MrpTriggerScope{PartIds: utils.UniqueSlice(partIds)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

type ReceiveItemInput struct {
	DetailId int             `json:"detail_id" binding:"required"`
	Qty      decimal.Decimal `json:"qty" binding:"required"`
}

// ReceivePurchaseOrderItems books delivered quantities. Every received line
// posts an inbound ledger entry referencing the purchase order, bumps the
// line's received quantity and advances the order status, all in one DB
// transaction: incoming supply and on-hand stock move together, so a failed
// receive leaves both sides untouched. Receiving beyond a line's ordered
// quantity is rejected.
func ReceivePurchaseOrderItems(ctx context.Context, purchaseOrderId int, items []ReceiveItemInput) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(items) == 0 {
		return nil, errors.New("no items to receive")
	}

	po, err := utils.FetchModel[PurchaseOrder](ctx, businessId, purchaseOrderId, "Details")
	if err != nil {
		return nil, err
	}
	switch po.CurrentStatus {
	case PurchaseOrderStatusOpen, PurchaseOrderStatusPartiallyReceived:
	default:
		return nil, fmt.Errorf("purchase order %d is %s and cannot receive items", po.ID, po.CurrentStatus)
	}

	detailById := make(map[int]*PurchaseOrderDetail, len(po.Details))
	for i := range po.Details {
		detailById[po.Details[i].ID] = &po.Details[i]
	}

	pending := make(map[int]decimal.Decimal, len(items))
	for _, item := range items {
		detail, found := detailById[item.DetailId]
		if !found {
			return nil, fmt.Errorf("detail %d does not belong to purchase order %d", item.DetailId, po.ID)
		}
		if !item.Qty.IsPositive() {
			return nil, fmt.Errorf("received qty for detail %d must be positive", item.DetailId)
		}
		total := pending[item.DetailId].Add(item.Qty)
		if total.GreaterThan(detail.OutstandingQty()) {
			return nil, fmt.Errorf("received qty %s for detail %d exceeds outstanding %s",
				total, item.DetailId, detail.OutstandingQty())
		}
		pending[item.DetailId] = total
	}

	// one lock per distinct part, held across the whole receive; sorted
	// acquisition keeps concurrent receives from deadlocking
	partIdSet := make(map[int]bool, len(items))
	for _, item := range items {
		partIdSet[detailById[item.DetailId].PartId] = true
	}
	partIds := make([]int, 0, len(partIdSet))
	for id := range partIdSet {
		partIds = append(partIds, id)
	}
	sort.Ints(partIds)
	for _, partId := range partIds {
		lock, err := utils.PartLock(ctx, businessId, partId, "purchaseOrder.go", "ReceivePurchaseOrderItems")
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.Release(ctx) }()
	}

	refType := StockReferenceTypePurchaseOrder
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			detail := detailById[item.DetailId]
			refId := po.ID
			_, _, txErr := applyStockTransactionTx(tx, ctx, businessId, &NewStockTransaction{
				PartId:        detail.PartId,
				Kind:          TransactionKindInbound,
				Qty:           item.Qty,
				ReferenceType: &refType,
				ReferenceId:   &refId,
				Reason:        "purchase order receipt",
			})
			if txErr != nil {
				return txErr
			}

			detail.ReceivedQty = detail.ReceivedQty.Add(item.Qty)
			if txErr := tx.Model(detail).Updates(map[string]interface{}{
				"ReceivedQty": detail.ReceivedQty,
			}).Error; txErr != nil {
				return txErr
			}
		}

		allReceived := true
		for i := range po.Details {
			if po.Details[i].OutstandingQty().IsPositive() {
				allReceived = false
				break
			}
		}
		newStatus := PurchaseOrderStatusPartiallyReceived
		if allReceived {
			newStatus = PurchaseOrderStatusReceived
		}
		if newStatus != po.CurrentStatus {
			if txErr := tx.Model(po).Updates(map[string]interface{}{
				"CurrentStatus": newStatus,
			}).Error; txErr != nil {
				return txErr
			}
			po.CurrentStatus = newStatus
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details")
}

func GetPurchaseOrders(ctx context.Context) ([]*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[PurchaseOrder](ctx, businessId, "Details")
}
