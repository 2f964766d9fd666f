package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/mfg_backend/models"
	"github.com/shopspring/decimal"
)

// demandKey identifies one aggregated requirement. Demand is kept per sales
// order rather than summed across orders so each suggestion can carry its
// order's due date and urgency.
type demandKey struct {
	PartId       int
	SalesOrderId int
}

type demandRow struct {
	PartId       int
	SalesOrderId int
	GrossQty     decimal.Decimal
	DueDate      *time.Time
}

// lineRequirement explodes one order line through one BOM component. The loss
// rate grosses the requirement up for expected scrap.
func lineRequirement(orderQty decimal.Decimal, qtyPerUnit decimal.Decimal, lossRate decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(lossRate)
	return orderQty.Mul(qtyPerUnit).Mul(factor)
}

// accumulateDemand folds one line requirement into the running aggregation.
// The due date is set from the first contribution for the key; lines of the
// same order share the order's due date, so later contributions agree.
func accumulateDemand(demand map[demandKey]*demandRow, key demandKey, qty decimal.Decimal, dueDate *time.Time) {
	row, exists := demand[key]
	if !exists {
		row = &demandRow{
			PartId:       key.PartId,
			SalesOrderId: key.SalesOrderId,
			GrossQty:     decimal.Zero,
			DueDate:      dueDate,
		}
		demand[key] = row
	}
	row.GrossQty = row.GrossQty.Add(qty)
}

// AggregateRequirements explodes the given orders through their products'
// active BOM lines into gross requirements per part and order. Products
// without BOM lines contribute nothing.
func AggregateRequirements(ctx context.Context, orders []models.SalesOrder) (map[demandKey]*demandRow, error) {
	demand := make(map[demandKey]*demandRow)
	bomCache := make(map[int][]*models.BomItem)

	for i := range orders {
		order := &orders[i]
		for j := range order.Details {
			detail := &order.Details[j]
			bomItems, cached := bomCache[detail.ProductId]
			if !cached {
				var err error
				bomItems, err = models.GetActiveBomItemsForProduct(ctx, detail.ProductId)
				if err != nil {
					return nil, err
				}
				bomCache[detail.ProductId] = bomItems
			}
			for _, item := range bomItems {
				qty := lineRequirement(detail.Qty, item.QtyPerUnit, item.LossRate)
				key := demandKey{PartId: item.PartId, SalesOrderId: order.ID}
				accumulateDemand(demand, key, qty, order.DueDate)
			}
		}
	}
	return demand, nil
}
