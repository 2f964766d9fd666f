package models_test

import (
	"testing"

	"github.com/mmdatafocus/mfg_backend/models"
)

func TestPurchaseOrderReceiveAtomicityAndOverReceipt(t *testing.T) {
	ctx := setupIntegration(t)

	partA, err := models.CreatePart(ctx, &models.NewPart{Code: "P-020", Name: "Bolt"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	partB, err := models.CreatePart(ctx, &models.NewPart{Code: "P-021", Name: "Nut"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}

	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		OrderNumber: "PO-100",
		Details: []models.NewPurchaseOrderLine{
			{PartId: partA.ID, Qty: mustDec(t, "50")},
			{PartId: partB.ID, Qty: mustDec(t, "5")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	lineA, lineB := po.Details[0], po.Details[1]

	// partial receipt books stock and outstanding together
	po, err = models.ReceivePurchaseOrderItems(ctx, po.ID, []models.ReceiveItemInput{
		{DetailId: lineA.ID, Qty: mustDec(t, "10")},
	})
	if err != nil {
		t.Fatalf("partial receive: %v", err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("status = %s, want PartiallyReceived", po.CurrentStatus)
	}
	rec, err := models.GetInventoryRecord(ctx, partA.ID)
	if err != nil {
		t.Fatalf("GetInventoryRecord: %v", err)
	}
	if !rec.CurrentQty.Equal(mustDec(t, "10")) {
		t.Fatalf("currentQty = %s after receive, want 10", rec.CurrentQty)
	}

	// a receive with any bad line books nothing: no ledger entry, no bump
	_, err = models.ReceivePurchaseOrderItems(ctx, po.ID, []models.ReceiveItemInput{
		{DetailId: lineA.ID, Qty: mustDec(t, "20")},
		{DetailId: lineB.ID, Qty: mustDec(t, "50")},
	})
	if err == nil {
		t.Fatal("over-receipt accepted")
	}
	entriesA, _ := models.GetStockTransactions(ctx, partA.ID, 10)
	if len(entriesA) != 1 {
		t.Fatalf("part A ledger has %d entries after failed receive, want 1", len(entriesA))
	}
	entriesB, _ := models.GetStockTransactions(ctx, partB.ID, 10)
	if len(entriesB) != 0 {
		t.Fatalf("part B ledger has %d entries after failed receive, want 0", len(entriesB))
	}
	po, err = models.GetPurchaseOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	for _, d := range po.Details {
		switch d.ID {
		case lineA.ID:
			if !d.ReceivedQty.Equal(mustDec(t, "10")) {
				t.Fatalf("line A receivedQty = %s after failed receive, want unchanged 10", d.ReceivedQty)
			}
		case lineB.ID:
			if !d.ReceivedQty.IsZero() {
				t.Fatalf("line B receivedQty = %s after failed receive, want 0", d.ReceivedQty)
			}
		}
	}

	// two items against one line are counted together
	_, err = models.ReceivePurchaseOrderItems(ctx, po.ID, []models.ReceiveItemInput{
		{DetailId: lineA.ID, Qty: mustDec(t, "30")},
		{DetailId: lineA.ID, Qty: mustDec(t, "30")},
	})
	if err == nil {
		t.Fatal("cumulative over-receipt accepted")
	}

	// receiving the exact remainder closes the order
	po, err = models.ReceivePurchaseOrderItems(ctx, po.ID, []models.ReceiveItemInput{
		{DetailId: lineA.ID, Qty: mustDec(t, "40")},
		{DetailId: lineB.ID, Qty: mustDec(t, "5")},
	})
	if err != nil {
		t.Fatalf("final receive: %v", err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusReceived {
		t.Fatalf("status = %s, want Received", po.CurrentStatus)
	}
	if _, err = models.ReceivePurchaseOrderItems(ctx, po.ID, []models.ReceiveItemInput{
		{DetailId: lineA.ID, Qty: mustDec(t, "1")},
	}); err == nil {
		t.Fatal("receive against a closed order accepted")
	}
}
