package models

// TransactionKind is the closed set of ledger movement types. The delta rule
// in deltaForKind is exhaustive over these values.
type TransactionKind string

const (
	TransactionKindInbound    TransactionKind = "IN"
	TransactionKindOutbound   TransactionKind = "OUT"
	TransactionKindAdjustment TransactionKind = "ADJ"
	TransactionKindTransfer   TransactionKind = "TRF"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindInbound, TransactionKindOutbound, TransactionKindAdjustment, TransactionKindTransfer:
		return true
	}
	return false
}

// StockReferenceType identifies the document that caused a stock movement.
type StockReferenceType string

const (
	StockReferenceTypePurchaseOrder StockReferenceType = "PO"
	StockReferenceTypeSalesOrder    StockReferenceType = "SO"
	StockReferenceTypeStockAudit    StockReferenceType = "AUD"
	StockReferenceTypePicking       StockReferenceType = "PICK"
	StockReferenceTypeManual        StockReferenceType = "MAN"
)

type SalesOrderStatus string

const (
	SalesOrderStatusDraft            SalesOrderStatus = "Draft"
	SalesOrderStatusConfirmed        SalesOrderStatus = "Confirmed"
	SalesOrderStatusPartiallyShipped SalesOrderStatus = "Partially Shipped"
	SalesOrderStatusClosed           SalesOrderStatus = "Closed"
	SalesOrderStatusCancelled        SalesOrderStatus = "Cancelled"
)

func (s SalesOrderStatus) IsValid() bool {
	switch s {
	case SalesOrderStatusDraft, SalesOrderStatusConfirmed, SalesOrderStatusPartiallyShipped,
		SalesOrderStatusClosed, SalesOrderStatusCancelled:
		return true
	}
	return false
}

// SalesOrderActiveStatuses is the status subset whose order lines feed MRP
// demand. Draft orders are intentions, closed/cancelled ones are history.
func SalesOrderActiveStatuses() []SalesOrderStatus {
	return []SalesOrderStatus{SalesOrderStatusConfirmed, SalesOrderStatusPartiallyShipped}
}

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft             PurchaseOrderStatus = "Draft"
	PurchaseOrderStatusOpen              PurchaseOrderStatus = "Open"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "Partially Received"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "Received"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "Cancelled"
)

func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusDraft, PurchaseOrderStatusOpen, PurchaseOrderStatusPartiallyReceived,
		PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

// PurchaseOrderOpenStatuses is the status subset whose undelivered lines count
// as incoming quantity.
func PurchaseOrderOpenStatuses() []PurchaseOrderStatus {
	return []PurchaseOrderStatus{PurchaseOrderStatusOpen, PurchaseOrderStatusPartiallyReceived}
}

// Urgency tiers are business-agreed SLA bounds, evaluated against days until
// the earliest due date: <=0 Critical, <=7 High, <=14 Medium, else Low.
type Urgency string

const (
	UrgencyCritical Urgency = "Critical"
	UrgencyHigh     Urgency = "High"
	UrgencyMedium   Urgency = "Medium"
	UrgencyLow      Urgency = "Low"
)

type MrpResultStatus string

const (
	MrpResultStatusPending   MrpResultStatus = "Pending"
	MrpResultStatusOrdered   MrpResultStatus = "Ordered"
	MrpResultStatusDismissed MrpResultStatus = "Dismissed"
)

func (s MrpResultStatus) IsValid() bool {
	switch s {
	case MrpResultStatusPending, MrpResultStatusOrdered, MrpResultStatusDismissed:
		return true
	}
	return false
}

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusDone       OutboxStatus = "DONE"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

type OutboxAction string

const (
	OutboxActionMrpRecalculate OutboxAction = "MRP_RECALCULATE"
)
