package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockTransaction is one ledger entry: an atomic, timestamped stock movement
// carrying the part's quantity before and after the movement. Entries are
// append-only; the only mutation path is DeleteStockTransaction, which rolls
// the chain back as if the entry never existed. Sequence is the per-part
// ordering key that makes "latest" and rollback well-defined.
type StockTransaction struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	BusinessId      string              `gorm:"index:idx_stock_transactions_chain,priority:1;not null" json:"business_id"`
	Code            string              `gorm:"size:36;not null" json:"code"`
	PartId          int                 `gorm:"index:idx_stock_transactions_chain,priority:2;not null" json:"part_id"`
	Kind            TransactionKind     `gorm:"type:enum('IN','OUT','ADJ','TRF');not null" json:"kind"`
	Qty             decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"qty"`
	BeforeQty       decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"before_qty"`
	AfterQty        decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"after_qty"`
	Sequence        int                 `gorm:"index:idx_stock_transactions_chain,priority:3;not null" json:"sequence"`
	ReferenceType   *StockReferenceType `gorm:"type:enum('PO','SO','AUD','PICK','MAN')" json:"reference_type"`
	ReferenceId     *int                `json:"reference_id"`
	Reason          string              `gorm:"size:255" json:"reason"`
	Notes           string              `gorm:"type:text" json:"notes"`
	PerformedBy     string              `gorm:"size:100" json:"performed_by"`
	TransactionDate time.Time           `gorm:"not null" json:"transaction_date"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj StockTransaction) GetId() int {
	return obj.ID
}

// Delta is the signed effect this entry had on current quantity.
func (st *StockTransaction) Delta() decimal.Decimal {
	return st.AfterQty.Sub(st.BeforeQty)
}

// KindDelta recomputes the signed effect from kind and qty alone, ignoring the
// stored before/after pair. Rebuild tooling uses it to re-derive a chain whose
// stored quantities are suspect.
func (st *StockTransaction) KindDelta() (decimal.Decimal, error) {
	return deltaForKind(st.Kind, st.Qty)
}

type NewStockTransaction struct {
	PartId        int                 `json:"part_id" binding:"required"`
	Kind          TransactionKind     `json:"kind" binding:"required"`
	Qty           decimal.Decimal     `json:"qty"`
	ReferenceType *StockReferenceType `json:"reference_type"`
	ReferenceId   *int                `json:"reference_id"`
	Reason        string              `json:"reason"`
	Notes         string              `json:"notes"`
}

// deltaForKind maps a movement to its signed effect on current quantity.
// Inbound adds, outbound subtracts, adjustment carries its own sign, transfer
// between locations nets to zero at part level.
func deltaForKind(kind TransactionKind, qty decimal.Decimal) (decimal.Decimal, error) {
	switch kind {
	case TransactionKindInbound:
		if !qty.IsPositive() {
			return decimal.Zero, errors.New("inbound qty must be positive")
		}
		return qty, nil
	case TransactionKindOutbound:
		if !qty.IsPositive() {
			return decimal.Zero, errors.New("outbound qty must be positive")
		}
		return qty.Neg(), nil
	case TransactionKindAdjustment:
		if qty.IsZero() {
			return decimal.Zero, errors.New("adjustment qty cannot be zero")
		}
		return qty, nil
	case TransactionKindTransfer:
		if !qty.IsPositive() {
			return decimal.Zero, errors.New("transfer qty must be positive")
		}
		return decimal.Zero, nil
	}
	return decimal.Zero, errors.New("invalid transaction kind")
}

// ApplyStockTransaction appends one ledger entry and updates the part's
// inventory record in the same DB transaction: a reader never observes one
// without the other. Writes against the same part are serialized by a
// per-part lock; an outbound larger than current stock is rejected with
// ErrorInsufficientStock before anything is written.
func ApplyStockTransaction(ctx context.Context, input *NewStockTransaction) (*StockTransaction, *InventoryRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}
	if !input.Kind.IsValid() {
		return nil, nil, errors.New("invalid transaction kind")
	}
	if err := utils.ValidateResourceId[Part](ctx, businessId, input.PartId); err != nil {
		return nil, nil, errors.New("part not found")
	}

	lock, err := utils.PartLock(ctx, businessId, input.PartId, "stockTransaction.go", "ApplyStockTransaction")
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var entry *StockTransaction
	var rec *InventoryRecord
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, rec, txErr = applyStockTransactionTx(tx, ctx, businessId, input)
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, rec, nil
}

// applyStockTransactionTx is the core delta rule. Caller holds the part lock
// and an open DB transaction.
func applyStockTransactionTx(tx *gorm.DB, ctx context.Context, businessId string, input *NewStockTransaction) (*StockTransaction, *InventoryRecord, error) {
	rec, err := getOrCreateInventoryRecordTx(tx, businessId, input.PartId)
	if err != nil {
		return nil, nil, err
	}

	beforeQty := rec.CurrentQty
	delta, err := deltaForKind(input.Kind, input.Qty)
	if err != nil {
		return nil, nil, err
	}
	if input.Kind == TransactionKindOutbound && beforeQty.LessThan(input.Qty) {
		return nil, nil, utils.ErrorInsufficientStock
	}
	afterQty := beforeQty.Add(delta)
	if afterQty.IsNegative() {
		// only reachable via negative adjustment below zero
		return nil, nil, utils.ErrorInsufficientStock
	}

	var lastSequence int
	err = tx.Model(&StockTransaction{}).
		Where("business_id = ? AND part_id = ?", businessId, input.PartId).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&lastSequence).Error
	if err != nil {
		return nil, nil, err
	}

	performedBy, _ := utils.GetUserNameFromContext(ctx)
	now := time.Now().UTC()

	entry := StockTransaction{
		BusinessId:      businessId,
		Code:            uuid.NewString(),
		PartId:          input.PartId,
		Kind:            input.Kind,
		Qty:             input.Qty,
		BeforeQty:       beforeQty,
		AfterQty:        afterQty,
		Sequence:        lastSequence + 1,
		ReferenceType:   input.ReferenceType,
		ReferenceId:     input.ReferenceId,
		Reason:          input.Reason,
		Notes:           input.Notes,
		PerformedBy:     performedBy,
		TransactionDate: now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, nil, err
	}

	updates := map[string]interface{}{
		"CurrentQty": afterQty,
	}
	switch input.Kind {
	case TransactionKindInbound:
		updates["LastInboundDate"] = &now
	case TransactionKindOutbound:
		updates["LastOutboundDate"] = &now
	}
	if err := tx.Model(rec).Updates(updates).Error; err != nil {
		return nil, nil, err
	}
	rec.CurrentQty = afterQty

	return &entry, rec, nil
}

// AdjustInventory sets the part's stock to newQty by posting one adjustment
// entry with the signed difference. Reading the current quantity and posting
// the delta happen under the same part lock, so the read cannot go stale.
func AdjustInventory(ctx context.Context, partId int, newQty decimal.Decimal, reason string, notes string) (*StockTransaction, *InventoryRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}
	if newQty.IsNegative() {
		return nil, nil, errors.New("new quantity cannot be negative")
	}
	if err := utils.ValidateResourceId[Part](ctx, businessId, partId); err != nil {
		return nil, nil, errors.New("part not found")
	}

	lock, err := utils.PartLock(ctx, businessId, partId, "stockTransaction.go", "AdjustInventory")
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var entry *StockTransaction
	var rec *InventoryRecord
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, txErr := getOrCreateInventoryRecordTx(tx, businessId, partId)
		if txErr != nil {
			return txErr
		}
		delta := newQty.Sub(current.CurrentQty)
		if delta.IsZero() {
			// stock already at the requested level; nothing to record
			rec = current
			return nil
		}
		refType := StockReferenceTypeStockAudit
		entry, rec, txErr = applyStockTransactionTx(tx, ctx, businessId, &NewStockTransaction{
			PartId:        partId,
			Kind:          TransactionKindAdjustment,
			Qty:           delta,
			ReferenceType: &refType,
			Reason:        reason,
			Notes:         notes,
		})
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, rec, nil
}

// GetStockTransactions lists a part's ledger, newest first.
func GetStockTransactions(ctx context.Context, partId int, limit int) ([]*StockTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if limit <= 0 {
		limit = config.SearchLimit
	}
	db := config.GetDB()
	var entries []*StockTransaction
	err := db.WithContext(ctx).
		Where("business_id = ? AND part_id = ?", businessId, partId).
		Order("sequence DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// shiftChainAfterDelete removes the deleted entry's delta from every
// subsequent entry of the chain, in place, and returns the part's resulting
// current quantity. It fails with ErrorRollbackUnsupported when the rewritten
// chain would dip below zero: some outbound in the tail was only possible
// because of the entry being deleted.
func shiftChainAfterDelete(deleted *StockTransaction, subsequent []*StockTransaction) (decimal.Decimal, error) {
	delta := deleted.Delta()
	currentQty := deleted.BeforeQty
	for _, e := range subsequent {
		e.BeforeQty = e.BeforeQty.Sub(delta)
		e.AfterQty = e.AfterQty.Sub(delta)
		e.Sequence--
		if e.BeforeQty.IsNegative() || e.AfterQty.IsNegative() {
			return decimal.Zero, utils.ErrorRollbackUnsupported
		}
		currentQty = e.AfterQty
	}
	return currentQty, nil
}

// DeleteStockTransaction removes a ledger entry and restores the part's stock
// to what it would have been had the entry never existed. Deleting the latest
// entry restores its before-quantity directly. For a mid-chain entry the
// subsequent before/after chain is recomputed eagerly in the same DB
// transaction (rejected when STRICT_LEDGER_DELETE is set, or when the
// rewritten chain would go negative).
func DeleteStockTransaction(ctx context.Context, id int) (*StockTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	// existence and ownership check only; the sequence and quantities of this
	// copy may go stale before the part lock is held
	held, err := utils.FetchModel[StockTransaction](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	lock, err := utils.PartLock(ctx, businessId, held.PartId, "stockTransaction.go", "DeleteStockTransaction")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var entry StockTransaction
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// re-read under the lock: another delete on this part may have
		// shifted the chain since the fetch above
		txErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ?", businessId).
			First(&entry, id).Error
		if txErr != nil {
			return utils.ErrorRecordNotFound
		}

		rec, txErr := getOrCreateInventoryRecordTx(tx, businessId, entry.PartId)
		if txErr != nil {
			return txErr
		}

		var subsequent []*StockTransaction
		txErr = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND part_id = ? AND sequence > ?", businessId, entry.PartId, entry.Sequence).
			Order("sequence ASC").
			Find(&subsequent).Error
		if txErr != nil {
			return txErr
		}

		if len(subsequent) > 0 && config.StrictLedgerDelete() {
			return utils.ErrorRollbackUnsupported
		}

		currentQty, txErr := shiftChainAfterDelete(&entry, subsequent)
		if txErr != nil {
			return txErr
		}

		if txErr := tx.Delete(&StockTransaction{}, entry.ID).Error; txErr != nil {
			return txErr
		}
		for _, e := range subsequent {
			txErr = tx.Model(&StockTransaction{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
				"BeforeQty": e.BeforeQty,
				"AfterQty":  e.AfterQty,
				"Sequence":  e.Sequence,
			}).Error
			if txErr != nil {
				return txErr
			}
		}

		return tx.Model(rec).Updates(map[string]interface{}{
			"CurrentQty": currentQty,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
