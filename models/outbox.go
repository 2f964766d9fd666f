package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRecord queues follow-up work committed atomically with the business
// change that caused it. The dispatcher polls, claims, and executes records
// after commit, so a crashed process never loses a trigger.
type OutboxRecord struct {
	ID            int          `gorm:"primaryKey" json:"id"`
	BusinessId    string       `gorm:"type:char(36);index:idx_outbox_claim" json:"business_id"`
	Action        OutboxAction `gorm:"size:32;index:idx_outbox_claim" json:"action"`
	Payload       string       `gorm:"type:text" json:"payload"`
	Status        OutboxStatus `gorm:"size:16;index:idx_outbox_claim" json:"status"`
	Attempts      int          `json:"attempts"`
	NextAttemptAt time.Time    `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time   `json:"locked_at"`
	LockedBy      string       `gorm:"size:64" json:"locked_by"`
	LastError     string       `gorm:"size:1024" json:"last_error"`
	CorrelationId string       `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// MrpTriggerScope narrows a queued recalculation. Empty scope means the whole
// business.
type MrpTriggerScope struct {
	PartIds       []int `json:"part_ids,omitempty"`
	SalesOrderIds []int `json:"sales_order_ids,omitempty"`
}

const outboxMaxAttempts = 5

// EnqueueMrpRecalculation writes the trigger inside the caller's transaction
// so the recalculation is queued if and only if the triggering change commits.
func EnqueueMrpRecalculation(tx *gorm.DB, ctx context.Context, scope MrpTriggerScope) error {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	payload, err := json.Marshal(scope)
	if err != nil {
		return err
	}
	record := &OutboxRecord{
		BusinessId:    businessId,
		Action:        OutboxActionMrpRecalculate,
		Payload:       string(payload),
		Status:        OutboxStatusPending,
		NextAttemptAt: time.Now().UTC(),
		CorrelationId: correlationId,
	}
	return tx.Create(record).Error
}

// ClaimOutboxRecords takes up to limit due records for the given worker. The
// SKIP LOCKED read lets multiple dispatchers poll without contending.
func ClaimOutboxRecords(ctx context.Context, workerId string, limit int) ([]OutboxRecord, error) {
	db := config.GetDB()
	var claimed []OutboxRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []OutboxRecord
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status IN ?", []OutboxStatus{OutboxStatusPending, OutboxStatusFailed}).
			Where("next_attempt_at <= ?", time.Now().UTC()).
			Order("id ASC").
			Limit(limit).
			Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		now := time.Now().UTC()
		ids := make([]int, 0, len(due))
		for _, r := range due {
			ids = append(ids, r.ID)
		}
		if err := tx.Model(&OutboxRecord{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"Status":   OutboxStatusProcessing,
				"LockedAt": now,
				"LockedBy": workerId,
			}).Error; err != nil {
			return err
		}
		for i := range due {
			due[i].Status = OutboxStatusProcessing
			due[i].LockedAt = &now
			due[i].LockedBy = workerId
		}
		claimed = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func CompleteOutboxRecord(ctx context.Context, id int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"Status":    OutboxStatusDone,
			"LastError": "",
		}).Error
}

// FailOutboxRecord schedules a retry with exponential backoff, or parks the
// record as DEAD once attempts are exhausted.
func FailOutboxRecord(ctx context.Context, record *OutboxRecord, cause error) error {
	attempts := record.Attempts + 1
	status := OutboxStatusFailed
	nextAttempt := time.Now().UTC().Add(outboxBackoff(attempts))
	if attempts >= outboxMaxAttempts {
		status = OutboxStatusDead
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"Status":        status,
			"Attempts":      attempts,
			"NextAttemptAt": nextAttempt,
			"LastError":     cause.Error(),
		}).Error
}

func outboxBackoff(attempts int) time.Duration {
	backoff := 5 * time.Second
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return backoff
}
