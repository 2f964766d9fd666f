package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/mfg_backend/appctx"
	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/models"
	"github.com/sirupsen/logrus"
)

const (
	dispatcherPollInterval = 2 * time.Second
	dispatcherBatchSize    = 10
)

// OutboxDispatcher polls the outbox table and executes queued actions in
// process. Records stay claimable by other instances through SKIP LOCKED, so
// running several dispatchers is safe.
type OutboxDispatcher struct {
	workerId string
	logger   *logrus.Logger
}

func NewOutboxDispatcher(logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		workerId: uuid.NewString(),
		logger:   logger,
	}
}

// Run polls until the context is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatcherPollInterval)
	defer ticker.Stop()

	d.logger.WithField("workerId", d.workerId).Info("outbox dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.WithField("workerId", d.workerId).Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain claims and processes due records until the queue is empty or a claim
// fails.
func (d *OutboxDispatcher) drain(ctx context.Context) {
	for {
		records, err := models.ClaimOutboxRecords(ctx, d.workerId, dispatcherBatchSize)
		if err != nil {
			config.LogError(d.logger, "outboxDispatcher.go", "drain", "claim", nil, err)
			return
		}
		if len(records) == 0 {
			return
		}
		for i := range records {
			d.process(ctx, &records[i])
		}
	}
}

func (d *OutboxDispatcher) process(ctx context.Context, record *models.OutboxRecord) {
	err := d.execute(ctx, record)
	if err != nil {
		config.LogError(d.logger, "outboxDispatcher.go", "process", "execute", map[string]interface{}{
			"recordId": record.ID,
			"action":   record.Action,
			"attempts": record.Attempts,
		}, err)
		if failErr := models.FailOutboxRecord(ctx, record, err); failErr != nil {
			config.LogError(d.logger, "outboxDispatcher.go", "process", "markFailed", nil, failErr)
		}
		return
	}
	if doneErr := models.CompleteOutboxRecord(ctx, record.ID); doneErr != nil {
		config.LogError(d.logger, "outboxDispatcher.go", "process", "markDone", nil, doneErr)
	}
}

func (d *OutboxDispatcher) execute(ctx context.Context, record *models.OutboxRecord) error {
	// Rebuild the request context the record was enqueued under.
	runCtx := appctx.Set(ctx, appctx.ContextKeyBusinessId, record.BusinessId)
	if record.CorrelationId != "" {
		runCtx = appctx.Set(runCtx, appctx.ContextKeyCorrelationId, record.CorrelationId)
	}

	switch record.Action {
	case models.OutboxActionMrpRecalculate:
		var scope models.MrpTriggerScope
		if err := json.Unmarshal([]byte(record.Payload), &scope); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		_, err := CalculateMrp(runCtx, d.logger, &MrpRunInput{
			PartIds:       scope.PartIds,
			SalesOrderIds: scope.SalesOrderIds,
		})
		return err
	default:
		return fmt.Errorf("unknown outbox action: %s", record.Action)
	}
}
