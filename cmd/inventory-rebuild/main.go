package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/mmdatafocus/mfg_backend/workflow"
	"github.com/sirupsen/logrus"
)

// Recomputes a part's ledger chain and inventory record from scratch.
// Recovery tool for chains damaged by manual database edits.
func main() {
	businessId := flag.String("business", "", "business id (required)")
	partId := flag.Int("part", 0, "part id to rebuild (required)")
	flag.Parse()

	_ = godotenv.Load()
	logger := config.GetLogger()
	logger.SetLevel(logrus.InfoLevel)

	if *businessId == "" || *partId <= 0 {
		logger.Fatal("-business and -part are required")
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessId)
	summary, err := workflow.RecomputeStockChain(ctx, logger, *partId)
	if err != nil {
		logger.Fatalf("rebuild failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"partId":       summary.PartId,
		"entryCount":   summary.EntryCount,
		"updatedCount": summary.UpdatedCount,
		"finalQty":     summary.FinalQty.String(),
	}).Info("rebuild finished")
}
