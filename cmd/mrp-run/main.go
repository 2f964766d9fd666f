package main

import (
	"context"
	"flag"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/mmdatafocus/mfg_backend/workflow"
	"github.com/sirupsen/logrus"
)

// Runs one MRP calculation from the command line, outside the HTTP server.
// Useful for cron-driven nightly full runs.
func main() {
	businessId := flag.String("business", "", "business id to run for (required)")
	partIds := flag.String("parts", "", "comma-separated part ids to scope the run (optional)")
	salesOrderIds := flag.String("sales-orders", "", "comma-separated sales order ids to scope the run (optional)")
	flag.Parse()

	_ = godotenv.Load()
	logger := config.GetLogger()
	logger.SetLevel(logrus.InfoLevel)

	if *businessId == "" {
		logger.Fatal("-business is required")
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessId)
	input := &workflow.MrpRunInput{
		PartIds:       parseIdList(logger, "parts", *partIds),
		SalesOrderIds: parseIdList(logger, "sales-orders", *salesOrderIds),
	}

	summary, err := workflow.CalculateMrp(ctx, logger, input)
	if err != nil {
		logger.Fatalf("mrp run failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"resultCount":       summary.ResultCount,
		"partsNeedingOrder": summary.PartsNeedingOrder,
		"totalSuggestedQty": summary.TotalSuggestedQty.String(),
		"durationMs":        summary.DurationMs,
	}).Info("mrp run finished")
}

func parseIdList(logger *logrus.Logger, name string, value string) []int {
	if value == "" {
		return nil
	}
	var ids []int
	for _, raw := range strings.Split(value, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			logger.Fatalf("invalid -%s value %q", name, raw)
		}
		ids = append(ids, id)
	}
	return ids
}
