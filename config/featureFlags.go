package config

import (
	"os"
	"strings"
)

// StrictLedgerDelete restricts ledger deletion to the most recent entry of a
// part. With the flag off (default), deleting a mid-chain entry triggers an
// eager recompute of the subsequent before/after chain.
//
// Set via env:
// - STRICT_LEDGER_DELETE=true
func StrictLedgerDelete() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_LEDGER_DELETE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// MrpAutoRecalculate controls whether sales-order mutations enqueue an MRP
// recalculation outbox record.
//
// Set via env:
// - MRP_AUTO_RECALCULATE=false to disable (enabled by default)
func MrpAutoRecalculate() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("MRP_AUTO_RECALCULATE")))
	if v == "" {
		return true
	}
	return v != "0" && v != "false" && v != "no" && v != "n"
}
