package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/models"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/shopspring/decimal"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "mfg_test")
	t.Setenv("STRICT_LEDGER_DELETE", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx := context.Background()
	ctx = utils.SetUserNameInContext(ctx, "Test")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Test Mfg",
		Email: "owner@mfg.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	return utils.SetBusinessIdInContext(ctx, biz.ID.String())
}

func TestLedgerChainInvariantAndRollback(t *testing.T) {
	ctx := setupIntegration(t)

	part, err := models.CreatePart(ctx, &models.NewPart{Code: "P-001", Name: "Bracket"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}

	// inbound 100: chain starts at 0
	in, rec, err := models.ApplyStockTransaction(ctx, &models.NewStockTransaction{
		PartId: part.ID,
		Kind:   models.TransactionKindInbound,
		Qty:    mustDec(t, "100"),
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if !in.BeforeQty.IsZero() || !in.AfterQty.Equal(mustDec(t, "100")) {
		t.Fatalf("inbound chain = %s->%s, want 0->100", in.BeforeQty, in.AfterQty)
	}
	if in.Sequence != 1 {
		t.Fatalf("inbound sequence = %d, want 1", in.Sequence)
	}
	if !rec.CurrentQty.Equal(mustDec(t, "100")) {
		t.Fatalf("currentQty = %s, want 100", rec.CurrentQty)
	}
	if rec.LastInboundDate == nil {
		t.Fatal("LastInboundDate not set")
	}

	// outbound 30 continues the chain
	out, rec, err := models.ApplyStockTransaction(ctx, &models.NewStockTransaction{
		PartId: part.ID,
		Kind:   models.TransactionKindOutbound,
		Qty:    mustDec(t, "30"),
	})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if !out.BeforeQty.Equal(mustDec(t, "100")) || !out.AfterQty.Equal(mustDec(t, "70")) {
		t.Fatalf("outbound chain = %s->%s, want 100->70", out.BeforeQty, out.AfterQty)
	}
	if out.Sequence != 2 {
		t.Fatalf("outbound sequence = %d, want 2", out.Sequence)
	}

	// outbound larger than stock: rejected, nothing written
	_, _, err = models.ApplyStockTransaction(ctx, &models.NewStockTransaction{
		PartId: part.ID,
		Kind:   models.TransactionKindOutbound,
		Qty:    mustDec(t, "200"),
	})
	if !errors.Is(err, utils.ErrorInsufficientStock) {
		t.Fatalf("oversized outbound err = %v, want ErrorInsufficientStock", err)
	}
	entries, err := models.GetStockTransactions(ctx, part.ID, 10)
	if err != nil {
		t.Fatalf("GetStockTransactions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger has %d entries after rejected outbound, want 2", len(entries))
	}
	rec, err = models.GetInventoryRecord(ctx, part.ID)
	if err != nil {
		t.Fatalf("GetInventoryRecord: %v", err)
	}
	if !rec.CurrentQty.Equal(mustDec(t, "70")) {
		t.Fatalf("currentQty = %s after rejected outbound, want 70", rec.CurrentQty)
	}

	// adjust to 50: posts ADJ with signed delta -20
	adj, rec, err := models.AdjustInventory(ctx, part.ID, mustDec(t, "50"), "cycle count", "")
	if err != nil {
		t.Fatalf("AdjustInventory: %v", err)
	}
	if adj == nil || !adj.Qty.Equal(mustDec(t, "-20")) {
		t.Fatalf("adjustment qty = %v, want -20", adj)
	}
	if !rec.CurrentQty.Equal(mustDec(t, "50")) {
		t.Fatalf("currentQty = %s after adjust, want exactly 50", rec.CurrentQty)
	}

	// adjusting to the same level is a no-op
	noop, rec, err := models.AdjustInventory(ctx, part.ID, mustDec(t, "50"), "cycle count", "")
	if err != nil {
		t.Fatalf("no-op adjust: %v", err)
	}
	if noop != nil {
		t.Fatalf("no-op adjust wrote entry %+v", noop)
	}
	if !rec.CurrentQty.Equal(mustDec(t, "50")) {
		t.Fatalf("currentQty = %s after no-op adjust, want 50", rec.CurrentQty)
	}

	// reservations guard availability without touching the ledger
	refId := 1
	rec, err = models.ReserveStock(ctx, &models.NewReservation{
		PartId:        part.ID,
		Qty:           mustDec(t, "40"),
		ReferenceType: models.StockReferenceTypeSalesOrder,
		ReferenceId:   refId,
	})
	if err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}
	if !rec.ReservedQty.Equal(mustDec(t, "40")) {
		t.Fatalf("reservedQty = %s, want 40", rec.ReservedQty)
	}
	_, err = models.ReserveStock(ctx, &models.NewReservation{
		PartId:        part.ID,
		Qty:           mustDec(t, "20"),
		ReferenceType: models.StockReferenceTypeSalesOrder,
		ReferenceId:   refId,
	})
	if !errors.Is(err, utils.ErrorInsufficientAvailableStock) {
		t.Fatalf("over-reserve err = %v, want ErrorInsufficientAvailableStock", err)
	}
	rec, err = models.GetInventoryRecord(ctx, part.ID)
	if err != nil {
		t.Fatalf("GetInventoryRecord: %v", err)
	}
	if !rec.ReservedQty.Equal(mustDec(t, "40")) {
		t.Fatalf("reservedQty = %s after failed reserve, want unchanged 40", rec.ReservedQty)
	}
	entries, _ = models.GetStockTransactions(ctx, part.ID, 10)
	if len(entries) != 3 {
		t.Fatalf("ledger has %d entries after reservations, want 3 (reservations are not movements)", len(entries))
	}
	rec, err = models.ReleaseStock(ctx, part.ID, mustDec(t, "100"))
	if err != nil {
		t.Fatalf("ReleaseStock: %v", err)
	}
	if !rec.ReservedQty.IsZero() {
		t.Fatalf("reservedQty = %s after release, want floored at 0", rec.ReservedQty)
	}

	// deleting the latest entry restores its before-quantity
	if _, err = models.DeleteStockTransaction(ctx, adj.ID); err != nil {
		t.Fatalf("delete latest: %v", err)
	}
	rec, _ = models.GetInventoryRecord(ctx, part.ID)
	if !rec.CurrentQty.Equal(mustDec(t, "70")) {
		t.Fatalf("currentQty = %s after deleting adjustment, want 70", rec.CurrentQty)
	}

	// mid-chain delete of the opening inbound would drive the tail outbound
	// negative: rejected
	_, err = models.DeleteStockTransaction(ctx, in.ID)
	if !errors.Is(err, utils.ErrorRollbackUnsupported) {
		t.Fatalf("negative-chain delete err = %v, want ErrorRollbackUnsupported", err)
	}

	// a mid-chain delete the tail can absorb shifts the chain in place
	in2, _, err := models.ApplyStockTransaction(ctx, &models.NewStockTransaction{
		PartId: part.ID,
		Kind:   models.TransactionKindInbound,
		Qty:    mustDec(t, "10"),
	})
	if err != nil {
		t.Fatalf("second inbound: %v", err)
	}
	out2, _, err := models.ApplyStockTransaction(ctx, &models.NewStockTransaction{
		PartId: part.ID,
		Kind:   models.TransactionKindOutbound,
		Qty:    mustDec(t, "5"),
	})
	if err != nil {
		t.Fatalf("second outbound: %v", err)
	}
	if _, err = models.DeleteStockTransaction(ctx, in2.ID); err != nil {
		t.Fatalf("mid-chain delete: %v", err)
	}
	rec, _ = models.GetInventoryRecord(ctx, part.ID)
	if !rec.CurrentQty.Equal(mustDec(t, "65")) {
		t.Fatalf("currentQty = %s after mid-chain delete, want 65", rec.CurrentQty)
	}
	entries, _ = models.GetStockTransactions(ctx, part.ID, 10)
	latest := entries[0]
	if latest.ID != out2.ID {
		t.Fatalf("latest entry id = %d, want the shifted outbound %d", latest.ID, out2.ID)
	}
	if !latest.BeforeQty.Equal(mustDec(t, "70")) || !latest.AfterQty.Equal(mustDec(t, "65")) {
		t.Fatalf("shifted outbound = %s->%s, want 70->65", latest.BeforeQty, latest.AfterQty)
	}

	// strict mode turns mid-chain deletes off entirely
	t.Setenv("STRICT_LEDGER_DELETE", "1")
	_, err = models.DeleteStockTransaction(ctx, in.ID)
	if !errors.Is(err, utils.ErrorRollbackUnsupported) {
		t.Fatalf("strict mid-chain delete err = %v, want ErrorRollbackUnsupported", err)
	}
}

// Two deletes on the same part racing each other: whichever goroutine loses
// the part lock must work from the chain as rewritten by the winner, not from
// the rows it read before locking.
func TestConcurrentDeletesKeepChainIntact(t *testing.T) {
	ctx := setupIntegration(t)

	part, err := models.CreatePart(ctx, &models.NewPart{Code: "P-010", Name: "Spacer"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}

	apply := func(kind models.TransactionKind, qty string) *models.StockTransaction {
		t.Helper()
		entry, _, err := models.ApplyStockTransaction(ctx, &models.NewStockTransaction{
			PartId: part.ID,
			Kind:   kind,
			Qty:    mustDec(t, qty),
		})
		if err != nil {
			t.Fatalf("apply %s %s: %v", kind, qty, err)
		}
		return entry
	}

	apply(models.TransactionKindInbound, "100")
	in2 := apply(models.TransactionKindInbound, "10")
	in3 := apply(models.TransactionKindInbound, "20")
	apply(models.TransactionKindOutbound, "5")

	var wg sync.WaitGroup
	deleteErrs := make(chan error, 2)
	for _, id := range []int{in2.ID, in3.ID} {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := models.DeleteStockTransaction(ctx, id)
			deleteErrs <- err
		}(id)
	}
	wg.Wait()
	close(deleteErrs)
	for err := range deleteErrs {
		if err != nil {
			t.Fatalf("concurrent delete: %v", err)
		}
	}

	entries, err := models.GetStockTransactions(ctx, part.ID, 10)
	if err != nil {
		t.Fatalf("GetStockTransactions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger has %d entries after deletes, want 2", len(entries))
	}
	// newest first: the outbound shifted to 100->95 at sequence 2
	if entries[0].Sequence != 2 || entries[1].Sequence != 1 {
		t.Fatalf("sequences = %d,%d, want contiguous 2,1", entries[0].Sequence, entries[1].Sequence)
	}
	if !entries[1].AfterQty.Equal(entries[0].BeforeQty) {
		t.Fatalf("chain broken: %s then %s->%s", entries[1].AfterQty, entries[0].BeforeQty, entries[0].AfterQty)
	}
	if !entries[0].BeforeQty.Equal(mustDec(t, "100")) || !entries[0].AfterQty.Equal(mustDec(t, "95")) {
		t.Fatalf("tail = %s->%s, want 100->95", entries[0].BeforeQty, entries[0].AfterQty)
	}
	rec, err := models.GetInventoryRecord(ctx, part.ID)
	if err != nil {
		t.Fatalf("GetInventoryRecord: %v", err)
	}
	if !rec.CurrentQty.Equal(mustDec(t, "95")) {
		t.Fatalf("currentQty = %s after concurrent deletes, want 95", rec.CurrentQty)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mfg-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mfg-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=mfg_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
