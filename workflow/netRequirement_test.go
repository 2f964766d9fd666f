package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNetAndSuggestBasicShortfall(t *testing.T) {
	// current 100, reserved 20, incoming 0, safety 10 -> available 70;
	// gross 150 -> net 80
	position := StockPosition{
		CurrentQty:  dec("100"),
		ReservedQty: dec("20"),
		IncomingQty: dec("0"),
		SafetyStock: dec("10"),
		MinOrderQty: dec("0"),
	}
	net, suggested := NetAndSuggest(dec("150"), position)
	if !net.Equal(dec("80")) {
		t.Fatalf("net = %s, want 80", net)
	}
	if !suggested.Equal(dec("80")) {
		t.Fatalf("suggested = %s, want 80", suggested)
	}
}

func TestNetAndSuggestNegativeAvailableDoesNotInflate(t *testing.T) {
	// over-reserved: available is negative, treated as zero
	position := StockPosition{
		CurrentQty:  dec("10"),
		ReservedQty: dec("50"),
		IncomingQty: dec("0"),
		SafetyStock: dec("0"),
		MinOrderQty: dec("0"),
	}
	net, suggested := NetAndSuggest(dec("30"), position)
	if !net.Equal(dec("30")) {
		t.Fatalf("net = %s, want 30 (not 70)", net)
	}
	if !suggested.Equal(dec("30")) {
		t.Fatalf("suggested = %s, want 30", suggested)
	}
}

func TestNetAndSuggestMinOrderQtyFloor(t *testing.T) {
	position := StockPosition{
		CurrentQty:  dec("15"),
		MinOrderQty: dec("20"),
	}
	net, suggested := NetAndSuggest(dec("20"), position)
	if !net.Equal(dec("5")) {
		t.Fatalf("net = %s, want 5", net)
	}
	if !suggested.Equal(dec("20")) {
		t.Fatalf("suggested = %s, want min order qty 20", suggested)
	}
}

func TestNetAndSuggestZeroNetIgnoresMinOrderQty(t *testing.T) {
	position := StockPosition{
		CurrentQty:  dec("100"),
		MinOrderQty: dec("20"),
	}
	net, suggested := NetAndSuggest(dec("50"), position)
	if !net.IsZero() {
		t.Fatalf("net = %s, want 0", net)
	}
	if !suggested.IsZero() {
		t.Fatalf("suggested = %s, want 0 regardless of min order qty", suggested)
	}
}

func TestNetAndSuggestCeilsFractionalNet(t *testing.T) {
	// fractional shortfall from loss rates must round UP, never under-cover
	position := StockPosition{
		CurrentQty:  dec("10"),
		MinOrderQty: dec("0"),
	}
	net, suggested := NetAndSuggest(dec("12.3"), position)
	if !net.Equal(dec("2.3")) {
		t.Fatalf("net = %s, want 2.3", net)
	}
	if !suggested.Equal(dec("3")) {
		t.Fatalf("suggested = %s, want ceil(2.3) = 3", suggested)
	}
}

func TestNetAndSuggestIncomingCountsAsSupply(t *testing.T) {
	position := StockPosition{
		CurrentQty:  dec("10"),
		IncomingQty: dec("40"),
		SafetyStock: dec("5"),
	}
	net, suggested := NetAndSuggest(dec("45"), position)
	if !net.IsZero() {
		t.Fatalf("net = %s, want 0 (10+40-5 = 45 covers gross)", net)
	}
	if !suggested.IsZero() {
		t.Fatalf("suggested = %s, want 0", suggested)
	}
}

func TestStockPositionAvailableQty(t *testing.T) {
	position := StockPosition{
		CurrentQty:  dec("100"),
		ReservedQty: dec("20"),
		IncomingQty: dec("30"),
		SafetyStock: dec("10"),
	}
	if got := position.AvailableQty(); !got.Equal(dec("100")) {
		t.Fatalf("available = %s, want 100", got)
	}
}
