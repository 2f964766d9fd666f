package workflow

import "github.com/shopspring/decimal"

// StockPosition is the supply snapshot netting runs against, captured once per
// part at calculation time.
type StockPosition struct {
	CurrentQty  decimal.Decimal
	ReservedQty decimal.Decimal
	IncomingQty decimal.Decimal
	SafetyStock decimal.Decimal
	MinOrderQty decimal.Decimal
}

// AvailableQty is what netting may consume: on-hand plus inbound supply,
// minus reservations and the safety floor. It can go negative when
// reservations or safety stock exceed supply.
func (p StockPosition) AvailableQty() decimal.Decimal {
	return p.CurrentQty.Add(p.IncomingQty).Sub(p.ReservedQty).Sub(p.SafetyStock)
}

// NetAndSuggest nets a gross requirement against the stock position. Negative
// availability counts as zero rather than inflating the shortage. A positive
// net is rounded up to whole units and floored at the part's minimum order
// quantity.
func NetAndSuggest(gross decimal.Decimal, position StockPosition) (net decimal.Decimal, suggested decimal.Decimal) {
	available := position.AvailableQty()
	if available.IsNegative() {
		available = decimal.Zero
	}
	net = gross.Sub(available)
	if net.IsNegative() {
		net = decimal.Zero
	}
	if !net.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	suggested = net.Ceil()
	if suggested.LessThan(position.MinOrderQty) {
		suggested = position.MinOrderQty
	}
	return net, suggested
}
