package ledger

// UpdateMark marks symbol's position to price. A no-op if the account
// holds no position in symbol (spec.md §4.4.3).
func (l *Ledger) UpdateMark(symbol string, price float64) {
	if pos, ok := l.Positions[symbol]; ok {
		pos.MarkPrice = price
	}
}

// ApplyFunding accrues a funding cashflow for symbol at effectiveRate
// ("per this tick", already scaled by elapsed/period — see
// exchange.Core.fundingIncrement). Longs pay positive rates, shorts receive them,
// and vice versa. Zero or non-finite rates, and accounts with no (or
// flat/unmarked) position in symbol, are no-ops (spec.md §4.4.3).
func (l *Ledger) ApplyFunding(symbol string, effectiveRate float64) {
	if effectiveRate == 0 || !isFinite(effectiveRate) {
		return
	}
	pos, ok := l.Positions[symbol]
	if !ok || pos.Quantity == 0 || pos.MarkPrice <= 0 || !isFinite(pos.MarkPrice) {
		return
	}

	notional := abs(pos.Quantity) * pos.MarkPrice
	sign := 1.0
	if pos.Quantity < 0 {
		sign = -1.0
	}
	fundingPnl := -sign * notional * effectiveRate

	l.CashBalance += fundingPnl
	pos.RealizedPnl += fundingPnl
	l.TotalRealized += fundingPnl
	l.TotalFunding += fundingPnl
}
