package ledger

import (
	"math"

	"atlas-perpsim/internal/domain"
)

// Preview clones the ledger, applies exec to the clone, and reports whether
// the cross-margin invariant still holds afterward. The receiver is never
// mutated (spec.md §4.4.1).
func (l *Ledger) Preview(symbol string, side domain.Side, exec domain.Execution, leverage *float64) bool {
	clone := l.Clone()
	clone.Apply(symbol, side, exec, leverage)
	return clone.Solvent()
}

// resolveLeverage implements spec.md §4.4.2's three-step leverage
// resolution, evaluated once per Apply call against the position as it
// stood before this execution.
func resolveLeverage(existing *domain.Position, requested *float64) float64 {
	if requested != nil && *requested > 0 && isFinite(*requested) {
		if *requested < 1 {
			return 1
		}
		return *requested
	}
	if existing != nil && existing.Quantity != 0 && existing.Margin != 0 {
		refPrice := existing.AvgEntryPrice
		if refPrice == 0 {
			refPrice = existing.MarkPrice
		}
		notional := abs(existing.Quantity) * refPrice
		return notional / existing.Margin
	}
	return 1
}

// Apply commits exec against symbol, mutating the ledger in place
// (spec.md §4.4.2).
func (l *Ledger) Apply(symbol string, side domain.Side, exec domain.Execution, leverage *float64) {
	d := side.Direction()
	existingBefore := l.Positions[symbol]
	effLeverage := resolveLeverage(existingBefore, leverage)

	for _, fill := range exec.Fills {
		l.applyFill(symbol, d, fill, effLeverage)
	}
}

func (l *Ledger) applyFill(symbol string, d float64, fill domain.Fill, leverage float64) {
	assertFinite("fill.Price", fill.Price)
	assertFinite("fill.Quantity", fill.Quantity)

	signedQty := d * fill.Quantity
	notional := fill.Quantity * fill.Price

	l.CashBalance -= signedQty*fill.Price + fill.Fee

	pos := l.Positions[symbol]
	existingQty := 0.0
	if pos != nil {
		existingQty = pos.Quantity
	}

	sameDirection := existingQty == 0 || sameSign(existingQty, signedQty)

	if pos == nil {
		pos = &domain.Position{}
		l.Positions[symbol] = pos
	}

	newQty := existingQty + signedQty
	var realized float64

	if sameDirection {
		totalAbs := abs(existingQty) + abs(signedQty)
		if totalAbs > 0 {
			pos.AvgEntryPrice = (pos.AvgEntryPrice*abs(existingQty) + fill.Price*abs(signedQty)) / totalAbs
		}
		pos.Margin += notional / leverage
	} else {
		closingQty := min(abs(existingQty), abs(signedQty))
		if abs(existingQty) > 0 {
			pos.Margin -= pos.Margin * closingQty / abs(existingQty)
		}
		if existingQty > 0 {
			realized = (fill.Price - pos.AvgEntryPrice) * closingQty
		} else {
			realized = (pos.AvgEntryPrice - fill.Price) * closingQty
		}

		if newQty == 0 {
			pos.Margin = 0
			pos.AvgEntryPrice = 0
			pos.ExitPlan = nil
		} else if !sameSign(newQty, existingQty) {
			pos.AvgEntryPrice = fill.Price
			pos.Margin = abs(newQty) * fill.Price / leverage
			pos.ExitPlan = nil
		}
	}

	pos.Quantity = newQty
	pos.MarkPrice = fill.Price
	pos.Margin = clampMargin(pos.Margin)

	l.TotalRealized += realized
	l.TotalFees += fill.Fee
	pos.RealizedPnl += realized

	l.reapIfDust(symbol)
}

// reapIfDust deletes a position once its quantity has returned to zero and
// its lifetime realized PnL has decayed below the dust threshold
// (spec.md §3 "Lifecycles"). The exit plan is cleared as a side effect of
// deletion — see SPEC_FULL.md §13 on the exit-plan-clears-on-zero decision.
func (l *Ledger) reapIfDust(symbol string) {
	pos, ok := l.Positions[symbol]
	if !ok {
		return
	}
	if pos.Quantity == 0 && abs(pos.RealizedPnl) < 0.01 {
		delete(l.Positions, symbol)
	}
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
