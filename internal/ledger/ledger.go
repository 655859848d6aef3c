// Package ledger implements AccountLedger: cash, positions, and realized/
// funding aggregates for one trading account. It generalizes the teacher's
// service.PositionService (weighted-average entry, margin bookkeeping) and
// service.LiquidationService (equity-vs-maintenance-margin check) into the
// single type spec.md §4.4 describes.
package ledger

import (
	"math"

	"atlas-perpsim/internal/config"
	"atlas-perpsim/internal/domain"
)

// Ledger is one account's cash, positions, and PnL aggregates. All mutating
// methods assume the caller (ExchangeCore) already serializes access; the
// type itself holds no lock.
type Ledger struct {
	CashBalance   float64
	QuoteCurrency string
	Positions     map[string]*domain.Position
	TotalRealized float64
	TotalFees     float64
	TotalFunding  float64
}

// New creates a fresh ledger with initialCapital of cash and no positions.
func New(initialCapital float64, quoteCurrency string) *Ledger {
	return &Ledger{
		CashBalance:   initialCapital,
		QuoteCurrency: quoteCurrency,
		Positions:     make(map[string]*domain.Position),
	}
}

// Clone deep-copies the ledger, including every position and its exit
// plan. Used by the affordability preview so a rejected order never
// touches the real ledger (spec.md §4.4.1, §9 "cloning for affordability").
func (l *Ledger) Clone() *Ledger {
	cp := &Ledger{
		CashBalance:   l.CashBalance,
		QuoteCurrency: l.QuoteCurrency,
		Positions:     make(map[string]*domain.Position, len(l.Positions)),
		TotalRealized: l.TotalRealized,
		TotalFees:     l.TotalFees,
		TotalFunding:  l.TotalFunding,
	}
	for symbol, pos := range l.Positions {
		cp.Positions[symbol] = pos.Clone()
	}
	return cp
}

// GrossPositionValue is the signed sum of mark*qty across positions.
func (l *Ledger) GrossPositionValue() float64 {
	var v float64
	for _, p := range l.Positions {
		v += p.MarkPrice * p.Quantity
	}
	return v
}

// MarginBalance sums the non-negative margin committed across positions.
func (l *Ledger) MarginBalance() float64 {
	var m float64
	for _, p := range l.Positions {
		if p.Margin > 0 {
			m += p.Margin
		}
	}
	return m
}

// Equity is cash plus signed mark-to-market position value.
func (l *Ledger) Equity() float64 {
	return l.CashBalance + l.GrossPositionValue()
}

// BorrowedBalance is the non-negative amount of negative cash.
func (l *Ledger) BorrowedBalance() float64 {
	if l.CashBalance < 0 {
		return -l.CashBalance
	}
	return 0
}

// AvailableCash is equity above margin balance, floored at zero.
func (l *Ledger) AvailableCash() float64 {
	avail := l.Equity() - l.MarginBalance()
	if avail < 0 {
		return 0
	}
	return avail
}

// Solvent reports whether the cross-margin invariant holds:
// equity + CASH_EPSILON >= marginBalance (spec.md §4.3.1).
func (l *Ledger) Solvent() bool {
	return l.Equity()+config.CashEpsilon >= l.MarginBalance()
}

// assertFinite panics if v is NaN or +/-Inf. Per spec.md §7 item 6,
// non-finite values reaching ledger arithmetic are an invariant violation
// that must be impossible in normal operation.
func assertFinite(label string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic("ledger: non-finite value for " + label)
	}
}

// clampMargin collapses dust margin to exactly zero (spec.md §3 global
// invariants: "|margin| < 1e-6 collapses to 0").
func clampMargin(m float64) float64 {
	if math.Abs(m) < config.MarginDustThreshold {
		return 0
	}
	return m
}
