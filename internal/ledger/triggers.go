package ledger

import (
	"sort"

	"atlas-perpsim/internal/domain"
)

// TriggerHit names a position in this ledger whose exit plan crossed at
// the current mark. The ledger doesn't know its own account id, so the
// caller (exchange.Core) stamps that on before broadcasting.
type TriggerHit struct {
	Symbol  string
	Trigger domain.TriggerKind
}

// CollectExitTriggers scans every position once, in a single pass, for
// exit-plan crossings. A position already AutoClosePending is skipped so
// it isn't re-emitted every tick. Firing a trigger marks the position
// AutoClosePending=true. For longs, stop takes priority over target when
// both breach in the same tick; shorts mirror the comparisons
// (spec.md §4.4.4).
func (l *Ledger) CollectExitTriggers() []TriggerHit {
	symbols := make([]string, 0, len(l.Positions))
	for symbol := range l.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var hits []TriggerHit
	for _, symbol := range symbols {
		pos := l.Positions[symbol]
		if pos.AutoClosePending || pos.ExitPlan == nil || pos.Quantity == 0 {
			continue
		}

		trig, fired := checkExitPlan(pos)
		if !fired {
			continue
		}

		pos.AutoClosePending = true
		hits = append(hits, TriggerHit{Symbol: symbol, Trigger: trig})
	}
	return hits
}

func checkExitPlan(pos *domain.Position) (domain.TriggerKind, bool) {
	plan := pos.ExitPlan
	mark := pos.MarkPrice

	if pos.Quantity > 0 {
		if plan.Stop != nil && mark <= *plan.Stop {
			return domain.Stop, true
		}
		if plan.Target != nil && mark >= *plan.Target {
			return domain.Target, true
		}
		return "", false
	}

	if plan.Stop != nil && mark >= *plan.Stop {
		return domain.Stop, true
	}
	if plan.Target != nil && mark <= *plan.Target {
		return domain.Target, true
	}
	return "", false
}

// ClearPendingExit clears a position's AutoClosePending flag, used when an
// auto-close attempt is rejected so the next tick re-evaluates
// (spec.md §4.4.4).
func (l *Ledger) ClearPendingExit(symbol string) {
	if pos, ok := l.Positions[symbol]; ok {
		pos.AutoClosePending = false
	}
}

// SetExitPlan upserts plan on symbol's position and clears any pending
// flag. A no-op if the position is absent (spec.md §4.5 setExitPlan).
func (l *Ledger) SetExitPlan(symbol string, plan *domain.ExitPlan) {
	pos, ok := l.Positions[symbol]
	if !ok {
		return
	}
	pos.ExitPlan = plan.Clone()
	pos.AutoClosePending = false
}
