package exchange

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/ledger"
	"atlas-perpsim/internal/matching"
	"atlas-perpsim/internal/metrics"
)

// PlaceOrder normalizes in, then matches and (if admitted and affordable)
// commits it on the executor goroutine (spec.md §4.5 "placeOrder").
// Matching and ledger application are purely computational, so — unlike
// the refresh tick — this never suspends and takes no context (spec.md §5
// "placeOrder does not suspend"). Returns "Simulation mode is disabled"
// without touching the executor at all when Core.SetEnabled(false) is in
// effect (spec.md §6).
func (c *Core) PlaceOrder(in PlaceOrderInput) (domain.Execution, error) {
	req, accountID, err := c.normalizeOrderInput(in)
	if err != nil {
		return domain.Execution{}, err
	}

	var result domain.Execution
	c.exec.run(func() {
		result = c.placeOrderLocked(accountID, req)
	})
	return result, nil
}

// placeOrderLocked must only run on the executor goroutine.
func (c *Core) placeOrderLocked(accountID string, req domain.OrderRequest) domain.Execution {
	book, ok := c.books[req.Symbol]
	if !ok {
		return domain.NewRejected("Unknown market")
	}

	snap := book.Snapshot()
	exec := matching.Match(snap, req, c.options, c.rng)
	exec.ClientOrderID = uuid.New().String()

	for _, f := range exec.Fills {
		metrics.ObserveFill(req.Symbol, f.Maker)
	}

	if !exec.IsAdmitted() {
		metrics.ObserveOrder(req.Symbol, string(req.Side), string(exec.Status))
		metrics.ObserveRejection(exec.Reason)
		return exec
	}

	l := c.ledgerFor(accountID)

	existedBefore := positionOpen(l, req.Symbol)

	if !l.Preview(req.Symbol, req.Side, exec, req.Leverage) {
		metrics.ObserveOrder(req.Symbol, string(req.Side), "rejected")
		metrics.ObserveRejection("insufficient available cash")
		return domain.NewRejected("insufficient available cash")
	}

	totalRealizedBefore := l.TotalRealized
	l.Apply(req.Symbol, req.Side, exec, req.Leverage)
	realizedDelta := l.TotalRealized - totalRealizedBefore

	l.UpdateMark(req.Symbol, snap.MidPrice)

	if req.ExitPlan != nil {
		l.SetExitPlan(req.Symbol, req.ExitPlan)
	}

	metrics.ObserveOrder(req.Symbol, string(req.Side), string(exec.Status))

	completed := existedBefore && !positionOpen(l, req.Symbol)
	c.emitTradeAndAccount(accountID, req, exec, realizedDelta, completed, l)

	return exec
}

func positionOpen(l *ledger.Ledger, symbol string) bool {
	pos, ok := l.Positions[symbol]
	return ok && pos.Quantity != 0
}

func (c *Core) emitTradeAndAccount(accountID string, req domain.OrderRequest, exec domain.Execution, realizedDelta float64, completed bool, l *ledger.Ledger) {
	accSnap := l.Snapshot(accountID)
	metrics.SetAccountEquity(accountID, accSnap.Equity)

	c.bus.Emit(domain.TradeEventKind, domain.TradeEvent{
		ExecutionID:  c.idGen.Next(),
		AccountID:    accountID,
		Symbol:       req.Symbol,
		Result:       exec,
		Timestamp:    time.Now(),
		RealizedPnl:  realizedDelta,
		Notional:     exec.TotalQuantity * exec.AveragePrice,
		Leverage:     req.Leverage,
		Confidence:   req.Confidence,
		Direction:    req.Side,
		Completed:    completed,
		AccountValue: accSnap.Equity,
	})
	c.bus.Emit(domain.AccountEventKind, domain.AccountEvent{AccountID: accountID, Snapshot: accSnap})
}

// CloseOptions carries informational context for an auto-close attempt;
// AutoTrigger is logged but otherwise doesn't affect matching.
type CloseOptions struct {
	AutoTrigger domain.TriggerKind
}

// ClosePositions market-closes each of symbols at full size, per account
// (spec.md §4.5 "closePositions").
func (c *Core) ClosePositions(accountID string, symbols []string, opts CloseOptions) map[string]domain.Execution {
	accountID = normalizeAccountID(accountID)
	results := make(map[string]domain.Execution, len(symbols))

	c.exec.run(func() {
		for _, raw := range symbols {
			symbol := normalizeSymbol(raw)
			results[symbol] = c.closePositionLocked(accountID, symbol, opts)
		}
	})
	return results
}

func (c *Core) closePositionLocked(accountID, symbol string, opts CloseOptions) domain.Execution {
	l := c.ledgerFor(accountID)
	pos, ok := l.Positions[symbol]
	if !ok || pos.Quantity == 0 {
		return domain.NewRejected("no open position")
	}

	side := domain.Sell
	if pos.Quantity < 0 {
		side = domain.Buy
	}

	exec := c.placeOrderLocked(accountID, domain.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     domain.Market,
		Quantity: absFloat(pos.Quantity),
	})

	l.ClearPendingExit(symbol)

	if opts.AutoTrigger != "" {
		if exec.IsAdmitted() {
			log.Printf("[exchange] auto-close %s %s filled via %s trigger", accountID, symbol, opts.AutoTrigger)
		} else {
			log.Printf("[exchange] auto-close %s %s rejected via %s trigger: %s", accountID, symbol, opts.AutoTrigger, exec.Reason)
		}
	}

	return exec
}

// ResetAccount discards accountID's ledger and any of its pending
// auto-close markers, replacing it with a fresh one seeded at
// initialCapital (spec.md §4.5 "resetAccount").
func (c *Core) ResetAccount(accountID string) domain.AccountSnapshot {
	accountID = normalizeAccountID(accountID)
	var snap domain.AccountSnapshot

	c.exec.run(func() {
		c.ledgers[accountID] = newResetLedger(c.options.InitialCapital, c.options.QuoteCurrency)

		prefix := accountID + ":"
		for key := range c.pendingAutoClose {
			if strings.HasPrefix(key, prefix) {
				delete(c.pendingAutoClose, key)
			}
		}

		snap = c.ledgers[accountID].Snapshot(accountID)
		c.bus.Emit(domain.AccountEventKind, domain.AccountEvent{AccountID: accountID, Snapshot: snap})
	})
	return snap
}

func newResetLedger(initialCapital float64, quoteCurrency string) *ledger.Ledger {
	return ledger.New(initialCapital, quoteCurrency)
}

// SetExitPlan upserts plan on accountId's symbol position; a no-op if the
// position is absent (spec.md §4.5 "setExitPlan").
func (c *Core) SetExitPlan(accountID, symbol string, plan *domain.ExitPlan) {
	accountID = normalizeAccountID(accountID)
	symbol = normalizeSymbol(symbol)

	c.exec.run(func() {
		c.ledgerFor(accountID).SetExitPlan(symbol, plan)
	})
}

// GetAccountSnapshot returns a deep-copied snapshot of accountId's ledger.
func (c *Core) GetAccountSnapshot(accountID string) domain.AccountSnapshot {
	accountID = normalizeAccountID(accountID)
	var snap domain.AccountSnapshot
	c.exec.run(func() {
		snap = c.ledgerFor(accountID).Snapshot(accountID)
	})
	return snap
}

// GetOpenPositions returns accountId's position rows only.
func (c *Core) GetOpenPositions(accountID string) []domain.PositionRow {
	return c.GetAccountSnapshot(accountID).Positions
}

// GetOrderBook returns the current snapshot for symbol, or an error if it
// is not a known market.
func (c *Core) GetOrderBook(symbol string) (domain.BookSnapshot, error) {
	norm := normalizeSymbol(symbol)
	var snap domain.BookSnapshot
	var err error

	c.exec.run(func() {
		book, ok := c.books[norm]
		if !ok {
			err = errors.New("Unknown market")
			return
		}
		snap = book.Snapshot()
	})
	return snap, err
}
