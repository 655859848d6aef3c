package exchange

import (
	"context"
	"log"
	"time"

	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/feed"
	"atlas-perpsim/internal/journal"
	"atlas-perpsim/internal/metrics"
)

// refreshTick runs the periodic cycle spec.md §4.5 describes: refresh
// funding if stale, refresh every book and mark/fund every ledger against
// it, scan for exit-plan triggers, then drain the auto-close queue. It
// must only ever run on the executor goroutine.
func (c *Core) refreshTick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.ObserveRefreshTick(time.Since(start).Seconds()) }()

	c.maybeRefreshFunding(ctx)

	for symbol, book := range c.books {
		snap := book.Refresh(ctx, c.bookFeed, c.marketIDs[symbol])
		metrics.SetBookMidPrice(symbol, snap.MidPrice)

		effectiveRate := c.fundingIncrement(symbol)
		for _, l := range c.ledgers {
			l.UpdateMark(symbol, snap.MidPrice)
			if effectiveRate != 0 {
				l.ApplyFunding(symbol, effectiveRate)
			}
		}
		if effectiveRate != 0 {
			metrics.ObserveFundingApplied(symbol)
		}

		c.bus.Emit(domain.BookEventKind, domain.BookEvent{Symbol: symbol, Snapshot: snap})
	}

	for accountID, l := range c.ledgers {
		metrics.SetAccountEquity(accountID, l.Equity())
		c.bus.Emit(domain.AccountEventKind, domain.AccountEvent{AccountID: accountID, Snapshot: l.Snapshot(accountID)})
	}

	c.scanExitTriggers()
	c.drainAutoCloseQueue()
}

func (c *Core) maybeRefreshFunding(ctx context.Context) {
	interval := time.Duration(c.options.FundingRefreshIntervalMs) * time.Millisecond
	if interval > 0 && time.Since(c.lastFundingFetch) < interval {
		return
	}
	c.refreshFundingRates(ctx)
}

// refreshFundingRates fetches the funding table once, deduping by
// normalized symbol and preferring options.PrimaryFundingSource when more
// than one exchange quotes the same symbol (spec.md §6).
func (c *Core) refreshFundingRates(ctx context.Context) {
	if c.fundingFeed == nil {
		return
	}

	rates, err := c.fundingFeed.FundingRates(ctx)
	if err != nil {
		log.Printf("[exchange] funding refresh failed: %v", err)
		return
	}

	merged := make(map[string]feed.FundingRate, len(rates))
	for _, r := range rates {
		symbol := normalizeSymbol(r.Symbol)
		existing, seen := merged[symbol]
		if seen && (!isPrimarySource(r, c.options.PrimaryFundingSource) || isPrimarySource(existing, c.options.PrimaryFundingSource)) {
			continue
		}
		merged[symbol] = r
	}

	c.fundingRates = merged
	c.lastFundingFetch = time.Now()
}

func isPrimarySource(r feed.FundingRate, primary string) bool {
	return primary != "" && r.Exchange == primary
}

// fundingIncrement implements spec.md §4.5.1: elapsed time since the last
// application of symbol's rate, scaled against the configured funding
// period. The very first call for a symbol only records the timestamp and
// applies zero, so a fresh book never back-dates an accrual to process
// start.
func (c *Core) fundingIncrement(symbol string) float64 {
	rate, haveRate := c.fundingRates[symbol]
	now := time.Now()
	last, seen := c.lastAppliedAt[symbol]
	c.lastAppliedAt[symbol] = now

	if !haveRate || !seen {
		return 0
	}

	periodMs := c.options.FundingPeriodMs()
	if periodMs <= 0 {
		return 0
	}

	elapsedMs := float64(now.Sub(last).Milliseconds())
	return rate.Rate * (elapsedMs / periodMs)
}

// scanExitTriggers collects every position's exit-plan crossing across all
// accounts and enqueues each unique (account, symbol) not already pending
// (spec.md §4.5 step 3, §5 "pending auto-close set").
func (c *Core) scanExitTriggers() {
	for accountID, l := range c.ledgers {
		for _, hit := range l.CollectExitTriggers() {
			key := accountID + ":" + hit.Symbol
			if c.pendingAutoClose[key] {
				continue
			}
			c.pendingAutoClose[key] = true
			c.autoCloseQueue = append(c.autoCloseQueue, domain.ExitTrigger{
				AccountID: accountID,
				Symbol:    hit.Symbol,
				Trigger:   hit.Trigger,
			})
		}
	}
}

// drainAutoCloseQueue resolves every queued trigger serially, always
// removing its pending-set entry whether the close succeeds or fails
// (spec.md §4.5 step 5).
func (c *Core) drainAutoCloseQueue() {
	queue := c.autoCloseQueue
	c.autoCloseQueue = nil

	for _, trig := range queue {
		c.resolveAutoClose(trig)
	}
}

func (c *Core) resolveAutoClose(trig domain.ExitTrigger) {
	key := trig.AccountID + ":" + trig.Symbol
	defer delete(c.pendingAutoClose, key)

	l := c.ledgerFor(trig.AccountID)
	pos, ok := l.Positions[trig.Symbol]
	if !ok {
		return
	}

	side := domain.Buy
	if pos.Quantity > 0 {
		side = domain.Sell
	}
	entryPrice := pos.AvgEntryPrice
	preCloseUnrealized := (pos.MarkPrice - pos.AvgEntryPrice) * pos.Quantity
	totalRealizedBefore := l.TotalRealized

	exec := c.closePositionLocked(trig.AccountID, trig.Symbol, CloseOptions{AutoTrigger: trig.Trigger})

	if !exec.IsAdmitted() {
		metrics.ObserveAutoClose(string(trig.Trigger), "rejected")
		return
	}

	outcome := "filled"
	if exec.Status == domain.Partial {
		outcome = "partial"
	}
	metrics.ObserveAutoClose(string(trig.Trigger), outcome)

	if c.sink == nil {
		return
	}

	c.sink.RecordAutoClose(journal.AutoCloseRecord{
		Symbol:        trig.Symbol,
		Side:          string(side.Opposite()),
		Quantity:      exec.TotalQuantity,
		EntryPrice:    entryPrice,
		ExitPrice:     exec.AveragePrice,
		RealizedPnl:   l.TotalRealized - totalRealizedBefore,
		UnrealizedPnl: preCloseUnrealized,
		NetPnl:        l.TotalRealized - totalRealizedBefore,
		ClosedAt:      time.Now(),
		AutoTrigger:   string(trig.Trigger),
	})
}
