// Package matching holds the pure matcher: (book, order, config, rng) ->
// execution. It keeps no state of its own and performs no I/O, generalizing
// the teacher's engine.OrderBook.Match price-time-priority walk from a
// resting limit book to a level-2 snapshot walk with slippage, latency,
// and fee sampling.
package matching

import (
	"atlas-perpsim/internal/config"
	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/random"
)

// Match resolves req against book and returns the resulting Execution. It
// never mutates book, req, or any shared state.
func Match(book domain.BookSnapshot, req domain.OrderRequest, cfg config.Options, rng random.Source) domain.Execution {
	if req.Type == domain.Limit {
		return matchLimit(book, req, cfg, rng)
	}
	return matchMarket(opposingLevels(book, req.Side), req.Quantity, req.Side, cfg, rng)
}

func opposingLevels(book domain.BookSnapshot, side domain.Side) []domain.Level {
	if side == domain.Buy {
		return book.Asks
	}
	return book.Bids
}

func matchLimit(book domain.BookSnapshot, req domain.OrderRequest, cfg config.Options, rng random.Source) domain.Execution {
	if req.LimitPrice == nil {
		return domain.NewRejected("limit order missing limitPrice")
	}
	limit := *req.LimitPrice

	crossing := false
	switch req.Side {
	case domain.Buy:
		crossing = len(book.Asks) > 0 && limit >= book.Asks[0].Price
	case domain.Sell:
		crossing = len(book.Bids) > 0 && limit <= book.Bids[0].Price
	}

	if crossing {
		return matchMarket(opposingLevels(book, req.Side), req.Quantity, req.Side, cfg, rng)
	}

	latency := sampleLatency(cfg, rng)
	fee := req.Quantity * limit * cfg.Fees.MakerBps * 1e-4
	fill := domain.Fill{
		Quantity:    req.Quantity,
		Price:       limit,
		Maker:       true,
		Fee:         fee,
		SlippageBps: 0,
		LatencyMs:   latency,
	}
	return domain.Execution{
		Fills:         []domain.Fill{fill},
		AveragePrice:  limit,
		TotalQuantity: req.Quantity,
		TotalFees:     fee,
		Status:        domain.Filled,
	}
}

// matchMarket walks levels in the order the book presents them (already
// price-sorted by the market package; within an equal price, the feed's
// own ordering is preserved, so the earliest entry wins ties) until
// remaining quantity is exhausted or the book runs out.
func matchMarket(levels []domain.Level, quantity float64, side domain.Side, cfg config.Options, rng random.Source) domain.Execution {
	if len(levels) == 0 {
		return domain.NewRejected("no liquidity available")
	}

	var fills []domain.Fill
	remaining := quantity

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		execQty := min(remaining, lvl.Quantity)
		fills = append(fills, takerFill(lvl.Price, execQty, side, cfg, rng))
		remaining -= execQty
	}

	if len(fills) == 0 {
		return domain.NewRejected("no liquidity available")
	}

	exec := buildExecution(fills, quantity, remaining)
	if exec.Status == domain.Partial {
		exec.Reason = "insufficient book depth"
	}
	return exec
}

func takerFill(levelPrice, qty float64, side domain.Side, cfg config.Options, rng random.Source) domain.Fill {
	slippageBps := rng.Float64() * cfg.Slippage.MaxBasisPoints
	adjPrice := levelPrice
	if side == domain.Buy {
		adjPrice = levelPrice * (1 + slippageBps*1e-4)
	} else {
		adjPrice = levelPrice * (1 - slippageBps*1e-4)
	}
	latency := sampleLatency(cfg, rng)
	fee := qty * adjPrice * cfg.Fees.TakerBps * 1e-4

	return domain.Fill{
		Quantity:    qty,
		Price:       adjPrice,
		Maker:       false,
		Fee:         fee,
		SlippageBps: slippageBps,
		LatencyMs:   latency,
	}
}

func sampleLatency(cfg config.Options, rng random.Source) int64 {
	lo, hi := cfg.Latency.MinMs, cfg.Latency.MaxMs
	if hi <= lo {
		return lo
	}
	return lo + int64(rng.Float64()*float64(hi-lo))
}

func buildExecution(fills []domain.Fill, requested, remaining float64) domain.Execution {
	var totalQty, totalNotional, totalFees float64
	for _, f := range fills {
		totalQty += f.Quantity
		totalNotional += f.Quantity * f.Price
		totalFees += f.Fee
	}

	status := domain.Filled
	switch {
	case totalQty <= 0:
		status = domain.Rejected
	case remaining > 1e-12:
		status = domain.Partial
	}

	avg := 0.0
	if totalQty > 0 {
		avg = totalNotional / totalQty
	}

	return domain.Execution{
		Fills:         fills,
		AveragePrice:  avg,
		TotalQuantity: totalQty,
		TotalFees:     totalFees,
		Status:        status,
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
