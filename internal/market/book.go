// Package market holds MarketBook — a level-2 snapshot for one symbol,
// refreshed from an external feed.BookFeed and read by the matcher and the
// refresh ticker. Shaped after the teacher's memory.OrderBook: a small
// struct behind a mutex, exposing deep-copy reads only.
package market

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/feed"
)

// Book is one symbol's current level-2 snapshot.
type Book struct {
	mu       sync.RWMutex
	symbol   string
	bids     []domain.Level
	asks     []domain.Level
	lastTime time.Time
}

// New creates an empty book for symbol; it carries no liquidity until the
// first successful Refresh.
func New(symbol string) *Book {
	return &Book{symbol: symbol}
}

// Refresh fetches a new snapshot from feed for marketID and atomically
// replaces the held one. On feed error or an invalid snapshot (crossed
// book, non-finite levels) the error is logged and swallowed; the previous
// snapshot remains authoritative (spec.md §4.2 "Failure").
func (b *Book) Refresh(ctx context.Context, f feed.BookFeed, marketID string) domain.BookSnapshot {
	raw, err := f.GetOrderBook(ctx, marketID)
	if err != nil {
		log.Printf("[market] refresh %s failed: %v", b.symbol, err)
		return b.Snapshot()
	}

	bids, asks, err := normalize(raw)
	if err != nil {
		log.Printf("[market] refresh %s produced invalid book: %v", b.symbol, err)
		return b.Snapshot()
	}

	now := time.Now()

	b.mu.Lock()
	b.bids = bids
	b.asks = asks
	b.lastTime = now
	b.mu.Unlock()

	return b.Snapshot()
}

// normalize rejects non-finite levels, drops zero-quantity levels, sorts
// bids descending / asks ascending by price, and rejects a crossed book.
func normalize(raw feed.RawBook) (bids, asks []domain.Level, err error) {
	for _, side := range [][]domain.Level{raw.Bids, raw.Asks} {
		for _, l := range side {
			if math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || math.IsNaN(l.Quantity) || math.IsInf(l.Quantity, 0) {
				return nil, nil, fmt.Errorf("non-finite level: price=%v quantity=%v", l.Price, l.Quantity)
			}
		}
	}

	bids = filterPositive(raw.Bids)
	asks = filterPositive(raw.Asks)

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	if len(bids) > 0 && len(asks) > 0 && bids[0].Price >= asks[0].Price {
		return nil, nil, fmt.Errorf("crossed book: bestBid=%v bestAsk=%v", bids[0].Price, asks[0].Price)
	}

	return bids, asks, nil
}

func filterPositive(levels []domain.Level) []domain.Level {
	out := make([]domain.Level, 0, len(levels))
	for _, l := range levels {
		if l.Price > 0 && l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

// Snapshot returns a deep copy of the currently held book; it may be stale
// up to the configured refresh interval.
func (b *Book) Snapshot() domain.BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := domain.BookSnapshot{
		Symbol:    b.symbol,
		Bids:      append([]domain.Level(nil), b.bids...),
		Asks:      append([]domain.Level(nil), b.asks...),
		Timestamp: b.lastTime,
	}
	snap.MidPrice = midPrice(snap.Bids, snap.Asks)
	snap.Spread = spread(snap.Bids, snap.Asks)
	return snap
}

// MidPrice returns the mid of the current snapshot, or 0 if either side is empty.
func (b *Book) MidPrice() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return midPrice(b.bids, b.asks)
}

func midPrice(bids, asks []domain.Level) float64 {
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}
	return (bids[0].Price + asks[0].Price) / 2
}

func spread(bids, asks []domain.Level) float64 {
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}
	return asks[0].Price - bids[0].Price
}
