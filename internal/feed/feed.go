// Package feed declares the external, read-only market-data collaborators
// the core consumes: a level-2 order-book source, a funding-rate source,
// and a static market registry. None of these are implemented here — the
// host process supplies them (spec.md §6 "External data collaborators").
package feed

import (
	"context"

	"atlas-perpsim/internal/domain"
)

// RawBook is the unvalidated snapshot returned by a BookFeed: bids sorted
// descending by price, asks sorted ascending, both finite.
type RawBook struct {
	Bids []domain.Level
	Asks []domain.Level
}

// BookFeed fetches a fresh level-2 snapshot for one market. Implementations
// must accept ctx cancellation promptly (spec.md §5).
type BookFeed interface {
	GetOrderBook(ctx context.Context, marketID string) (RawBook, error)
}

// FundingRate is one exchange's published rate for a symbol, "per full
// funding period" (see config.Options.FundingPeriodHours).
type FundingRate struct {
	Symbol   string
	Rate     float64
	Exchange string
}

// FundingFeed fetches the current funding-rate table across exchanges. The
// core dedups by normalized symbol and prefers a configured primary
// exchange when more than one rate is present for a symbol.
type FundingFeed interface {
	FundingRates(ctx context.Context) ([]FundingRate, error)
}

// MarketMeta is one row of the static symbol registry.
type MarketMeta struct {
	MarketID         string
	PriceDecimals    int
	QtyDecimals      int
	ClientOrderIndex int
}

// MarketRegistry is the static, process-lifetime table of tradable symbols.
type MarketRegistry interface {
	Markets() map[string]MarketMeta
}

// StaticRegistry is a MarketRegistry backed by a fixed in-memory table —
// the shape the host typically supplies it in (a config-loaded map), used
// directly by cmd/simulator's demo and by tests.
type StaticRegistry struct {
	markets map[string]MarketMeta
}

// NewStaticRegistry builds a StaticRegistry from a symbol->meta map.
func NewStaticRegistry(markets map[string]MarketMeta) *StaticRegistry {
	cp := make(map[string]MarketMeta, len(markets))
	for k, v := range markets {
		cp[k] = v
	}
	return &StaticRegistry{markets: cp}
}

// Markets returns the registry's symbol table.
func (r *StaticRegistry) Markets() map[string]MarketMeta {
	cp := make(map[string]MarketMeta, len(r.markets))
	for k, v := range r.markets {
		cp[k] = v
	}
	return cp
}
