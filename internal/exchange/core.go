// Package exchange implements ExchangeCore: the single point of ingress
// that owns every MarketBook and AccountLedger in the process, orchestrates
// the refresh/funding/auto-close tick, and fans results out over an
// eventbus.Bus (spec.md §4.5). It generalizes the teacher's
// service.OrderService + service.LiquidationService + engine.Worker into
// one serialized core, trading the teacher's event-sourced persistence
// (internal/snapshot) for the in-memory, non-persistent model spec.md §1
// calls for.
package exchange

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"atlas-perpsim/internal/config"
	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/eventbus"
	"atlas-perpsim/internal/feed"
	"atlas-perpsim/internal/journal"
	"atlas-perpsim/internal/ledger"
	"atlas-perpsim/internal/market"
	"atlas-perpsim/internal/random"
	"atlas-perpsim/pkg/idgen"
)

const defaultAccountID = "default"

// Deps bundles Core's external, read-only collaborators (spec.md §6
// "External data collaborators"). Registry and BookFeed are required;
// FundingFeed and Sink may be nil, in which case funding accrual and
// auto-close journaling become no-ops.
type Deps struct {
	Registry    feed.MarketRegistry
	BookFeed    feed.BookFeed
	FundingFeed feed.FundingFeed
	Sink        journal.Sink
}

// Core owns every book and account ledger for one process. All mutating
// state is only ever touched from the goroutine exec runs — see
// executor.go — so Core itself holds no mutex.
type Core struct {
	options  config.Options
	bookFeed feed.BookFeed
	sink     journal.Sink
	rng      random.Source
	idGen    *idgen.Generator
	bus      *eventbus.Bus
	exec     *executor
	enabled  atomic.Bool

	books     map[string]*market.Book
	marketIDs map[string]string
	ledgers   map[string]*ledger.Ledger

	fundingFeed      feed.FundingFeed
	fundingRates     map[string]feed.FundingRate
	lastAppliedAt    map[string]time.Time
	lastFundingFetch time.Time

	pendingAutoClose map[string]bool
	autoCloseQueue   []domain.ExitTrigger

	stopCh   chan struct{}
	stopOnce sync.Once
}

var (
	singletonOnce sync.Once
	singleton     *Core
)

// Bootstrap yields the process-wide Core singleton. The first call
// constructs and starts it with opts/deps; every later call returns the
// same instance and ignores its arguments (spec.md §4.5 "at most one core
// per process"; SPEC_FULL.md §13 treats this as explicit construction
// behind an idempotent guard rather than a package-level global).
func Bootstrap(ctx context.Context, opts config.Options, deps Deps) *Core {
	singletonOnce.Do(func() {
		singleton = newCore(opts, deps)
		singleton.start(ctx)
	})
	return singleton
}

// New constructs and starts a standalone Core without touching the
// package singleton — the shape tests and cmd/simulator use so each gets
// its own isolated instance.
func New(ctx context.Context, opts config.Options, deps Deps) *Core {
	c := newCore(opts, deps)
	c.start(ctx)
	return c
}

func newCore(opts config.Options, deps Deps) *Core {
	var rng random.Source
	if opts.DeterministicSeed != nil {
		rng = random.NewLCG(*opts.DeterministicSeed)
	} else {
		rng = random.NewPlatform()
	}

	books := make(map[string]*market.Book)
	marketIDs := make(map[string]string)
	for symbol, meta := range deps.Registry.Markets() {
		norm := normalizeSymbol(symbol)
		books[norm] = market.New(norm)
		marketIDs[norm] = meta.MarketID
	}

	c := &Core{
		options:          opts,
		bookFeed:         deps.BookFeed,
		fundingFeed:      deps.FundingFeed,
		sink:             deps.Sink,
		rng:              rng,
		idGen:            idgen.New(),
		bus:              eventbus.New(),
		exec:             newExecutor(),
		books:            books,
		marketIDs:        marketIDs,
		ledgers:          make(map[string]*ledger.Ledger),
		fundingRates:     make(map[string]feed.FundingRate),
		lastAppliedAt:    make(map[string]time.Time),
		pendingAutoClose: make(map[string]bool),
		stopCh:           make(chan struct{}),
	}
	c.enabled.Store(opts.Enabled)
	return c
}

// start runs one synchronous priming tick (initial book + funding fetch)
// and then launches the background refresh ticker (spec.md §4.5
// "Initialization").
func (c *Core) start(ctx context.Context) {
	c.exec.run(func() {
		c.refreshFundingRates(ctx)
		for symbol := range c.books {
			c.books[symbol].Refresh(ctx, c.bookFeed, c.marketIDs[symbol])
		}
	})
	go c.tickLoop(ctx)
}

func (c *Core) tickLoop(ctx context.Context) {
	interval := time.Duration(c.options.RefreshIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.exec.run(func() { c.refreshTick(ctx) })
		}
	}
}

// Events returns the bus subscribers register on.
func (c *Core) Events() *eventbus.Bus {
	return c.bus
}

// SetEnabled flips the simulator's global on/off switch (spec.md §6). While
// disabled, PlaceOrder is rejected with "Simulation mode is disabled"
// before anything is matched or applied; the refresh tick keeps running
// regardless, since spec.md scopes the switch to order ingress only.
func (c *Core) SetEnabled(v bool) {
	c.enabled.Store(v)
}

// Stop halts the refresh ticker and the executor goroutine. Idempotent.
func (c *Core) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.exec.stop()
	})
}

func (c *Core) ledgerFor(accountID string) *ledger.Ledger {
	l, ok := c.ledgers[accountID]
	if !ok {
		l = ledger.New(c.options.InitialCapital, c.options.QuoteCurrency)
		c.ledgers[accountID] = l
	}
	return l
}
