package exchange

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"atlas-perpsim/internal/config"
	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/feed"
)

type fixedBookFeed struct {
	books map[string]feed.RawBook
}

func (f fixedBookFeed) GetOrderBook(ctx context.Context, marketID string) (feed.RawBook, error) {
	b, ok := f.books[marketID]
	if !ok {
		return feed.RawBook{}, errors.New("unknown market id")
	}
	return b, nil
}

func scenarioBook() feed.RawBook {
	return feed.RawBook{
		Bids: []domain.Level{{Price: 99, Quantity: 5}, {Price: 98, Quantity: 5}},
		Asks: []domain.Level{{Price: 100, Quantity: 5}, {Price: 101, Quantity: 5}},
	}
}

func scenarioOptions(seed int64) config.Options {
	opts := config.Defaults()
	opts.Fees = config.Fees{MakerBps: 2, TakerBps: 5}
	opts.Slippage = config.Slippage{MaxBasisPoints: 0}
	opts.Latency = config.Latency{MinMs: 0, MaxMs: 0}
	opts.InitialCapital = 1000
	opts.RefreshIntervalMs = 3_600_000 // demo core: tests drive refresh manually
	opts.DeterministicSeed = &seed
	return opts
}

func newTestCore(t *testing.T, opts config.Options) *Core {
	t.Helper()
	registry := feed.NewStaticRegistry(map[string]feed.MarketMeta{
		"BTC": {MarketID: "BTC-PERP"},
	})
	bookFeed := fixedBookFeed{books: map[string]feed.RawBook{"BTC-PERP": scenarioBook()}}

	c := New(context.Background(), opts, Deps{Registry: registry, BookFeed: bookFeed})
	t.Cleanup(c.Stop)
	return c
}

func approxExch(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}

func TestPlaceOrderMarketBuyFillsAndEmitsEvents(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	var trades []domain.TradeEvent
	var accounts []domain.AccountEvent
	c.Events().On(domain.TradeEventKind, func(p any) { trades = append(trades, p.(domain.TradeEvent)) })
	c.Events().On(domain.AccountEventKind, func(p any) { accounts = append(accounts, p.(domain.AccountEvent)) })

	exec, err := c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if exec.Status != domain.Filled {
		t.Fatalf("expected filled, got %+v", exec)
	}
	approxExch(t, exec.AveragePrice, 100, 1e-9, "avg price")

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade event, got %d", len(trades))
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account event, got %d", len(accounts))
	}

	snap := c.GetAccountSnapshot("default")
	approxExch(t, snap.CashBalance, 799.90, 1e-9, "cash")
	if len(snap.Positions) != 1 || snap.Positions[0].Quantity != 2 {
		t.Fatalf("unexpected positions: %+v", snap.Positions)
	}
}

func TestPlaceOrderValidationErrors(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	cases := []struct {
		name string
		in   PlaceOrderInput
		want string
	}{
		{"missing symbol", PlaceOrderInput{Symbol: "  ", Side: "buy", Quantity: 1}, "Symbol is required"},
		{"bad side", PlaceOrderInput{Symbol: "BTC", Side: "sideways", Quantity: 1}, "Unsupported order side"},
		{"zero qty", PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 0}, "Quantity must be positive"},
		{"limit missing price", PlaceOrderInput{Symbol: "BTC", Side: "buy", Type: domain.Limit, Quantity: 1}, "limitPrice must be a valid number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.PlaceOrder(tc.in)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("expected error %q, got %v", tc.want, err)
			}
		})
	}
}

func TestPlaceOrderSideAliasesLongShort(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	exec, err := c.PlaceOrder(PlaceOrderInput{Symbol: "btcusdt", Side: "long", Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != domain.Filled {
		t.Fatalf("expected filled, got %+v", exec)
	}

	exec, err = c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "short", Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != domain.Filled {
		t.Fatalf("expected filled, got %+v", exec)
	}
}

func TestPlaceOrderInsufficientCashRejected(t *testing.T) {
	opts := scenarioOptions(1)
	opts.InitialCapital = 100
	c := newTestCore(t, opts)

	exec, err := c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != domain.Rejected || exec.Reason != "insufficient available cash" {
		t.Fatalf("expected insufficient-cash rejection, got %+v", exec)
	}

	snap := c.GetAccountSnapshot("default")
	if snap.CashBalance != 100 {
		t.Fatalf("expected untouched cash, got %v", snap.CashBalance)
	}
}

func TestPlaceOrderRejectedWhileDisabled(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))
	c.SetEnabled(false)

	_, err := c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 1})
	if err == nil || err.Error() != "Simulation mode is disabled" {
		t.Fatalf("expected disabled-simulation error, got %v", err)
	}

	c.SetEnabled(true)
	exec, err := c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 1})
	if err != nil || exec.Status != domain.Filled {
		t.Fatalf("expected order to succeed once re-enabled, got exec=%+v err=%v", exec, err)
	}
}

func TestPlaceOrderUnknownMarketRejected(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	exec, err := c.PlaceOrder(PlaceOrderInput{Symbol: "DOGE", Side: "buy", Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != domain.Rejected || exec.Reason != "Unknown market" {
		t.Fatalf("expected unknown-market rejection, got %+v", exec)
	}
}

func TestClosePositionsNoOpenPositionRejected(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	results := c.ClosePositions("default", []string{"BTC"}, CloseOptions{})
	exec := results["BTC"]
	if exec.Status != domain.Rejected || exec.Reason != "no open position" {
		t.Fatalf("expected no-open-position rejection, got %+v", exec)
	}
}

func TestClosePositionsFlattensOpenPosition(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	if _, err := c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := c.ClosePositions("default", []string{"BTC"}, CloseOptions{})
	exec := results["BTC"]
	if !exec.IsAdmitted() {
		t.Fatalf("expected admitted close, got %+v", exec)
	}

	snap := c.GetAccountSnapshot("default")
	// The close realizes a nonzero loss (crossed the spread), so the row
	// survives at quantity 0 until its realized residual decays below the
	// dust threshold (spec.md §3 "Absent entry iff quantity is 0 and
	// |realized| < 0.01").
	for _, row := range snap.Positions {
		if row.Symbol == "BTC" && row.Quantity != 0 {
			t.Fatalf("expected BTC position flattened to zero quantity, got %+v", row)
		}
	}
}

func TestResetAccountIsIdempotent(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	if _, err := c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := c.ResetAccount("default")
	second := c.ResetAccount("default")

	if first.CashBalance != second.CashBalance || len(first.Positions) != len(second.Positions) {
		t.Fatalf("expected identical resets: %+v vs %+v", first, second)
	}
	if first.CashBalance != 1000 {
		t.Fatalf("expected reset to initial capital, got %v", first.CashBalance)
	}
}

func TestGetOrderBookUnknownMarket(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	_, err := c.GetOrderBook("DOGE")
	if err == nil || err.Error() != "Unknown market" {
		t.Fatalf("expected unknown-market error, got %v", err)
	}
}

func TestSetExitPlanNoOpWithoutPosition(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))
	stop := 90.0

	c.SetExitPlan("default", "BTC", &domain.ExitPlan{Stop: &stop})

	snap := c.GetAccountSnapshot("default")
	if len(snap.Positions) != 0 {
		t.Fatalf("expected no position created by setExitPlan, got %+v", snap.Positions)
	}
}

func TestRefreshTickAutoClosesOnStopTrigger(t *testing.T) {
	c := newTestCore(t, scenarioOptions(1))

	if _, err := c.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stop := 95.0
	c.SetExitPlan("default", "BTC", &domain.ExitPlan{Stop: &stop})

	// Re-point the feed at a book whose mid has crashed through the stop.
	c.bookFeed = fixedBookFeed{books: map[string]feed.RawBook{
		"BTC-PERP": {
			Bids: []domain.Level{{Price: 93, Quantity: 5}},
			Asks: []domain.Level{{Price: 94, Quantity: 5}},
		},
	}}

	c.exec.run(func() { c.refreshTick(context.Background()) })

	snap := c.GetAccountSnapshot("default")
	for _, row := range snap.Positions {
		if row.Symbol == "BTC" && row.Quantity != 0 {
			t.Fatalf("expected stop to auto-close the position, got %+v", row)
		}
	}
}

func TestDeterministicCoresProduceIdenticalExecutions(t *testing.T) {
	c1 := newTestCore(t, scenarioOptions(42))
	c2 := newTestCore(t, scenarioOptions(42))

	e1, _ := c1.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 7})
	e2, _ := c2.PlaceOrder(PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 7})

	if len(e1.Fills) != len(e2.Fills) {
		t.Fatalf("expected identical fill counts, got %d vs %d", len(e1.Fills), len(e2.Fills))
	}
	for i := range e1.Fills {
		if e1.Fills[i] != e2.Fills[i] {
			t.Fatalf("fill %d diverged: %+v vs %+v", i, e1.Fills[i], e2.Fills[i])
		}
	}
}

func TestNormalizeSymbolStripsUsdtSuffix(t *testing.T) {
	if got := normalizeSymbol("btcUSDT"); got != "BTC" {
		t.Fatalf("expected BTC, got %q", got)
	}
	if got := normalizeSymbol(" eth "); got != "ETH" {
		t.Fatalf("expected ETH, got %q", got)
	}
}

func TestFundingIncrementFirstCallIsNoOp(t *testing.T) {
	// Ensures fundingIncrement's first call for a symbol is a no-op rather
	// than back-dating to process start.
	c := newTestCore(t, scenarioOptions(1))
	rate := c.fundingIncrement("BTC")
	if rate != 0 {
		t.Fatalf("expected first funding call to be a no-op, got %v", rate)
	}
	time.Sleep(time.Millisecond)
	rate2 := c.fundingIncrement("BTC")
	if rate2 != 0 {
		t.Fatalf("expected zero funding increment with no rate configured, got %v", rate2)
	}
}
