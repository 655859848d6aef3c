package matching

import (
	"math"
	"testing"

	"atlas-perpsim/internal/config"
	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/random"
)

func scenarioBook() domain.BookSnapshot {
	return domain.BookSnapshot{
		Symbol: "BTC",
		Bids:   []domain.Level{{Price: 99, Quantity: 5}, {Price: 98, Quantity: 5}},
		Asks:   []domain.Level{{Price: 100, Quantity: 5}, {Price: 101, Quantity: 5}},
	}
}

func scenarioConfig() config.Options {
	return config.Options{
		Fees:     config.Fees{MakerBps: 2, TakerBps: 5},
		Slippage: config.Slippage{MaxBasisPoints: 0},
		Latency:  config.Latency{MinMs: 0, MaxMs: 0},
	}
}

func approxEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestMarketBuyWithinOneLevel(t *testing.T) {
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Market, Quantity: 2}
	exec := Match(scenarioBook(), req, scenarioConfig(), random.NewLCG(1))

	if exec.Status != domain.Filled {
		t.Fatalf("expected filled, got %v (%s)", exec.Status, exec.Reason)
	}
	if len(exec.Fills) != 1 || exec.Fills[0].Price != 100 || exec.Fills[0].Quantity != 2 {
		t.Fatalf("unexpected fills: %+v", exec.Fills)
	}
	if !approxEqual(exec.TotalFees, 0.10, 1e-9) {
		t.Fatalf("expected fee 0.10, got %v", exec.TotalFees)
	}
}

func TestMarketBuySpansTwoLevels(t *testing.T) {
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Market, Quantity: 7}
	exec := Match(scenarioBook(), req, scenarioConfig(), random.NewLCG(1))

	if exec.Status != domain.Filled {
		t.Fatalf("expected filled, got %v", exec.Status)
	}
	if len(exec.Fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(exec.Fills))
	}
	wantAvg := (5*100.0 + 2*101.0) / 7
	if !approxEqual(exec.AveragePrice, wantAvg, 1e-6) {
		t.Fatalf("expected avg %v, got %v", wantAvg, exec.AveragePrice)
	}
	wantFee := (5*100.0 + 2*101.0) * 5 * 1e-4
	if !approxEqual(exec.TotalFees, wantFee, 1e-6) {
		t.Fatalf("expected fee %v, got %v", wantFee, exec.TotalFees)
	}
}

func TestMarketBuyNoLiquidityRejected(t *testing.T) {
	book := domain.BookSnapshot{Symbol: "BTC", Bids: []domain.Level{{Price: 99, Quantity: 5}}}
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Market, Quantity: 1}
	exec := Match(book, req, scenarioConfig(), random.NewLCG(1))

	if exec.Status != domain.Rejected || exec.Reason != "no liquidity available" {
		t.Fatalf("expected rejected/no liquidity, got %v %q", exec.Status, exec.Reason)
	}
}

func TestMarketBuyPartialFill(t *testing.T) {
	book := domain.BookSnapshot{Symbol: "BTC", Asks: []domain.Level{{Price: 100, Quantity: 2}}}
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Market, Quantity: 5}
	exec := Match(book, req, scenarioConfig(), random.NewLCG(1))

	if exec.Status != domain.Partial || exec.Reason != "insufficient book depth" {
		t.Fatalf("expected partial/insufficient depth, got %v %q", exec.Status, exec.Reason)
	}
	if exec.TotalQuantity != 2 {
		t.Fatalf("expected total qty 2, got %v", exec.TotalQuantity)
	}
}

func TestLimitOrderMissingPriceRejected(t *testing.T) {
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Limit, Quantity: 1}
	exec := Match(scenarioBook(), req, scenarioConfig(), random.NewLCG(1))
	if exec.Status != domain.Rejected || exec.Reason != "limit order missing limitPrice" {
		t.Fatalf("expected rejected/missing limitPrice, got %v %q", exec.Status, exec.Reason)
	}
}

func TestLimitOrderRestsWhenNotCrossing(t *testing.T) {
	price := 95.0
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Limit, Quantity: 1, LimitPrice: &price}
	exec := Match(scenarioBook(), req, scenarioConfig(), random.NewLCG(1))

	if exec.Status != domain.Filled {
		t.Fatalf("expected maker fill to report filled, got %v", exec.Status)
	}
	if len(exec.Fills) != 1 || !exec.Fills[0].Maker || exec.Fills[0].Price != 95 {
		t.Fatalf("expected single maker fill at limit price, got %+v", exec.Fills)
	}
	wantFee := 1 * 95.0 * 2 * 1e-4
	if !approxEqual(exec.TotalFees, wantFee, 1e-9) {
		t.Fatalf("expected maker fee %v, got %v", wantFee, exec.TotalFees)
	}
}

func TestLimitBuyAtExactlyBestAskIsTaker(t *testing.T) {
	price := 100.0
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Limit, Quantity: 1, LimitPrice: &price}
	exec := Match(scenarioBook(), req, scenarioConfig(), random.NewLCG(1))

	if len(exec.Fills) != 1 || exec.Fills[0].Maker {
		t.Fatalf("expected a single taker fill for crossing-at-best-ask, got %+v", exec.Fills)
	}
}

func TestLimitOrderNeverPartials(t *testing.T) {
	price := 50.0
	req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Limit, Quantity: 1000, LimitPrice: &price}
	exec := Match(scenarioBook(), req, scenarioConfig(), random.NewLCG(1))

	if exec.Status != domain.Filled {
		t.Fatalf("expected maker order to always fully fill at the synthesized price, got %v", exec.Status)
	}
}

func TestDeterministicRNGReproducesExecutions(t *testing.T) {
	cfg := config.Options{
		Fees:     config.Fees{MakerBps: 2, TakerBps: 5},
		Slippage: config.Slippage{MaxBasisPoints: 10},
		Latency:  config.Latency{MinMs: 5, MaxMs: 50},
	}
	run := func() domain.Execution {
		req := domain.OrderRequest{Symbol: "BTC", Side: domain.Buy, Type: domain.Market, Quantity: 7}
		return Match(scenarioBook(), req, cfg, random.NewLCG(42))
	}

	a, b := run(), run()
	if len(a.Fills) != len(b.Fills) {
		t.Fatalf("fill count diverged")
	}
	for i := range a.Fills {
		if a.Fills[i] != b.Fills[i] {
			t.Fatalf("fill %d diverged: %+v vs %+v", i, a.Fills[i], b.Fills[i])
		}
	}
}
