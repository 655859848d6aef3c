// Atlas Perpsim demo: walks the end-to-end scenarios spec.md §8 describes
// against a real ExchangeCore — market fills across levels, a position
// flip, an insufficient-cash rejection, a stop-triggered auto-close, and a
// funding accrual — narrated the way the teacher's cmd/oms demo prints its
// own scenarios.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"atlas-perpsim/internal/config"
	"atlas-perpsim/internal/domain"
	"atlas-perpsim/internal/exchange"
	"atlas-perpsim/internal/feed"
	"atlas-perpsim/internal/journal"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("   Atlas Perpsim - Perpetual Futures Simulator")
	fmt.Println("   In-Process Exchange Demo")
	fmt.Println("===========================================")
	fmt.Println()

	printSeparator("INITIALIZING SYSTEM COMPONENTS")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":9090", mux); err != nil {
			log.Printf("[simulator] metrics server stopped: %v", err)
		}
	}()
	fmt.Println("✓ Metrics server listening on :9090/metrics")

	registry := feed.NewStaticRegistry(map[string]feed.MarketMeta{
		"BTC": {MarketID: "BTC-PERP", PriceDecimals: 2, QtyDecimals: 4},
	})
	bookFeed := feed.NewMockBookFeed(map[string]feed.RawBook{
		"BTC-PERP": scenarioBook(),
	})
	fundingFeed := feed.NewMockFundingFeed(nil)
	sink := &logSink{}

	seed := int64(1)
	opts := config.Defaults()
	opts.InitialCapital = 1000
	opts.Fees = config.Fees{MakerBps: 2, TakerBps: 5}
	opts.Slippage = config.Slippage{MaxBasisPoints: 0}
	opts.Latency = config.Latency{MinMs: 0, MaxMs: 0}
	opts.DeterministicSeed = &seed
	opts.RefreshIntervalMs = 250
	opts.FundingRefreshIntervalMs = 250

	core := exchange.New(context.Background(), opts, exchange.Deps{
		Registry:    registry,
		BookFeed:    bookFeed,
		FundingFeed: fundingFeed,
		Sink:        sink,
	})
	defer core.Stop()
	fmt.Println("✓ ExchangeCore bootstrapped (seed=1, BTC book primed)")

	core.Events().On(domain.TradeEventKind, func(p any) {
		t := p.(domain.TradeEvent)
		fmt.Printf("💱 trade: %s %s %s qty=%.4f avg=%.4f status=%s\n",
			t.AccountID, t.Symbol, t.Direction, t.Result.TotalQuantity, t.Result.AveragePrice, t.Result.Status)
	})
	core.Events().On(domain.AccountEventKind, func(p any) {
		a := p.(domain.AccountEvent)
		fmt.Printf("📒 account: %s equity=%.4f cash=%.4f\n", a.AccountID, a.Snapshot.Equity, a.Snapshot.CashBalance)
	})

	// ===================================
	// Scenario 1: Market long fully filled within one level
	// ===================================
	printSeparator("SCENARIO 1: MARKET LONG WITHIN ONE LEVEL")

	exec1, err := core.PlaceOrder(exchange.PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 2})
	must(err)
	printExecution("buy 2 @ market", exec1)
	printSnapshot(core.GetAccountSnapshot("default"))

	core.ResetAccount("default")

	// ===================================
	// Scenario 2: Market long spanning two levels
	// ===================================
	printSeparator("SCENARIO 2: MARKET LONG SPANNING TWO LEVELS")

	exec2, err := core.PlaceOrder(exchange.PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 7})
	must(err)
	printExecution("buy 7 @ market", exec2)
	printSnapshot(core.GetAccountSnapshot("default"))

	// ===================================
	// Scenario 3: Close long flips to short
	// ===================================
	printSeparator("SCENARIO 3: CLOSE LONG FLIPS TO SHORT")

	core.ResetAccount("default")
	_, err = core.PlaceOrder(exchange.PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 2})
	must(err)
	exec3, err := core.PlaceOrder(exchange.PlaceOrderInput{Symbol: "BTC", Side: "sell", Quantity: 5})
	must(err)
	printExecution("sell 5 @ market (flips long -> short)", exec3)
	printSnapshot(core.GetAccountSnapshot("default"))

	// ===================================
	// Scenario 4: Insufficient cash
	// ===================================
	printSeparator("SCENARIO 4: INSUFFICIENT CASH REJECTED")

	tightOpts := opts
	tightOpts.InitialCapital = 100
	tightCore := exchange.New(context.Background(), tightOpts, exchange.Deps{
		Registry: registry,
		BookFeed: bookFeed,
	})
	defer tightCore.Stop()
	exec4, err := tightCore.PlaceOrder(exchange.PlaceOrderInput{AccountID: "tight", Symbol: "BTC", Side: "buy", Quantity: 5})
	must(err)
	printExecution("buy 5 @ market on a 100-cash account", exec4)

	// ===================================
	// Scenario 5: Stop trigger and auto-close
	// ===================================
	printSeparator("SCENARIO 5: STOP TRIGGER AUTO-CLOSES A POSITION")

	core.ResetAccount("default")
	_, err = core.PlaceOrder(exchange.PlaceOrderInput{Symbol: "BTC", Side: "buy", Quantity: 1})
	must(err)
	stop := 95.0
	core.SetExitPlan("default", "BTC", &domain.ExitPlan{Stop: &stop})
	fmt.Println("📉 market crashes: mid drops from 99.5 to 93.5")
	bookFeed.SetBook("BTC-PERP", feed.RawBook{
		Bids: []domain.Level{{Price: 93, Quantity: 5}},
		Asks: []domain.Level{{Price: 94, Quantity: 5}},
	})
	time.Sleep(400 * time.Millisecond) // let the refresh ticker observe the new book and auto-close
	printSnapshot(core.GetAccountSnapshot("default"))

	// ===================================
	// Scenario 6: Funding accrual
	// ===================================
	printSeparator("SCENARIO 6: FUNDING ACCRUAL")

	core.ResetAccount("funded")
	_, err = core.PlaceOrder(exchange.PlaceOrderInput{AccountID: "funded", Symbol: "BTC", Side: "buy", Quantity: 10})
	must(err)
	fundingFeed.SetRates([]feed.FundingRate{{Symbol: "BTC", Rate: 0.0001, Exchange: "primary"}})
	fmt.Println("⏱  waiting for two refresh ticks to accrue funding...")
	time.Sleep(600 * time.Millisecond)
	printSnapshot(core.GetAccountSnapshot("funded"))

	printSeparator("SUMMARY")
	fmt.Println("✅ Scenario 1: single-level market long filled")
	fmt.Println("✅ Scenario 2: multi-level market long filled with blended average price")
	fmt.Println("✅ Scenario 3: closing trade flipped long into a fresh short leg")
	fmt.Println("✅ Scenario 4: undercapitalized order rejected before touching the ledger")
	fmt.Println("✅ Scenario 5: stop breach auto-closed the position via the refresh tick")
	fmt.Println("✅ Scenario 6: funding accrued against the open long at the configured rate")
	fmt.Println()
	fmt.Println("Atlas Perpsim demo completed. Shutting down.")
}

func scenarioBook() feed.RawBook {
	return feed.RawBook{
		Bids: []domain.Level{{Price: 99, Quantity: 5}, {Price: 98, Quantity: 5}},
		Asks: []domain.Level{{Price: 100, Quantity: 5}, {Price: 101, Quantity: 5}},
	}
}

func printSeparator(title string) {
	fmt.Println()
	fmt.Println("===========================================")
	fmt.Printf("  %s\n", title)
	fmt.Println("===========================================")
	fmt.Println()
}

func printExecution(label string, exec domain.Execution) {
	fmt.Printf("📝 %s [clientOrderId=%s]\n", label, exec.ClientOrderID)
	fmt.Printf("   status=%s avg=%.4f qty=%.4f fees=%.4f reason=%q\n",
		exec.Status, exec.AveragePrice, exec.TotalQuantity, exec.TotalFees, exec.Reason)
}

func printSnapshot(snap domain.AccountSnapshot) {
	fmt.Printf("📊 account %s: cash=%.4f equity=%.4f margin=%.4f\n",
		snap.AccountID, snap.CashBalance, snap.Equity, snap.MarginBalance)
	for _, row := range snap.Positions {
		fmt.Printf("   %s %s qty=%.4f avgEntry=%.4f mark=%.4f margin=%.4f realized=%.4f\n",
			row.Symbol, row.Side, row.Quantity, row.AvgEntry, row.Mark, row.Margin, row.Realized)
	}
}

func must(err error) {
	if err != nil {
		log.Fatalf("[simulator] %v", err)
	}
}

// logSink is the demo's invocation-journal collaborator: it simply logs
// each auto-close rather than persisting it (spec.md §6 "Invocation
// journal", out of scope for the core itself).
type logSink struct{}

func (logSink) RecordAutoClose(rec journal.AutoCloseRecord) {
	fmt.Printf("🗒  auto-close journaled: %s %s qty=%.4f entry=%.4f exit=%.4f net=%.4f trigger=%s\n",
		rec.Side, rec.Symbol, rec.Quantity, rec.EntryPrice, rec.ExitPrice, rec.NetPnl, rec.AutoTrigger)
}
