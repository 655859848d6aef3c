// Package config holds the single options record ExchangeCore is
// bootstrapped with, plus the defaults the teacher hardcodes as named
// constants (see liquidation_service.go's MaintenanceMarginRate) and an
// optional YAML loader for the same record.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Latency bounds sampled per taker/maker fill (spec.md §4.3).
type Latency struct {
	MinMs int64 `yaml:"min_ms"`
	MaxMs int64 `yaml:"max_ms"`
}

// Slippage bounds a taker fill's price impact.
type Slippage struct {
	MaxBasisPoints float64 `yaml:"max_basis_points"`
}

// Fees names the maker/taker fee schedule, in basis points.
type Fees struct {
	MakerBps float64 `yaml:"maker_bps"`
	TakerBps float64 `yaml:"taker_bps"`
}

// Options is the simulator's single configuration record (spec.md §6).
type Options struct {
	InitialCapital    float64  `yaml:"initial_capital"`
	QuoteCurrency     string   `yaml:"quote_currency"`
	Latency           Latency  `yaml:"latency"`
	Slippage          Slippage `yaml:"slippage"`
	Fees              Fees     `yaml:"fees"`
	DeterministicSeed *int64   `yaml:"deterministic_seed"`

	FundingPeriodHours       float64 `yaml:"funding_period_hours"`
	FundingRefreshIntervalMs int64   `yaml:"funding_refresh_interval_ms"`

	// PrimaryFundingSource is the exchange name preferred when the funding
	// feed returns more than one rate for the same normalized symbol
	// (spec.md §6 "prefers a configured primary source"). Empty means
	// "first one seen wins".
	PrimaryFundingSource string `yaml:"primary_funding_source"`

	RefreshIntervalMs int64 `yaml:"refresh_interval_ms"`

	// Enabled is the simulator's global on/off switch (spec.md §6
	// "Simulation mode is disabled"). Core.SetEnabled flips it at runtime;
	// Defaults sets it true so a loaded config only needs to name this
	// field when it wants the simulator to start disabled.
	Enabled bool `yaml:"enabled"`
}

// CashEpsilon is the solvency-check tolerance from spec.md §4.3/§8.
const CashEpsilon = 1e-6

// DustThreshold is the realized-pnl tolerance under which a zero-quantity
// position is reaped (spec.md §3 "Lifecycles").
const DustThreshold = 0.01

// MarginDustThreshold is the tolerance below which margin collapses to 0
// (spec.md §3 global invariants).
const MarginDustThreshold = 1e-6

// Defaults mirrors the values spec.md §2 documents as defaults.
func Defaults() Options {
	return Options{
		InitialCapital: 1000,
		QuoteCurrency:  "USDT",
		Latency:        Latency{MinMs: 0, MaxMs: 250},
		Slippage:       Slippage{MaxBasisPoints: 5},
		Fees:           Fees{MakerBps: 2, TakerBps: 5},

		FundingPeriodHours:       8,
		FundingRefreshIntervalMs: int64(10 * time.Minute / time.Millisecond),

		RefreshIntervalMs: 1000,
		Enabled:           true,
	}
}

// FundingPeriodMs converts FundingPeriodHours to milliseconds.
func (o Options) FundingPeriodMs() float64 {
	return o.FundingPeriodHours * 60 * 60 * 1000
}

// Load reads an Options record from a YAML file, starting from Defaults so
// a partial file only overrides what it names.
func Load(path string) (Options, error) {
	opts := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return opts, nil
}
