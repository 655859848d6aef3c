package exchange

import (
	"errors"
	"math"
	"strings"

	"atlas-perpsim/internal/domain"
)

// PlaceOrderInput is PlaceOrder's ingress shape (spec.md §6): looser than
// domain.OrderRequest so callers may spell side as long/short, omit a
// type (defaults to market), and leave accountId blank (defaults to
// "default").
type PlaceOrderInput struct {
	AccountID  string
	Symbol     string
	Side       string
	Type       domain.OrderType
	Quantity   float64
	LimitPrice *float64
	Leverage   *float64
	Confidence *float64
	ExitPlan   *domain.ExitPlan
}

// normalizeOrderInput validates in per spec.md §6's error table and
// returns the normalized domain request plus resolved account id.
// Validation errors are raised here, synchronously, before anything is
// submitted to the executor — nothing has mutated yet.
func (c *Core) normalizeOrderInput(in PlaceOrderInput) (domain.OrderRequest, string, error) {
	if !c.enabled.Load() {
		return domain.OrderRequest{}, "", errors.New("Simulation mode is disabled")
	}

	symbol := strings.TrimSpace(in.Symbol)
	if symbol == "" {
		return domain.OrderRequest{}, "", errors.New("Symbol is required")
	}
	symbol = normalizeSymbol(symbol)

	side, err := normalizeSide(in.Side)
	if err != nil {
		return domain.OrderRequest{}, "", err
	}

	if in.Quantity <= 0 || !isFinite(in.Quantity) {
		return domain.OrderRequest{}, "", errors.New("Quantity must be positive")
	}

	orderType := in.Type
	if orderType == "" {
		orderType = domain.Market
	}

	if orderType == domain.Limit {
		if in.LimitPrice == nil || !isFinite(*in.LimitPrice) || *in.LimitPrice <= 0 {
			return domain.OrderRequest{}, "", errors.New("limitPrice must be a valid number")
		}
	}

	if in.Leverage != nil && (!isFinite(*in.Leverage) || *in.Leverage <= 0) {
		return domain.OrderRequest{}, "", errors.New("leverage must be a valid number")
	}

	return domain.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Quantity:   in.Quantity,
		LimitPrice: in.LimitPrice,
		Leverage:   in.Leverage,
		Confidence: in.Confidence,
		ExitPlan:   in.ExitPlan,
	}, normalizeAccountID(in.AccountID), nil
}

func normalizeSide(raw string) (domain.Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return domain.Buy, nil
	case "sell", "short":
		return domain.Sell, nil
	default:
		return "", errors.New("Unsupported order side")
	}
}

// normalizeSymbol strips a trailing USDT suffix and uppercases, so "btcusdt"
// and "BTC" resolve to the same book (spec.md §3 "Symbol").
func normalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.TrimSuffix(s, "USDT")
}

func normalizeAccountID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return defaultAccountID
	}
	return id
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
