package ledger

import (
	"sort"

	"atlas-perpsim/internal/domain"
)

// Snapshot projects the ledger into the read-only shape callers and
// `account` events carry (spec.md §4.4.5).
func (l *Ledger) Snapshot(accountID string) domain.AccountSnapshot {
	symbols := make([]string, 0, len(l.Positions))
	for symbol := range l.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var totalUnrealized float64
	rows := make([]domain.PositionRow, 0, len(symbols))
	for _, symbol := range symbols {
		pos := l.Positions[symbol]
		row, unrealized := positionRow(symbol, pos)
		rows = append(rows, row)
		totalUnrealized += unrealized
	}

	return domain.AccountSnapshot{
		AccountID:          accountID,
		CashBalance:        l.CashBalance,
		AvailableCash:      l.AvailableCash(),
		BorrowedBalance:    l.BorrowedBalance(),
		Equity:             l.Equity(),
		MarginBalance:      l.MarginBalance(),
		QuoteCurrency:      l.QuoteCurrency,
		Positions:          rows,
		TotalRealizedPnl:   l.TotalRealized,
		TotalUnrealizedPnl: totalUnrealized,
		TotalFundingPnl:    l.TotalFunding,
	}
}

func positionRow(symbol string, pos *domain.Position) (domain.PositionRow, float64) {
	unrealized := (pos.MarkPrice - pos.AvgEntryPrice) * pos.Quantity
	notional := abs(pos.Quantity) * refPrice(pos)

	var leverage *float64
	if pos.Margin > 0 {
		lv := notional / pos.Margin
		leverage = &lv
	}

	row := domain.PositionRow{
		Symbol:     symbol,
		Side:       pos.Side(),
		Quantity:   abs(pos.Quantity),
		AvgEntry:   pos.AvgEntryPrice,
		Realized:   pos.RealizedPnl,
		Unrealized: unrealized,
		Mark:       pos.MarkPrice,
		Margin:     pos.Margin,
		Notional:   notional,
		Leverage:   leverage,
		ExitPlan:   pos.ExitPlan.Clone(),
	}
	return row, unrealized
}

func refPrice(pos *domain.Position) float64 {
	if pos.AvgEntryPrice != 0 {
		return pos.AvgEntryPrice
	}
	return pos.MarkPrice
}
