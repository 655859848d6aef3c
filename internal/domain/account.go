package domain

// PositionRow is one line of an AccountSnapshot — the read-only projection
// of a Position plus its derived notional/leverage.
type PositionRow struct {
	Symbol     string
	Side       Side
	Quantity   float64 // absolute
	AvgEntry   float64
	Realized   float64
	Unrealized float64
	Mark       float64
	Margin     float64
	Notional   float64
	Leverage   *float64 // nil when Margin == 0
	ExitPlan   *ExitPlan
}

// AccountSnapshot is the read-only, deep-copied projection of an
// AccountLedger handed out to callers and carried on `account` events.
type AccountSnapshot struct {
	AccountID          string
	CashBalance        float64
	AvailableCash      float64
	BorrowedBalance    float64
	Equity             float64
	MarginBalance      float64
	QuoteCurrency      string
	Positions          []PositionRow
	TotalRealizedPnl   float64
	TotalUnrealizedPnl float64
	TotalFundingPnl    float64
}
