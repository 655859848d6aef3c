package domain

import "time"

// EventKind names one of the three typed channels the EventBus dispatches.
type EventKind string

const (
	BookEventKind    EventKind = "book"
	TradeEventKind   EventKind = "trade"
	AccountEventKind EventKind = "account"
)

// BookSnapshot is the value-typed payload of a `book` event.
type BookSnapshot struct {
	Symbol    string
	Bids      []Level
	Asks      []Level
	MidPrice  float64
	Spread    float64
	Timestamp time.Time
}

// BookEvent is broadcast once per symbol per refresh tick.
type BookEvent struct {
	Symbol   string
	Snapshot BookSnapshot
}

// TradeEvent is broadcast once per admitted (non-rejected) execution.
type TradeEvent struct {
	ExecutionID  int64
	AccountID    string
	Symbol       string
	Result       Execution
	Timestamp    time.Time
	RealizedPnl  float64
	Notional     float64
	Leverage     *float64
	Confidence   *float64
	Direction    Side
	Completed    bool
	AccountValue float64
}

// AccountEvent is broadcast whenever an account's ledger changes.
type AccountEvent struct {
	AccountID string
	Snapshot  AccountSnapshot
}

// ExitTrigger names a position whose exit plan crossed at the current mark.
type ExitTrigger struct {
	AccountID string
	Symbol    string
	Trigger   TriggerKind
}
