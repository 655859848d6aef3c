// Package journal declares the invocation-journal sink the core hands
// completed auto-closes to. Persistent storage of invocations is out of
// scope for the core (spec.md §1); this package is the seam, not an
// implementation.
package journal

import "time"

// AutoCloseRecord is the payload handed to a Sink after an auto-close
// (stop/target trigger) resolves successfully.
type AutoCloseRecord struct {
	Symbol        string
	Side          string
	Quantity      float64
	EntryPrice    float64
	ExitPrice     float64
	RealizedPnl   float64
	UnrealizedPnl float64
	NetPnl        float64
	ClosedAt      time.Time
	AutoTrigger   string
}

// Sink receives AutoCloseRecords. The host supplies an implementation
// (e.g. backed by a database); a nil Sink is valid and simply means no one
// is listening.
type Sink interface {
	RecordAutoClose(rec AutoCloseRecord)
}
