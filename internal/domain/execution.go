package domain

// Fill is one match produced by the matcher, either against a resting book
// level (taker) or synthesized at the limit price (maker).
type Fill struct {
	Quantity    float64
	Price       float64
	Maker       bool
	Fee         float64
	SlippageBps float64
	LatencyMs   int64
}

// Execution is the result of matching a single OrderRequest against a book.
// Status is Filled iff the full requested quantity matched, Partial iff some
// but not all of it did, Rejected iff none of it did.
type Execution struct {
	ClientOrderID string
	Fills         []Fill
	AveragePrice  float64
	TotalQuantity float64
	TotalFees     float64
	Status        ExecStatus
	Reason        string
}

// NewRejected builds a zero-fill rejected execution with the given reason.
func NewRejected(reason string) Execution {
	return Execution{Status: Rejected, Reason: reason}
}

// IsAdmitted reports whether the execution moved any quantity at all.
func (e Execution) IsAdmitted() bool {
	return e.Status != Rejected && e.TotalQuantity > 0
}
