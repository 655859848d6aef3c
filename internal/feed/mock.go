package feed

import (
	"context"
	"sync"
)

// MockBookFeed is a scriptable BookFeed keyed by marketId, in the same
// spirit as the teacher's infra/matching.MockMatching: a thin stand-in a
// demo program wires up directly, with no network behind it. Production
// hosts supply their own BookFeed against the real venue.
type MockBookFeed struct {
	mu     sync.Mutex
	books  map[string]RawBook
	errors map[string]error
}

// NewMockBookFeed seeds a MockBookFeed with an initial marketId->book table.
func NewMockBookFeed(seed map[string]RawBook) *MockBookFeed {
	books := make(map[string]RawBook, len(seed))
	for k, v := range seed {
		books[k] = v
	}
	return &MockBookFeed{books: books, errors: make(map[string]error)}
}

// SetBook replaces the book returned for marketID on the next GetOrderBook.
func (f *MockBookFeed) SetBook(marketID string, book RawBook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books[marketID] = book
	delete(f.errors, marketID)
}

// FailNext arranges for the next GetOrderBook(marketID) call to return err.
func (f *MockBookFeed) FailNext(marketID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[marketID] = err
}

// GetOrderBook implements BookFeed.
func (f *MockBookFeed) GetOrderBook(ctx context.Context, marketID string) (RawBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.errors[marketID]; ok {
		delete(f.errors, marketID)
		return RawBook{}, err
	}
	return f.books[marketID], nil
}

// MockFundingFeed is a scriptable FundingFeed returning a fixed table.
type MockFundingFeed struct {
	mu    sync.Mutex
	rates []FundingRate
}

// NewMockFundingFeed seeds a MockFundingFeed with an initial rate table.
func NewMockFundingFeed(rates []FundingRate) *MockFundingFeed {
	return &MockFundingFeed{rates: append([]FundingRate(nil), rates...)}
}

// SetRates replaces the table returned by the next FundingRates call.
func (f *MockFundingFeed) SetRates(rates []FundingRate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates = append([]FundingRate(nil), rates...)
}

// FundingRates implements FundingFeed.
func (f *MockFundingFeed) FundingRates(ctx context.Context) ([]FundingRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FundingRate(nil), f.rates...), nil
}
