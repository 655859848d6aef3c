package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atlas-perpsim/internal/domain"
)

func TestEmitDeliversToRegisteredKindOnly(t *testing.T) {
	bus := New()
	var bookCalls, tradeCalls int

	bus.On(domain.BookEventKind, func(any) { bookCalls++ })
	bus.On(domain.TradeEventKind, func(any) { tradeCalls++ })

	bus.Emit(domain.BookEventKind, domain.BookEvent{Symbol: "BTC"})

	require.Equal(t, 1, bookCalls)
	require.Equal(t, 0, tradeCalls)
}

func TestOffDeregistersByHandle(t *testing.T) {
	bus := New()
	calls := 0
	handle := bus.On(domain.AccountEventKind, func(any) { calls++ })

	bus.Emit(domain.AccountEventKind, domain.AccountEvent{})
	bus.Off(domain.AccountEventKind, handle)
	bus.Emit(domain.AccountEventKind, domain.AccountEvent{})

	require.Equal(t, 1, calls)
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	bus := New()
	secondCalled := false

	bus.On(domain.TradeEventKind, func(any) { panic("boom") })
	bus.On(domain.TradeEventKind, func(any) { secondCalled = true })

	bus.Emit(domain.TradeEventKind, domain.TradeEvent{Symbol: "BTC"})

	require.True(t, secondCalled, "expected second listener to run despite first panicking")
}

func TestMultipleListenersReceiveSamePayload(t *testing.T) {
	bus := New()
	var seenA, seenB string

	bus.On(domain.BookEventKind, func(p any) { seenA = p.(domain.BookEvent).Symbol })
	bus.On(domain.BookEventKind, func(p any) { seenB = p.(domain.BookEvent).Symbol })

	bus.Emit(domain.BookEventKind, domain.BookEvent{Symbol: "ETH"})

	require.Equal(t, "ETH", seenA)
	require.Equal(t, "ETH", seenB)
}
