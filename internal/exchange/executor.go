package exchange

// executor is the single long-lived goroutine every Core operation and the
// refresh tick run on, so books and ledgers never see a torn read
// (spec.md §5 "single executor"). It generalizes the teacher's
// engine.Worker — one channel of thunks drained by one goroutine — without
// the dispatcher's symbol-hashed fan-out to N workers: this core needs
// exactly one serialization domain, not a shard per symbol.
type executor struct {
	ch   chan func()
	done chan struct{}
}

func newExecutor() *executor {
	e := &executor{
		ch:   make(chan func(), 256),
		done: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *executor) loop() {
	for fn := range e.ch {
		fn()
	}
	close(e.done)
}

// run submits fn and blocks until it has completed, so the caller
// observes fn's effects as if it ran inline — while still guaranteeing fn
// never overlaps with any other submitted fn or the refresh tick.
func (e *executor) run(fn func()) {
	wait := make(chan struct{})
	e.ch <- func() {
		fn()
		close(wait)
	}
	<-wait
}

// stop drains remaining work and waits for the loop goroutine to exit.
func (e *executor) stop() {
	close(e.ch)
	<-e.done
}
