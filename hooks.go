package backstop

import "time"

// Hooks holds optional callback functions for recovery pattern lifecycle
// events. All fields are nil by default; callers set only the hooks they
// care about. Once constructed, a Hooks value must not be mutated — emit
// methods read the function fields without synchronisation, which is safe
// as long as the struct is read-only after initialisation.
//
// Hooks are fire-and-forget observability taps: they are never awaited, and
// a panicking hook is swallowed rather than allowed to corrupt the main
// control flow.
//
// Pattern: Observer — decouples recovery event emission from consumers
// (logging, metrics, alerting) without patterns knowing about observers.
type Hooks struct {
	OnRetry           func(attempt int, delay time.Duration, err error)
	OnCircuitOpen     func()
	OnCircuitClose    func()
	OnCircuitHalfOpen func()
	OnTimeout         func()
	OnStaleServed     func(age time.Duration)
	OnCacheRefreshed  func()
	OnDegraded        func(err error)
	OnFallbackUsed    func(err error)
}

// guard runs fn, absorbing any panic. Observability must never take the
// caller down.
func guard(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

func (h *Hooks) emitRetry(attempt int, delay time.Duration, err error) {
	if h != nil && h.OnRetry != nil {
		guard(func() { h.OnRetry(attempt, delay, err) })
	}
}

func (h *Hooks) emitCircuitOpen() {
	if h != nil && h.OnCircuitOpen != nil {
		guard(h.OnCircuitOpen)
	}
}

func (h *Hooks) emitCircuitClose() {
	if h != nil && h.OnCircuitClose != nil {
		guard(h.OnCircuitClose)
	}
}

func (h *Hooks) emitCircuitHalfOpen() {
	if h != nil && h.OnCircuitHalfOpen != nil {
		guard(h.OnCircuitHalfOpen)
	}
}

func (h *Hooks) emitTimeout() {
	if h != nil && h.OnTimeout != nil {
		guard(h.OnTimeout)
	}
}

func (h *Hooks) emitStaleServed(age time.Duration) {
	if h != nil && h.OnStaleServed != nil {
		guard(func() { h.OnStaleServed(age) })
	}
}

func (h *Hooks) emitCacheRefreshed() {
	if h != nil && h.OnCacheRefreshed != nil {
		guard(h.OnCacheRefreshed)
	}
}

func (h *Hooks) emitDegraded(err error) {
	if h != nil && h.OnDegraded != nil {
		guard(func() { h.OnDegraded(err) })
	}
}

func (h *Hooks) emitFallbackUsed(err error) {
	if h != nil && h.OnFallbackUsed != nil {
		guard(func() { h.OnFallbackUsed(err) })
	}
}
