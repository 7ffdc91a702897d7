package clients

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State is the position of a circuit breaker.
type State int

const (
	// StateClosed lets every engine message through.
	StateClosed State = iota

	// StateOpen refuses messages until the open window has passed.
	StateOpen

	// StateHalfOpen lets a few messages through to find out whether the engine recovered.
	StateHalfOpen
)

// String returns the state's name as it appears in logs and health output.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig sizes a circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the run of consecutive failures that opens the circuit.
	MaxFailures int

	// Timeout is how long the circuit stays open before letting a trial through.
	Timeout time.Duration

	// HalfOpenLimit is both the number of trial operations in flight and the run of
	// successful trials that closes the circuit again.
	HalfOpenLimit int
}

// Transition is one change of breaker state.
type Transition struct {
	From State
	To   State
	At   time.Time

	// Cause names the operation whose outcome moved the breaker, usually the
	// engine message name. Empty when the open window simply ran out.
	Cause string

	// Failures is the run of consecutive failures when the circuit opened.
	Failures int
}

// CircuitSnapshot is the breaker's state at one instant.
type CircuitSnapshot struct {
	State State

	// Failures is the current run of consecutive failures while closed.
	Failures int

	// RetryIn is how much of the open window is left. Zero unless open.
	RetryIn time.Duration

	// LastCause is the operation that caused the latest transition.
	LastCause string
}

// CircuitBreaker stops the relay from waiting on an engine that keeps failing.
//
//   - closed → open after MaxFailures consecutive failures
//   - open → half-open once Timeout has passed since the last failure
//   - half-open → closed after HalfOpenLimit consecutive successes
//   - half-open → open on any failure
//
// Observers registered with OnTransition run synchronously, after the
// breaker's lock is released, in registration order.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
	lastCause string
	cfg       CircuitBreakerConfig
	observers []func(Transition)
	now       func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnTransition adds an observer of state changes.
func (cb *CircuitBreaker) OnTransition(fn func(Transition)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.observers = append(cb.observers, fn)
}

// Allow reports whether an operation may go to the engine. An expired open
// window moves the breaker to half-open and admits the caller as a trial.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var (
		t       *Transition
		allowed bool
	)

	switch cb.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cfg.Timeout {
			t = cb.transitionTo(StateHalfOpen, "")
			cb.inFlight = 1
			allowed = true
		}
	case StateHalfOpen:
		if cb.inFlight < cb.cfg.HalfOpenLimit {
			cb.inFlight++
			allowed = true
		}
	}

	cb.release(t)

	return allowed
}

// RecordSuccess records a completed operation.
func (cb *CircuitBreaker) RecordSuccess(cause string) {
	cb.mu.Lock()

	var t *Transition

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.inFlight--
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenLimit {
			t = cb.transitionTo(StateClosed, cause)
		}
	}

	cb.release(t)
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure(cause string) {
	cb.mu.Lock()

	var t *Transition

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			t = cb.transitionTo(StateOpen, cause)
		}
	case StateHalfOpen:
		cb.inFlight--
		t = cb.transitionTo(StateOpen, cause)
	case StateOpen:
		// A trial admitted just before another one reopened the circuit.
		cb.openedAt = cb.now()
	}

	cb.release(t)
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Snapshot returns the current state with the remaining open window.
func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := CircuitSnapshot{State: cb.state, Failures: cb.failures, LastCause: cb.lastCause}
	if cb.state == StateOpen {
		s.RetryIn = max(cb.cfg.Timeout-cb.now().Sub(cb.openedAt), 0)
	}

	return s
}

// transitionTo changes state with cb.mu held and returns the change for release.
func (cb *CircuitBreaker) transitionTo(to State, cause string) *Transition {
	if cb.state == to {
		return nil
	}

	t := &Transition{From: cb.state, To: to, At: cb.now(), Cause: cause}
	if to == StateOpen {
		t.Failures = cb.failures
		cb.openedAt = t.At
	}

	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if cause != "" {
		cb.lastCause = cause
	}

	return t
}

// release unlocks cb.mu and then tells the observers about t, if any.
func (cb *CircuitBreaker) release(t *Transition) {
	var observers []func(Transition)
	if t != nil {
		observers = cb.observers
	}
	cb.mu.Unlock()

	for _, fn := range observers {
		fn(*t)
	}
}

// WatchCircuit exports the client's breaker on reg: a gauge of the current
// state (0 closed, 1 open, 2 half-open) and a counter of transitions by
// target state, both labelled with the downstream service.
func WatchCircuit(reg prometheus.Registerer, c *Client) {
	labels := prometheus.Labels{"downstream": c.serviceName}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "client",
		Name:        "circuit_transitions_total",
		Help:        "Circuit breaker state changes by target state.",
		ConstLabels: labels,
	}, []string{"to"})

	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "client",
			Name:        "circuit_state",
			Help:        "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
			ConstLabels: labels,
		}, func() float64 { return float64(c.cb.State()) }),
		transitions,
	)

	c.cb.OnTransition(func(t Transition) {
		transitions.WithLabelValues(t.To.String()).Inc()
	})
}
