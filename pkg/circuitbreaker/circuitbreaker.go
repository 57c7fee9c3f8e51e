// Package circuitbreaker stops calls to a failing dependency for a cool-down
// period so callers can fall back without waiting on timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down ends.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

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

var (
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when all half-open probe slots are taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// Settings configures a breaker. Zero values take the defaults below.
type Settings struct {
	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold int
	// SuccessThreshold consecutive probe successes close it again. Default 2.
	SuccessThreshold int
	// CoolDown is how long the breaker stays open. Default 30s.
	CoolDown time.Duration
	// MaxProbes is the number of concurrent half-open calls. Default 1.
	MaxProbes int
	// OnStateChange is called under the breaker lock; keep it short.
	OnStateChange func(name string, from, to State)
	// IsFailure decides which errors count. Nil counts every non-nil error.
	IsFailure func(error) bool
}

func (s *Settings) applyDefaults() {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 2
	}
	if s.CoolDown <= 0 {
		s.CoolDown = 30 * time.Second
	}
	if s.MaxProbes <= 0 {
		s.MaxProbes = 1
	}
}

// Stats is a snapshot of the breaker counters.
type Stats struct {
	State     State
	Calls     int
	Failures  int
	Rejected  int
	OpenedAt  time.Time
	Successes int
}

// CircuitBreaker guards calls to one dependency. Safe for concurrent use.
type CircuitBreaker struct {
	name string
	cfg  Settings
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  int // consecutive, closed state
	successes int // consecutive, half-open state
	probes    int // in flight, half-open state
	openedAt  time.Time
	stats     Stats
}

// New creates a closed breaker.
func New(name string, cfg Settings) *CircuitBreaker {
	cfg.applyDefaults()
	return &CircuitBreaker{name: name, cfg: cfg, now: time.Now}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the breaker rejects the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteWithFallback runs fn and calls fallback only when the breaker
// rejected the call. Errors returned by fn are passed through.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if IsRejected(err) {
		return fallback(err)
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.CoolDown {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.probes < cb.cfg.MaxProbes {
			cb.probes++
			return nil
		}
		cb.stats.Rejected++
		return ErrTooManyRequests
	default:
		cb.stats.Rejected++
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Calls++
	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}

	failed := err != nil
	if failed && cb.cfg.IsFailure != nil {
		failed = cb.cfg.IsFailure(err)
	}

	if !failed {
		cb.stats.Successes++
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.stats.Failures++
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures, cb.successes, cb.probes = 0, 0, 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// passed still reports open until the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := cb.stats
	s.State = cb.state
	s.OpenedAt = cb.openedAt
	return s
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures, cb.successes, cb.probes = 0, 0, 0
	cb.openedAt = time.Time{}
	cb.stats = Stats{}
}

// ──────────────────────────────────────────────────────────────────────────────
// Presets
// ──────────────────────────────────────────────────────────────────────────────

// CacheBreaker guards reads from an optional cache. It opens quickly and
// probes again after a short pause because every caller has a database
// fallback. Context cancellation by the caller is not counted as a failure.
func CacheBreaker(name string, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(name, Settings{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		CoolDown:         15 * time.Second,
		MaxProbes:        1,
		OnStateChange:    onStateChange,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	})
}
