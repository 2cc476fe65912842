package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker state (Closed, Open, HalfOpen).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("breaker open")

// Breaker protects an upstream source by opening after repeated failures and
// allowing probe requests in half-open state.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	lastFailure      time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	source           string
	onStateChange    func(from, to State) // optional, for metrics
}

// Config holds breaker parameters for one upstream source.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Source           string
	OnStateChange    func(from, to State)
}

// New creates a Breaker with the given config.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		source:           cfg.Source,
		onStateChange:    cfg.OnStateChange,
	}
}

// Call runs fn when the breaker allows it. When open, returns ErrOpen unless
// the timeout has elapsed, in which case the breaker moves to half-open and
// lets the call through as a probe.
func (b *Breaker) Call(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.lastFailure) < b.timeout {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrOpen, b.source)
		}
		b.transitionLocked(StateHalfOpen)
		b.successes = 0
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
			b.transitionLocked(StateOpen)
			b.failures = 0
		}
		return
	}

	b.successes++
	b.failures = 0
	if b.state == StateHalfOpen && b.successes >= b.successThreshold {
		b.transitionLocked(StateClosed)
		b.successes = 0
	}
}

// transitionLocked changes state and fires the callback. Must be called with the mutex held.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		// Callback runs under the lock; keep it cheap (metric increments only).
		b.onStateChange(from, to)
	}
}

// State returns the current state (for metrics and tests).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
