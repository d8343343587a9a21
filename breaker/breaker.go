// Package breaker implements the three-state circuit breaker that guards
// every database call (spec.md §4.5). There is exactly one process-wide
// instance; the dispatcher owns it and passes a reference to whoever needs
// to permit/record outcomes.
package breaker

import (
	"sync"
	"time"
)

type Phase int

const (
	Closed Phase = iota
	Open
	HalfOpen
)

func (p Phase) String() string {
	switch p {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Clock is injected so recovery-timeout tests don't need real sleeps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds the thresholds from spec.md §4.5's table.
type Config struct {
	FailureThreshold int           // F
	RecoveryTimeout  time.Duration // R
	SuccessThreshold int           // S
}

func DefaultConfig() Config {
	return Config{FailureThreshold: 5, RecoveryTimeout: 60 * time.Second, SuccessThreshold: 2}
}

// Breaker is the single process-wide state machine of spec.md §3's
// CircuitState.
type Breaker struct {
	mu    sync.Mutex
	cfg   Config
	clock Clock

	phase               Phase
	consecutiveFailures int
	consecutiveSuccess  int
	openedAt            time.Time
	probeInFlight       bool
}

func New(cfg Config, clock Clock) *Breaker {
	if clock == nil {
		clock = systemClock{}
	}
	return &Breaker{cfg: cfg, clock: clock, phase: Closed}
}

// Permit reports whether a database call may proceed right now. While OPEN,
// calls are refused without touching the pool; once the recovery timeout has
// elapsed the breaker moves to HALF_OPEN and allows exactly one probe in
// flight at a time, refusing concurrent callers until that probe's outcome
// is recorded.
func (b *Breaker) Permit() (ok bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case Closed:
		return true, 0
	case HalfOpen:
		if b.probeInFlight {
			return false, 0
		}
		b.probeInFlight = true
		return true, 0
	case Open:
		now := b.clock.Now()
		elapsed := now.Sub(b.openedAt)
		if elapsed >= b.cfg.RecoveryTimeout {
			b.phase = HalfOpen
			b.consecutiveSuccess = 0
			b.probeInFlight = true
			return true, 0
		}
		return false, b.cfg.RecoveryTimeout - elapsed
	default:
		return false, 0
	}
}

// RecordSuccess applies the CLOSED/HALF_OPEN "success" transitions of the
// state table in spec.md §4.5.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case Closed:
		b.consecutiveFailures = 0
	case HalfOpen:
		b.consecutiveSuccess++
		b.probeInFlight = false
		if b.consecutiveSuccess >= b.cfg.SuccessThreshold {
			b.phase = Closed
			b.consecutiveFailures = 0
			b.consecutiveSuccess = 0
		}
	}
}

// RecordFailure applies the CLOSED/HALF_OPEN "failure" transitions.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.phase = Open
			b.openedAt = b.clock.Now()
		}
	case HalfOpen:
		b.phase = Open
		b.probeInFlight = false
		b.openedAt = b.clock.Now()
		b.consecutiveSuccess = 0
	}
}

// State is a snapshot for audit/introspection purposes.
type State struct {
	Phase               Phase
	ConsecutiveFailures int
	ConsecutiveSuccess  int
	OpenedAt            time.Time
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		Phase:               b.phase,
		ConsecutiveFailures: b.consecutiveFailures,
		ConsecutiveSuccess:  b.consecutiveSuccess,
		OpenedAt:            b.openedAt,
	}
}
