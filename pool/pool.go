// Package pool implements the bounded connection pool of spec.md §4.6: a
// fixed number of long-lived sessions, round-robin idle selection, a bounded
// wait for a free slot, and a background health probe that repairs broken
// slots without the caller ever blocking on a single bad connection.
//
// The pool is deliberately decoupled from the Oracle driver: callers supply
// a Dial func that opens one *sql.DB session, so the same pool logic backs
// both the real oracle.Dial and, in tests, a modernc.org/sqlite in-memory
// database or a fake database/sql/driver.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oracleguard/gateway/gwerr"
	"golang.org/x/sync/errgroup"
)

// Dial opens one pooled session. It is called once per slot at startup and
// again whenever a broken slot is repaired.
type Dial func(ctx context.Context) (*sql.DB, error)

// Config mirrors the pool_size / acquire_timeout_seconds / query_timeout_seconds
// knobs of spec.md §6. The fetch_chunk knob is applied one layer down, at
// session-dial time (oracle.Config), since it is a property of the Oracle
// connection itself rather than of slot management.
type Config struct {
	Size                int
	AcquireTimeout      time.Duration
	QueryTimeout        time.Duration
	HealthProbeInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Size:                2,
		AcquireTimeout:      30 * time.Second,
		QueryTimeout:        5 * time.Second,
		HealthProbeInterval: 30 * time.Second,
	}
}

// Pool is the single process-wide bounded set of Oracle sessions.
type Pool struct {
	cfg  Config
	dial Dial

	mu     sync.Mutex
	cond   *sync.Cond
	slots  []*slot
	rrNext int

	closed bool
}

// New dials cfg.Size sessions up front. If any dial fails the already-opened
// sessions are closed and the error is returned; a gateway should not start
// serving with a short pool.
func New(ctx context.Context, cfg Config, dial Dial) (*Pool, error) {
	p := &Pool{cfg: cfg, dial: dial}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < cfg.Size; i++ {
		db, err := dial(ctx)
		if err != nil {
			for _, s := range p.slots {
				s.db.Close()
			}
			return nil, fmt.Errorf("open pool slot %d: %w", i, err)
		}
		p.slots = append(p.slots, newSlot(i, db))
	}

	return p, nil
}

// Session is a leased slot. Callers must call Release exactly once.
type Session struct {
	pool *Pool
	slot *slot
}

// DB exposes the underlying *sql.DB for issuing the statement.
func (s *Session) DB() *sql.DB { return s.slot.db }

// QueryTimeout is the per-statement timeout to apply via context.
func (s *Session) QueryTimeout() time.Duration { return s.pool.cfg.QueryTimeout }

// Acquire waits for an idle slot, selecting among idle slots in round-robin
// order starting from the slot after the last one handed out. It returns
// gwerr.PoolTimeout if no slot becomes idle within cfg.AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	timer := time.AfterFunc(p.cfg.AcquireTimeout, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.closed {
			return nil, gwerr.New(gwerr.PoolTimeout, "pool is closed")
		}

		if s := p.acquireIdleLocked(); s != nil {
			return &Session{pool: p, slot: s}, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, gwerr.New(gwerr.PoolTimeout, "acquire canceled").WithCause(err)
		}
		if !time.Now().Before(deadline) {
			return nil, gwerr.New(gwerr.PoolTimeout, "no connection slot became available")
		}

		p.cond.Wait()
	}
}

// acquireIdleLocked scans slots starting at rrNext (the slot after the last
// one handed out) and returns the first idle one, advancing rrNext past it. Must be called with p.mu held.
func (p *Pool) acquireIdleLocked() *slot {
	n := len(p.slots)
	for i := 0; i < n; i++ {
		idx := (p.rrNext + i) % n
		s := p.slots[idx]

		s.mu.Lock()
		if s.state == Idle {
			s.state = Busy
			s.ownerSeq++
			s.mu.Unlock()
			p.rrNext = (idx + 1) % n
			return s
		}
		s.mu.Unlock()
	}
	return nil
}

// Release returns the session's slot to the pool. healthy should reflect
// whether the statement completed without a connection-level error; an
// unhealthy slot is marked BROKEN and picked up by the health prober instead
// of being handed to the next caller.
func (p *Pool) Release(s *Session, healthy bool) {
	s.slot.mu.Lock()
	if healthy {
		s.slot.state = Idle
		s.slot.lastOK = time.Now()
		s.slot.lastError = nil
	} else {
		s.slot.state = Broken
	}
	s.slot.mu.Unlock()

	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Health summarizes slot state for the pool_health operation.
type Health struct {
	Total      int
	Healthy    int
	Unhealthy  int
	AllHealthy bool
	Slots      []SlotInfo
}

func (p *Pool) Health() Health {
	p.mu.Lock()
	slots := append([]*slot(nil), p.slots...)
	p.mu.Unlock()

	h := Health{Total: len(slots)}
	for _, s := range slots {
		info := s.snapshot()
		h.Slots = append(h.Slots, info)
		if info.State == Broken {
			h.Unhealthy++
		} else {
			h.Healthy++
		}
	}
	h.AllHealthy = h.Unhealthy == 0
	return h
}

// RunHealthProbe blocks, periodically repairing every BROKEN slot by
// redialing it; a slot whose redial succeeds returns to IDLE. IDLE and BUSY
// slots are not probed. It returns when ctx is canceled. Grounded on the
// teacher's errgroup-based concurrent fan-out (database/concurrent.go),
// generalized from a one-shot parallel map into a recurring ticker loop.
func (p *Pool) RunHealthProbe(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(p.cfg.HealthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeOnce(ctx, logger)
		}
	}
}

func (p *Pool) probeOnce(ctx context.Context, logger *slog.Logger) {
	p.mu.Lock()
	slots := append([]*slot(nil), p.slots...)
	p.mu.Unlock()

	eg, egCtx := errgroup.WithContext(ctx)
	for _, s := range slots {
		s := s
		eg.Go(func() error {
			p.probeSlot(egCtx, s, logger)
			return nil
		})
	}
	_ = eg.Wait()
}

func (p *Pool) probeSlot(ctx context.Context, s *slot, logger *slog.Logger) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != Broken {
		return
	}

	newDB, err := p.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
		if logger != nil {
			logger.Warn("pool slot reconnect failed", "slot", s.index, "error", err)
		}
		return
	}

	old := s.db
	s.mu.Lock()
	s.db = newDB
	s.state = Idle
	s.lastOK = time.Now()
	s.lastError = nil
	s.mu.Unlock()
	old.Close()

	if logger != nil {
		logger.Info("pool slot recovered", "slot", s.index)
	}

	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Close closes every slot's underlying session. Further Acquire calls fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	slots := append([]*slot(nil), p.slots...)
	p.cond.Broadcast()
	p.mu.Unlock()

	var firstErr error
	for _, s := range slots {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
