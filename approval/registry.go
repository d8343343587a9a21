// Package approval issues, binds, and consumes one-shot preview tokens
// (spec.md §4.4). The registry is an owned map behind a small lock, and the
// token is a value type — issue returns it by value, consume removes it by
// id — matching the Design Notes' guidance to avoid a global singleton: the
// dispatcher owns one Registry instance and passes it around by reference.
package approval

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/oracleguard/gateway/sqlnorm"
	"github.com/oracleguard/gateway/validate"
)

// Clock is injected so tests can drive TTL expiry deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Token is the value handed back to a preview caller.
type Token struct {
	ID        ID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type entry struct {
	canonicalHash [32]byte
	verdict       validate.Verdict
	issuedAt      time.Time
	expiresAt     time.Time
	consumed      bool
}

// Registry holds all outstanding, unconsumed approval tokens.
type Registry struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock Clock
	byID  map[ID]*entry
}

func New(ttl time.Duration, clock Clock) *Registry {
	if clock == nil {
		clock = systemClock{}
	}
	return &Registry{ttl: ttl, clock: clock, byID: make(map[ID]*entry)}
}

func canonicalHash(canonical string) [32]byte {
	return sha256.Sum256([]byte(canonical))
}

// Issue binds verdict to the hash of canonical and returns a fresh token.
func (r *Registry) Issue(verdict validate.Verdict, canonical string) (Token, error) {
	id, err := newID()
	if err != nil {
		return Token{}, err
	}

	now := r.clock.Now()
	e := &entry{
		canonicalHash: canonicalHash(canonical),
		verdict:       verdict,
		issuedAt:      now,
		expiresAt:     now.Add(r.ttl),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictExpiredLocked(now)
	r.byID[id] = e

	return Token{ID: id, IssuedAt: e.issuedAt, ExpiresAt: e.expiresAt}, nil
}

// Reason enumerates why a consume call failed, so the dispatcher can map it
// onto the right gwerr.Kind without the approval package importing gwerr.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalid
	ReasonExpired
	ReasonMismatch
)

// Consume looks up id, validates it against raw's canonical form, and — on
// success — atomically marks it consumed and returns the stored verdict.
// Every invariant in spec.md §3/§8 about tokens holds here: a token is
// consumable at most once, and hash mismatch never leaks which part of the
// statement changed.
func (r *Registry) Consume(id ID, raw string) (validate.Verdict, Reason) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Look the id up before purging so an expired token still reports
	// ReasonExpired rather than looking unknown.
	e, ok := r.byID[id]
	r.evictExpiredLocked(now)
	if !ok {
		return validate.Verdict{}, ReasonInvalid
	}
	if e.consumed {
		return validate.Verdict{}, ReasonInvalid
	}
	if now.After(e.expiresAt) {
		delete(r.byID, id)
		return validate.Verdict{}, ReasonExpired
	}

	presented := canonicalHash(sqlnorm.Canonicalize(raw))
	if subtle.ConstantTimeCompare(presented[:], e.canonicalHash[:]) != 1 {
		return validate.Verdict{}, ReasonMismatch
	}

	e.consumed = true
	verdict := e.verdict
	delete(r.byID, id) // a consumed token is never observable a second time
	return verdict, ReasonNone
}

// evictExpiredLocked purges expired entries on every mutation, bounding
// registry memory without a background sweeper goroutine.
func (r *Registry) evictExpiredLocked(now time.Time) {
	for id, e := range r.byID {
		if now.After(e.expiresAt) {
			delete(r.byID, id)
		}
	}
}

// Len reports the number of outstanding tokens (test/introspection helper).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
