package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{FailureThreshold: 3, RecoveryTimeout: time.Minute, SuccessThreshold: 2}, clock)

	for i := 0; i < 2; i++ {
		ok, _ := b.Permit()
		assert.True(t, ok)
		b.RecordFailure()
	}
	assert.Equal(t, Closed, b.State().Phase)

	ok, _ := b.Permit()
	assert.True(t, ok)
	b.RecordFailure()
	assert.Equal(t, Open, b.State().Phase)
}

func TestBreakerRefusesWhileOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 1}, clock)

	b.Permit()
	b.RecordFailure()
	assert.Equal(t, Open, b.State().Phase)

	ok, retryAfter := b.Permit()
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestBreakerHalfOpensAfterRecoveryTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 2}, clock)

	b.Permit()
	b.RecordFailure()
	clock.advance(time.Minute + time.Second)

	ok, _ := b.Permit()
	assert.True(t, ok)
	assert.Equal(t, HalfOpen, b.State().Phase)
}

func TestBreakerClosesAfterSuccessThresholdInHalfOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 2}, clock)

	b.Permit()
	b.RecordFailure()
	clock.advance(time.Minute + time.Second)
	b.Permit()

	b.RecordSuccess()
	assert.Equal(t, HalfOpen, b.State().Phase)
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State().Phase)
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 2}, clock)

	b.Permit()
	b.RecordFailure()
	clock.advance(time.Minute + time.Second)
	b.Permit()

	b.RecordFailure()
	assert.Equal(t, Open, b.State().Phase)
}

func TestBreakerHalfOpenAllowsOnlyOneProbeAtATime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 2}, clock)

	b.Permit()
	b.RecordFailure()
	clock.advance(time.Minute + time.Second)

	ok, _ := b.Permit()
	assert.True(t, ok)
	assert.Equal(t, HalfOpen, b.State().Phase)

	// A second concurrent caller must be refused while the first probe's
	// outcome hasn't been recorded yet.
	ok, _ = b.Permit()
	assert.False(t, ok)

	b.RecordSuccess()

	// Once the probe's outcome is recorded, the next caller may probe again.
	ok, _ = b.Permit()
	assert.True(t, ok)
}

func TestBreakerSuccessResetsFailureCountInClosed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{FailureThreshold: 3, RecoveryTimeout: time.Minute, SuccessThreshold: 2}, clock)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 0, b.State().ConsecutiveFailures)
}
