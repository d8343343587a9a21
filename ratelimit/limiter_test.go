package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestLimiterAdmitsUpToMax(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow()
		assert.True(t, ok)
	}

	ok, retryAfter := l.Allow()
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestLimiterExpiresOldEntries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(1, time.Minute, clock)

	ok, _ := l.Allow()
	assert.True(t, ok)

	ok, _ = l.Allow()
	assert.False(t, ok)

	clock.advance(time.Minute + time.Second)
	ok, _ = l.Allow()
	assert.True(t, ok)
}

func TestLimiterIsIndependentOfRequestKind(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(1, time.Minute, clock)

	ok, _ := l.Allow()
	assert.True(t, ok)
	ok, _ = l.Allow()
	assert.False(t, ok, "the same shared limiter must budget every operation together")
}
