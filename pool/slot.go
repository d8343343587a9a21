package pool

import (
	"database/sql"
	"sync"
	"time"
)

// SlotState is the lifecycle of a single pooled session (spec.md §4.6's
// ConnectionSlot).
type SlotState int

const (
	Idle SlotState = iota
	Busy
	Broken
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Busy:
		return "BUSY"
	case Broken:
		return "BROKEN"
	default:
		return "UNKNOWN"
	}
}

// slot wraps one long-lived *sql.DB session (go-ora pools its own TCP
// connection beneath this, but the gateway treats each slot as a single
// logical session with its own state and epoch, matching spec.md's
// ConnectionSlot type).
type slot struct {
	mu sync.Mutex

	index     int
	db        *sql.DB
	state     SlotState
	ownerSeq  uint64 // increments each time the slot is handed to a new caller
	lastOK    time.Time
	lastError error
}

func newSlot(index int, db *sql.DB) *slot {
	return &slot{index: index, db: db, state: Idle, lastOK: time.Time{}}
}

func (s *slot) snapshot() SlotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotInfo{
		Index:    s.index,
		State:    s.state,
		LastOK:   s.lastOK,
		LastErr:  s.lastError,
		OwnerSeq: s.ownerSeq,
	}
}

// SlotInfo is a read-only snapshot for health reporting (spec.md §4.6's
// pool_health operation).
type SlotInfo struct {
	Index    int
	State    SlotState
	LastOK   time.Time
	LastErr  error
	OwnerSeq uint64
}
