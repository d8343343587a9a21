// Package audit implements the append-only structured event stream of
// spec.md §3/§6. Its Sink interface and Stdout/Null pair are grounded on the
// teacher's database.Logger/StdoutLogger/NullLogger trio, generalized from
// an io.Writer-style print interface to a structured-event interface so
// every emitted record carries the same field set regardless of backend.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the audit record stages named in spec.md §6: every
// request starts with ATTEMPT and ends with exactly one terminal kind.
type Kind string

const (
	Attempt         Kind = "ATTEMPT"
	Block           Kind = "BLOCK"
	Success         Kind = "SUCCESS"
	Failure         Kind = "FAILURE"
	ApprovalIssue   Kind = "APPROVAL_ISSUE"
	ApprovalConsume Kind = "APPROVAL_CONSUME"
	ApprovalReject  Kind = "APPROVAL_REJECT"
	RateLimit       Kind = "RATE_LIMIT"
	CircuitOpen     Kind = "CIRCUIT_OPEN"
	CircuitClose    Kind = "CIRCUIT_CLOSE"
	CircuitHalfOpen Kind = "CIRCUIT_HALF_OPEN"
)

// Event is one append-only audit record. JSON tags follow the wire schema
// of spec.md §6: ts, kind, op, reason?, complexity?, rows?, token_id?,
// slot?, phase?.
type Event struct {
	Time          time.Time      `json:"ts"`
	CorrelationID uuid.UUID      `json:"correlation_id"`
	Kind          Kind           `json:"kind"`
	Operation     string         `json:"op"`
	Reason        string         `json:"reason,omitempty"`
	Complexity    int            `json:"complexity,omitempty"`
	RowCount      int            `json:"rows,omitempty"`
	DurationMS    int64          `json:"duration_ms,omitempty"`
	TokenID       string         `json:"token_id,omitempty"` // truncated, never the full token
	Slot          int            `json:"slot,omitempty"`
	Phase         string         `json:"phase,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// NewCorrelationID mints the per-request id a dispatcher attaches to every
// event belonging to one admission-through-execution flow.
func NewCorrelationID() uuid.UUID {
	return uuid.New()
}
