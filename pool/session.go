package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// probeQuery is the cheapest statement Oracle guarantees will succeed
// against any session, used by Session.Probe. The background prober repairs
// broken slots by redialing and does not run it, and failed statements are
// classified by IsConnectionError instead.
const probeQuery = "SELECT 1 FROM DUAL"

// RunQuery executes sql against the session with cfg.QueryTimeout applied as
// a context deadline. It runs no liveness probe afterwards; whether a failure
// leaves the slot BROKEN is decided by the caller through IsConnectionError.
func (s *Session) RunQuery(ctx context.Context, query string) (*sql.Rows, func(), error) {
	qCtx, cancel := context.WithTimeout(ctx, s.QueryTimeout())

	rows, err := s.DB().QueryContext(qCtx, query)
	if err != nil {
		cancel()
		return nil, func() {}, fmt.Errorf("execute query: %w", err)
	}

	// The caller drains rows before calling the returned cleanup func, which
	// releases qCtx's resources once the statement (and its fetch) is done.
	return rows, cancel, nil
}

// Probe confirms the session's connection is still live, independent of any
// statement-level failure (e.g. a syntax error shouldn't mark a healthy
// connection BROKEN, but a dropped TCP session should).
func (s *Session) Probe(ctx context.Context) bool {
	var dummy int
	err := s.DB().QueryRowContext(ctx, probeQuery).Scan(&dummy)
	return err == nil
}

// IsConnectionError reports whether err looks like it came from the
// transport rather than from the statement itself (bad SQL, no rows, etc),
// which determines whether Release should mark the slot BROKEN.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
