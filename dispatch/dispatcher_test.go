// Dispatcher tests exercise the full pipeline end to end against a fake
// database/sql/driver (modeled on the teacher's dry_run.go quartet) that
// accepts any query text and returns one fixed row, sidestepping Oracle-only
// syntax (ROWNUM row-cap wrapping) that a real stand-in backend couldn't run.
package dispatch

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oracleguard/gateway/approval"
	"github.com/oracleguard/gateway/audit"
	"github.com/oracleguard/gateway/breaker"
	"github.com/oracleguard/gateway/gwerr"
	"github.com/oracleguard/gateway/pool"
	"github.com/oracleguard/gateway/ratelimit"
	"github.com/oracleguard/gateway/validate"
)

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return fakeConn{}, nil }

type fakeConn struct{}

func (fakeConn) Prepare(query string) (driver.Stmt, error) { return fakeStmt{}, nil }
func (fakeConn) Close() error                              { return nil }
func (fakeConn) Begin() (driver.Tx, error)                 { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeStmt struct{}

func (fakeStmt) Close() error  { return nil }
func (fakeStmt) NumInput() int { return -1 }
func (fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return fakeResult{}, nil
}
func (fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &fakeRows{}, nil
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error)  { return 0, nil }

type fakeRows struct{ done bool }

func (r *fakeRows) Columns() []string { return []string{"N"} }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = int64(1)
	return nil
}

var registerOnce sync.Once

func newTestDispatcher(t *testing.T) *Dispatcher {
	registerOnce.Do(func() { sql.Register("dispatch-fake", fakeDriver{}) })

	dial := func(ctx context.Context) (*sql.DB, error) {
		return sql.Open("dispatch-fake", "fake")
	}

	ctx := context.Background()
	p, err := pool.New(ctx, pool.Config{
		Size:                2,
		AcquireTimeout:      200 * time.Millisecond,
		QueryTimeout:        time.Second,
		HealthProbeInterval: time.Hour,
	}, dial)
	assert.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	limiter := ratelimit.New(100, time.Minute, nil)
	registry := approval.New(time.Minute, nil)
	validator := validate.New(validate.DefaultConfig())
	brk := breaker.New(breaker.DefaultConfig(), nil)
	emitter := audit.NewEmitter(audit.NullSink{}, 32)
	t.Cleanup(emitter.Close)

	return New(limiter, registry, validator, brk, p, emitter)
}

func TestPreviewThenExecute(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	preview, err := d.Preview(ctx, "SELECT 1 FROM DUAL")
	assert.NoError(t, err)
	assert.True(t, preview.Validation.Admitted)
	assert.NotNil(t, preview.Approval)

	exec, err := d.Execute(ctx, "SELECT 1 FROM DUAL", preview.Approval.Token)
	assert.NoError(t, err)
	assert.True(t, exec.Success)
	assert.Equal(t, 1, exec.RowCount)
}

func TestExecuteRejectsMalformedToken(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, "SELECT 1 FROM DUAL", "not-a-real-token")
	assert.Error(t, err)
}

func TestExecuteRejectsEmptyToken(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, "SELECT 1 FROM DUAL", "")
	assert.Error(t, err)
	ge, ok := gwerr.As(err)
	assert.True(t, ok)
	assert.Equal(t, gwerr.ApprovalRequired, ge.Kind)
}

func TestExecuteRejectsReusedToken(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	preview, err := d.Preview(ctx, "SELECT 1 FROM DUAL")
	assert.NoError(t, err)

	_, err = d.Execute(ctx, "SELECT 1 FROM DUAL", preview.Approval.Token)
	assert.NoError(t, err)

	_, err = d.Execute(ctx, "SELECT 1 FROM DUAL", preview.Approval.Token)
	assert.Error(t, err)
}

func TestExecuteRejectsTokenForDifferentStatement(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	preview, err := d.Preview(ctx, "SELECT 1 FROM DUAL")
	assert.NoError(t, err)

	_, err = d.Execute(ctx, "SELECT 2 FROM DUAL", preview.Approval.Token)
	assert.Error(t, err)
}

func TestPreviewBlocksForbiddenStatement(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	preview, err := d.Preview(ctx, "DELETE FROM accounts")
	assert.Error(t, err)
	assert.False(t, preview.Validation.Admitted)
	assert.Nil(t, preview.Approval)
}

func TestDescribeRejectsBadIdentifier(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Describe(ctx, "bad table name", "")
	assert.Error(t, err)
}

func TestDescribeReturnsColumns(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	result, err := d.Describe(ctx, "ORDERS", "")
	assert.NoError(t, err)
	_ = result // fakeStmt always returns a single "N" column; shape only
}

func TestListReturnsTables(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.List(ctx, "")
	assert.NoError(t, err)
}

func TestPoolHealthIsExposed(t *testing.T) {
	d := newTestDispatcher(t)
	h := d.PoolHealth()
	assert.Equal(t, 2, h.Total)
	assert.True(t, h.AllHealthy)
}
