// A minimal database/sql/driver fake, modeled on the teacher's
// dry_run.go driver/conn/stmt/rows quartet, used where the pool needs a
// connection that can be made to fail deterministically — something a real
// sqlite backend can't easily simulate.
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

var fakeRegisterOnce sync.Once

type fakeDriver struct {
	fail *atomic.Bool
}

func (d *fakeDriver) Open(name string) (driver.Conn, error) {
	return &fakeConn{fail: d.fail}, nil
}

type fakeConn struct {
	fail *atomic.Bool
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{fail: c.fail}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return &fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeStmt struct {
	fail *atomic.Bool
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return fakeResult{}, nil
}
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	if s.fail.Load() {
		return nil, errors.New("simulated transport failure")
	}
	return &fakeRows{}, nil
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error)  { return 0, nil }

type fakeRows struct{ done bool }

func (r *fakeRows) Columns() []string { return []string{"ONE"} }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = int64(1)
	return nil
}

func fakeDial(fail *atomic.Bool) Dial {
	fakeRegisterOnce.Do(func() {
		sql.Register("pool-fake", &fakeDriver{fail: fail})
	})
	return func(ctx context.Context) (*sql.DB, error) {
		return sql.Open("pool-fake", "fake")
	}
}

func TestSessionRunQuerySurfacesDriverFailure(t *testing.T) {
	var fail atomic.Bool
	ctx := context.Background()
	p, err := New(ctx, testConfig(1), fakeDial(&fail))
	assert.NoError(t, err)
	defer p.Close()

	s, err := p.Acquire(ctx)
	assert.NoError(t, err)

	fail.Store(true)
	_, _, err = s.RunQuery(ctx, "SELECT ONE")
	assert.Error(t, err)
}
