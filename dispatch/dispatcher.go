// Package dispatch wires the four reserved operations of spec.md §6
// (preview_query, query_oracle, describe_table, list_tables) plus the
// supplemented pool_health introspection op through the shared rate
// limiter, approval registry, validator, circuit breaker, and pool,
// emitting two audit events per request in the order spec.md §5 requires:
// ATTEMPT then exactly one of BLOCK/APPROVAL_*/RATE_LIMIT/CIRCUIT_*/
// SUCCESS/FAILURE. Stages a request passes through are not audited
// individually.
package dispatch

import (
	"context"
	"fmt"

	"github.com/oracleguard/gateway/approval"
	"github.com/oracleguard/gateway/audit"
	"github.com/oracleguard/gateway/breaker"
	"github.com/oracleguard/gateway/gwerr"
	"github.com/oracleguard/gateway/identifier"
	"github.com/oracleguard/gateway/pool"
	"github.com/oracleguard/gateway/ratelimit"
	"github.com/oracleguard/gateway/rows"
	"github.com/oracleguard/gateway/util"
	"github.com/oracleguard/gateway/validate"
)

// Dispatcher owns no state of its own; it composes the one process-wide
// instance of each guard component, matching spec.md §5's "exactly one ...
// per process" ownership rule.
type Dispatcher struct {
	limiter   *ratelimit.Limiter
	registry  *approval.Registry
	validator *validate.Validator
	breaker   *breaker.Breaker
	pool      *pool.Pool
	emitter   *audit.Emitter
}

func New(limiter *ratelimit.Limiter, registry *approval.Registry, validator *validate.Validator, brk *breaker.Breaker, p *pool.Pool, emitter *audit.Emitter) *Dispatcher {
	return &Dispatcher{limiter: limiter, registry: registry, validator: validator, breaker: brk, pool: p, emitter: emitter}
}

// ValidationView is the caller-facing shape of a validate.Verdict.
type ValidationView struct {
	Complexity int
	Warnings   []string
	Admitted   bool
	Reason     string
}

func toValidationView(v validate.Verdict) ValidationView {
	return ValidationView{
		Complexity: v.Complexity,
		Warnings:   v.Warnings,
		Admitted:   v.Admitted,
		Reason:     v.Reason,
	}
}

// ApprovalView is the token half of a preview_query response.
type ApprovalView struct {
	Token            string
	ExpiresInSeconds int
}

// PreviewResult is preview_query's output.
type PreviewResult struct {
	Validation ValidationView
	Approval   *ApprovalView
}

// Preview implements spec.md §4.7's preview(sql) pipeline: rate-limit,
// validate, and — if admitted — issue a one-shot approval token.
func (d *Dispatcher) Preview(ctx context.Context, query string) (PreviewResult, error) {
	corr := audit.NewCorrelationID()
	d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Attempt, Operation: "preview_query"})

	if ok, retryAfter := d.limiter.Allow(); !ok {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.RateLimit, Operation: "preview_query"})
		return PreviewResult{}, gwerr.New(gwerr.RateLimited, "too many requests").WithRetryAfter(retryAfter)
	}

	verdict := d.validator.Validate(query)
	if !verdict.Admitted {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Block, Operation: "preview_query", Reason: verdict.Reason})
		return PreviewResult{Validation: toValidationView(verdict)}, gwerr.New(gwerr.ValidationRejected, verdict.Reason)
	}

	token, err := d.registry.Issue(verdict, verdict.Canonical)
	if err != nil {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Failure, Operation: "preview_query", Reason: err.Error()})
		return PreviewResult{}, gwerr.New(gwerr.DriverError, "could not issue approval token").WithCause(err)
	}

	d.emitter.Emit(audit.Event{
		CorrelationID: corr,
		Kind:          audit.ApprovalIssue,
		Operation:     "preview_query",
		Complexity:    verdict.Complexity,
		TokenID:       token.ID.Truncated(),
	})

	return PreviewResult{
		Validation: toValidationView(verdict),
		Approval: &ApprovalView{
			Token:            token.ID.String(),
			ExpiresInSeconds: int(token.ExpiresAt.Sub(token.IssuedAt).Seconds()),
		},
	}, nil
}

// ExecuteResult is query_oracle's output.
type ExecuteResult struct {
	Success    bool
	RowCount   int
	Columns    []string
	Rows       []rows.Row
	Validation ValidationView
}

// Execute implements spec.md §4.7's execute(sql, token) pipeline.
func (d *Dispatcher) Execute(ctx context.Context, query, approvalToken string) (ExecuteResult, error) {
	corr := audit.NewCorrelationID()
	d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Attempt, Operation: "query_oracle"})

	if ok, retryAfter := d.limiter.Allow(); !ok {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.RateLimit, Operation: "query_oracle"})
		return ExecuteResult{}, gwerr.New(gwerr.RateLimited, "too many requests").WithRetryAfter(retryAfter)
	}

	if approvalToken == "" {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.ApprovalReject, Operation: "query_oracle", Reason: "no approval token"})
		return ExecuteResult{}, gwerr.New(gwerr.ApprovalRequired, "an approval token from preview_query is required")
	}

	tokenID, err := approval.ParseID(approvalToken)
	if err != nil {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.ApprovalReject, Operation: "query_oracle", Reason: "malformed token"})
		return ExecuteResult{}, gwerr.New(gwerr.ApprovalInvalid, "malformed approval token")
	}

	verdict, reason := d.registry.Consume(tokenID, query)
	if reason != approval.ReasonNone {
		kind, errKind := approvalRejection(reason)
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.ApprovalReject, Operation: "query_oracle", Reason: string(kind)})
		return ExecuteResult{}, gwerr.New(errKind, approvalRejectionReason(reason))
	}

	// Defense in depth: re-validate in case the statement text was tampered
	// between preview and execute despite matching the bound hash.
	reverdict := d.validator.Validate(query)
	if !reverdict.Admitted {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Block, Operation: "query_oracle", Reason: reverdict.Reason})
		return ExecuteResult{Validation: toValidationView(reverdict)}, gwerr.New(gwerr.ValidationRejected, reverdict.Reason)
	}

	if ok, retryAfter := d.breaker.Permit(); !ok {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.CircuitOpen, Operation: "query_oracle", Phase: d.breaker.State().Phase.String()})
		return ExecuteResult{}, gwerr.New(gwerr.CircuitOpen, "circuit is open").WithRetryAfter(retryAfter)
	}

	table, err := d.runQuery(ctx, verdict.EffectiveSQL)
	if err != nil {
		d.breaker.RecordFailure()
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Failure, Operation: "query_oracle", Reason: err.Error()})
		if ge, ok := gwerr.As(err); ok {
			return ExecuteResult{Validation: toValidationView(verdict)}, ge
		}
		return ExecuteResult{Validation: toValidationView(verdict)}, gwerr.New(gwerr.DriverError, "query failed").WithCause(err)
	}

	d.breaker.RecordSuccess()
	d.emitter.Emit(audit.Event{
		CorrelationID: corr,
		Kind:          audit.Success,
		Operation:     "query_oracle",
		Complexity:    verdict.Complexity,
		RowCount:      len(table.Rows),
	})

	return ExecuteResult{
		Success:    true,
		RowCount:   len(table.Rows),
		Columns:    table.Columns,
		Rows:       table.Rows,
		Validation: toValidationView(verdict),
	}, nil
}

func approvalRejection(r approval.Reason) (gwerr.Kind, gwerr.Kind) {
	switch r {
	case approval.ReasonExpired:
		return gwerr.ApprovalExpired, gwerr.ApprovalExpired
	case approval.ReasonMismatch:
		return gwerr.ApprovalMismatch, gwerr.ApprovalMismatch
	default:
		return gwerr.ApprovalInvalid, gwerr.ApprovalInvalid
	}
}

func approvalRejectionReason(r approval.Reason) string {
	switch r {
	case approval.ReasonExpired:
		return "approval token expired"
	case approval.ReasonMismatch:
		return "approval token does not match the submitted statement"
	default:
		return "approval token is invalid or already consumed"
	}
}

// runQuery acquires a slot, runs query, and releases the slot, marking it
// BROKEN when the failure looks connection-level rather than statement-level.
func (d *Dispatcher) runQuery(ctx context.Context, query string) (rows.Table, error) {
	session, err := d.pool.Acquire(ctx)
	if err != nil {
		return rows.Table{}, err
	}

	sqlRows, cleanup, err := session.RunQuery(ctx, query)
	if err != nil {
		d.pool.Release(session, !pool.IsConnectionError(err))
		return rows.Table{}, fmt.Errorf("run query: %w", err)
	}
	defer cleanup()
	defer sqlRows.Close()

	table, err := rows.Scan(sqlRows)
	if err != nil {
		d.pool.Release(session, !pool.IsConnectionError(err))
		return rows.Table{}, err
	}

	d.pool.Release(session, true)
	return table, nil
}

// ColumnInfo describes one column of a described table.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
	PK       bool
}

// DescribeResult is describe_table's output.
type DescribeResult struct {
	Columns []ColumnInfo
}

// Describe implements spec.md §4.7's describe(name) pipeline: no SQL
// accepted, only an identifier-checked table/schema pair, so no approval
// token is required.
func (d *Dispatcher) Describe(ctx context.Context, table, schema string) (DescribeResult, error) {
	corr := audit.NewCorrelationID()
	d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Attempt, Operation: "describe_table"})

	if ok, retryAfter := d.limiter.Allow(); !ok {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.RateLimit, Operation: "describe_table"})
		return DescribeResult{}, gwerr.New(gwerr.RateLimited, "too many requests").WithRetryAfter(retryAfter)
	}

	if err := identifier.Check("table", table); err != nil {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Block, Operation: "describe_table", Reason: err.Error()})
		return DescribeResult{}, gwerr.New(gwerr.BadIdentifier, err.Error())
	}
	if schema != "" {
		if err := identifier.Check("schema", schema); err != nil {
			d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Block, Operation: "describe_table", Reason: err.Error()})
			return DescribeResult{}, gwerr.New(gwerr.BadIdentifier, err.Error())
		}
	}

	if ok, retryAfter := d.breaker.Permit(); !ok {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.CircuitOpen, Operation: "describe_table", Phase: d.breaker.State().Phase.String()})
		return DescribeResult{}, gwerr.New(gwerr.CircuitOpen, "circuit is open").WithRetryAfter(retryAfter)
	}

	query := describeQuery(table, schema)
	table2, err := d.runQuery(ctx, query)
	if err != nil {
		d.breaker.RecordFailure()
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Failure, Operation: "describe_table", Reason: err.Error()})
		if ge, ok := gwerr.As(err); ok {
			return DescribeResult{}, ge
		}
		return DescribeResult{}, gwerr.New(gwerr.DriverError, "describe failed").WithCause(err)
	}
	d.breaker.RecordSuccess()

	cols := util.TransformSlice(table2.Rows, func(r rows.Row) ColumnInfo {
		return ColumnInfo{
			Name:     fmt.Sprint(r["COLUMN_NAME"]),
			Type:     fmt.Sprint(r["DATA_TYPE"]),
			Nullable: fmt.Sprint(r["NULLABLE"]) == "Y",
			PK:       fmt.Sprint(r["IS_PK"]) == "1",
		}
	})

	d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Success, Operation: "describe_table"})
	return DescribeResult{Columns: cols}, nil
}

// describeQuery builds a fixed metadata statement; table/schema have already
// passed identifier.Check so no other characters than the whitelist reach
// the interpolation.
func describeQuery(table, schema string) string {
	schemaFilter := "USER_TAB_COLUMNS"
	ownerClause := ""
	if schema != "" {
		schemaFilter = "ALL_TAB_COLUMNS"
		ownerClause = fmt.Sprintf(" AND c.OWNER = '%s'", schema)
	}
	return fmt.Sprintf(`SELECT c.COLUMN_NAME, c.DATA_TYPE, c.NULLABLE,
		CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS IS_PK
		FROM %s c
		LEFT JOIN (
			SELECT cc.COLUMN_NAME
			FROM USER_CONSTRAINTS cons
			JOIN USER_CONS_COLUMNS cc ON cc.CONSTRAINT_NAME = cons.CONSTRAINT_NAME
			WHERE cons.CONSTRAINT_TYPE = 'P' AND cons.TABLE_NAME = '%s'
		) pk ON pk.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_NAME = '%s'%s
		ORDER BY c.COLUMN_ID`, schemaFilter, table, table, ownerClause)
}

// ListResult is list_tables's output.
type ListResult struct {
	Tables []string
}

// List implements spec.md §4.7's list(schema?) pipeline.
func (d *Dispatcher) List(ctx context.Context, schema string) (ListResult, error) {
	corr := audit.NewCorrelationID()
	d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Attempt, Operation: "list_tables"})

	if ok, retryAfter := d.limiter.Allow(); !ok {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.RateLimit, Operation: "list_tables"})
		return ListResult{}, gwerr.New(gwerr.RateLimited, "too many requests").WithRetryAfter(retryAfter)
	}

	if schema != "" {
		if err := identifier.Check("schema", schema); err != nil {
			d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Block, Operation: "list_tables", Reason: err.Error()})
			return ListResult{}, gwerr.New(gwerr.BadIdentifier, err.Error())
		}
	}

	if ok, retryAfter := d.breaker.Permit(); !ok {
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.CircuitOpen, Operation: "list_tables", Phase: d.breaker.State().Phase.String()})
		return ListResult{}, gwerr.New(gwerr.CircuitOpen, "circuit is open").WithRetryAfter(retryAfter)
	}

	query := listQuery(schema)
	table, err := d.runQuery(ctx, query)
	if err != nil {
		d.breaker.RecordFailure()
		d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Failure, Operation: "list_tables", Reason: err.Error()})
		if ge, ok := gwerr.As(err); ok {
			return ListResult{}, ge
		}
		return ListResult{}, gwerr.New(gwerr.DriverError, "list failed").WithCause(err)
	}
	d.breaker.RecordSuccess()

	tables := util.TransformSlice(table.Rows, func(r rows.Row) string {
		return fmt.Sprint(r["TABLE_NAME"])
	})

	d.emitter.Emit(audit.Event{CorrelationID: corr, Kind: audit.Success, Operation: "list_tables"})
	return ListResult{Tables: tables}, nil
}

func listQuery(schema string) string {
	if schema == "" {
		return "SELECT TABLE_NAME FROM USER_TABLES ORDER BY TABLE_NAME"
	}
	return fmt.Sprintf("SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = '%s' ORDER BY TABLE_NAME", schema)
}

// PoolHealth exposes the supplemented pool_health introspection operation.
// It takes no SQL, requires no approval token, and is never rate-limited
// against the query budget (spec.md §9 of the expanded requirements).
func (d *Dispatcher) PoolHealth() pool.Health {
	return d.pool.Health()
}
