// Package rows serializes *sql.Rows into the simple tabular representation
// spec.md §4.6 calls for: columns as declared in the result metadata, rows
// as ordered maps of column name to value. The scan loop mirrors the
// teacher's testutil.QueryRows helper (column introspection, []any
// scan-pointer slice, []byte-to-string coercion) generalized from a
// tab-separated debug dump into a structured, driver-agnostic Table.
package rows

import (
	"database/sql"
	"fmt"
)

// Row is an ordered map of column name to value, preserving declared column
// order on output via Columns rather than Go's unordered map iteration.
type Row map[string]any

// Table is the tabular result of a single executed statement.
type Table struct {
	Columns []string
	Rows    []Row
}

// Scan drains sqlRows into a Table. It does not itself enforce the fetch
// chunk or row cap — those are applied upstream by the Oracle session's
// prefetch setting (oracle.Config.FetchChunk) and the validator's row-cap
// rewrite, respectively.
func Scan(sqlRows *sql.Rows) (Table, error) {
	columns, err := sqlRows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("read result columns: %w", err)
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	table := Table{Columns: columns}
	for sqlRows.Next() {
		if err := sqlRows.Scan(ptrs...); err != nil {
			return Table{}, fmt.Errorf("scan result row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := sqlRows.Err(); err != nil {
		return Table{}, fmt.Errorf("iterate result rows: %w", err)
	}

	return table, nil
}

// normalizeValue coerces driver-specific byte-slice representations (common
// for CHAR/VARCHAR2/CLOB columns) into plain strings for a stable external
// representation.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
