// Package executor runs approved statements against the data store.
//
// Execution goes through QueryContext only, so the layer is read-only by
// construction even if an unsafe statement somehow reached it.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tabletalk-labs/tabletalk/agentcore/observability"
)

// RowSet is the tabular result of one statement execution.
type RowSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the result has no rows.
func (r *RowSet) Empty() bool {
	return len(r.Rows) == 0
}

// Len returns the number of rows.
func (r *RowSet) Len() int {
	return len(r.Rows)
}

// Executor runs an approved statement and returns a tabular result.
type Executor interface {
	Execute(ctx context.Context, statement string) (*RowSet, error)
}

// SQLExecutor implements Executor over database/sql.
type SQLExecutor struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLExecutor creates a SQLExecutor. A non-positive timeout disables the
// per-query deadline.
func NewSQLExecutor(db *sql.DB, timeout time.Duration) *SQLExecutor {
	return &SQLExecutor{db: db, timeout: timeout}
}

// Execute runs the statement and scans all rows. []byte values are
// normalized to string for readability downstream.
func (e *SQLExecutor) Execute(ctx context.Context, statement string) (*RowSet, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := e.query(ctx, statement)
	durationMS := int(time.Since(start).Milliseconds())
	if err != nil {
		observability.RecordQueryExecution("error", durationMS)
		return nil, err
	}
	observability.RecordQueryExecution("success", durationMS)
	return result, nil
}

func (e *SQLExecutor) query(ctx context.Context, statement string) (*RowSet, error) {
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("executor: query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("executor: reading columns: %w", err)
	}

	result := &RowSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("executor: scanning row: %w", err)
		}
		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("executor: iterating rows: %w", err)
	}

	return result, nil
}
