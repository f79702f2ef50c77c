// Package executor runs validated statements against the database inside
// a bounded-time, read-only transaction and materializes the rows.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	enginerr "github.com/aisavvy/aisavvy/internal/errors"
	"github.com/aisavvy/aisavvy/internal/sqlcheck"
)

// Row is one result record keyed by column name.
type Row map[string]interface{}

// Result holds materialized query output. Columns preserves the
// statement's column order; Rows preserve the statement's own ordering.
type Result struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Runner is the execution contract the engine depends on.
type Runner interface {
	Execute(ctx context.Context, stmt sqlcheck.Statement) (*Result, error)
}

// Executor implements Runner over a pooled database connection. Each
// execution borrows one connection for the duration of its transaction.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

// New creates an executor. maxRows caps the result set; exceeding it
// fails the query rather than silently truncating.
func New(db *sql.DB, timeout time.Duration, maxRows int) *Executor {
	return &Executor{db: db, timeout: timeout, maxRows: maxRows}
}

// Execute runs the statement and returns its rows.
func (e *Executor) Execute(ctx context.Context, stmt sqlcheck.Statement) (*Result, error) {
	// Validation already enforces this; the execution layer re-checks so
	// nothing side-effecting runs even if a caller skips validation. The
	// executing credential is expected to be read-only as well.
	lower := strings.ToLower(strings.TrimSpace(stmt.SQL))
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return nil, enginerr.New(enginerr.KindUnsafeStatement,
			"execution refused: not a read-only statement")
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, e.mapError(err, "failed to begin read-only transaction")
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.QueryContext(ctx, stmt.SQL)
	if err != nil {
		return nil, e.mapError(err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, e.mapError(err, "failed to read result columns")
	}

	result := &Result{Columns: columns, Rows: []Row{}}

	for rows.Next() {
		if e.maxRows > 0 && len(result.Rows) >= e.maxRows {
			return nil, enginerr.Newf(enginerr.KindResultTooLarge,
				"result exceeds the %d row cap", e.maxRows)
		}

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, e.mapError(err, "failed to scan row")
		}

		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = normalize(values[i])
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, e.mapError(err, "failed to iterate rows")
	}

	if err := tx.Commit(); err != nil {
		return nil, e.mapError(err, "failed to commit read-only transaction")
	}

	return result, nil
}

// normalize converts driver byte slices to strings so results are
// comparable and serialize cleanly.
func normalize(value interface{}) interface{} {
	if b, ok := value.([]byte); ok {
		return string(b)
	}

	return value
}

func (e *Executor) mapError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return enginerr.Wrap(err, enginerr.KindExecutionTimeout,
			"query exceeded the execution timeout")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return enginerr.Wrapf(err, enginerr.KindExecutionError,
			"%s: %s", message, pqErr.Message)
	}

	return enginerr.Wrap(err, enginerr.KindExecutionError, message)
}
