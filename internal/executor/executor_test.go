package executor

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginerr "github.com/aisavvy/aisavvy/internal/errors"
	"github.com/aisavvy/aisavvy/internal/sqlcheck"
)

func TestExecute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT manager FROM departments").
		WillReturnRows(sqlmock.NewRows([]string{"manager"}).
			AddRow([]byte("Charlie Brown")))
	mock.ExpectCommit()

	exec := New(db, time.Minute, 100)

	result, err := exec.Execute(context.Background(),
		sqlcheck.Statement{SQL: "SELECT manager FROM departments WHERE department_name = 'Sales'"})
	require.NoError(t, err)

	assert.Equal(t, []string{"manager"}, result.Columns)
	require.Len(t, result.Rows, 1)
	// Driver byte slices come back as strings.
	assert.Equal(t, "Charlie Brown", result.Rows[0]["manager"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteEmptyResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name FROM employees").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectCommit()

	exec := New(db, time.Minute, 100)

	result, err := exec.Execute(context.Background(),
		sqlcheck.Statement{SQL: "SELECT name FROM employees WHERE 1 = 0"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, result.Columns)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
}

func TestExecuteRowCap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name"}).
		AddRow("a").AddRow("b").AddRow("c")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name FROM employees").WillReturnRows(rows)
	mock.ExpectRollback()

	exec := New(db, time.Minute, 2)

	_, err = exec.Execute(context.Background(),
		sqlcheck.Statement{SQL: "SELECT name FROM employees"})
	require.Error(t, err)
	assert.Equal(t, enginerr.KindResultTooLarge, enginerr.KindOf(err))
}

func TestExecuteRefusesNonSelect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	exec := New(db, time.Minute, 100)

	_, err = exec.Execute(context.Background(),
		sqlcheck.Statement{SQL: "DELETE FROM employees"})
	require.Error(t, err)
	assert.Equal(t, enginerr.KindUnsafeStatement, enginerr.KindOf(err))

	// The statement never reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteMapsPostgresError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pqErr := &pq.Error{Code: "42P01", Message: `relation "staff" does not exist`}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name FROM staff").WillReturnError(pqErr)
	mock.ExpectRollback()

	exec := New(db, time.Minute, 100)

	_, err = exec.Execute(context.Background(),
		sqlcheck.Statement{SQL: "SELECT name FROM staff"})
	require.Error(t, err)
	assert.Equal(t, enginerr.KindExecutionError, enginerr.KindOf(err))
	// The backend's message is preserved so the model can correct the SQL.
	assert.Contains(t, enginerr.Summary(err), `relation "staff" does not exist`)
}

func TestExecuteTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pg_sleep").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"pg_sleep"}))
	mock.ExpectRollback()

	exec := New(db, 10*time.Millisecond, 100)

	_, err = exec.Execute(context.Background(),
		sqlcheck.Statement{SQL: "SELECT pg_sleep(60)"})
	require.Error(t, err)
	assert.Equal(t, enginerr.KindExecutionTimeout, enginerr.KindOf(err))
}

func TestExecuteBeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(assert.AnError)

	exec := New(db, time.Minute, 100)

	_, err = exec.Execute(context.Background(),
		sqlcheck.Statement{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.Equal(t, enginerr.KindExecutionError, enginerr.KindOf(err))
}
