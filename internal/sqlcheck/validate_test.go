package sqlcheck

import (
	"testing"
	"time"

	enginerr "github.com/aisavvy/aisavvy/internal/errors"
	"github.com/aisavvy/aisavvy/internal/schema"
)

func testSnapshot() *schema.Snapshot {
	return schema.NewSnapshot([]schema.Table{
		{
			Name: "departments",
			Columns: []schema.Column{
				{Name: "department_id", Type: "integer", IsPrimaryKey: true},
				{Name: "department_name", Type: "text"},
				{Name: "manager", Type: "text", Nullable: true},
			},
		},
		{
			Name: "employees",
			Columns: []schema.Column{
				{Name: "employee_id", Type: "integer", IsPrimaryKey: true},
				{Name: "name", Type: "text"},
				{Name: "department_id", Type: "integer", Nullable: true},
			},
			ForeignKeys: []schema.ForeignKey{
				{Column: "department_id", ReferencedTable: "departments", ReferencedColumn: "department_id"},
			},
		},
	}, time.Now())
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{
			name: "simple select",
			sql:  "SELECT manager FROM departments WHERE department_name = 'Sales'",
		},
		{
			name: "join with aliases",
			sql: "SELECT COUNT(*) AS total_employees FROM employees e " +
				"JOIN departments d ON e.department_id = d.department_id " +
				"WHERE d.department_name = 'Sales'",
		},
		{
			name: "explicit as alias",
			sql:  "SELECT e.name FROM employees AS e",
		},
		{
			name: "cte",
			sql: "WITH dept_sizes AS (SELECT department_id, COUNT(*) AS headcount FROM employees GROUP BY department_id) " +
				"SELECT headcount FROM dept_sizes ORDER BY headcount DESC LIMIT 1",
		},
		{
			name: "window function",
			sql: "SELECT name, ROW_NUMBER() OVER (PARTITION BY department_id ORDER BY name) AS rn " +
				"FROM employees",
		},
		{
			name: "aggregate and escaped literal",
			sql:  "SELECT COUNT(*) FROM departments WHERE manager = 'O''Brien'",
		},
	}

	snap := testSnapshot()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(Statement{SQL: tt.sql}, snap); err != nil {
				t.Errorf("expected valid, got %v", err)
			}
		})
	}
}

func TestValidateRejectsUnsafe(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"delete", "DELETE FROM employees"},
		{"update", "UPDATE employees SET name = 'x'"},
		{"insert", "INSERT INTO employees (name) VALUES ('x')"},
		{"drop", "DROP TABLE employees"},
		{"truncate", "TRUNCATE employees"},
		{"select wrapping a drop", "SELECT name FROM employees; DROP TABLE employees"},
		{"create in subquery position", "SELECT * FROM employees WHERE name IN (CREATE TABLE x)"},
		{"stacked statements", "SELECT 1; SELECT 2"},
		{"grant", "GRANT ALL ON employees TO public"},
		{"copy", "COPY employees TO '/tmp/out'"},
		// The keyword check is blunt on purpose: a forbidden word is
		// rejected even inside a string literal.
		{"forbidden word in literal", "SELECT name FROM employees WHERE name = 'DROP TABLE students'"},
	}

	snap := testSnapshot()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(Statement{SQL: tt.sql}, snap)
			if enginerr.KindOf(err) != enginerr.KindUnsafeStatement {
				t.Errorf("expected unsafe_statement, got %v", err)
			}
		})
	}
}

func TestValidateRejectsUnknownIdentifiers(t *testing.T) {
	snap := testSnapshot()

	t.Run("unknown table", func(t *testing.T) {
		err := Validate(Statement{SQL: "SELECT name FROM staff"}, snap)
		if enginerr.KindOf(err) != enginerr.KindUnknownIdentifier {
			t.Fatalf("expected unknown_identifier, got %v", err)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		err := Validate(Statement{SQL: "SELECT salary FROM employees"}, snap)
		if enginerr.KindOf(err) != enginerr.KindUnknownIdentifier {
			t.Fatalf("expected unknown_identifier, got %v", err)
		}
	})

	t.Run("unknown qualified column", func(t *testing.T) {
		err := Validate(Statement{SQL: "SELECT e.salary FROM employees e"}, snap)
		if enginerr.KindOf(err) != enginerr.KindUnknownIdentifier {
			t.Fatalf("expected unknown_identifier, got %v", err)
		}
	})

	t.Run("unknown column aliased with AS", func(t *testing.T) {
		// Aliasing does not make the source column exist.
		err := Validate(Statement{SQL: "SELECT bogus AS x FROM employees"}, snap)
		if enginerr.KindOf(err) != enginerr.KindUnknownIdentifier {
			t.Fatalf("expected unknown_identifier, got %v", err)
		}
	})

	t.Run("unknown expression input aliased with AS", func(t *testing.T) {
		err := Validate(Statement{SQL: "SELECT UPPER(salary) AS loud FROM employees"}, snap)
		if enginerr.KindOf(err) != enginerr.KindUnknownIdentifier {
			t.Fatalf("expected unknown_identifier, got %v", err)
		}
	})
}

func TestValidateRejectsBadSyntax(t *testing.T) {
	snap := testSnapshot()

	t.Run("unbalanced parentheses", func(t *testing.T) {
		err := Validate(Statement{SQL: "SELECT COUNT(* FROM employees"}, snap)
		if enginerr.KindOf(err) != enginerr.KindSyntaxError {
			t.Fatalf("expected syntax_error, got %v", err)
		}
	})

	t.Run("unterminated literal", func(t *testing.T) {
		err := Validate(Statement{SQL: "SELECT name FROM employees WHERE name = 'Alice"}, snap)
		if enginerr.KindOf(err) != enginerr.KindSyntaxError {
			t.Fatalf("expected syntax_error, got %v", err)
		}
	})
}

func TestValidateEmpty(t *testing.T) {
	err := Validate(Statement{SQL: "  "}, testSnapshot())
	if enginerr.KindOf(err) != enginerr.KindNoSQLFound {
		t.Fatalf("expected no_sql_found, got %v", err)
	}
}

func TestValidateOrdering(t *testing.T) {
	// Statement type is checked before identifiers: a DELETE on an unknown
	// table reports unsafe, not unknown.
	err := Validate(Statement{SQL: "DELETE FROM nowhere"}, testSnapshot())
	if enginerr.KindOf(err) != enginerr.KindUnsafeStatement {
		t.Fatalf("expected unsafe_statement, got %v", err)
	}
}
