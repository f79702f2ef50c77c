// Package schema introspects the target PostgreSQL database and produces
// immutable, hashable snapshots of its tables, columns and keys. The
// snapshot's content hash doubles as the schema version embedded in cache
// keys: when the table or column set drifts, the hash changes and stale
// cache entries stop matching.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Column describes a single table column.
type Column struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// ForeignKey describes a single-column foreign key reference.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Table describes one table with its columns in ordinal order.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Snapshot is an immutable description of the database schema at a point
// in time. Version is the hex-encoded content hash.
type Snapshot struct {
	Tables  []Table   `json:"tables"`
	Version string    `json:"version"`
	TakenAt time.Time `json:"taken_at"`
}

// NewSnapshot computes the content hash and stamps the snapshot.
func NewSnapshot(tables []Table, takenAt time.Time) *Snapshot {
	return &Snapshot{
		Tables:  tables,
		Version: hashTables(tables),
		TakenAt: takenAt,
	}
}

// hashTables derives a stable version hash from the table set. Any change
// to a table name, column name, type, nullability or key membership
// produces a different version.
func hashTables(tables []Table) string {
	hasher := sha256.New()

	for _, table := range tables {
		fmt.Fprintf(hasher, "table:%s\n", table.Name)

		for _, col := range table.Columns {
			fmt.Fprintf(hasher, "column:%s:%s:%t:%t\n", col.Name, col.Type, col.Nullable, col.IsPrimaryKey)
		}

		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(hasher, "fk:%s:%s:%s\n", fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// DDL renders the snapshot as CREATE TABLE statements, the declarative
// form the model reads best.
func (s *Snapshot) DDL() string {
	var sb strings.Builder

	for _, table := range s.Tables {
		sb.WriteString(table.DDL())
		sb.WriteString("\n")
	}

	return sb.String()
}

// DDL renders a single table definition.
func (t Table) DDL() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", t.Name)

	lines := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))

	var pkColumns []string

	for _, col := range t.Columns {
		line := fmt.Sprintf("  %s %s", col.Name, col.Type)
		if !col.Nullable {
			line += " NOT NULL"
		}

		lines = append(lines, line)

		if col.IsPrimaryKey {
			pkColumns = append(pkColumns, col.Name)
		}
	}

	if len(pkColumns) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(pkColumns, ", ")))
	}

	for _, fk := range t.ForeignKeys {
		lines = append(lines, fmt.Sprintf(
			"  FOREIGN KEY (%s) REFERENCES %s (%s)",
			fk.Column, fk.ReferencedTable, fk.ReferencedColumn,
		))
	}

	sb.WriteString(strings.Join(lines, ",\n"))
	sb.WriteString("\n);\n")

	return sb.String()
}

// HasTable reports whether the snapshot contains a table, ignoring case.
func (s *Snapshot) HasTable(name string) bool {
	for _, table := range s.Tables {
		if strings.EqualFold(table.Name, name) {
			return true
		}
	}

	return false
}

// HasColumn reports whether any table in the snapshot contains the column,
// ignoring case. SQL generated by the model rarely qualifies columns, so
// membership is checked across the whole snapshot.
func (s *Snapshot) HasColumn(name string) bool {
	for _, table := range s.Tables {
		for _, col := range table.Columns {
			if strings.EqualFold(col.Name, name) {
				return true
			}
		}
	}

	return false
}

// Identifiers returns the lower-cased set of all table and column names,
// used by the validator to check referenced identifiers.
func (s *Snapshot) Identifiers() map[string]bool {
	ids := make(map[string]bool)

	for _, table := range s.Tables {
		ids[strings.ToLower(table.Name)] = true
		for _, col := range table.Columns {
			ids[strings.ToLower(col.Name)] = true
		}
	}

	return ids
}

// ReferenceCounts returns, per table, how many foreign keys across the
// snapshot point at it. The prompt builder drops the least-referenced
// tables first when it must truncate.
func (s *Snapshot) ReferenceCounts() map[string]int {
	counts := make(map[string]int, len(s.Tables))

	for _, table := range s.Tables {
		counts[table.Name] += 0
		for _, fk := range table.ForeignKeys {
			counts[fk.ReferencedTable]++
		}
	}

	return counts
}
