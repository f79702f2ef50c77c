package schema

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq"

	enginerr "github.com/aisavvy/aisavvy/internal/errors"
)

// Source produces schema snapshots. The engine depends on this interface
// so tests can substitute a fixed snapshot.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Catalog introspects a PostgreSQL database and caches the resulting
// snapshot for a bounded interval. The cache is an optimization only:
// the version hash is re-derived on every refresh, so drift is always
// detected once the TTL lapses.
type Catalog struct {
	db  *sql.DB
	ttl time.Duration

	mu        sync.Mutex
	snapshot  *Snapshot
	fetchedAt time.Time
}

// NewCatalog creates a catalog over an existing connection pool. A zero
// ttl disables caching and re-introspects on every call.
func NewCatalog(db *sql.DB, ttl time.Duration) *Catalog {
	return &Catalog{db: db, ttl: ttl}
}

// Snapshot returns the current schema snapshot, reusing a cached one
// while it is fresh.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && c.ttl > 0 && time.Since(c.fetchedAt) < c.ttl {
		return c.snapshot, nil
	}

	snapshot, err := c.introspect(ctx)
	if err != nil {
		return nil, err
	}

	c.snapshot = snapshot
	c.fetchedAt = time.Now()

	return snapshot, nil
}

// Refresh discards any cached snapshot and re-introspects.
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()

	return c.Snapshot(ctx)
}

func (c *Catalog) introspect(ctx context.Context) (*Snapshot, error) {
	if err := c.db.PingContext(ctx); err != nil {
		return nil, enginerr.Wrap(err, enginerr.KindCatalogUnavailable,
			"database connection could not be established")
	}

	names, err := c.tableNames(ctx)
	if err != nil {
		return nil, enginerr.Wrap(err, enginerr.KindCatalogUnavailable,
			"failed to list tables")
	}

	tables := make([]Table, 0, len(names))

	for _, name := range names {
		columns, err := c.columns(ctx, name)
		if err != nil {
			return nil, enginerr.Wrapf(err, enginerr.KindCatalogUnavailable,
				"failed to read columns for table %s", name)
		}

		primaryKeys, err := c.primaryKeys(ctx, name)
		if err != nil {
			return nil, enginerr.Wrapf(err, enginerr.KindCatalogUnavailable,
				"failed to read primary keys for table %s", name)
		}

		for i := range columns {
			if primaryKeys[columns[i].Name] {
				columns[i].IsPrimaryKey = true
			}
		}

		foreignKeys, err := c.foreignKeys(ctx, name)
		if err != nil {
			return nil, enginerr.Wrapf(err, enginerr.KindCatalogUnavailable,
				"failed to read foreign keys for table %s", name)
		}

		tables = append(tables, Table{
			Name:        name,
			Columns:     columns,
			ForeignKeys: foreignKeys,
		})
	}

	return NewSnapshot(tables, time.Now()), nil
}

func (c *Catalog) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (c *Catalog) columns(ctx context.Context, tableName string) ([]Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column

	for rows.Next() {
		var col Column

		var isNullable string

		if err := rows.Scan(&col.Name, &col.Type, &isNullable); err != nil {
			return nil, err
		}

		col.Nullable = isNullable == "YES"
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (c *Catalog) primaryKeys(ctx context.Context, tableName string) (map[string]bool, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND kcu.table_schema = 'public'
			AND kcu.table_name = $1
		ORDER BY kcu.ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]bool)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		keys[name] = true
	}

	return keys, rows.Err()
}

func (c *Catalog) foreignKeys(ctx context.Context, tableName string) ([]ForeignKey, error) {
	query := `
		SELECT DISTINCT
			kcu1.column_name,
			kcu2.table_name AS foreign_table_name,
			kcu2.column_name AS foreign_column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu1
			ON kcu1.constraint_name = rc.constraint_name
			AND kcu1.table_schema = rc.constraint_schema
		JOIN information_schema.key_column_usage kcu2
			ON kcu2.constraint_name = rc.unique_constraint_name
			AND kcu2.table_schema = rc.unique_constraint_schema
			AND kcu2.ordinal_position = kcu1.ordinal_position
		WHERE kcu1.table_schema = 'public' AND kcu1.table_name = $1
		ORDER BY kcu1.column_name
	`

	rows, err := c.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey

	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}

		fks = append(fks, fk)
	}

	return fks, rows.Err()
}
