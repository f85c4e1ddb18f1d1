package sqldb

import (
	"context"
	"fmt"
)

var catalogQueries = map[Driver]struct {
	databases string
	tables    string
}{
	DriverPostgres: {
		databases: `SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname`,
		tables:    `SELECT tablename FROM pg_tables WHERE schemaname NOT IN ('pg_catalog', 'information_schema') AND schemaname NOT LIKE 'pg_%' ORDER BY tablename`,
	},
	DriverDuckDB: {
		databases: `SELECT database_name FROM duckdb_databases() WHERE NOT internal ORDER BY database_name`,
		tables:    `SELECT table_name FROM information_schema.tables WHERE table_schema NOT IN ('information_schema', 'pg_catalog') ORDER BY table_name`,
	},
	DriverSQLite: {
		databases: `SELECT name FROM pragma_database_list ORDER BY seq`,
		tables:    `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	},
}

func (c *Conn) ListDatabases(ctx context.Context) ([]string, error) {
	q, ok := catalogQueries[c.driver]
	if !ok {
		return nil, fmt.Errorf("list databases: unsupported driver %q", c.driver)
	}
	names, err := c.queryNames(ctx, q.databases)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

func (c *Conn) ListTables(ctx context.Context) ([]string, error) {
	q, ok := catalogQueries[c.driver]
	if !ok {
		return nil, fmt.Errorf("list tables: unsupported driver %q", c.driver)
	}
	names, err := c.queryNames(ctx, q.tables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

func (c *Conn) queryNames(ctx context.Context, query string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}
