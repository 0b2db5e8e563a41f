package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Client is the warehouse surface the pipeline needs. Implementations must
// be safe for concurrent use.
type Client interface {
	// ColumnNames returns the table's columns in ordinal position order.
	ColumnNames(ctx context.Context, table Table) ([]string, error)

	// StringColumns returns the table's string-typed columns in ordinal
	// position order.
	StringColumns(ctx context.Context, table Table) ([]string, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, stmt string) error

	// QueryStrings runs a query and collects the first column of every
	// row.
	QueryStrings(ctx context.Context, query string) ([]string, error)

	// QueryBoolRow runs a query expected to return exactly one row of
	// boolean columns and maps result column name to value.
	QueryBoolRow(ctx context.Context, query string) (map[string]bool, error)
}

const (
	columnsQuery = `SELECT column_name FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

	stringColumnsQuery = `SELECT column_name FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
  AND data_type IN ('STRING', 'text', 'character varying')
ORDER BY ordinal_position`
)

// DB is the database/sql-backed Client.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects with the given driver and DSN and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging warehouse: %w", err)
	}
	return &DB{db: db, logger: logger}, nil
}

// NewDB wraps an existing connection pool.
func NewDB(db *sql.DB, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DB{db: db, logger: logger}
}

// Close releases the underlying pool.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) ColumnNames(ctx context.Context, table Table) ([]string, error) {
	cols, err := d.queryColumn(ctx, columnsQuery, table.Dataset, table.Name)
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns retrieved from table: %s", table)
	}
	return cols, nil
}

func (d *DB) StringColumns(ctx context.Context, table Table) ([]string, error) {
	cols, err := d.queryColumn(ctx, stringColumnsQuery, table.Dataset, table.Name)
	if err != nil {
		return nil, fmt.Errorf("listing string columns of %s: %w", table, err)
	}
	return cols, nil
}

func (d *DB) Exec(ctx context.Context, stmt string) error {
	d.logger.Debug("executing statement", "bytes", len(stmt))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

func (d *DB) QueryStrings(ctx context.Context, query string) ([]string, error) {
	return d.queryColumn(ctx, query)
}

func (d *DB) QueryBoolRow(ctx context.Context, query string) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("reading result row: %w", err)
		}
		return nil, fmt.Errorf("query returned no rows")
	}

	values := make([]bool, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning result row: %w", err)
	}

	out := make(map[string]bool, len(names))
	for i, name := range names {
		out[name] = values[i]
	}
	return out, rows.Err()
}

func (d *DB) queryColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
