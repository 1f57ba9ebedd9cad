package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ConnConfig holds the parameters needed to open a session connection.
type ConnConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Result is the outcome of a single executed statement: either a row set
// (HasRows true) or an update count.
type Result struct {
	Columns      []string
	Rows         [][]string
	RowsAffected int64
	HasRows      bool
}

// Postgres executes statements over a single pinned session connection so
// that transaction state always refers to one backend session.
type Postgres struct {
	pool       *sql.DB
	conn       *sql.Conn
	autocommit bool
}

// NewPostgres returns an executor with no open connection.
func NewPostgres() *Postgres {
	return &Postgres{autocommit: true}
}

// BuildDSN builds the pgx keyword/value connection string.
func BuildDSN(cfg ConnConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("dbname=%s", cfg.Database),
		fmt.Sprintf("user=%s", cfg.Username),
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	return strings.Join(parts, " ")
}

// Connect opens a new connection, pins a single session from the pool, and
// verifies it with a ping. Any previously open connection must be closed by
// the caller first.
func (p *Postgres) Connect(ctx context.Context, cfg ConnConfig) error {
	pool, err := sql.Open("pgx", BuildDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := p.attach(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	return nil
}

// attach pins one session connection from the given pool.
func (p *Postgres) attach(ctx context.Context, pool *sql.DB) error {
	conn, err := pool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire session connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	p.pool = pool
	p.conn = conn
	p.autocommit = true
	return nil
}

// Close releases the session connection and the underlying pool.
func (p *Postgres) Close(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	if p.pool != nil {
		if cerr := p.pool.Close(); err == nil {
			err = cerr
		}
	}
	p.conn = nil
	p.pool = nil
	return err
}

// SetAutoCommit switches the session in or out of autocommit mode. Turning
// autocommit off opens a transaction on the session; turning it back on is
// implicit once the open transaction ends, so no statement is issued.
func (p *Postgres) SetAutoCommit(ctx context.Context, on bool) error {
	if p.conn == nil {
		return errNotConnected
	}
	if on {
		p.autocommit = true
		return nil
	}
	if _, err := p.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return err
	}
	p.autocommit = false
	return nil
}

func (p *Postgres) Commit(ctx context.Context) error {
	if p.conn == nil {
		return errNotConnected
	}
	_, err := p.conn.ExecContext(ctx, "COMMIT")
	return err
}

func (p *Postgres) Rollback(ctx context.Context) error {
	if p.conn == nil {
		return errNotConnected
	}
	_, err := p.conn.ExecContext(ctx, "ROLLBACK")
	return err
}

func (p *Postgres) CreateSavepoint(ctx context.Context, name string) error {
	if p.conn == nil {
		return errNotConnected
	}
	_, err := p.conn.ExecContext(ctx, "SAVEPOINT "+QuoteIdent(name))
	return err
}

func (p *Postgres) ReleaseSavepoint(ctx context.Context, name string) error {
	if p.conn == nil {
		return errNotConnected
	}
	_, err := p.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+QuoteIdent(name))
	return err
}

var errNotConnected = fmt.Errorf("not connected")

// QuoteIdent double-quotes an identifier for safe interpolation.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// rowReturningPrefixes lists statement heads that produce a row set.
var rowReturningPrefixes = []string{
	"SELECT", "WITH", "SHOW", "EXPLAIN", "TABLE", "VALUES", "FETCH",
}

func returnsRows(sqlText string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	for _, prefix := range rowReturningPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// Execute runs one statement on the session connection, returning either a
// row set or an update count.
func (p *Postgres) Execute(ctx context.Context, sqlText string) (*Result, error) {
	if p.conn == nil {
		return nil, errNotConnected
	}
	if returnsRows(sqlText) {
		rows, err := p.conn.QueryContext(ctx, sqlText)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectRows(rows)
	}

	res, err := p.conn.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &Result{RowsAffected: affected}, nil
}

func collectRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := &Result{Columns: columns, HasRows: true}
	for rows.Next() {
		vals := make([]*sql.NullString, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			vals[i] = &sql.NullString{}
			ptrs[i] = vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}

// ListSchemas returns user-visible schema names.
func (p *Postgres) ListSchemas(ctx context.Context) ([]string, error) {
	const q = `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		AND schema_name NOT LIKE 'pg_%' ORDER BY schema_name`
	return p.queryStrings(ctx, q)
}

// ListTables returns table and view names in the given schema.
func (p *Postgres) ListTables(ctx context.Context, schema string) ([]string, error) {
	const q = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`
	return p.queryStrings(ctx, q, schema)
}

// ListColumns returns the column names of a table in ordinal order.
func (p *Postgres) ListColumns(ctx context.Context, schema, table string) ([]string, error) {
	const q = `SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`
	return p.queryStrings(ctx, q, schema, table)
}

// ListFunctions returns user-defined function names grouped by schema.
func (p *Postgres) ListFunctions(ctx context.Context) (map[string][]string, error) {
	if p.conn == nil {
		return nil, errNotConnected
	}
	const q = `SELECT n.nspname AS schema, p.proname AS function
		FROM pg_proc p
		JOIN pg_namespace n ON p.pronamespace = n.oid
		WHERE n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY schema, function`
	rows, err := p.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	functions := make(map[string][]string)
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, err
		}
		functions[schema] = append(functions[schema], name)
	}
	return functions, rows.Err()
}

func (p *Postgres) queryStrings(ctx context.Context, q string, args ...any) ([]string, error) {
	if p.conn == nil {
		return nil, errNotConnected
	}
	rows, err := p.conn.QueryContext(ctx, q, args...)
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
