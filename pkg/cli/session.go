package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-pgcli/pkg/db"
)

// Executor is the query-execution collaborator the session drives. The
// session never touches the network itself.
type Executor interface {
	MetadataSource

	Connect(ctx context.Context, cfg db.ConnConfig) error
	Close(ctx context.Context) error
	SetAutoCommit(ctx context.Context, on bool) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	CreateSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	Execute(ctx context.Context, sqlText string) (*db.Result, error)
}

// ConnectionIdentity names the current connection. It is replaced wholesale
// on every reconnect, never mutated field by field.
type ConnectionIdentity struct {
	Host     string
	Port     int
	Database string
	Username string
}

// Session owns all client-local state: connection identity, transaction
// status, and the timing toggle. Meta-commands and intercepted transaction
// SQL are dispatched here.
type Session struct {
	exec     Executor
	cache    *MetadataCache
	logger   *slog.Logger
	out      io.Writer
	identity *ConnectionIdentity
	password string // retained for \connect with a partial target

	inTransaction bool
	timingEnabled bool
}

func NewSession(exec Executor, logger *slog.Logger, out io.Writer) *Session {
	return &Session{
		exec:   exec,
		cache:  NewMetadataCache(exec, logger),
		logger: logger,
		out:    out,
	}
}

func (s *Session) Connected() bool { return s.identity != nil }

func (s *Session) InTransaction() bool { return s.inTransaction }

func (s *Session) TimingEnabled() bool { return s.timingEnabled }

func (s *Session) Cache() *MetadataCache { return s.cache }

func (s *Session) Identity() *ConnectionIdentity {
	return s.identity
}

// Prompt derives the prompt string from the session state alone, so the
// transaction marker can never go stale.
func (s *Session) Prompt() string {
	if s.identity == nil {
		return "(none)=> "
	}
	if s.inTransaction {
		return s.identity.Database + "=*> "
	}
	return s.identity.Database + "=> "
}

// Connect establishes a new connection. An existing connection is closed
// first, best-effort. A fresh connection always starts outside a
// transaction, whatever the previous state was.
func (s *Session) Connect(ctx context.Context, cfg db.ConnConfig) error {
	if s.identity != nil {
		if err := s.exec.Close(ctx); err != nil {
			s.logger.Warn("closing previous connection failed", "error", err)
		}
		s.identity = nil
		s.inTransaction = false
	}

	if err := s.exec.Connect(ctx, cfg); err != nil {
		return err
	}

	s.identity = &ConnectionIdentity{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		Username: cfg.Username,
	}
	s.password = cfg.Password
	s.inTransaction = false

	s.cache.Invalidate()
	if err := s.cache.Refresh(ctx); err != nil {
		s.logger.Warn("initial metadata load failed", "error", err)
	}
	s.logger.Info("connected",
		"host", cfg.Host, "port", cfg.Port,
		"database", cfg.Database, "user", cfg.Username)
	return nil
}

// Begin opens a transaction. Calling it inside an open transaction warns
// instead of erroring, matching the server's behavior.
func (s *Session) Begin(ctx context.Context) error {
	if s.identity == nil {
		return fmt.Errorf("not connected to any database")
	}
	if s.inTransaction {
		fmt.Fprintln(s.out, "WARNING: there is already a transaction in progress")
		return nil
	}
	if err := s.exec.SetAutoCommit(ctx, false); err != nil {
		return err
	}
	s.inTransaction = true
	fmt.Fprintln(s.out, "BEGIN")
	return nil
}

// Commit ends the open transaction. Outside a transaction it warns and
// leaves state untouched. A failed commit keeps the transaction open.
func (s *Session) Commit(ctx context.Context) error {
	if !s.inTransaction {
		fmt.Fprintln(s.out, "WARNING: there is no transaction in progress")
		return nil
	}
	if err := s.exec.Commit(ctx); err != nil {
		return err
	}
	if err := s.exec.SetAutoCommit(ctx, true); err != nil {
		s.logger.Warn("restoring autocommit failed", "error", err)
	}
	s.inTransaction = false
	fmt.Fprintln(s.out, "COMMIT")
	return nil
}

// Rollback aborts the open transaction, with the same warn-not-error
// behavior as Commit when no transaction is open.
func (s *Session) Rollback(ctx context.Context) error {
	if !s.inTransaction {
		fmt.Fprintln(s.out, "WARNING: there is no transaction in progress")
		return nil
	}
	if err := s.exec.Rollback(ctx); err != nil {
		return err
	}
	if err := s.exec.SetAutoCommit(ctx, true); err != nil {
		s.logger.Warn("restoring autocommit failed", "error", err)
	}
	s.inTransaction = false
	fmt.Fprintln(s.out, "ROLLBACK")
	return nil
}

// Savepoint creates a named savepoint. Unlike Begin/Commit this is a hard
// error outside a transaction.
func (s *Session) Savepoint(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("\\savepoint requires a name")
	}
	if !s.inTransaction {
		return fmt.Errorf("SAVEPOINT can only be used in transaction blocks")
	}
	if err := s.exec.CreateSavepoint(ctx, name); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "SAVEPOINT")
	return nil
}

// Release drops a named savepoint, with the same preconditions as Savepoint.
func (s *Session) Release(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("\\release requires a name")
	}
	if !s.inTransaction {
		return fmt.Errorf("RELEASE SAVEPOINT can only be used in transaction blocks")
	}
	if err := s.exec.ReleaseSavepoint(ctx, name); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "RELEASE")
	return nil
}

// Close tears the session down. An open transaction is rolled back first;
// rollback failures are logged and never block shutdown.
func (s *Session) Close(ctx context.Context) {
	if s.identity == nil {
		return
	}
	if s.inTransaction {
		if err := s.exec.Rollback(ctx); err != nil {
			s.logger.Warn("rollback on shutdown failed", "error", err)
		}
		s.inTransaction = false
	}
	if err := s.exec.Close(ctx); err != nil {
		s.logger.Warn("closing connection failed", "error", err)
	}
	s.identity = nil
}

// Transaction statements are intercepted before they reach the executor and
// rerouted through the session's own transition handlers. A single trailing
// clause such as WORK or TRANSACTION is tolerated.
var (
	beginStmtPattern    = regexp.MustCompile(`(?i)^\s*(BEGIN(\s+(WORK|TRANSACTION))?|START\s+TRANSACTION)\s*;?\s*$`)
	commitStmtPattern   = regexp.MustCompile(`(?i)^\s*COMMIT(\s+(WORK|TRANSACTION))?\s*;?\s*$`)
	rollbackStmtPattern = regexp.MustCompile(`(?i)^\s*ROLLBACK(\s+(WORK|TRANSACTION))?\s*;?\s*$`)
)

// DispatchSQL runs one SQL statement: transaction control is intercepted,
// anything else goes to the executor and the result is rendered.
func (s *Session) DispatchSQL(ctx context.Context, sqlText string) {
	switch {
	case beginStmtPattern.MatchString(sqlText):
		s.report(s.Begin(ctx))
		return
	case commitStmtPattern.MatchString(sqlText):
		s.report(s.Commit(ctx))
		return
	case rollbackStmtPattern.MatchString(sqlText):
		s.report(s.Rollback(ctx))
		return
	}

	if s.identity == nil {
		fmt.Fprintln(s.out, "Not connected to any database. Use \\connect to establish a connection.")
		return
	}

	start := time.Now()
	result, err := s.exec.Execute(ctx, sqlText)
	elapsed := time.Since(start)
	if err != nil {
		// The transaction, if any, stays open; rolling back is the
		// user's call.
		fmt.Fprintf(s.out, "ERROR: %v\n", err)
		s.logger.Error("statement failed", "error", err)
		return
	}

	RenderResult(s.out, result)
	s.printTiming(elapsed)
}

// DispatchMeta handles one backslash command. It reports whether the caller
// should terminate the session loop.
func (s *Session) DispatchMeta(ctx context.Context, line string) (quit bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
	cmd := strings.ToLower(fields[0])
	args := ""
	if len(fields) > 1 {
		args = strings.TrimSpace(fields[1])
	}

	switch cmd {
	case `\connect`, `\c`:
		s.report(s.connectTo(ctx, args))
	case `\list`, `\l`:
		s.listDatabases(ctx)
	case `\dt`:
		s.listTables(ctx)
	case `\d`:
		s.describeTable(ctx, args)
	case `\timing`:
		s.toggleTiming(args)
	case `\begin`:
		s.report(s.Begin(ctx))
	case `\commit`:
		s.report(s.Commit(ctx))
	case `\rollback`:
		s.report(s.Rollback(ctx))
	case `\savepoint`:
		s.report(s.Savepoint(ctx, args))
	case `\release`:
		s.report(s.Release(ctx, args))
	case `\mode`:
		s.showMode()
	case `\help`, `\h`:
		s.showHelp()
	case `\quit`, `\q`:
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\nType \\help for available commands\n", cmd)
	}
	return false
}

func (s *Session) report(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "ERROR: %v\n", err)
	}
}

// ParseConnectTarget interprets the \connect argument grammar against the
// current identity: "db" reuses host and port, "host/db" takes the default
// port, "host:port/db" is fully explicit.
func ParseConnectTarget(target string, current *ConnectionIdentity) (db.ConnConfig, error) {
	cfg := db.ConnConfig{Host: "localhost", Port: 5432}
	if current != nil {
		cfg.Host = current.Host
		cfg.Port = current.Port
		cfg.Username = current.Username
	}

	if target == "" {
		if current == nil {
			return cfg, fmt.Errorf("\\connect requires a target when not connected")
		}
		cfg.Database = current.Database
		return cfg, nil
	}

	if !strings.Contains(target, "/") {
		cfg.Database = target
		return cfg, nil
	}

	hostPart, dbName, _ := strings.Cut(target, "/")
	if dbName == "" {
		return cfg, fmt.Errorf("invalid connect target %q", target)
	}
	cfg.Database = dbName
	cfg.Port = 5432

	if host, portStr, ok := strings.Cut(hostPart, ":"); ok {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid port in connect target %q", target)
		}
		cfg.Host = host
		cfg.Port = port
	} else {
		cfg.Host = hostPart
	}
	return cfg, nil
}

func (s *Session) connectTo(ctx context.Context, target string) error {
	cfg, err := ParseConnectTarget(target, s.identity)
	if err != nil {
		return err
	}
	cfg.Password = s.password
	if err := s.Connect(ctx, cfg); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "You are now connected to database %q as user %q\n",
		cfg.Database, cfg.Username)
	return nil
}

func (s *Session) listDatabases(ctx context.Context) {
	const q = `SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`
	s.runCatalogQuery(ctx, q)
}

func (s *Session) listTables(ctx context.Context) {
	const q = `SELECT table_schema AS "Schema", table_name AS "Name", 'table' AS "Type"
		FROM information_schema.tables
		WHERE table_schema = 'public' ORDER BY table_name`
	s.runCatalogQuery(ctx, q)
}

func (s *Session) describeTable(ctx context.Context, name string) {
	if s.identity == nil {
		fmt.Fprintln(s.out, "Not connected to any database.")
		return
	}
	if name == "" {
		fmt.Fprintln(s.out, `\d requires a table name`)
		return
	}

	// A bare name describes the table wherever it lives; only a qualified
	// name restricts the schema.
	var q string
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		q = fmt.Sprintf(`SELECT column_name, data_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_schema = '%s' AND table_name = '%s' ORDER BY ordinal_position`,
			escapeLiteral(name[:idx]), escapeLiteral(name[idx+1:]))
	} else {
		q = fmt.Sprintf(`SELECT column_name, data_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_name = '%s' ORDER BY ordinal_position`,
			escapeLiteral(name))
	}
	s.runCatalogQuery(ctx, q)
}

func (s *Session) runCatalogQuery(ctx context.Context, q string) {
	if s.identity == nil {
		fmt.Fprintln(s.out, "Not connected to any database.")
		return
	}
	result, err := s.exec.Execute(ctx, q)
	if err != nil {
		fmt.Fprintf(s.out, "ERROR: %v\n", err)
		return
	}
	RenderResult(s.out, result)
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (s *Session) toggleTiming(arg string) {
	switch strings.ToLower(arg) {
	case "on":
		s.timingEnabled = true
	case "off":
		s.timingEnabled = false
	case "":
		s.timingEnabled = !s.timingEnabled
	default:
		fmt.Fprintf(s.out, "unrecognized value %q for \\timing: on or off expected\n", arg)
		return
	}
	if s.timingEnabled {
		fmt.Fprintln(s.out, "Timing is on.")
	} else {
		fmt.Fprintln(s.out, "Timing is off.")
	}
}

func (s *Session) printTiming(elapsed time.Duration) {
	if s.timingEnabled {
		fmt.Fprintf(s.out, "Time: %d ms\n", elapsed.Milliseconds())
	}
}

func (s *Session) showMode() {
	fmt.Fprintln(s.out, "All statements are executed on a single pinned session connection.")
	fmt.Fprintln(s.out, "Transaction state therefore always refers to this session.")
}

func (s *Session) showHelp() {
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, `\connect [target] - Connect to a database (db, host/db, or host:port/db)`)
	fmt.Fprintln(s.out, `\list             - List all databases`)
	fmt.Fprintln(s.out, `\dt               - List all tables`)
	fmt.Fprintln(s.out, `\d [table]        - Describe a table`)
	fmt.Fprintln(s.out, `\timing [on|off]  - Toggle timing of commands`)
	fmt.Fprintln(s.out, `\begin            - Begin a transaction`)
	fmt.Fprintln(s.out, `\commit           - Commit the current transaction`)
	fmt.Fprintln(s.out, `\rollback         - Roll back the current transaction`)
	fmt.Fprintln(s.out, `\savepoint <name> - Create a savepoint`)
	fmt.Fprintln(s.out, `\release <name>   - Release a savepoint`)
	fmt.Fprintln(s.out, `\i <file>         - Execute an SQL script file (zstd compressed files supported)`)
	fmt.Fprintln(s.out, `\mode             - Show how statements are executed`)
	fmt.Fprintln(s.out, `\help             - Show this help`)
	fmt.Fprintln(s.out, `\quit             - Quit`)
	fmt.Fprintln(s.out, "")
	fmt.Fprintln(s.out, "SQL statements end with a semicolon.")
}
