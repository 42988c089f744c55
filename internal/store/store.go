// Package store persists canonical entities, facts and the audit trail in
// SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout sorts lexically in both engines
const timeLayout = "2006-01-02T15:04:05.000000Z"

// DBExecutor is satisfied by both *sql.DB and *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs every statement against one executor
type Queries struct {
	db     DBExecutor
	driver string
}

// Store owns the connection pool
type Store struct {
	*Queries
	conn   *sql.DB
	driver string
}

// Open connects to the configured database. The connection is verified with
// a ping so that a bad DSN surfaces as a configuration error.
func Open(ctx context.Context, cfg model.DatabaseConfig) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverSQLite, "sqlite3":
		driver = DriverSQLite
	case DriverPostgres, "postgresql":
		driver = DriverPostgres
	default:
		return nil, errors.NewConfigError("database", fmt.Sprintf("unsupported driver %q", cfg.Driver), nil)
	}
	if cfg.DSN == "" {
		return nil, errors.NewConfigError("database", "dsn is required", nil)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errors.NewConfigError("database", "open failed", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; this also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewConfigError("database", "cannot reach "+driver, err)
	}

	s := New(db, driver)
	if driver == DriverSQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, errors.NewConfigError("database", pragma, err)
			}
		}
	}
	return s, nil
}

// New wraps an existing connection.
func New(db *sql.DB, driver string) *Store {
	return &Store{
		Queries: &Queries{db: db, driver: driver},
		conn:    db,
		driver:  driver,
	}
}

// Driver returns the SQL dialect in use.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.driver) {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func schemaStatements(driver string) []string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	var stmts []string
	for _, s := range strings.Split(schemaSQL, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		stmts = append(stmts, strings.ReplaceAll(s, "{{ID}}", id))
	}
	return stmts
}

// InTx runs fn in one transaction. The transaction is not bound to ctx so
// that a cancelled run never aborts a merge half way.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Queries{db: tx, driver: s.driver}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (q *Queries) rebind(query string) string {
	if q.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

// insertReturning runs an INSERT ... ON CONFLICT DO NOTHING RETURNING id.
// created is false when the row already existed.
func (q *Queries) insertReturning(ctx context.Context, query string, args ...any) (id int64, created bool, err error) {
	err = q.queryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Counts returns the row count of every table.
func (q *Queries) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		if err := q.queryRow(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		counts[t] = n
	}
	return counts, nil
}

var tables = []string{
	"source_documents", "elections", "parties", "coalitions", "coalition_members",
	"constituencies", "candidates", "field_provenance", "candidate_results",
	"affidavits", "legal_cases", "manifestos", "manifesto_documents",
	"manifesto_promises", "party_fulfilment_claims", "promise_assessments",
	"promise_evidence", "update_log", "review_items",
}

// Tables lists the tables in creation order.
func Tables() []string {
	return append([]string(nil), tables...)
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
