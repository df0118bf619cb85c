// Package storage persists clients, tax advisors, templates, work orders and documents in a SQL
// database (SQLite or PostgreSQL) and keeps uploaded files on disk.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("not found")

const (
	dialectSQLite   = "sqlite3"
	dialectPostgres = "postgres"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Writer is the part of Store available inside WithinTx.
type Writer interface {
	CreateWorkOrder(ctx context.Context, w *models.WorkOrder) error
	CreateDocument(ctx context.Context, d *models.Document) error
}

// Store is the SQL repository. A Store returned to a WithinTx callback is bound to the transaction.
type Store struct {
	db      *sql.DB
	q       querier
	dialect string
	logger  *zap.Logger
}

// Open connects to the database described by cfg and initializes the schema.
func Open(cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	switch cfg.Driver {
	case "", dialectSQLite:
		return NewSQLiteStore(cfg.DatabasePath, logger)
	case dialectPostgres, "pgx":
		return NewPostgresStore(cfg.DatabaseURL, logger)
	default:
		return nil, eris.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// NewSQLiteStore opens or creates a SQLite database at dbPath.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, eris.Wrap(err, "failed to create database directory")
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to enable WAL")
	}
	return newStore(db, dialectSQLite, logger)
}

// NewPostgresStore connects through the pgx database/sql driver.
func NewPostgresStore(url string, logger *zap.Logger) (*Store, error) {
	if url == "" {
		return nil, eris.New("postgres driver requires storage.database_url")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}
	return newStore(db, dialectPostgres, logger)
}

func newStore(db *sql.DB, dialect string, logger *zap.Logger) (*Store, error) {
	s := &Store{db: db, q: db, dialect: dialect, logger: utils.OrNop(logger)}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to initialize schema")
	}
	s.logger.Debug("storage opened", zap.String("driver", dialect))
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		idCol = "BIGSERIAL PRIMARY KEY"
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS clients (
		id %[1]s,
		client_type TEXT NOT NULL,
		mandate_manager TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		tax_number TEXT NOT NULL DEFAULT '',
		tax_office TEXT NOT NULL DEFAULT '',
		address_street TEXT NOT NULL DEFAULT '',
		address_number TEXT NOT NULL DEFAULT '',
		address_zip TEXT NOT NULL DEFAULT '',
		address_city TEXT NOT NULL DEFAULT '',
		salutation TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		birth_date TEXT NOT NULL DEFAULT '',
		tax_id TEXT NOT NULL DEFAULT '',
		company_name TEXT NOT NULL DEFAULT '',
		legal_form TEXT NOT NULL DEFAULT '',
		vat_id TEXT NOT NULL DEFAULT '',
		contact_salutation TEXT NOT NULL DEFAULT '',
		contact_last_name TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tax_advisors (
		id %[1]s,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		tax_number TEXT NOT NULL DEFAULT '',
		specialization TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS templates (
		id %[1]s,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		placeholders TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS work_orders (
		id %[1]s,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		due_date TIMESTAMP,
		client_id BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		tax_advisor_id BIGINT NOT NULL REFERENCES tax_advisors(id),
		template_id BIGINT REFERENCES templates(id) ON DELETE SET NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_orders_client ON work_orders(client_id);

	CREATE TABLE IF NOT EXISTS documents (
		id %[1]s,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		client_id BIGINT REFERENCES clients(id) ON DELETE SET NULL,
		tax_advisor_id BIGINT REFERENCES tax_advisors(id),
		work_order_id BIGINT REFERENCES work_orders(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_work_order ON documents(work_order_id);
	`, idCol)
	// One statement per Exec for both drivers.
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
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

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// deleteByID removes one row and reports ErrNotFound when nothing matched.
func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return eris.Wrapf(err, "delete from %s", table)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", table, id)
	}
	return nil
}

// WithinTx runs fn inside a transaction. The transaction commits when fn returns nil and rolls
// back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(w Writer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	txStore := &Store{db: s.db, q: tx, dialect: s.dialect, logger: s.logger}
	if err := fn(txStore); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "commit transaction")
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the SQL dialect in use.
func (s *Store) Driver() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
