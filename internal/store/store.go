// Package store persists serialized documents in a SQL database. SQLite and
// PostgreSQL (through lib/pq or pgx) are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/conduit-lang/grt/internal/grt"
)

var (
	// ErrNotFound is returned when no document has the requested name
	ErrNotFound = errors.New("document not found")

	// ErrExists is returned when creating a document whose name is taken
	ErrExists = errors.New("document already exists")

	// ErrUnsupportedDriver is returned for drivers without a dialect
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// DefaultTable is the table documents are stored in
const DefaultTable = "grt_documents"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config selects the database
type Config struct {
	Driver string
	DSN    string
	Table  string
}

// Document describes a stored document
type Document struct {
	Name      string
	Objects   int
	Size      int
	UpdatedAt time.Time
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithTable overrides the table name
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// Store reads and writes documents. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect dialect
	table   string
	logger  *zap.Logger
	now     func() time.Time
}

type dialect struct {
	name     string
	numbered bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite3":
		return dialect{name: driver}, nil
	case "postgres", "pgx":
		return dialect{name: driver, numbered: true}, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// placeholder returns the bind parameter for the n-th argument, 1-based
func (d dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Open connects to the configured database and checks the connection
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if _, err := dialectFor(cfg.Driver); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver == "sqlite3" {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Table != "" {
		opts = append([]Option{WithTable(cfg.Table)}, opts...)
	}
	s, err := New(db, cfg.Driver, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle
func New(db *sql.DB, driver string, opts ...Option) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:      db,
		dialect: d,
		table:   DefaultTable,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !identifier.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}
	return s, nil
}

// Driver returns the database driver name
func (s *Store) Driver() string {
	return s.dialect.name
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the documents table if it does not exist
func (s *Store) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name VARCHAR(255) PRIMARY KEY,
	data TEXT NOT NULL,
	objects INTEGER NOT NULL DEFAULT 0,
	updated_at BIGINT NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize documents table: %w", err)
	}
	return nil
}

// Save stores v under name, replacing any previous document
func (s *Store) Save(ctx context.Context, name string, v grt.Value) error {
	data, objects, err := encode(name, v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (name, data, objects, updated_at)
VALUES (%s)
ON CONFLICT (name) DO UPDATE SET data = excluded.data, objects = excluded.objects, updated_at = excluded.updated_at`,
		s.table, s.placeholders(4))
	if _, err := s.db.ExecContext(ctx, query, name, string(data), objects, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to save document %s: %w", name, convertError(err))
	}
	s.logger.Debug("saved document", zap.String("name", name), zap.Int("objects", objects), zap.Int("bytes", len(data)))
	return nil
}

// Create stores v under a name that must not be taken yet
func (s *Store) Create(ctx context.Context, name string, v grt.Value) error {
	data, objects, err := encode(name, v)
	if err != nil {
		return err
	}
	return s.insert(ctx, name, data, objects)
}

// Import stores serialized document data under a new name
func (s *Store) Import(ctx context.Context, name string, data []byte, objects int) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.insert(ctx, name, data, objects)
}

func (s *Store) insert(ctx context.Context, name string, data []byte, objects int) error {
	query := fmt.Sprintf(`INSERT INTO %s (name, data, objects, updated_at) VALUES (%s)`,
		s.table, s.placeholders(4))
	if _, err := s.db.ExecContext(ctx, query, name, string(data), objects, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to create document %s: %w", name, convertError(err))
	}
	s.logger.Debug("created document", zap.String("name", name), zap.Int("objects", objects))
	return nil
}

// Data returns the serialized form of a stored document
func (s *Store) Data(ctx context.Context, name string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE name = %s`, s.table, s.dialect.placeholder(1))
	var data string
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&data); err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", name, convertError(err))
	}
	return []byte(data), nil
}

// Load rebuilds a stored document in gctx. The document's undo history
// starts empty.
func (s *Store) Load(ctx context.Context, gctx *grt.Context, name string) (grt.Value, error) {
	data, err := s.Data(ctx, name)
	if err != nil {
		return nil, err
	}
	v, err := grt.LoadDocument(gctx, data)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", name, err)
	}
	return v, nil
}

// List returns the stored documents ordered by name
func (s *Store) List(ctx context.Context) ([]Document, error) {
	query := fmt.Sprintf(`SELECT name, LENGTH(data), objects, updated_at FROM %s ORDER BY name ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d       Document
			updated int64
		)
		if err := rows.Scan(&d.Name, &d.Size, &d.Objects, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.UpdatedAt = time.Unix(updated, 0).UTC()
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// Delete removes a stored document
func (s *Store) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = %s`, s.table, s.dialect.placeholder(1))
	result, err := s.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", name, convertError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.logger.Debug("deleted document", zap.String("name", name))
	return nil
}

func (s *Store) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.dialect.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("document name must not be empty")
	}
	if len(name) > 255 {
		return errors.New("document name must be at most 255 characters")
	}
	return nil
}

func encode(name string, v grt.Value) ([]byte, int, error) {
	if err := validName(name); err != nil {
		return nil, 0, err
	}
	data, err := grt.Marshal(v)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to serialize document %s: %w", name, err)
	}
	return data, grt.CountObjects(v), nil
}

// convertError maps driver errors onto the store's sentinel errors
func convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrExists, pgErr.Detail)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrExists, pqErr.Detail)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrExists, liteErr)
	}
	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsExists returns true if the error is ErrExists
func IsExists(err error) bool {
	return errors.Is(err, ErrExists)
}
