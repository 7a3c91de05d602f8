package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/log"
	"github.com/memogarden/soil/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added explicit unique index on relations(kind, source, target)
const currentSchemaVersion = 1

// DefaultMaxChainDepth bounds supersession chain walks. A chain longer
// than this indicates runaway supersession or corruption and is reported
// as ChainTooDeepError rather than silently truncated.
const DefaultMaxChainDepth = 32

// Store provides durable storage for soil items and relations.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db            *sql.DB
	logger        log.Logger
	clock         Clock
	ids           fact.IDGenerator
	validator     *schema.Validator
	entities      EntityChecker
	maxChainDepth int
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithLogger routes store logging to the given logger.
// The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock substitutes the realized_at timestamp source.
// Tests inject a fixed clock for reproducible rows.
func WithClock(clock Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDGenerator substitutes the item and relation identifier source.
// Tests inject a sequence generator for stable golden output.
func WithIDGenerator(ids fact.IDGenerator) Option {
	return func(s *Store) { s.ids = ids }
}

// WithEntityChecker installs the hook used to validate entity relation
// endpoints. Entities live outside the store; without a checker, entity
// references are accepted unverified.
func WithEntityChecker(ec EntityChecker) Option {
	return func(s *Store) { s.entities = ec }
}

// WithMaxChainDepth overrides DefaultMaxChainDepth.
func WithMaxChainDepth(n int) Option {
	return func(s *Store) { s.maxChainDepth = n }
}

// Open creates or opens a soil database at the given path.
// Applies required pragmas, migrations, and derived indexes automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		logger:        log.NewNop(),
		clock:         NewWallClock(),
		ids:           fact.UUIDv7Generator{},
		maxChainDepth: DefaultMaxChainDepth,
	}
	for _, opt := range opts {
		opt(s)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile payload schemas: %w", err)
	}
	s.validator = validator

	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool for SQLite
	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	// Apply required pragmas
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	// Apply schema migrations
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	// Create derived structures (dedup index table, secondary indexes)
	if err := ensureIndexes(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	s.db = db
	s.logger.Info("store opened", "path", path, "schema_version", currentSchemaVersion)
	return s, nil
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Query executes a query and returns the resulting rows.
// This is a convenience wrapper around db.QueryContext for collaborators.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// SchemaVersion returns the database's PRAGMA user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// Apply migrations sequentially
	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	// Set version after all migrations
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds an explicit unique index on the relation identity
// triple for existing databases. New databases get this from the
// schema.sql UNIQUE constraint, but existing DBs created before v1 need
// this index added explicitly.
func migrateToV1(db *sql.DB) error {
	// CREATE UNIQUE INDEX IF NOT EXISTS is safe - no-op if index exists
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_relations_identity
		ON relations(kind, source, target)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
