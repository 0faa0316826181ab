// Package store owns the durable feed snapshot: a single SQLite-backed slot
// that survives restarts and is read when the network is unavailable.
//
// The connection is opened lazily by the first caller and reused for the life
// of the Handle. Callers racing on the first use share one in-flight open; a
// failed open is not remembered, so the next caller tries again.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/models"
)

// FeedKey is the fixed key of the single feed slot.
const FeedKey = "podcastFeed"

// SchemaVersion is the migration version a fully provisioned store reports.
const SchemaVersion = 1

//go:embed migrations/*.sql
var migrationFS embed.FS

// OpenFunc opens and provisions the database at path.
type OpenFunc func(ctx context.Context, path string) (*sql.DB, error)

// Handle is the process-wide owner of the feed database connection.
type Handle struct {
	path   string
	logger *slog.Logger
	open   OpenFunc

	mu    sync.Mutex
	db    *sql.DB
	group singleflight.Group
}

// Option customizes a Handle.
type Option func(*Handle)

// WithOpenFunc replaces the default SQLite opener.
func WithOpenFunc(fn OpenFunc) Option {
	return func(h *Handle) { h.open = fn }
}

// New creates a Handle for the database at path. Nothing is opened until first use.
func New(path string, logger *slog.Logger, opts ...Option) *Handle {
	h := &Handle{
		path:   path,
		logger: logging.NewComponentLogger(logger, "store"),
		open:   openSQLite,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Path returns the database file location.
func (h *Handle) Path() string {
	return h.path
}

// DB returns the shared connection, opening it on first use.
func (h *Handle) DB(ctx context.Context) (*sql.DB, error) {
	if db := h.cached(); db != nil {
		return db, nil
	}

	v, err, shared := h.group.Do("open", func() (any, error) {
		if db := h.cached(); db != nil {
			return db, nil
		}
		// The open is shared, so one caller's cancellation must not fail the others.
		db, err := h.open(context.WithoutCancel(ctx), h.path)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.db = db
		h.mu.Unlock()
		h.logger.Debug("opened feed store", logging.String("path", h.path))
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open feed store: %w", err)
	}
	if shared {
		h.logger.Debug("joined in-flight feed store open")
	}
	return v.(*sql.DB), nil
}

func (h *Handle) cached() *sql.DB {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db
}

// Close closes the underlying database connection, if it was opened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// PutFeed overwrites the feed slot.
func (h *Handle) PutFeed(ctx context.Context, feed *models.PodcastFeed) error {
	if feed == nil {
		return errors.New("feed is nil")
	}
	db, err := h.DB(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO feed_cache (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		FeedKey,
		string(data),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write feed slot: %w", err)
	}
	return nil
}

// GetFeed reads the feed slot. It returns nil, nil when the slot is empty.
func (h *Handle) GetFeed(ctx context.Context) (*models.PodcastFeed, error) {
	db, err := h.DB(ctx)
	if err != nil {
		return nil, err
	}

	var raw string
	err = db.QueryRowContext(ctx, `SELECT value FROM feed_cache WHERE key = ?`, FeedKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed slot: %w", err)
	}

	var feed models.PodcastFeed
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		return nil, fmt.Errorf("decode feed slot: %w", err)
	}
	return &feed, nil
}

// DeleteFeed empties the feed slot.
func (h *Handle) DeleteFeed(ctx context.Context) error {
	db, err := h.DB(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM feed_cache WHERE key = ?`, FeedKey); err != nil {
		return fmt.Errorf("delete feed slot: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func (h *Handle) Version(ctx context.Context) (int, error) {
	db, err := h.DB(ctx)
	if err != nil {
		return 0, err
	}
	var (
		version int
		dirty   bool
	)
	err = db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
