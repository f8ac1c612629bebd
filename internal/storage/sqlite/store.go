// Package sqlite is the embedded, WAL-mode SQLite store for matches, players and the
// persisted crawl queue.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/match-crawler/internal/clock/system"
	"github.com/JakeFAU/match-crawler/internal/crawler"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config controls how the database file is opened.
type Config struct {
	Path          string
	CacheSizeKB   int
	MmapSizeBytes int64
	BusyTimeoutMS int
	MaxOpenConns  int
}

func (c Config) withDefaults() Config {
	if c.CacheSizeKB <= 0 {
		c.CacheSizeKB = 64000
	}
	if c.MmapSizeBytes <= 0 {
		c.MmapSizeBytes = 268435456
	}
	if c.BusyTimeoutMS <= 0 {
		c.BusyTimeoutMS = 30000
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 8
	}
	return c
}

// Store implements crawler.MatchStore and crawler.MatchReader.
type Store struct {
	db     *sql.DB
	clock  crawler.Clock
	logger *zap.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for freshness checks and timestamps.
func WithClock(c crawler.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens (creating if needed) the database at cfg.Path and applies migrations.
func Open(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("storage.path is required")
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	s := &Store{db: db, clock: system.New(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("storage opened", zap.String("path", cfg.Path))
	return s, nil
}

// dsn builds a modernc DSN so every pooled connection gets the same pragmas.
func dsn(cfg Config) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		fmt.Sprintf("cache_size(-%d)", cfg.CacheSizeKB),
		fmt.Sprintf("mmap_size(%d)", cfg.MmapSizeBytes),
		"temp_store(MEMORY)",
		fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeoutMS),
		"foreign_keys(1)",
	}
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(cfg.Path)
	b.WriteString("?_txlock=immediate")
	for _, p := range pragmas {
		b.WriteString("&_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys,
		goose.WithLogger(gooseLogger{s.logger.Named("migrate").Sugar()}),
	)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *Store) nowMillis() int64 {
	return s.clock.Now().UnixMilli()
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Errorf(strings.TrimSuffix(format, "\n"), v...)
}
