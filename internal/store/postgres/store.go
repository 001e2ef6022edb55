// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressfeed/harvester/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for article rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store persists articles in a Postgres table. The deduplication key set is
// loaded once per pass so Contains stays a cheap in-memory check between
// loads; the unique constraints on url and identity_hash remain the durable
// guard.
type Store struct {
	pool  pgxPool
	table string

	mu    sync.Mutex
	keys  map[string]struct{}
	count int
}

// New creates a Postgres-backed article store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table, keys: map[string]struct{}{}}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, table: name, keys: map[string]struct{}{}}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load rebuilds the in-memory key set from the table.
func (s *Store) Load(ctx context.Context) error {
	query := fmt.Sprintf("SELECT url, identity_hash FROM %s", s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("load article keys: %w", err)
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	count := 0
	for rows.Next() {
		var url, hash string
		if err := rows.Scan(&url, &hash); err != nil {
			return fmt.Errorf("scan article key: %w", err)
		}
		if url != "" {
			keys[url] = struct{}{}
		}
		if hash != "" {
			keys[hash] = struct{}{}
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate article keys: %w", err)
	}

	s.mu.Lock()
	s.keys = keys
	s.count = count
	s.mu.Unlock()
	return nil
}

// Contains reports whether the canonical URL or identity hash is known.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Append inserts one article. ON CONFLICT DO NOTHING makes the insert safe
// against concurrent writers; a zero-row result maps to ErrAlreadyExists.
func (s *Store) Append(ctx context.Context, article harvest.Article) error {
	if !article.HasContent() {
		return harvest.ErrEmptyBody
	}
	article.Normalize()

	query := fmt.Sprintf(`
INSERT INTO %s (
	identity_hash,
	source_name,
	author,
	title,
	description,
	url,
	url_to_image,
	published_at,
	content
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		article.IdentityHash,
		article.SourceName,
		article.Author,
		article.Title,
		article.Description,
		article.URL,
		article.ImageURL,
		article.PublishedAt,
		article.Content,
	)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return harvest.ErrAlreadyExists
	}

	s.mu.Lock()
	s.keys[article.URL] = struct{}{}
	if article.IdentityHash != "" {
		s.keys[article.IdentityHash] = struct{}{}
	}
	s.count++
	s.mu.Unlock()
	return nil
}

// Count returns the number of rows seen at the last Load plus appends since.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
