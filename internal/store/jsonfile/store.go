// Package jsonfile implements the file-backed article store.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
)

// Shape selects the on-disk layout of the store file.
type Shape string

// Supported file shapes. Feed mirrors the aggregator response format the
// downstream consumers already parse; keyed indexes records by identity hash.
const (
	ShapeFeed  Shape = "feed"
	ShapeKeyed Shape = "keyed"
)

// Config captures the parameters for the file store.
type Config struct {
	Path  string
	Shape Shape
}

// feedDocument is the feed-shaped file layout.
type feedDocument struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Articles     []harvest.Article `json:"articles"`
}

// Store is a single-file article store. The full document is rewritten via a
// temp file and rename on every append, so a crash mid-write never leaves a
// torn file behind.
type Store struct {
	mu     sync.Mutex
	path   string
	shape  Shape
	hasher harvest.Hasher
	logger *zap.Logger

	articles []harvest.Article
	keys     map[string]struct{}
	loaded   bool
}

// New constructs a file store. The hasher is only consulted for keyed-shape
// records missing an identity hash.
func New(cfg Config, hasher harvest.Hasher, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	shape := cfg.Shape
	if shape == "" {
		shape = ShapeFeed
	}
	if shape != ShapeFeed && shape != ShapeKeyed {
		return nil, fmt.Errorf("unknown store shape %q", shape)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   cfg.Path,
		shape:  shape,
		hasher: hasher,
		logger: logger,
		keys:   map[string]struct{}{},
	}, nil
}

// Load reads the store file and rebuilds the in-memory key set. A missing or
// unreadable file is not fatal: the store reinitializes to a valid empty
// state and the damaged content is overwritten on the next append.
func (s *Store) Load(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.articles = nil
	s.keys = map[string]struct{}{}
	s.loaded = true

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.logger.Warn("store file unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	articles, err := decode(raw, s.shape)
	if err != nil {
		s.logger.Warn("store file corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		return nil
	}
	for _, a := range articles {
		a.Normalize()
		s.articles = append(s.articles, a)
		s.index(a)
	}
	return nil
}

func decode(raw []byte, shape Shape) ([]harvest.Article, error) {
	switch shape {
	case ShapeKeyed:
		var doc map[string]harvest.Article
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		articles := make([]harvest.Article, 0, len(doc))
		for hash, a := range doc {
			if a.IdentityHash == "" {
				a.IdentityHash = hash
			}
			articles = append(articles, a)
		}
		return articles, nil
	default:
		var doc feedDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return doc.Articles, nil
	}
}

func (s *Store) index(a harvest.Article) {
	if a.URL != "" {
		s.keys[a.URL] = struct{}{}
	}
	if a.IdentityHash != "" {
		s.keys[a.IdentityHash] = struct{}{}
	}
}

// Contains reports whether an article with the given canonical URL or
// identity hash is already stored.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Append stores one article and flushes the whole document to disk. Articles
// with no content are rejected with ErrEmptyBody, duplicates with
// ErrAlreadyExists; neither modifies the file.
func (s *Store) Append(_ context.Context, article harvest.Article) error {
	if !article.HasContent() {
		return harvest.ErrEmptyBody
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return fmt.Errorf("store not loaded")
	}

	article.Normalize()
	if article.IdentityHash == "" && s.hasher != nil {
		hash, err := s.hasher.Hash([]byte(article.URL))
		if err != nil {
			return fmt.Errorf("hash article url: %w", err)
		}
		article.IdentityHash = hash
	}
	if _, dup := s.keys[article.URL]; dup {
		return harvest.ErrAlreadyExists
	}
	if _, dup := s.keys[article.IdentityHash]; dup && article.IdentityHash != "" {
		return harvest.ErrAlreadyExists
	}

	s.articles = append(s.articles, article)
	s.index(article)
	if err := s.flush(); err != nil {
		// Roll back so memory and disk stay consistent.
		s.articles = s.articles[:len(s.articles)-1]
		delete(s.keys, article.URL)
		delete(s.keys, article.IdentityHash)
		return fmt.Errorf("flush store: %w", err)
	}
	return nil
}

// Count returns the number of stored articles.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.articles)
}

func (s *Store) flush() error {
	var payload any
	switch s.shape {
	case ShapeKeyed:
		doc := make(map[string]harvest.Article, len(s.articles))
		for _, a := range s.articles {
			doc[a.IdentityHash] = a
		}
		payload = doc
	default:
		payload = feedDocument{
			Status:       "ok",
			TotalResults: len(s.articles),
			Articles:     s.articles,
		}
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".articles-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
