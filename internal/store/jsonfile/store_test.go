package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
	sha256hash "github.com/pressfeed/harvester/internal/hash/sha256"
)

func storedArticle(url string) harvest.Article {
	return harvest.Article{
		SourceName:   "example",
		Author:       "Ann Author",
		Title:        "A Headline",
		URL:          url,
		IdentityHash: "hash-" + url,
		PublishedAt:  "2026-03-14T10:00:00Z",
		Content:      "Body text.",
	}
}

func newStore(t *testing.T, path string, shape Shape) *Store {
	t.Helper()
	s, err := New(Config{Path: path, Shape: shape}, sha256hash.New(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Path: ""}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Path: "x.json", Shape: "yaml"}, nil, nil)
	assert.Error(t, err)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := newStore(t, filepath.Join(t.TempDir(), "articles.json"), ShapeFeed)
	assert.Zero(t, s.Count())
	assert.False(t, s.Contains("https://news.example.com/a"))
}

func TestLoadCorruptFileReinitializes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status": "ok", "articles": [truncated`), 0o600))

	s := newStore(t, path, ShapeFeed)
	assert.Zero(t, s.Count())

	// The store must still be able to accept appends afterwards.
	require.NoError(t, s.Append(context.Background(), storedArticle("https://news.example.com/a")))
	assert.Equal(t, 1, s.Count())
}

func TestAppendPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.json")
	s := newStore(t, path, ShapeFeed)
	require.NoError(t, s.Append(context.Background(), storedArticle("https://news.example.com/a")))
	require.NoError(t, s.Append(context.Background(), storedArticle("https://news.example.com/b")))

	reopened := newStore(t, path, ShapeFeed)
	assert.Equal(t, 2, reopened.Count())
	assert.True(t, reopened.Contains("https://news.example.com/a"))
	assert.True(t, reopened.Contains("hash-https://news.example.com/b"))
}

func TestAppendRejectsDuplicates(t *testing.T) {
	t.Parallel()

	s := newStore(t, filepath.Join(t.TempDir(), "articles.json"), ShapeFeed)
	require.NoError(t, s.Append(context.Background(), storedArticle("https://news.example.com/a")))

	err := s.Append(context.Background(), storedArticle("https://news.example.com/a"))
	assert.ErrorIs(t, err, harvest.ErrAlreadyExists)
	assert.Equal(t, 1, s.Count())
}

func TestAppendRejectsEmptyBodies(t *testing.T) {
	t.Parallel()

	s := newStore(t, filepath.Join(t.TempDir(), "articles.json"), ShapeFeed)
	empty := storedArticle("https://news.example.com/a")
	empty.Content = "  \n"

	assert.ErrorIs(t, s.Append(context.Background(), empty), harvest.ErrEmptyBody)
	assert.Zero(t, s.Count())
}

func TestAppendBeforeLoadFails(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Path: filepath.Join(t.TempDir(), "articles.json")}, nil, nil)
	require.NoError(t, err)
	assert.Error(t, s.Append(context.Background(), storedArticle("https://news.example.com/a")))
}

func TestFeedShapeDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.json")
	s := newStore(t, path, ShapeFeed)
	require.NoError(t, s.Append(context.Background(), storedArticle("https://news.example.com/a")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Status       string            `json:"status"`
		TotalResults int               `json:"totalResults"`
		Articles     []harvest.Article `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "ok", doc.Status)
	assert.Equal(t, 1, doc.TotalResults)
	require.Len(t, doc.Articles, 1)
	assert.Equal(t, "A Headline", doc.Articles[0].Title)
}

func TestKeyedShapeRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.json")
	s := newStore(t, path, ShapeKeyed)
	require.NoError(t, s.Append(context.Background(), storedArticle("https://news.example.com/a")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]harvest.Article
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Contains(t, doc, "hash-https://news.example.com/a")

	reopened := newStore(t, path, ShapeKeyed)
	assert.Equal(t, 1, reopened.Count())
	assert.True(t, reopened.Contains("https://news.example.com/a"))
	assert.True(t, reopened.Contains("hash-https://news.example.com/a"))
}

func TestKeyedShapeHashesMissingIdentity(t *testing.T) {
	t.Parallel()

	s := newStore(t, filepath.Join(t.TempDir(), "articles.json"), ShapeKeyed)
	a := storedArticle("https://news.example.com/a")
	a.IdentityHash = ""

	require.NoError(t, s.Append(context.Background(), a))
	assert.True(t, s.Contains("https://news.example.com/a"))
}
