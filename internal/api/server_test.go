package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressfeed/harvester/internal/harvest"
)

type countingStore struct{ n int }

func (s *countingStore) Load(context.Context) error                  { return nil }
func (s *countingStore) Contains(string) bool                        { return false }
func (s *countingStore) Append(context.Context, harvest.Article) error { return nil }
func (s *countingStore) Count() int                                  { return s.n }

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := NewServer(&countingStore{}, nil)

	rec := get(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStoreSummary(t *testing.T) {
	t.Parallel()

	srv := NewServer(&countingStore{n: 7}, nil)
	rec := get(t, srv.Handler(), "/v1/store/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 7, body["articles"])
}

func TestStoreSummaryWithoutStore(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, nil)
	rec := get(t, srv.Handler(), "/v1/store/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, nil)
	rec := get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
