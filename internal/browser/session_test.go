package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
)

func TestSnapshotScript(t *testing.T) {
	t.Parallel()

	t.Run("CSS", func(t *testing.T) {
		script, err := snapshotScript(harvest.CSS(`article a[href]`))
		require.NoError(t, err)
		assert.Contains(t, script, "querySelectorAll")
		assert.Contains(t, script, `"article a[href]"`)
	})

	t.Run("XPath", func(t *testing.T) {
		script, err := snapshotScript(harvest.XPath(`//article`))
		require.NoError(t, err)
		assert.Contains(t, script, "document.evaluate")
		assert.Contains(t, script, `"//article"`)
	})

	t.Run("QuotesAreEscaped", func(t *testing.T) {
		script, err := snapshotScript(harvest.XPath(`//button[contains(text(), "X")]`))
		require.NoError(t, err)
		assert.Contains(t, script, `\"X\"`)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := snapshotScript(harvest.Locator{Kind: "regex", Query: "x"})
		assert.Error(t, err)
	})
}

func TestSessionAgainstLocalServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listing":
			fmt.Fprint(w, `<!doctype html><html><head><title>Listing - Test</title></head><body>
<article><a href="/story">Story</a></article></body></html>`)
		default:
			fmt.Fprint(w, `<!doctype html><html><head><title>Story - Test</title></head><body>
<article><p>Body text.</p></article></body></html>`)
		}
	}))
	defer srv.Close()

	session, err := New(Config{Headless: true, NavTimeout: 10 * time.Second}, zap.NewNop())
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	defer session.Close()

	ctx := context.Background()
	require.NoError(t, session.Navigate(ctx, srv.URL+"/listing"))

	title, err := session.PageTitle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Listing - Test", title)

	links, err := session.Query(ctx, harvest.CSS("article a[href]"))
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Contains(t, links[0].Attr("href"), "/story")

	height, err := session.PageHeight(ctx)
	require.NoError(t, err)
	assert.Positive(t, height)

	require.NoError(t, session.OpenInNewTab(ctx, srv.URL+"/story"))
	assert.Equal(t, 2, session.TabCount())

	source, err := session.PageSource(ctx)
	require.NoError(t, err)
	assert.True(t, strings.Contains(source, "Body text."))

	_, err = session.QueryOne(ctx, harvest.CSS("article #missing"), 500*time.Millisecond)
	assert.ErrorIs(t, err, harvest.ErrNotFound)

	require.NoError(t, session.CloseCurrentTab())
	assert.Equal(t, 1, session.TabCount())
	assert.ErrorIs(t, session.CloseCurrentTab(), ErrListingTab)
}
