package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
	"github.com/pressfeed/harvester/internal/hash/sha256"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// fakeGateway serves canned query results keyed by locator query string.
type fakeGateway struct {
	title    string
	url      string
	source   string
	elements map[string][]harvest.Element
}

func (g *fakeGateway) Navigate(context.Context, string) error       { return nil }
func (g *fakeGateway) PageTitle(context.Context) (string, error)    { return g.title, nil }
func (g *fakeGateway) CurrentURL(context.Context) (string, error)   { return g.url, nil }
func (g *fakeGateway) Click(context.Context, harvest.Locator, time.Duration) error {
	return harvest.ErrNotFound
}
func (g *fakeGateway) WaitReady(context.Context, harvest.Locator, time.Duration) error {
	return nil
}
func (g *fakeGateway) ScrollToBottom(context.Context) error       { return nil }
func (g *fakeGateway) PageHeight(context.Context) (int64, error)  { return 0, nil }
func (g *fakeGateway) OpenInNewTab(context.Context, string) error { return nil }
func (g *fakeGateway) SwitchTab(int) error                        { return nil }
func (g *fakeGateway) CloseCurrentTab() error                     { return nil }
func (g *fakeGateway) TabCount() int                              { return 1 }
func (g *fakeGateway) PageSource(context.Context) (string, error) { return g.source, nil }

func (g *fakeGateway) Query(_ context.Context, loc harvest.Locator) ([]harvest.Element, error) {
	if els, ok := g.elements[loc.Query]; ok {
		return els, nil
	}
	return nil, nil
}

func (g *fakeGateway) QueryOne(_ context.Context, loc harvest.Locator, _ time.Duration) (harvest.Element, error) {
	els, ok := g.elements[loc.Query]
	if !ok || len(els) == 0 {
		return harvest.Element{}, harvest.ErrNotFound
	}
	return els[0], nil
}

func newExtractor() *PageExtractor {
	clock := fixedClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	return New(Config{LocatorTimeout: time.Millisecond}, clock, sha256.New(), zap.NewNop())
}

func TestExtractFullyResolvedPage(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		title:  "Council Approves Budget - Example News",
		url:    "https://news.example.com/story#frag",
		source: `<html><head><meta property="og:description" content="Budget approved."/></head></html>`,
		elements: map[string][]harvest.Element{
			defaultBodyLocators[0].Query: {{Text: "The council approved the budget on Tuesday."}},
			`//time`:                     {{Text: "March 14", Attrs: map[string]string{"datetime": "2026-03-14T08:00:00Z"}}},
			`//*[contains(@class, 'author') or contains(text(), 'By')]`: {{Text: "By Dana Reyes"}},
			`img`: {{Attrs: map[string]string{"src": "https://cdn.example.com/a.jpg"}}},
		},
	}

	article, err := newExtractor().Extract(context.Background(), gw, harvest.SourceProfile{Name: "Example News"})
	require.NoError(t, err)

	assert.Equal(t, "Council Approves Budget", article.Title)
	assert.Equal(t, "https://news.example.com/story", article.URL)
	assert.NotEmpty(t, article.IdentityHash)
	assert.Equal(t, "By Dana Reyes", article.Author)
	assert.Equal(t, "2026-03-14T08:00:00Z", article.PublishedAt)
	assert.Equal(t, "https://cdn.example.com/a.jpg", article.ImageURL)
	assert.Equal(t, "Budget approved.", article.Description)
	assert.Equal(t, "The council approved the budget on Tuesday.", article.Content)
	assert.Equal(t, "Example News", article.SourceName)
}

func TestExtractDegradedDefaults(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		title:    "Bare Page",
		url:      "https://news.example.com/bare",
		source:   "<html><body><div>no paragraphs</div></body></html>",
		elements: map[string][]harvest.Element{},
	}

	article, err := newExtractor().Extract(context.Background(), gw, harvest.SourceProfile{Name: "Example News"})
	require.NoError(t, err)

	assert.Equal(t, harvest.AuthorUnknown, article.Author)
	assert.Equal(t, "2026-03-14T10:00:00Z", article.PublishedAt)
	assert.Empty(t, article.ImageURL)
	assert.Empty(t, article.Description)
	assert.False(t, article.HasContent())
}

func TestExtractBodyFallsBackToParagraphScan(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		title:    "Scan Story",
		url:      "https://news.example.com/scan",
		source:   "<html><body><p>Rescued from raw markup.</p><p>Second run.</p></body></html>",
		elements: map[string][]harvest.Element{},
	}

	article, err := newExtractor().Extract(context.Background(), gw, harvest.SourceProfile{Name: "Example News"})
	require.NoError(t, err)
	assert.Equal(t, "Rescued from raw markup.\nSecond run.", article.Content)
}

func TestExtractProfileBodyLocatorWinsFirst(t *testing.T) {
	t.Parallel()

	custom := harvest.CSS("div.story-text")
	gw := &fakeGateway{
		title:  "Override Story",
		url:    "https://news.example.com/override",
		source: "<html><body><p>scan text</p></body></html>",
		elements: map[string][]harvest.Element{
			"div.story-text":             {{Text: "profile-scoped body"}},
			defaultBodyLocators[1].Query: {{Text: "generic article body"}},
		},
	}

	article, err := newExtractor().Extract(context.Background(), gw, harvest.SourceProfile{
		Name:              "Example News",
		ExtraBodyLocators: []harvest.Locator{custom},
	})
	require.NoError(t, err)
	assert.Equal(t, "profile-scoped body", article.Content)
}

func TestExtractLeadImageFallsBackToOGImage(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		title:  "Image Story",
		url:    "https://news.example.com/img",
		source: `<html><head><meta property="og:image" content="https://cdn.example.com/og.jpg"/></head><body><p>text</p></body></html>`,
	}

	article, err := newExtractor().Extract(context.Background(), gw, harvest.SourceProfile{Name: "Example News"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/og.jpg", article.ImageURL)
}
