package harvest

import (
	"context"
	"io"
	"time"
)

// Gateway exposes the single shared rendering session to the pipeline. All
// query and wait operations are bounded: a miss resolves to ErrNotFound
// rather than blocking indefinitely.
type Gateway interface {
	// Navigate loads the URL in the current tab.
	Navigate(ctx context.Context, url string) error
	// PageTitle returns the document title of the current tab.
	PageTitle(ctx context.Context) (string, error)
	// CurrentURL returns the resolved location of the current tab.
	CurrentURL(ctx context.Context) (string, error)
	// Query snapshots every element matching the locator.
	Query(ctx context.Context, loc Locator) ([]Element, error)
	// QueryOne waits up to timeout for the first match.
	QueryOne(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)
	// Click waits up to timeout for the first match to become visible and
	// clicks it.
	Click(ctx context.Context, loc Locator, timeout time.Duration) error
	// WaitReady waits up to timeout for the locator to be present in the DOM.
	WaitReady(ctx context.Context, loc Locator, timeout time.Duration) error
	// ScrollToBottom scrolls the current tab to the bottom of the document.
	ScrollToBottom(ctx context.Context) error
	// PageHeight measures the current document height in CSS pixels.
	PageHeight(ctx context.Context) (int64, error)
	// OpenInNewTab opens the URL in a fresh tab and focuses it.
	OpenInNewTab(ctx context.Context, url string) error
	// SwitchTab focuses the tab at the given index (0 is the listing tab).
	SwitchTab(index int) error
	// CloseCurrentTab closes the focused tab and returns focus to the
	// previous one.
	CloseCurrentTab() error
	// TabCount reports how many tabs are open.
	TabCount() int
	// PageSource returns the rendered markup of the current tab.
	PageSource(ctx context.Context) (string, error)
}

// ArticleStore is a keyed, deduplicating persistent collection of articles.
type ArticleStore interface {
	// Load (re)reads the backing state and re-derives the key set. A missing
	// or corrupt backing file yields an empty valid state, not an error.
	Load(ctx context.Context) error
	// Contains reports whether the canonical URL (or its hash) is stored.
	Contains(key string) bool
	// Append persists a new article and flushes durably before returning.
	// Duplicates return ErrAlreadyExists; empty bodies return ErrEmptyBody.
	Append(ctx context.Context, article Article) error
	// Count returns the number of distinct stored entries.
	Count() int
}

// Dismisser clears consent and overlay interstitials from the current page.
type Dismisser interface {
	// DismissAll tries every dismissal predicate and returns how many fired.
	// Absence of any dismissible element is a normal outcome.
	DismissAll(ctx context.Context, gw Gateway, profile SourceProfile) int
}

// Extractor resolves article fields from the current page. Partial success
// is the normal case: unresolved fields carry degraded defaults and only an
// empty body makes the result unusable.
type Extractor interface {
	Extract(ctx context.Context, gw Gateway, profile SourceProfile) (Article, error)
}

// ProgressSink records timestamped pipeline events. The supervisor infers
// child liveness purely from the recency of these writes.
type ProgressSink interface {
	Signal(message string)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes article-stored notifications to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes the identity digest for canonical URLs.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (seam for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl-run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
