package harvest

import "strings"

// AuthorUnknown is the sentinel stored when no author could be resolved.
const AuthorUnknown = "Unknown"

// Article is the unit of persistence. The JSON tags match the feed-shaped
// backing file consumed by downstream readers.
type Article struct {
	SourceName   string `json:"source_name"`
	Author       string `json:"author"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	URL          string `json:"url"`
	IdentityHash string `json:"identity_hash,omitempty"`
	ImageURL     string `json:"url_to_image,omitempty"`
	PublishedAt  string `json:"published_at"`
	Content      string `json:"content"`
}

// Key returns the article's durable identity: its canonical URL.
func (a Article) Key() string {
	return a.URL
}

// HasContent reports whether the article carries body text worth persisting.
func (a Article) HasContent() bool {
	return strings.TrimSpace(a.Content) != ""
}

// Normalize fills degraded defaults the same way extraction would, so
// articles built outside the extractor still satisfy the store invariants.
func (a *Article) Normalize() {
	if strings.TrimSpace(a.Author) == "" {
		a.Author = AuthorUnknown
	}
	a.Title = strings.TrimSpace(a.Title)
	a.URL = strings.TrimSpace(a.URL)
}
