package harvest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// CanonicalizeURL resolves raw against base (when relative), strips the
// fragment, and normalizes empty scheme/path. The result is the article's
// durable identity.
func CanonicalizeURL(base, raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if base != "" && !parsed.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse base url %q: %w", base, err)
		}
		parsed = baseURL.ResolveReference(parsed)
	}
	parsed.Fragment = ""
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed.String(), nil
}

// SnapshotPath derives a filesystem/object-safe archive path for a page.
func SnapshotPath(prefix, canonicalURL, hash string) string {
	u, err := url.Parse(canonicalURL)
	base := "page"
	if err == nil {
		host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
		p := strings.Trim(u.EscapedPath(), "/")
		if p == "" {
			p = "root"
		}
		p = invalidFilenameChars.ReplaceAllString(p, "_")
		base = fmt.Sprintf("%s_%s", host, p)
	}
	if len(hash) > 16 {
		hash = hash[:16]
	}
	name := fmt.Sprintf("%s_%s.html", base, hash)
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
