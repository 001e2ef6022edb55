// Package harvest defines core types shared across the harvesting subsystems.
package harvest

import (
	"strings"
	"time"
)

// LocatorKind selects how a locator query is interpreted by the gateway.
type LocatorKind string

// Supported locator kinds.
const (
	ByCSS   LocatorKind = "css"
	ByXPath LocatorKind = "xpath"
)

// Locator describes how to find elements on the current page.
type Locator struct {
	Kind  LocatorKind `json:"kind" mapstructure:"kind"`
	Query string      `json:"query" mapstructure:"query"`
}

// CSS builds a CSS selector locator.
func CSS(query string) Locator {
	return Locator{Kind: ByCSS, Query: query}
}

// XPath builds an XPath locator.
func XPath(query string) Locator {
	return Locator{Kind: ByXPath, Query: query}
}

// Element is a point-in-time snapshot of a matched DOM element. Gateways
// resolve text and attributes eagerly so callers never hold live node
// references across navigations.
type Element struct {
	Text  string
	Attrs map[string]string
}

// Attr returns the named attribute or an empty string.
func (e Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// SourceProfile parameterizes one crawl target. All three original site
// variants collapse into profiles; only the listing URL, label, and optional
// locator overrides differ.
type SourceProfile struct {
	Name       string `json:"name" mapstructure:"name"`
	ListingURL string `json:"listing_url" mapstructure:"listing_url"`

	// CandidateLocator overrides the default listing enumeration locator.
	CandidateLocator *Locator `json:"candidate_locator,omitempty" mapstructure:"candidate_locator"`
	// ExtraBodyLocators are tried before the default body fallback chain.
	ExtraBodyLocators []Locator `json:"extra_body_locators,omitempty" mapstructure:"extra_body_locators"`
	// ExtraDismissals are tried before the default interstitial predicates.
	ExtraDismissals []Dismissal `json:"extra_dismissals,omitempty" mapstructure:"extra_dismissals"`
}

// Candidates returns the locator used to enumerate article elements on the
// listing page.
func (p SourceProfile) Candidates() Locator {
	if p.CandidateLocator != nil {
		return *p.CandidateLocator
	}
	return CSS("article a[href]")
}

// Validate checks the profile has enough to crawl.
func (p SourceProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errEmptyProfileName
	}
	if strings.TrimSpace(p.ListingURL) == "" {
		return errEmptyListingURL
	}
	return nil
}

// Dismissal pairs an interstitial locator with a human-readable description
// used in logs when the dismissal fires.
type Dismissal struct {
	Locator     Locator `json:"locator" mapstructure:"locator"`
	Description string  `json:"description" mapstructure:"description"`
}

// PassReport summarizes one completed crawl pass for logging and metrics.
type PassReport struct {
	RunID      string
	Source     string
	Candidates int
	Stored     int
	Skipped    int
	Failed     int
	Elapsed    time.Duration
}
