package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
)

// Default body locators, most to least specific. Profiles may prepend their
// own; the raw-markup paragraph scan always runs last.
var defaultBodyLocators = []harvest.Locator{
	harvest.XPath(`//article//*[contains(@class, 'article-body') or contains(@class, 'story-body')]`),
	harvest.XPath(`//article`),
	harvest.XPath(`//div[contains(@class, 'content') or contains(@class, 'article')]`),
}

var (
	timeLocator   = harvest.XPath(`//time`)
	authorLocator = harvest.XPath(`//*[contains(@class, 'author') or contains(text(), 'By')]`)
	imageLocator  = harvest.CSS(`img`)
)

// Config controls extraction timeouts.
type Config struct {
	LocatorTimeout time.Duration
}

// PageExtractor implements harvest.Extractor against a live gateway tab.
type PageExtractor struct {
	cfg    Config
	clock  harvest.Clock
	hasher harvest.Hasher
	logger *zap.Logger
}

// New constructs a PageExtractor.
func New(cfg Config, clock harvest.Clock, hasher harvest.Hasher, logger *zap.Logger) *PageExtractor {
	if cfg.LocatorTimeout <= 0 {
		cfg.LocatorTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageExtractor{cfg: cfg, clock: clock, hasher: hasher, logger: logger}
}

// Extract resolves every article field from the gateway's current tab. Each
// field degrades independently; only context failure is returned as an error.
// Callers must discard results without body text.
func (e *PageExtractor) Extract(ctx context.Context, gw harvest.Gateway, profile harvest.SourceProfile) (harvest.Article, error) {
	currentURL, err := gw.CurrentURL(ctx)
	if err != nil {
		return harvest.Article{}, fmt.Errorf("resolve current url: %w", err)
	}
	canonical, err := harvest.CanonicalizeURL("", currentURL)
	if err != nil {
		return harvest.Article{}, fmt.Errorf("canonicalize %q: %w", currentURL, err)
	}

	source, srcErr := gw.PageSource(ctx)
	if srcErr != nil {
		e.logger.Debug("page source unavailable", zap.Error(srcErr))
		source = ""
	}

	body, strategy := FirstNonEmpty(ctx, e.logger, e.bodyChain(gw, profile, source))
	if body != "" {
		body = ScrubBody(body)
	}
	if strategy != "" {
		e.logger.Debug("body resolved",
			zap.String("strategy", strategy),
			zap.String("url", canonical),
		)
	}

	article := harvest.Article{
		SourceName:  profile.Name,
		URL:         canonical,
		Title:       e.title(ctx, gw),
		Author:      e.author(ctx, gw),
		PublishedAt: e.publishedAt(ctx, gw),
		ImageURL:    e.leadImage(ctx, gw, source),
		Description: MetaProperty(source, "og:description"),
		Content:     body,
	}
	if e.hasher != nil {
		if digest, hashErr := e.hasher.Hash([]byte(canonical)); hashErr == nil {
			article.IdentityHash = digest
		}
	}
	article.Normalize()
	return article, nil
}

func (e *PageExtractor) bodyChain(gw harvest.Gateway, profile harvest.SourceProfile, source string) []Strategy {
	locators := append(append([]harvest.Locator{}, profile.ExtraBodyLocators...), defaultBodyLocators...)
	chain := make([]Strategy, 0, len(locators)+1)
	for _, loc := range locators {
		loc := loc
		chain = append(chain, Strategy{
			Name: fmt.Sprintf("locator:%s", loc.Query),
			Resolve: func(ctx context.Context) (string, error) {
				el, err := gw.QueryOne(ctx, loc, e.cfg.LocatorTimeout)
				if err != nil {
					return "", err
				}
				return el.Text, nil
			},
		})
	}
	chain = append(chain, Strategy{
		Name: "markup:paragraph-scan",
		Resolve: func(context.Context) (string, error) {
			return ParagraphScan(source), nil
		},
	})
	return chain
}

func (e *PageExtractor) title(ctx context.Context, gw harvest.Gateway) string {
	raw, err := gw.PageTitle(ctx)
	if err != nil {
		e.logger.Debug("page title unavailable", zap.Error(err))
		return ""
	}
	cleaned := CleanTitle(raw)
	if cleaned == "" {
		// A pathological title like "| Site News" cleans to nothing; keep
		// the raw trimmed form rather than storing an empty headline.
		return strings.TrimSpace(raw)
	}
	return cleaned
}

func (e *PageExtractor) publishedAt(ctx context.Context, gw harvest.Gateway) string {
	el, err := gw.QueryOne(ctx, timeLocator, e.cfg.LocatorTimeout)
	if err == nil {
		if dt := el.Attr("datetime"); dt != "" {
			return dt
		}
		if el.Text != "" {
			return el.Text
		}
	}
	// Degraded-accuracy marker, not an error: extraction-time now.
	return e.clock.Now().UTC().Format(time.RFC3339)
}

func (e *PageExtractor) author(ctx context.Context, gw harvest.Gateway) string {
	el, err := gw.QueryOne(ctx, authorLocator, e.cfg.LocatorTimeout)
	if err != nil || el.Text == "" {
		return harvest.AuthorUnknown
	}
	return el.Text
}

func (e *PageExtractor) leadImage(ctx context.Context, gw harvest.Gateway, source string) string {
	elements, err := gw.Query(ctx, imageLocator)
	if err == nil {
		for _, el := range elements {
			if src := el.Attr("src"); src != "" {
				return src
			}
		}
	}
	return MetaProperty(source, "og:image")
}
