package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/metrics"
)

// ScrollOptions bounds the full-page realization loop. The fixed-point
// protocol alone cannot terminate on listings that grow forever, so both a
// round cap and a wall-clock ceiling apply; hitting either treats the page
// as fully expanded and logs a warning.
type ScrollOptions struct {
	Settle     time.Duration
	MaxRounds  int
	MaxElapsed time.Duration
}

// EngineConfig controls one crawl pass.
type EngineConfig struct {
	SettleDelay   time.Duration
	NavTimeout    time.Duration
	Scroll        ScrollOptions
	ArchivePrefix string
	PublishTopic  string
}

var bodyLocator = CSS("body")

// Engine drives one full crawl pass: load listing, dismiss interstitials,
// expand, enumerate candidate links, and process each in turn against the
// store. Execution is single-threaded: one rendering session, one active
// article tab at a time.
type Engine struct {
	gw        Gateway
	store     ArticleStore
	dismisser Dismisser
	extractor Extractor
	sink      ProgressSink
	clock     Clock
	idGen     IDGenerator
	archive   BlobStore
	publisher Publisher
	cfg       EngineConfig
	logger    *zap.Logger

	// sleep is a seam so tests can run passes without real delays.
	sleep func(ctx context.Context, d time.Duration)
}

// NewEngine constructs an Engine. Archive and publisher are optional.
func NewEngine(
	gw Gateway,
	store ArticleStore,
	dismisser Dismisser,
	extractor Extractor,
	sink ProgressSink,
	clock Clock,
	idGen IDGenerator,
	archive BlobStore,
	publisher Publisher,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Scroll.MaxRounds <= 0 {
		cfg.Scroll.MaxRounds = 20
	}
	if cfg.Scroll.MaxElapsed <= 0 {
		cfg.Scroll.MaxElapsed = 90 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 10 * time.Second
	}
	return &Engine{
		gw:        gw,
		store:     store,
		dismisser: dismisser,
		extractor: extractor,
		sink:      sink,
		clock:     clock,
		idGen:     idGen,
		archive:   archive,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run executes one pass over every configured source profile.
func (e *Engine) Run(ctx context.Context, profiles []SourceProfile) error {
	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := e.RunPass(ctx, profile)
		if err != nil {
			return fmt.Errorf("pass for source %q: %w", profile.Name, err)
		}
		e.logger.Info("pass complete",
			zap.String("source", report.Source),
			zap.Int("candidates", report.Candidates),
			zap.Int("stored", report.Stored),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Duration("elapsed", report.Elapsed),
		)
	}
	return nil
}

// RunPass drives the listing state machine for one source. Per-candidate
// faults never abort the pass; only listing-level failures (navigation, a
// lost session) propagate, leaving restart to the supervisor.
func (e *Engine) RunPass(ctx context.Context, profile SourceProfile) (PassReport, error) {
	if err := profile.Validate(); err != nil {
		return PassReport{}, err
	}
	start := e.clock.Now()
	runID := e.newRunID()
	report := PassReport{RunID: runID, Source: profile.Name}
	logger := e.logger.With(zap.String("source", profile.Name), zap.String("run_id", runID))

	e.signal("starting pass for " + profile.Name)

	// The store is the durable source of truth across restarts; re-derive
	// the key set before every pass.
	if err := e.store.Load(ctx); err != nil {
		return report, fmt.Errorf("load article store: %w", err)
	}

	if err := e.gw.Navigate(ctx, profile.ListingURL); err != nil {
		return report, fmt.Errorf("navigate listing: %w", err)
	}
	e.sleep(ctx, e.cfg.SettleDelay)
	e.signal("listing loaded " + profile.ListingURL)

	dismissed := e.dismisser.DismissAll(ctx, e.gw, profile)
	logger.Info("interstitials cleared", zap.Int("dismissed", dismissed))

	rounds, capped := e.expandFully(ctx, logger)
	metrics.ScrollRounds(rounds)
	if capped {
		logger.Warn("listing expansion hit the scroll ceiling; continuing with partial listing",
			zap.Int("rounds", rounds))
	}
	e.signal("listing fully expanded")

	links, err := e.candidateLinks(ctx, profile)
	if err != nil {
		return report, fmt.Errorf("enumerate candidates: %w", err)
	}
	report.Candidates = len(links)
	logger.Info("candidates enumerated", zap.Int("count", len(links)))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome := e.processCandidate(ctx, logger, runID, profile, link)
		switch outcome {
		case candidateStored:
			report.Stored++
		case candidateSkipped:
			report.Skipped++
		case candidateFailed:
			report.Failed++
		}
		// A fault can leave a stray article tab open; force the session
		// back to the single-listing-tab invariant before continuing.
		e.ensureListingTab(logger)
	}

	report.Elapsed = e.clock.Now().Sub(start)
	e.signal(fmt.Sprintf("pass finished for %s: %d stored, %d skipped, %d failed",
		profile.Name, report.Stored, report.Skipped, report.Failed))
	return report, nil
}

func (e *Engine) newRunID() string {
	if e.idGen == nil {
		return ""
	}
	id, err := e.idGen.NewID()
	if err != nil {
		return ""
	}
	return id
}

func (e *Engine) signal(message string) {
	if e.sink != nil {
		e.sink.Signal(message)
	}
}

// expandFully repeatedly scrolls to the bottom and re-measures the page
// height until it stops growing, or until the configured ceiling is hit.
func (e *Engine) expandFully(ctx context.Context, logger *zap.Logger) (int, bool) {
	last, err := e.gw.PageHeight(ctx)
	if err != nil {
		logger.Warn("initial height measurement failed", zap.Error(err))
		return 0, false
	}
	deadline := e.clock.Now().Add(e.cfg.Scroll.MaxElapsed)
	for rounds := 1; rounds <= e.cfg.Scroll.MaxRounds; rounds++ {
		if ctx.Err() != nil {
			return rounds - 1, false
		}
		if err := e.gw.ScrollToBottom(ctx); err != nil {
			logger.Warn("scroll failed", zap.Error(err))
			return rounds - 1, false
		}
		e.sleep(ctx, e.cfg.Scroll.Settle)
		height, err := e.gw.PageHeight(ctx)
		if err != nil {
			logger.Warn("height measurement failed", zap.Error(err))
			return rounds, false
		}
		if height == last {
			logger.Debug("reached the end of the listing", zap.Int("rounds", rounds))
			return rounds, false
		}
		last = height
		if e.clock.Now().After(deadline) {
			return rounds, true
		}
	}
	return e.cfg.Scroll.MaxRounds, true
}

// candidateLinks enumerates article links on the expanded listing, resolved
// to canonical form and de-duplicated within the pass.
func (e *Engine) candidateLinks(ctx context.Context, profile SourceProfile) ([]string, error) {
	elements, err := e.gw.Query(ctx, profile.Candidates())
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(elements))
	links := make([]string, 0, len(elements))
	for _, el := range elements {
		href := el.Attr("href")
		if strings.TrimSpace(href) == "" {
			continue
		}
		canonical, err := CanonicalizeURL(profile.ListingURL, href)
		if err != nil {
			e.logger.Debug("unparseable candidate link", zap.String("href", href), zap.Error(err))
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		links = append(links, canonical)
	}
	return links, nil
}

type candidateOutcome int

const (
	candidateStored candidateOutcome = iota
	candidateSkipped
	candidateFailed
)

// processCandidate handles one article link end to end. Every fault is
// recovered locally: logged, counted, and reported as a skip of this
// candidate only.
func (e *Engine) processCandidate(ctx context.Context, logger *zap.Logger, runID string, profile SourceProfile, link string) candidateOutcome {
	if e.store.Contains(link) {
		logger.Debug("already stored, skipping", zap.String("url", link))
		e.signal("already scraped, skipping " + link)
		metrics.ArticleSkipped(profile.Name, metrics.SkipReasonDuplicate)
		return candidateSkipped
	}

	if err := e.gw.OpenInNewTab(ctx, link); err != nil {
		logger.Warn("open article tab failed", zap.String("url", link), zap.Error(err))
		metrics.CandidateFailed(profile.Name)
		return candidateFailed
	}
	if err := e.gw.WaitReady(ctx, bodyLocator, e.cfg.NavTimeout); err != nil {
		logger.Warn("article document never became ready", zap.String("url", link), zap.Error(err))
		metrics.CandidateFailed(profile.Name)
		return candidateFailed
	}
	e.signal("opened article " + link)

	extractStart := e.clock.Now()
	article, err := e.extractor.Extract(ctx, e.gw, profile)
	metrics.ExtractDuration(profile.Name, e.clock.Now().Sub(extractStart))
	if err != nil {
		logger.Warn("extraction failed", zap.String("url", link), zap.Error(err))
		metrics.CandidateFailed(profile.Name)
		return candidateFailed
	}
	if !article.HasContent() {
		logger.Info("no content found, discarding", zap.String("url", link))
		e.signal("no content found for article " + link + ", skipping")
		metrics.ArticleSkipped(profile.Name, metrics.SkipReasonEmptyBody)
		return candidateSkipped
	}

	if err := e.store.Append(ctx, article); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			logger.Debug("duplicate landed between check and append", zap.String("url", article.URL))
			metrics.ArticleSkipped(profile.Name, metrics.SkipReasonDuplicate)
			return candidateSkipped
		}
		logger.Warn("store append failed", zap.String("url", article.URL), zap.Error(err))
		metrics.CandidateFailed(profile.Name)
		return candidateFailed
	}
	metrics.ArticleStored(profile.Name)
	e.signal("article saved " + article.URL)
	logger.Info("article saved", zap.String("title", article.Title), zap.String("url", article.URL))

	e.archiveSnapshot(ctx, logger, article)
	e.publishStored(ctx, logger, runID, article)
	return candidateStored
}

// archiveSnapshot uploads the rendered markup of the article tab. Archive
// faults are logged, never escalated: the article itself is already stored.
func (e *Engine) archiveSnapshot(ctx context.Context, logger *zap.Logger, article Article) {
	if e.archive == nil {
		return
	}
	source, err := e.gw.PageSource(ctx)
	if err != nil || strings.TrimSpace(source) == "" {
		logger.Debug("snapshot unavailable", zap.String("url", article.URL), zap.Error(err))
		return
	}
	path := SnapshotPath(e.cfg.ArchivePrefix, article.URL, article.IdentityHash)
	uri, err := e.archive.PutObject(ctx, path, "text/html; charset=utf-8", strings.NewReader(source))
	if err != nil {
		logger.Warn("snapshot archive failed", zap.String("url", article.URL), zap.Error(err))
		return
	}
	logger.Debug("snapshot archived", zap.String("uri", uri))
}

// publishStored emits an article-stored notification when publishing is
// configured. Publish faults are logged, never escalated.
func (e *Engine) publishStored(ctx context.Context, logger *zap.Logger, runID string, article Article) {
	if e.publisher == nil || e.cfg.PublishTopic == "" {
		return
	}
	payload := map[string]string{
		"run_id":        runID,
		"source_name":   article.SourceName,
		"url":           article.URL,
		"identity_hash": article.IdentityHash,
		"title":         article.Title,
		"published_at":  article.PublishedAt,
	}
	if _, err := e.publisher.Publish(ctx, e.cfg.PublishTopic, payload); err != nil {
		logger.Warn("publish notification failed", zap.String("url", article.URL), zap.Error(err))
	}
}

// ensureListingTab restores the single-listing-tab invariant and returns
// focus to tab 0.
func (e *Engine) ensureListingTab(logger *zap.Logger) {
	for e.gw.TabCount() > 1 {
		if err := e.gw.SwitchTab(e.gw.TabCount() - 1); err != nil {
			logger.Warn("switch to stray tab failed", zap.Error(err))
			break
		}
		if err := e.gw.CloseCurrentTab(); err != nil {
			logger.Warn("close stray tab failed", zap.Error(err))
			break
		}
	}
	if err := e.gw.SwitchTab(0); err != nil {
		logger.Warn("return to listing tab failed", zap.Error(err))
	}
}
