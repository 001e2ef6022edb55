// Package browser implements the rendering session gateway on headless
// Chrome via chromedp.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
)

// Config controls the browser session.
type Config struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Session holds one shared rendering session and its open-tab set. Tab 0 is
// the listing tab and cannot be closed; article tabs stack on top of it.
// Session is not safe for concurrent use beyond what the mutex covers: the
// pipeline is single-threaded by design.
type Session struct {
	cfg         Config
	allocCancel context.CancelFunc
	logger      *zap.Logger

	mu      sync.Mutex
	tabs    []tab
	current int
}

// ErrListingTab is returned when a caller tries to close tab 0.
var ErrListingTab = errors.New("cannot close the listing tab")

// New starts headless Chrome and warms up the first (listing) tab.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx, networkSetup(cfg.UserAgent)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Session{
		cfg:         cfg,
		allocCancel: allocCancel,
		logger:      logger,
		tabs:        []tab{{ctx: browserCtx, cancel: browserCancel}},
	}, nil
}

// Close tears down every tab and the allocator.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.tabs) - 1; i >= 0; i-- {
		s.tabs[i].cancel()
	}
	s.tabs = nil
	s.allocCancel()
	return nil
}

func networkSetup(userAgent string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (s *Session) currentTab() (tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tabs) == 0 {
		return tab{}, errors.New("session is closed")
	}
	return s.tabs[s.current], nil
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	t, err := s.currentTab()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// forwardCancel propagates cancellation from the caller context into the
// operation context for the duration of one gateway call.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Navigate loads the URL in the current tab and waits for the body element.
func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.cfg.NavTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// PageTitle returns the current document title.
func (s *Session) PageTitle(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// CurrentURL returns the resolved location of the current tab.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

type elementSnapshot struct {
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs"`
}

// snapshotScript builds a JS expression that maps every locator match to a
// {text, attrs} snapshot. Snapshots keep callers free of live node handles.
func snapshotScript(loc harvest.Locator) (string, error) {
	quoted, err := json.Marshal(loc.Query)
	if err != nil {
		return "", fmt.Errorf("encode locator: %w", err)
	}
	collect := `const out = [];
	const push = (el) => {
		if (!el || el.nodeType !== 1) return;
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		out.push({text: el.innerText || el.textContent || '', attrs});
	};`
	switch loc.Kind {
	case harvest.ByXPath:
		return fmt.Sprintf(`(() => {
	%s
	const found = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < found.snapshotLength; i++) push(found.snapshotItem(i));
	return out;
})()`, collect, quoted), nil
	case harvest.ByCSS, "":
		return fmt.Sprintf(`(() => {
	%s
	for (const el of document.querySelectorAll(%s)) push(el);
	return out;
})()`, collect, quoted), nil
	default:
		return "", fmt.Errorf("unsupported locator kind %q", loc.Kind)
	}
}

// Query snapshots every element matching the locator, without waiting.
func (s *Session) Query(ctx context.Context, loc harvest.Locator) ([]harvest.Element, error) {
	script, err := snapshotScript(loc)
	if err != nil {
		return nil, err
	}
	var snaps []elementSnapshot
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Evaluate(script, &snaps)); err != nil {
		return nil, fmt.Errorf("query %q: %w", loc.Query, err)
	}
	elements := make([]harvest.Element, 0, len(snaps))
	for _, snap := range snaps {
		elements = append(elements, harvest.Element{Text: snap.Text, Attrs: snap.Attrs})
	}
	return elements, nil
}

// QueryOne waits up to timeout for the locator's first match and snapshots
// it. A miss resolves to harvest.ErrNotFound.
func (s *Session) QueryOne(ctx context.Context, loc harvest.Locator, timeout time.Duration) (harvest.Element, error) {
	if err := s.run(ctx, timeout, chromedp.WaitReady(loc.Query, queryOption(loc))); err != nil {
		return harvest.Element{}, harvest.ErrNotFound
	}
	elements, err := s.Query(ctx, loc)
	if err != nil {
		return harvest.Element{}, err
	}
	if len(elements) == 0 {
		return harvest.Element{}, harvest.ErrNotFound
	}
	return elements[0], nil
}

// Click waits up to timeout for the first match to become visible and clicks
// it. A miss resolves to harvest.ErrNotFound.
func (s *Session) Click(ctx context.Context, loc harvest.Locator, timeout time.Duration) error {
	opt := queryOption(loc)
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(loc.Query, opt),
		chromedp.Click(loc.Query, opt),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return harvest.ErrNotFound
		}
		return fmt.Errorf("click %q: %w", loc.Query, err)
	}
	return nil
}

// WaitReady waits up to timeout for the locator to be present in the DOM.
func (s *Session) WaitReady(ctx context.Context, loc harvest.Locator, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitReady(loc.Query, queryOption(loc))); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return harvest.ErrNotFound
		}
		return fmt.Errorf("wait for %q: %w", loc.Query, err)
	}
	return nil
}

func queryOption(loc harvest.Locator) chromedp.QueryOption {
	if loc.Kind == harvest.ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// ScrollToBottom scrolls the current tab to the bottom of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	err := s.run(ctx, s.cfg.NavTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
	)
	if err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

// PageHeight measures the current document height in CSS pixels.
func (s *Session) PageHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Evaluate(`document.body.scrollHeight`, &height)); err != nil {
		return 0, fmt.Errorf("measure page height: %w", err)
	}
	return height, nil
}

// PageSource returns the rendered markup of the current tab.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page source: %w", err)
	}
	return html, nil
}

// OpenInNewTab opens the URL in a fresh tab derived from the listing tab's
// browser and focuses it.
func (s *Session) OpenInNewTab(ctx context.Context, url string) error {
	s.mu.Lock()
	if len(s.tabs) == 0 {
		s.mu.Unlock()
		return errors.New("session is closed")
	}
	parent := s.tabs[0].ctx
	s.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(parent)
	runCtx, cancel := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx,
		networkSetup(s.cfg.UserAgent),
		chromedp.Navigate(url),
	)
	if err != nil {
		tabCancel()
		return fmt.Errorf("open tab for %s: %w", url, err)
	}

	s.mu.Lock()
	s.tabs = append(s.tabs, tab{ctx: tabCtx, cancel: tabCancel})
	s.current = len(s.tabs) - 1
	s.mu.Unlock()
	return nil
}

// SwitchTab focuses the tab at the given index; 0 is the listing tab.
func (s *Session) SwitchTab(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.tabs) {
		return fmt.Errorf("tab index %d out of range [0,%d)", index, len(s.tabs))
	}
	s.current = index
	return nil
}

// CloseCurrentTab closes the focused tab and returns focus to the previous
// one. The listing tab itself cannot be closed.
func (s *Session) CloseCurrentTab() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == 0 {
		return ErrListingTab
	}
	s.tabs[s.current].cancel()
	s.tabs = append(s.tabs[:s.current], s.tabs[s.current+1:]...)
	if s.current >= len(s.tabs) {
		s.current = len(s.tabs) - 1
	}
	return nil
}

// TabCount reports how many tabs are open.
func (s *Session) TabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}
