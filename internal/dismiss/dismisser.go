// Package dismiss clears consent prompts and overlay dialogs that block
// normal page interaction.
package dismiss

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
	"github.com/pressfeed/harvester/internal/metrics"
)

// Default dismissal predicates, tried in order. Text-matching predicates use
// XPath because CSS cannot select on element text.
var defaultDismissals = []harvest.Dismissal{
	{
		Locator:     harvest.XPath(`//button[contains(text(), 'Accept') or contains(text(), 'Agree')]`),
		Description: "accepted cookies",
	},
	{
		Locator:     harvest.XPath(`//a[contains(text(), 'Accept') or contains(text(), 'Agree')]`),
		Description: "accepted cookies via link",
	},
	{
		Locator:     harvest.XPath(`//button[contains(text(), 'X') or @aria-label='Close']`),
		Description: "closed popup",
	},
	{
		Locator:     harvest.XPath(`//button[contains(text(), 'Continue')]`),
		Description: "clicked continue button",
	},
}

// Dismisser attempts an ordered list of interstitial dismissals against the
// current page. It never fails its caller: absence of anything dismissible
// is a normal outcome.
type Dismisser struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs a Dismisser with the given per-predicate clickability wait.
func New(timeout time.Duration, logger *zap.Logger) *Dismisser {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dismisser{timeout: timeout, logger: logger}
}

// DismissAll tries each predicate under a bounded wait, clicking the first
// match when one becomes clickable, and returns how many dismissals fired.
// Profile-specific dismissals run before the defaults.
func (d *Dismisser) DismissAll(ctx context.Context, gw harvest.Gateway, profile harvest.SourceProfile) int {
	dismissed := 0
	predicates := append(append([]harvest.Dismissal{}, profile.ExtraDismissals...), defaultDismissals...)
	for _, p := range predicates {
		if ctx.Err() != nil {
			return dismissed
		}
		err := gw.Click(ctx, p.Locator, d.timeout)
		if err != nil {
			if errors.Is(err, harvest.ErrNotFound) {
				d.logger.Debug("no interstitial for predicate", zap.String("query", p.Locator.Query))
			} else {
				d.logger.Debug("interstitial click failed",
					zap.String("query", p.Locator.Query),
					zap.Error(err),
				)
			}
			continue
		}
		dismissed++
		metrics.InterstitialDismissed(p.Description)
		d.logger.Info("dismissed interstitial", zap.String("kind", p.Description))
	}
	return dismissed
}
