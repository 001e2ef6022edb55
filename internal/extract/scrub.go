package extract

import (
	"regexp"
	"strings"
)

// Boilerplate substrings that leak into body text when a broad locator wins.
// They are removed case-insensitively after extraction, whichever strategy
// produced the body.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsubscribe( now| today)?\b`),
	regexp.MustCompile(`(?i)\bsign (in|up)\b`),
	regexp.MustCompile(`(?i)\blog ?in\b`),
	regexp.MustCompile(`(?i)\bsearch\b`),
	regexp.MustCompile(`(?i)\bmain menu\b`),
	regexp.MustCompile(`(?i)\bskip to (main )?content\b`),
	regexp.MustCompile(`(?i)\bnewsletter\b`),
	regexp.MustCompile(`(?i)\badvertisement\b`),
	regexp.MustCompile(`(?i)\baccept (all )?cookies\b`),
	regexp.MustCompile(`(?i)\bshare this (article|story)\b`),
	regexp.MustCompile(`(?i)\bread more\b`),
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// ScrubBody strips known boilerplate substrings from extracted body text and
// collapses the blank runs left behind.
func ScrubBody(body string) string {
	scrubbed := body
	for _, pattern := range boilerplatePatterns {
		scrubbed = pattern.ReplaceAllString(scrubbed, "")
	}
	lines := strings.Split(scrubbed, "\n")
	kept := lines[:0]
	for _, line := range lines {
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	scrubbed = strings.Join(kept, "\n")
	scrubbed = blankRuns.ReplaceAllString(scrubbed, "\n\n")
	return strings.TrimSpace(scrubbed)
}
