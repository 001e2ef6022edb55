package extract

import (
	"regexp"
	"strings"
)

var titleSeparators = regexp.MustCompile(`[-|:]`)

// CleanTitle removes the site or publisher suffix from a page title by
// keeping everything before the first separator character and trimming
// whitespace. A title without separators is returned trimmed but otherwise
// unchanged.
func CleanTitle(title string) string {
	return strings.TrimSpace(titleSeparators.Split(title, 2)[0])
}
