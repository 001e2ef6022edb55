package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	paragraphPattern = regexp.MustCompile(`(?is)<p\b[^>]*>(.*?)</p>`)
	tagPattern       = regexp.MustCompile(`(?s)<[^>]*>`)
)

// ParagraphScan is the last-resort body fallback: it pulls paragraph-like
// text runs straight out of the raw page markup and joins the non-empty runs
// with newlines. It is only reached when every structural locator failed.
func ParagraphScan(markup string) string {
	matches := paragraphPattern.FindAllStringSubmatch(markup, -1)
	runs := make([]string, 0, len(matches))
	for _, m := range matches {
		text := tagPattern.ReplaceAllString(m[1], " ")
		text = strings.Join(strings.Fields(html.UnescapeString(text)), " ")
		if text != "" {
			runs = append(runs, text)
		}
	}
	return strings.Join(runs, "\n")
}

// MetaProperty reads an OpenGraph-style meta tag content from the rendered
// markup, e.g. og:description or og:image.
func MetaProperty(markup, property string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	selector := `meta[property="` + property + `"], meta[name="` + property + `"]`
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}
