package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParagraphScan(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
<p class="lede">First <b>bold</b> run.</p>
<div><p>Second run &amp; friends.</p></div>
<p>   </p>
<P>Uppercase tag run.</P>
</body></html>`

	got := ParagraphScan(markup)
	assert.Equal(t, "First bold run.\nSecond run & friends.\nUppercase tag run.", got)
}

func TestParagraphScanNoParagraphs(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ParagraphScan("<html><body><div>nothing here</div></body></html>"))
}

func TestMetaProperty(t *testing.T) {
	t.Parallel()

	markup := `<html><head>
<meta property="og:description" content="A short summary." />
<meta property="og:image" content="https://cdn.example.com/lead.jpg" />
</head><body></body></html>`

	assert.Equal(t, "A short summary.", MetaProperty(markup, "og:description"))
	assert.Equal(t, "https://cdn.example.com/lead.jpg", MetaProperty(markup, "og:image"))
	assert.Empty(t, MetaProperty(markup, "og:title"))
}
