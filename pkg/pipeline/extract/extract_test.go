package extract_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"paperboy/pkg/pipeline/extract"
	"paperboy/pkg/serrors"
)

func articleHTML(body string) string {
	return `<html><head>
<title>Fallback Title | Site</title>
<meta property="og:title" content="The Real Title">
<meta name="author" content="Jane Doe">
<meta property="article:published_time" content="2024-05-01T10:00:00Z">
</head><body>
<nav><p>navigation junk that should never appear</p></nav>
<article>` + body + `</article>
<footer><p>footer junk</p></footer>
</body></html>`
}

func longParagraphs() string {
	p := "<p>" + strings.Repeat("This sentence pads the article body well past the minimum. ", 10) + "</p>"

	return p + p
}

func TestFromHTMLPrefersOpenGraphTitle(t *testing.T) {
	a, err := extract.FromHTML(articleHTML(longParagraphs()))
	require.NoError(t, err)
	require.Equal(t, "The Real Title", a.Title)
	require.Equal(t, "Jane Doe", a.Author)
	require.Equal(t, "2024-05-01T10:00:00Z", a.PublishDate)
}

func TestFromHTMLFallsBackToTitleTag(t *testing.T) {
	html := `<html><head><title>Only Title</title></head><body><article>` +
		longParagraphs() + `</article></body></html>`

	a, err := extract.FromHTML(html)
	require.NoError(t, err)
	require.Equal(t, "Only Title", a.Title)
	require.Empty(t, a.Author)
}

func TestFromHTMLDropsChrome(t *testing.T) {
	a, err := extract.FromHTML(articleHTML(longParagraphs()))
	require.NoError(t, err)
	require.NotContains(t, a.Text, "navigation junk")
	require.NotContains(t, a.Text, "footer junk")
}

func TestFromHTMLCollectsLooseParagraphs(t *testing.T) {
	// no article/main container at all
	html := `<html><body><div>` + longParagraphs() + `</div></body></html>`

	a, err := extract.FromHTML(html)
	require.NoError(t, err)
	require.Contains(t, a.Text, "pads the article body")
	require.Equal(t, "Untitled", a.Title)
}

func TestFromHTMLRejectsThinPages(t *testing.T) {
	html := `<html><body><article><p>too short</p></article></body></html>`

	_, err := extract.FromHTML(html)
	require.ErrorIs(t, err, serrors.ErrBadRequest)
}

func TestFromHTMLTimeElementDate(t *testing.T) {
	html := `<html><body><article>` + longParagraphs() +
		`<time datetime="2023-11-11">November</time></article></body></html>`

	a, err := extract.FromHTML(html)
	require.NoError(t, err)
	require.Equal(t, "2023-11-11", a.PublishDate)
}
