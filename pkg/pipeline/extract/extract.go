// Package extract pulls article metadata and body text out of raw HTML with
// goquery heuristics: open-graph tags first, then common fallbacks.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"paperboy/pkg/serrors"
)

// Article is the extracted content of one page.
type Article struct {
	Title       string
	Author      string
	PublishDate string
	Text        string
}

// minBodyLength guards against pages where the heuristics only caught
// boilerplate.
const minBodyLength = 200

// FromHTML extracts an Article from the given HTML source. It fails with
// serrors.ErrBadRequest when no usable body text is found.
func FromHTML(source string) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrBadRequest, err, "could not parse document")
	}

	article := &Article{
		Title:       title(doc),
		Author:      meta(doc, "author", "article:author"),
		PublishDate: publishDate(doc),
		Text:        body(doc),
	}

	if len(article.Text) < minBodyLength {
		return nil, serrors.With(serrors.ErrBadRequest, "could not extract article body")
	}
	if article.Title == "" {
		article.Title = "Untitled"
	}

	return article, nil
}

func title(doc *goquery.Document) string {
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

// meta returns the first non-empty content attribute among meta tags with the
// given name or property values.
func meta(doc *goquery.Document, names ...string) string {
	for _, n := range names {
		sel := `meta[name="` + n + `"], meta[property="` + n + `"]`
		if v, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	return ""
}

func publishDate(doc *goquery.Document) string {
	if d := meta(doc, "article:published_time", "date"); d != "" {
		return d
	}
	if d, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(d)
	}

	return ""
}

// body collects paragraph text, preferring article/main containers and
// falling back to all paragraphs. Script, style, nav and footer content is
// dropped first.
func body(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, form").Remove()

	for _, container := range []string{"article", "main", `div[itemprop="articleBody"]`} {
		if text := paragraphs(doc.Find(container).First()); len(text) >= minBodyLength {
			return text
		}
	}

	return paragraphs(doc.Selection)
}

func paragraphs(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	var parts []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		t := strings.TrimSpace(p.Text())
		if t != "" {
			parts = append(parts, t)
		}
	})

	return strings.Join(parts, "\n")
}
