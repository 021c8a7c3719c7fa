package extractor

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/herald/internal/errs"
)

// ParsedPage is the output of the parse contract shared by the standard and
// browser paths.
type ParsedPage struct {
	Title       string
	Content     string
	Authors     []string
	PublishDate *time.Time
	ImageURL    string
}

// ParseHTML extracts article metadata from a document. Title falls back from
// og:title to <title> to the first h1; content is the text of the main
// article container with boilerplate elements stripped.
func ParseHTML(html, pageURL string) (*ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.ExtractionParsing(pageURL, "failed to parse document: %v", err)
	}

	page := &ParsedPage{
		Title:       extractTitle(doc),
		Content:     extractContent(doc),
		Authors:     extractAuthors(doc),
		PublishDate: extractPublishDate(doc),
		ImageURL:    extractImageURL(doc),
	}

	if page.Title == "" {
		return nil, errs.ExtractionParsing(pageURL, "no title found in document")
	}
	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		return v
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// contentSelectors are tried in order; the first match with meaningful text wins.
var contentSelectors = []string{
	"article",
	`[itemprop="articleBody"]`,
	".article-body",
	".article-content",
	".post-content",
	".entry-content",
	"main",
}

func extractContent(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		sel.Find("script, style, nav, header, footer, aside, figure, form").Remove()
		if text := collapseWhitespace(sel.Text()); len(text) > 100 {
			return text
		}
	}

	// Fall back to joining paragraph text from the whole document.
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); len(text) > 40 {
			parts = append(parts, text)
		}
	})
	return collapseWhitespace(strings.Join(parts, "\n\n"))
}

func extractAuthors(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var authors []string

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || len(name) > 100 {
			return
		}
		lower := strings.ToLower(name)
		if seen[lower] {
			return
		}
		seen[lower] = true
		authors = append(authors, name)
	}

	if v, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok {
		add(v)
	}
	if v, ok := doc.Find(`meta[property="article:author"]`).Attr("content"); ok && !strings.HasPrefix(v, "http") {
		add(v)
	}
	doc.Find(`[rel="author"], .author-name, [itemprop="author"] [itemprop="name"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})

	return authors
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	time.RFC1123Z,
	time.RFC1123,
}

func extractPublishDate(doc *goquery.Document) *time.Time {
	var raw string
	if v, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		raw = v
	} else if v, ok := doc.Find(`meta[name="publish-date"], meta[name="date"]`).Attr("content"); ok {
		raw = v
	} else if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		raw = v
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func extractImageURL(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v
		}
	}
	if v, ok := doc.Find(`meta[name="twitter:image"]`).Attr("content"); ok {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
