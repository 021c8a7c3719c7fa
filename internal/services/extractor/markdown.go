package extractor

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// ContentMarkdown converts the article container of a page to Markdown,
// preserving links and emphasis that the plain-text path drops.
func ContentMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var inner string
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		sel.Find("script, style, nav, header, footer, aside, form").Remove()
		if h, err := sel.Html(); err == nil && len(h) > 100 {
			inner = h
			break
		}
	}
	if inner == "" {
		return "", nil
	}

	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(inner)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
