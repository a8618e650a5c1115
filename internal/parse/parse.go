// Package parse extracts structured records from catalog pages. Every parser
// is a pure function of the HTML; an unparseable document yields an empty
// result, never an error, since "nothing found" is a meaningful crawl
// outcome distinct from a transport failure.
package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okabe/favcrawl/internal/catalog"
)

func document(html string) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// Title returns the trimmed <title> text, or "" when absent.
func Title(html string) string {
	doc, ok := document(html)
	if !ok {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// NextPageURL finds the pagination link labeled with the site's next-page
// glyph and resolves it against the base URL. Returns "" on the last page.
func NextPageURL(baseURL, html string) string {
	doc, ok := document(html)
	if !ok {
		return ""
	}
	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(sel.Text(), "下一頁") {
			return true
		}
		if href, exists := sel.Attr("href"); exists {
			next = catalog.ResolveHref(baseURL, href)
			return false
		}
		return true
	})
	return next
}

// Interstitial reports whether the page looks like a challenge or login
// interstitial rather than a listing: real listing pages always carry a
// <section> element.
func Interstitial(html string) bool {
	doc, ok := document(html)
	if !ok {
		return true
	}
	return doc.Find("section").Length() == 0
}
