package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okabe/favcrawl/internal/catalog"
)

// Works parses one page of a subject's content listing. Each item carries
// its code in the title block's <strong>; the remaining title text is the
// display title.
func Works(baseURL, html string) []catalog.Work {
	doc, ok := document(html)
	if !ok {
		return nil
	}
	var works []catalog.Work
	doc.Find("div.movie-list div.item").Each(func(_ int, item *goquery.Selection) {
		anchor := item.Find("a[href]").First()
		href, exists := anchor.Attr("href")
		if !exists {
			return
		}
		titleBlock := item.Find("div.video-title").First()
		code := strings.TrimSpace(titleBlock.Find("strong").First().Text())
		title := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(titleBlock.Text()), code))
		work, valid := catalog.Work{
			Code:  code,
			Title: title,
			Href:  catalog.ResolveHref(baseURL, href),
		}.Normalize()
		if valid {
			works = append(works, work)
		}
	})
	return works
}

// WorkParser binds Works to a base URL.
func WorkParser(baseURL string) func(html string) []catalog.Work {
	return func(html string) []catalog.Work {
		return Works(baseURL, html)
	}
}
