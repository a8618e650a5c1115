package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okabe/favcrawl/internal/catalog"
)

// ActorSubjects parses the saved-actors listing: one card per person under
// div#actors, name in <strong>, profile link on the first anchor.
func ActorSubjects(baseURL, html string) []catalog.SubjectRecord {
	doc, ok := document(html)
	if !ok {
		return nil
	}
	var records []catalog.SubjectRecord
	doc.Find("div#actors div.box.actor-box").Each(func(_ int, box *goquery.Selection) {
		anchor := box.Find("a[href]").First()
		href, exists := anchor.Attr("href")
		if !exists {
			return
		}
		name := strings.TrimSpace(box.Find("strong").First().Text())
		if name == "" {
			name = strings.TrimSpace(anchor.Text())
		}
		record, valid := catalog.SubjectRecord{
			Name: name,
			Href: catalog.ResolveHref(baseURL, href),
		}.Normalize()
		if valid && record.Href != "" {
			records = append(records, record)
		}
	})
	return records
}

// CollectionSubjects parses the saved-collection listings for the non-person
// scopes (series, maker, director, code), which render as plain anchors
// inside the page's <section>.
func CollectionSubjects(baseURL, html string) []catalog.SubjectRecord {
	doc, ok := document(html)
	if !ok {
		return nil
	}
	var records []catalog.SubjectRecord
	doc.Find("section a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		name := strings.TrimSpace(anchor.Find("strong").First().Text())
		if name == "" {
			name = strings.TrimSpace(anchor.Text())
		}
		record, valid := catalog.SubjectRecord{
			Name: name,
			Href: catalog.ResolveHref(baseURL, href),
		}.Normalize()
		if valid && record.Href != "" {
			records = append(records, record)
		}
	})
	return records
}

// SubjectParser returns the listing parser for a scope, bound to the base
// URL so the result satisfies the driver's html-in, records-out contract.
func SubjectParser(scope catalog.Scope, baseURL string) func(html string) []catalog.SubjectRecord {
	if catalog.NormalizeScope(string(scope)) == catalog.ScopeActor {
		return func(html string) []catalog.SubjectRecord {
			return ActorSubjects(baseURL, html)
		}
	}
	return func(html string) []catalog.SubjectRecord {
		return CollectionSubjects(baseURL, html)
	}
}
