package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okabe/favcrawl/internal/catalog"
)

// Magnets parses the magnet section of a work detail page. Each entry links
// the magnet URI from its name column; label spans become the joined tags
// string and the meta span the display size. Entries the primary selectors
// miss are recovered by a plain anchor scan, and duplicates by URI are
// dropped.
func Magnets(html string) []catalog.Magnet {
	doc, ok := document(html)
	if !ok {
		return nil
	}
	root := doc.Find(catalog.MagnetSelector).First()
	if root.Length() == 0 {
		return nil
	}

	var magnets []catalog.Magnet
	root.ChildrenFiltered("div").Each(func(_ int, entry *goquery.Selection) {
		anchor := entry.Find(`div.magnet-name.column.is-four-fifths a[href^="magnet:"]`).First()
		if anchor.Length() == 0 {
			anchor = entry.Find(`a[href^="magnet:"]`).First()
		}
		if anchor.Length() == 0 {
			return
		}
		uri, _ := anchor.Attr("href")
		uri = strings.TrimSpace(uri)
		if !strings.HasPrefix(uri, "magnet:") {
			return
		}

		var tags []string
		anchor.Find("div span").Each(func(_ int, span *goquery.Selection) {
			if span.HasClass("name") || span.HasClass("meta") {
				return
			}
			if text := strings.TrimSpace(span.Text()); text != "" {
				tags = append(tags, text)
			}
		})
		size := strings.TrimSpace(anchor.Find("span.meta").First().Text())

		magnets = append(magnets, catalog.Magnet{
			URI:  uri,
			Tags: strings.Join(tags, ", "),
			Size: size,
		})
	})

	if len(magnets) == 0 {
		root.Find(`a[href^="magnet:"]`).Each(func(_ int, anchor *goquery.Selection) {
			uri, _ := anchor.Attr("href")
			if uri = strings.TrimSpace(uri); uri != "" {
				magnets = append(magnets, catalog.Magnet{URI: uri})
			}
		})
	}

	seen := make(map[string]struct{}, len(magnets))
	deduped := magnets[:0]
	for _, m := range magnets {
		if _, dup := seen[m.URI]; dup {
			continue
		}
		seen[m.URI] = struct{}{}
		deduped = append(deduped, m)
	}
	return deduped
}
