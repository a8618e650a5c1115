// Package catalog defines the domain types shared across the crawl subsystems.
package catalog

import "strings"

// Scope identifies one saved-collection dimension on the catalog site.
type Scope string

// Collection scopes supported by the site. Actor is the person dimension,
// the rest are named-collection dimensions.
const (
	ScopeActor    Scope = "actor"
	ScopeSeries   Scope = "series"
	ScopeMaker    Scope = "maker"
	ScopeDirector Scope = "director"
	ScopeCode     Scope = "code"
)

var scopePaths = map[Scope]string{
	ScopeActor:    "/users/collection_actors",
	ScopeSeries:   "/users/collection_series",
	ScopeMaker:    "/users/collection_makers",
	ScopeDirector: "/users/collection_directors",
	ScopeCode:     "/users/collection_codes",
}

// Selectors that only exist on the real (non-interstitial) listing page for
// each scope. Used as the challenge-wait marker in browser mode.
var scopeSelectors = map[Scope]string{
	ScopeActor:    "div#actors div.box.actor-box",
	ScopeSeries:   "section a[href]",
	ScopeMaker:    "section a[href]",
	ScopeDirector: "section a[href]",
	ScopeCode:     "section a[href]",
}

// Work-listing and detail-page ready selectors shared by every scope.
const (
	WorkListSelector = "div.movie-list"
	MagnetSelector   = "#magnets-content"
)

// NormalizeScope maps free-form input onto a known scope, defaulting to actor.
func NormalizeScope(raw string) Scope {
	s := Scope(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := scopePaths[s]; ok {
		return s
	}
	return ScopeActor
}

// ListingPath returns the site path of the saved-collection listing for scope.
func (s Scope) ListingPath() string {
	return scopePaths[NormalizeScope(string(s))]
}

// ReadySelector returns the challenge-wait marker for the scope's listing page.
func (s Scope) ReadySelector() string {
	return scopeSelectors[NormalizeScope(string(s))]
}

// Subject is one crawl target group (a person or a named collection).
type Subject struct {
	ID    int64
	Scope Scope
	Name  string
	Href  string
}

// SubjectRecord is a parsed subject row before persistence.
type SubjectRecord struct {
	Name string
	Href string
}

// Normalize trims the record and reports whether it is usable.
func (r SubjectRecord) Normalize() (SubjectRecord, bool) {
	out := SubjectRecord{
		Name: strings.TrimSpace(r.Name),
		Href: strings.TrimSpace(r.Href),
	}
	return out, out.Name != ""
}

// Work is one content entry belonging to a subject. Code is the stable
// identity within the subject; title and href are overwritten on re-fetch.
type Work struct {
	Code  string
	Title string
	Href  string
}

// Normalize trims the work and reports whether it is usable. Code and href
// are both required.
func (w Work) Normalize() (Work, bool) {
	out := Work{
		Code:  strings.TrimSpace(w.Code),
		Title: strings.TrimSpace(w.Title),
		Href:  strings.TrimSpace(w.Href),
	}
	return out, out.Code != "" && out.Href != ""
}

// Magnet is one downloadable-resource reference attached to a work. Tags is a
// display string joined from the page's label spans; Size is the display size
// string, not a parsed byte count.
type Magnet struct {
	URI  string
	Tags string
	Size string
}

// Normalize trims the magnet and reports whether it is usable.
func (m Magnet) Normalize() (Magnet, bool) {
	out := Magnet{
		URI:  strings.TrimSpace(m.URI),
		Tags: strings.TrimSpace(m.Tags),
		Size: strings.TrimSpace(m.Size),
	}
	return out, out.URI != ""
}
