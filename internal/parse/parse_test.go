package parse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okabe/favcrawl/internal/catalog"
)

const baseURL = "https://jdbase.com"

const actorListingHTML = `
<html><head><title>我的收藏</title></head><body>
<section>
  <div id="actors">
    <div class="box actor-box">
      <a href="/actors/aaa"><strong>Alice</strong></a>
    </div>
    <div class="box actor-box">
      <a href="/actors/bbb">Beth</a>
    </div>
    <div class="box actor-box">
      <span>no anchor here</span>
    </div>
  </div>
  <nav class="pagination">
    <a href="/users/collection_actors?page=2">下一頁</a>
  </nav>
</section>
</body></html>`

func TestActorSubjects(t *testing.T) {
	t.Parallel()

	records := ActorSubjects(baseURL, actorListingHTML)
	require.Equal(t, []catalog.SubjectRecord{
		{Name: "Alice", Href: "https://jdbase.com/actors/aaa"},
		{Name: "Beth", Href: "https://jdbase.com/actors/bbb"},
	}, records)
}

func TestCollectionSubjects(t *testing.T) {
	t.Parallel()

	html := `
<section>
  <a href="/series/s1"><strong>Series One</strong></a>
  <a href="/series/s2">Series Two</a>
  <a href="/series/s3">  </a>
</section>`

	records := CollectionSubjects(baseURL, html)
	require.Equal(t, []catalog.SubjectRecord{
		{Name: "Series One", Href: "https://jdbase.com/series/s1"},
		{Name: "Series Two", Href: "https://jdbase.com/series/s2"},
	}, records)
}

func TestSubjectParserDispatch(t *testing.T) {
	t.Parallel()

	actors := SubjectParser(catalog.ScopeActor, baseURL)(actorListingHTML)
	require.Len(t, actors, 2)

	// The actor fixture has no plain section anchors besides pagination.
	series := SubjectParser(catalog.ScopeSeries, baseURL)(`<section><a href="/x">X</a></section>`)
	require.Len(t, series, 1)
}

func TestWorks(t *testing.T) {
	t.Parallel()

	html := `
<div class="movie-list">
  <div class="item">
    <a href="/v/one">
      <div class="video-title"><strong>ABC-001</strong> First Title</div>
    </a>
  </div>
  <div class="item">
    <a href="/v/two">
      <div class="video-title"><strong>ABC-002</strong></div>
    </a>
  </div>
  <div class="item">
    <div class="video-title"><strong>NO-HREF</strong> dropped</div>
  </div>
</div>`

	works := Works(baseURL, html)
	require.Equal(t, []catalog.Work{
		{Code: "ABC-001", Title: "First Title", Href: "https://jdbase.com/v/one"},
		{Code: "ABC-002", Title: "", Href: "https://jdbase.com/v/two"},
	}, works)
}

func TestMagnets(t *testing.T) {
	t.Parallel()

	html := `
<div id="magnets-content">
  <div class="item columns">
    <div class="magnet-name column is-four-fifths">
      <a href="magnet:?xt=urn:btih:AAA">
        <div>
          <span class="name">ABC-001</span>
          <span class="tag">高清</span>
          <span class="tag">字幕</span>
          <span class="meta">5.2GB</span>
        </div>
      </a>
    </div>
  </div>
  <div class="item columns">
    <a href="magnet:?xt=urn:btih:BBB"><div><span class="meta">1.1GB</span></div></a>
  </div>
  <div class="item columns">
    <a href="magnet:?xt=urn:btih:AAA">duplicate</a>
  </div>
</div>`

	magnets := Magnets(html)
	require.Equal(t, []catalog.Magnet{
		{URI: "magnet:?xt=urn:btih:AAA", Tags: "高清, 字幕", Size: "5.2GB"},
		{URI: "magnet:?xt=urn:btih:BBB", Size: "1.1GB"},
	}, magnets)
}

func TestMagnetsFallbackAnchorScan(t *testing.T) {
	t.Parallel()

	html := `
<div id="magnets-content">
  <p><a href="magnet:?xt=urn:btih:CCC">bare link</a></p>
</div>`

	magnets := Magnets(html)
	require.Equal(t, []catalog.Magnet{{URI: "magnet:?xt=urn:btih:CCC"}}, magnets)
}

func TestMagnetsMissingSection(t *testing.T) {
	t.Parallel()

	require.Nil(t, Magnets("<html><body>nothing here</body></html>"))
}

func TestNextPageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://jdbase.com/users/collection_actors?page=2",
		NextPageURL(baseURL, actorListingHTML))

	lastPage := `<section><a href="/prev">上一頁</a></section>`
	require.Equal(t, "", NextPageURL(baseURL, lastPage))
}

func TestTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "我的收藏", Title(actorListingHTML))
	require.Equal(t, "", Title("<html><body>untitled</body></html>"))
}

func TestInterstitial(t *testing.T) {
	t.Parallel()

	require.False(t, Interstitial(actorListingHTML))
	require.True(t, Interstitial(`<html><body><div>Checking your browser</div></body></html>`))
}
