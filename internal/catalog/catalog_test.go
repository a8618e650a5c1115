package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeScope(t *testing.T) {
	t.Parallel()

	require.Equal(t, ScopeSeries, NormalizeScope(" SERIES "))
	require.Equal(t, ScopeActor, NormalizeScope("unknown"))
	require.Equal(t, ScopeActor, NormalizeScope(""))
}

func TestScopeListingPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/users/collection_actors", ScopeActor.ListingPath())
	require.Equal(t, "/users/collection_codes", ScopeCode.ListingPath())
	// An unknown scope value degrades to the actor listing.
	require.Equal(t, "/users/collection_actors", Scope("bogus").ListingPath())
}

func TestScopeReadySelector(t *testing.T) {
	t.Parallel()

	require.Equal(t, "div#actors div.box.actor-box", ScopeActor.ReadySelector())
	require.Equal(t, "section a[href]", ScopeMaker.ReadySelector())
}

func TestNormalizeHostSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"jdbase", "jdbase"},
		{"https://jdbase.com/users", "jdbase"},
		{"  JDBASE.COM ", "jdbase"},
		{"//mirror2.com/", "mirror2"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeHostSegment(tt.in), "input %q", tt.in)
	}
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	u, err := BaseURL("https://jdbase.com")
	require.NoError(t, err)
	require.Equal(t, "https://jdbase.com", u)

	for _, bad := range []string{"", "-leading", "trailing-", "a..b", "has space", "inj/ect"} {
		_, err := BaseURL(bad)
		require.Error(t, err, "segment %q must be rejected", bad)
	}
}

func TestResolveHref(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://jdbase.com/v/abc", ResolveHref("https://jdbase.com", "/v/abc"))
	require.Equal(t, "https://other.com/x", ResolveHref("https://jdbase.com", "https://other.com/x"))
	require.Equal(t, "", ResolveHref("https://jdbase.com", ""))
}

func TestListingURL(t *testing.T) {
	t.Parallel()

	t.Run("merges tags and sort", func(t *testing.T) {
		t.Parallel()
		got := ListingURL("https://jdbase.com", "/actors/abc", []string{"s", "d"}, "0")
		require.Equal(t, "https://jdbase.com/actors/abc?sort_type=0&t=s%2Cd", got)
	})

	t.Run("replaces existing parameters", func(t *testing.T) {
		t.Parallel()
		got := ListingURL("https://jdbase.com", "/actors/abc?t=old&sort_type=9&page=2", []string{"new"}, "1")
		require.Equal(t, "https://jdbase.com/actors/abc?page=2&sort_type=1&t=new", got)
	})

	t.Run("leaves url untouched without overrides", func(t *testing.T) {
		t.Parallel()
		got := ListingURL("https://jdbase.com", "/actors/abc?t=old", nil, "")
		require.Equal(t, "https://jdbase.com/actors/abc?t=old", got)
	})
}

func TestNormalizeRecords(t *testing.T) {
	t.Parallel()

	_, ok := SubjectRecord{Name: "  ", Href: "/x"}.Normalize()
	require.False(t, ok, "nameless subject is unusable")

	sub, ok := SubjectRecord{Name: " A ", Href: " /x "}.Normalize()
	require.True(t, ok)
	require.Equal(t, SubjectRecord{Name: "A", Href: "/x"}, sub)

	_, ok = Work{Code: "ABC-1"}.Normalize()
	require.False(t, ok, "work without href is unusable")

	_, ok = Magnet{URI: " "}.Normalize()
	require.False(t, ok)
}
