package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okabe/favcrawl/internal/catalog"
)

func TestFiltersPrecedence(t *testing.T) {
	t.Parallel()

	t.Run("inactive filters match everything", func(t *testing.T) {
		t.Parallel()
		f := Filters{}
		require.False(t, f.Active())
		require.True(t, f.MatchName("anything"))
		require.True(t, f.MatchCode("ABC-001"))
	})

	t.Run("exact names win over code criteria", func(t *testing.T) {
		t.Parallel()
		f := Filters{
			Names:        []string{"Alice"},
			CodeContains: []string{"BBB"},
			CodePrefixes: []string{"BBB"},
		}
		require.True(t, f.MatchName("alice"), "name match is case-insensitive")
		require.False(t, f.MatchName("Beth"))
		require.True(t, f.MatchCode("XYZ-001"), "code criteria are ignored when names are set")
	})

	t.Run("contains wins over prefixes", func(t *testing.T) {
		t.Parallel()
		f := Filters{
			CodeContains: []string{"-00"},
			CodePrefixes: []string{"ZZZ"},
		}
		require.True(t, f.MatchCode("ABC-001"))
		require.False(t, f.MatchCode("ZZZ-999"))
	})

	t.Run("prefixes apply last", func(t *testing.T) {
		t.Parallel()
		f := Filters{CodePrefixes: []string{"abc", " def "}}
		require.True(t, f.Active())
		require.True(t, f.MatchCode("ABC-001"))
		require.True(t, f.MatchCode("DEF-002"))
		require.False(t, f.MatchCode("GHI-003"))
	})

	t.Run("code criteria never filter subjects", func(t *testing.T) {
		t.Parallel()
		f := Filters{CodeContains: []string{"ABF"}}
		require.True(t, f.MatchName("Alice"))
		require.True(t, f.MatchName("Beth"))
	})
}

func TestFilterWorks(t *testing.T) {
	t.Parallel()

	works := []catalog.Work{
		{Code: "ABF-001", Title: "one", Href: "/v/a"},
		{Code: "XYZ-999", Title: "two", Href: "/v/b"},
	}

	t.Run("contains keeps matching codes only", func(t *testing.T) {
		t.Parallel()
		f := Filters{CodeContains: []string{"abf"}}
		kept := f.FilterWorks(works)
		require.Len(t, kept, 1)
		require.Equal(t, "ABF-001", kept[0].Code)
	})

	t.Run("prefix can empty a subject", func(t *testing.T) {
		t.Parallel()
		f := Filters{CodePrefixes: []string{"QQQ"}}
		require.Empty(t, f.FilterWorks(works))
	})

	t.Run("name filter leaves works untouched", func(t *testing.T) {
		t.Parallel()
		f := Filters{Names: []string{"Alice"}, CodeContains: []string{"QQQ"}}
		require.Equal(t, works, f.FilterWorks(works))
	})

	t.Run("no criteria passes through", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, works, Filters{}.FilterWorks(works))
	})
}
