package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/okabe/favcrawl/internal/session"
)

func newHTTPTestFetcher(t *testing.T, srv *httptest.Server, snap session.Snapshot) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(Config{
		Mode:        ModeHTTP,
		PageTimeout: 5 * time.Second,
	}, srv.URL, snap, zap.NewNop())
	require.NoError(t, err)
	// Tests should not sit on the pacing floor.
	f.limiter.SetBurst(100)
	return f
}

func TestHTTPFetcherFetch(t *testing.T) {
	t.Parallel()

	var gotCookie, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("_jdb_session"); err == nil {
			gotCookie = c.Value
		}
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte(`<html><head><title>Saved Actors</title></head><body><section>ok</section></body></html>`))
	}))
	defer srv.Close()

	f := newHTTPTestFetcher(t, srv, session.Snapshot{
		Entries: map[string]string{"_jdb_session": "tok"},
	})

	res, err := f.Fetch(context.Background(), srv.URL+"/users/collection_actors", Options{Stage: "subjects"})
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "Saved Actors", res.Title)
	require.False(t, res.Blocked)
	require.Contains(t, res.HTML, "<section>")
	require.Equal(t, "tok", gotCookie, "seeded cookie jar must ride along")
	require.Equal(t, srv.URL+"/", gotReferer)
}

func TestHTTPFetcherRefetchesSameURL(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte(`<html><head><title>Detail</title></head><body><section>m</section></body></html>`))
	}))
	defer srv.Close()

	f := newHTTPTestFetcher(t, srv, session.Snapshot{})

	// Two co-starred works can share one detail URL; the second fetch must
	// hit the server again, not fail as already visited.
	url := srv.URL + "/v/AAA-1"
	_, err := f.Fetch(context.Background(), url, Options{Stage: "magnets"})
	require.NoError(t, err)
	res, err := f.Fetch(context.Background(), url, Options{Stage: "magnets"})
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, 2, hits)
}

func TestHTTPFetcherBlockedBodyIsData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<html><head><title>Attention Required! | Cloudflare</title></head><body><div class="cf-wrapper">blocked</div></body></html>`))
	}))
	defer srv.Close()

	f := newHTTPTestFetcher(t, srv, session.Snapshot{})

	res, err := f.Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err, "a blocked page is a result, not a transport error")
	require.True(t, res.Blocked)
	require.Equal(t, "status_403", res.BlockedReason)
	require.Equal(t, 403, res.StatusCode)
}

func TestHTTPFetcherCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newHTTPTestFetcher(t, srv, session.Snapshot{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL, Options{})
	require.ErrorIs(t, err, context.Canceled)
}
