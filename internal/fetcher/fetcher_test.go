package fetcher

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bad33ndj3/docdex/internal/domain"
)

func TestFetchWithCache_Modified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain, text/markdown, */*", r.Header.Get("Accept"))
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jun 2025 09:30:00 GMT")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("# Docs\nbody\n"))
	}))
	defer srv.Close()

	f := New()
	res, err := f.FetchWithCache(context.Background(), srv.URL+"/llms.txt", "", "")
	require.NoError(t, err)

	assert.False(t, res.NotModified)
	assert.Equal(t, "# Docs\nbody\n", res.Content)
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "Mon, 02 Jun 2025 09:30:00 GMT", res.LastModified)
	assert.Len(t, res.SHA256, 64)
}

func TestFetchWithCache_SendsValidators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"abc"`, r.Header.Get("If-None-Match"))
		assert.Equal(t, "yesterday", r.Header.Get("If-Modified-Since"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := New()
	res, err := f.FetchWithCache(context.Background(), srv.URL, `"abc"`, "yesterday")
	require.NoError(t, err)
	assert.True(t, res.NotModified)
}

// A 304 without validators in the response carries the request's
// validators forward.
func TestFetchWithCache_304PropagatesRequestValidators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := New()
	res, err := f.FetchWithCache(context.Background(), srv.URL, `"abc"`, "lm")
	require.NoError(t, err)
	require.True(t, res.NotModified)
	assert.Equal(t, `"abc"`, res.ETag)
	assert.Equal(t, "lm", res.LastModified)
}

func TestFetchWithCache_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := New()
	_, err := f.FetchWithCache(context.Background(), srv.URL, "", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindUnexpectedStatus, domain.KindOf(err))
	assert.Contains(t, err.Error(), "410")
}

func TestFetchWithCache_InvalidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0x00, 0x41})
	}))
	defer srv.Close()

	f := New()
	_, err := f.FetchWithCache(context.Background(), srv.URL, "", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidUTF8, domain.KindOf(err))
}

func TestFetchWithCache_Gzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("compressed body"))
		_ = gz.Close()
	}))
	defer srv.Close()

	f := New()
	res, err := f.FetchWithCache(context.Background(), srv.URL, "", "")
	require.NoError(t, err)
	assert.Equal(t, "compressed body", res.Content)
}

func TestFetchWithCache_FollowsRedirects(t *testing.T) {
	var final string
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("moved here"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	final = srv.URL + "/new"

	f := New()
	res, err := f.FetchWithCache(context.Background(), srv.URL+"/old", "", "")
	require.NoError(t, err)
	assert.Equal(t, "moved here", res.Content)
	assert.Equal(t, final, res.FinalURL)
}

func TestFetchWithCache_Cancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New()
	_, err := f.FetchWithCache(ctx, srv.URL, "", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
}

func TestHeadMetadata_FallsBackToGet(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawGet = true
		w.Header().Set("ETag", `"h1"`)
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	f := New()
	info, err := f.HeadMetadata(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, sawGet)
	assert.Equal(t, 200, info.Status)
	assert.Equal(t, `"h1"`, info.ETag)
}

func TestCheckFlavors_PrefersFull(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/llms.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
	})
	mux.HandleFunc("/docs/llms-full.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5000")
	})
	mux.HandleFunc("/", http.NotFound)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New()
	flavors, err := f.CheckFlavors(context.Background(), srv.URL+"/docs/llms.txt")
	require.NoError(t, err)

	require.Len(t, flavors, 2)
	assert.Equal(t, "llms-full.txt", flavors[0].Name)
	assert.Equal(t, "llms.txt", flavors[1].Name)
	assert.Equal(t, srv.URL+"/docs/llms-full.txt", flavors[0].URL)
}

func TestFetch_HTMLConvertedToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h1>Title</h1><p>Hello</p></body></html>"))
	}))
	defer srv.Close()

	f := New()
	res, err := f.FetchWithCache(context.Background(), srv.URL, "", "")
	require.NoError(t, err)
	assert.Contains(t, res.Content, "# Title")
	assert.Contains(t, res.Content, "Hello")
}

func TestBaseURLOf(t *testing.T) {
	assert.Equal(t, "https://x.dev/docs", baseURLOf("https://x.dev/docs/llms.txt"))
	assert.Equal(t, "https://x.dev", baseURLOf("https://x.dev/llms.txt"))
	assert.Equal(t, "https://x.dev", baseURLOf("https://x.dev"))
}
