package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/recorrect/internal/config"
	"github.com/stolasapp/recorrect/internal/fetch"
	"github.com/stolasapp/recorrect/internal/proxy/devservice"
	"github.com/stolasapp/recorrect/internal/rule"
)

const testSeed uint64 = 12345

type stubSource struct {
	mu      sync.Mutex
	targets []string
	page    fetch.Page
	err     error
}

func (s *stubSource) Fetch(_ context.Context, target string) (fetch.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, target)
	return s.page, s.err
}

func newTestProxy(t *testing.T) (*httptest.Server, *devservice.Service) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	svc := devservice.New(testSeed)
	upstream := httptest.NewServer(svc)
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.UpstreamURI = upstream.URL + "/"
	srv, err := New(cfg, logger, fetch.NewFetcher(cfg, logger))
	require.NoError(t, err)

	proxied := httptest.NewServer(srv)
	t.Cleanup(proxied.Close)
	return proxied, svc
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func TestProxy_Root(t *testing.T) {
	t.Parallel()

	proxied, _ := newTestProxy(t)
	resp, body := get(t, proxied.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	assert.Contains(t, body, devservice.BodyScript)
	assert.Contains(t, body, devservice.NoScript)
	assert.Contains(t, body, devservice.HeadStyle)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "Recent ReLeases", doc.Find("h1").Text())
	assert.Equal(t, "Recent releases", doc.Find("title").Text(), "head is not page copy")
	doc.Find("#articles a").Each(func(_ int, sel *goquery.Selection) {
		assert.False(t, rule.Anchored.Match(sel.Text()), sel.Text())
	})
}

func TestProxy_Articles(t *testing.T) {
	t.Parallel()

	proxied, svc := newTestProxy(t)
	for _, path := range svc.ArticlePaths() {
		resp, body := get(t, proxied.URL+path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		original := httptest.NewRecorder()
		svc.ServeHTTP(original, httptest.NewRequestWithContext(t.Context(), http.MethodGet, path, nil))

		if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
			assert.Equal(t, rule.Anchored.Apply(original.Body.String()), body, path)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		require.NoError(t, err)
		copyText := doc.Find("h1, article").Text()
		assert.NotEmpty(t, copyText)
		assert.False(t, rule.Anchored.Match(copyText), "%s still has lowercase re-words", path)
		assert.Contains(t, body, devservice.BodyScript)
	}
}

func TestProxy_PassesThrough(t *testing.T) {
	t.Parallel()

	proxied, _ := newTestProxy(t)

	t.Run("stylesheet", func(t *testing.T) {
		t.Parallel()
		resp, body := get(t, proxied.URL+"/site.css")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/css; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, ".reveal { display: block }", body)
	})

	t.Run("upstream status", func(t *testing.T) {
		t.Parallel()
		resp, _ := get(t, proxied.URL+"/articles/nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("legacy charset", func(t *testing.T) {
		t.Parallel()
		resp, body := get(t, proxied.URL+"/latin1")
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, "<p>café ReBuild</p>")
	})
}

func TestProxy_UpstreamFailure(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.UpstreamURI = "http://upstream.invalid/"
	srv, err := New(cfg, slog.New(slog.DiscardHandler), &stubSource{err: errors.New("boom")})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestProxy_UntransformableContent(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.UpstreamURI = "http://upstream.invalid/"
	source := &stubSource{page: fetch.Page{
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset",
		Body:        []byte("<p>rebuild</p>"),
	}}
	srv, err := New(cfg, slog.New(slog.DiscardHandler), source)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>rebuild</p>", rec.Body.String())
}

func TestProxy_UpstreamURL(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.UpstreamURI = "https://upstream.example/base/"
	source := &stubSource{page: fetch.Page{StatusCode: http.StatusOK, ContentType: "text/plain"}}
	srv, err := New(cfg, slog.New(slog.DiscardHandler), source)
	require.NoError(t, err)

	for _, path := range []string{"/", "/a/b?x=1&y=two"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequestWithContext(t.Context(), http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{
		"https://upstream.example/base/",
		"https://upstream.example/base/a/b?x=1&y=two",
	}, source.targets)
}

func TestProxy_Health(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.UpstreamURI = "http://upstream.invalid/"
	source := &stubSource{}
	srv, err := New(cfg, slog.New(slog.DiscardHandler), source)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Empty(t, source.targets)
}

func TestNew_RequiresUpstream(t *testing.T) {
	t.Parallel()

	_, err := New(config.Default(), slog.New(slog.DiscardHandler), &stubSource{})
	require.ErrorContains(t, err, "upstream_uri must be set")

	cfg := config.Default()
	cfg.UpstreamURI = "relative/path"
	_, err = New(cfg, slog.New(slog.DiscardHandler), &stubSource{})
	require.ErrorContains(t, err, "must have a scheme")
}
