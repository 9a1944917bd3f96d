package devservice

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/recorrect/internal/rule"
)

const testSeed uint64 = 12345

func get(t *testing.T, handler http.Handler, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequestWithContext(t.Context(), http.MethodGet, path, nil))
	return rec.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return string(body)
}

func TestService_Deterministic(t *testing.T) {
	t.Parallel()

	first, second := New(testSeed), New(testSeed)
	require.Equal(t, first.ArticlePaths(), second.ArticlePaths())
	for _, path := range first.ArticlePaths() {
		assert.Equal(t,
			readBody(t, get(t, first, path)),
			readBody(t, get(t, second, path)))
	}
}

func TestService_Root(t *testing.T) {
	t.Parallel()

	svc := New(testSeed)
	resp := get(t, svc, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	links := doc.Find("#articles a")
	assert.Equal(t, len(svc.ArticlePaths()), links.Length())
	links.Each(func(i int, sel *goquery.Selection) {
		assert.Equal(t, svc.ArticlePaths()[i], sel.AttrOr("href", ""))
	})
}

func TestService_Articles(t *testing.T) {
	t.Parallel()

	svc := New(testSeed)
	for _, path := range svc.ArticlePaths() {
		resp := get(t, svc, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		body := readBody(t, resp)
		assert.True(t, rule.Anchored.Match(body), "%s has no re-words", path)

		if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			assert.Contains(t, body, BodyScript)
			assert.Contains(t, body, NoScript)
			assert.Contains(t, body, HeadStyle)
		}
	}

	resp := get(t, svc, "/articles/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestService_Latin1(t *testing.T) {
	t.Parallel()

	resp := get(t, New(testSeed), "/latin1")
	assert.Equal(t, "text/html; charset=iso-8859-1", resp.Header.Get("Content-Type"))
	assert.Contains(t, readBody(t, resp), "caf\xe9 rebuild")
}
