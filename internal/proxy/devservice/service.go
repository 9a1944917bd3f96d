// Package devservice provides a fake upstream HTTP server for development and
// testing. Its pages mix visible copy full of re-words with inline scripts,
// styles and noscript blocks that must survive a rewrite untouched.
package devservice

import (
	"fmt"
	"html"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/text/encoding/charmap"
)

// Corpus generation constants.
const (
	minArticles      = 8
	maxExtraArticles = 8 // 8-15 articles total
)

// Fixed markup shared by every HTML page. The rewrite must leave these
// untouched byte for byte.
const (
	HeadStyle  = `<style>.reset { margin: 0 }</style>`
	BodyScript = `<script>function refresh() { return "reload"; }</script>`
	NoScript   = `<noscript>remember to enable scripts</noscript>`
)

// Element IDs of the generated pages.
const (
	IDArticleList = "articles"
	IDStatic      = "static"
	IDFeed        = "feed"
	IDLate        = "late"
)

// Seed returns the dev service seed from the DEV_SERVICE_SEED environment
// variable, or a random value if not set.
func Seed() uint64 {
	if env := os.Getenv("DEV_SERVICE_SEED"); env != "" {
		if seed, err := strconv.ParseUint(env, 10, 64); err == nil {
			return seed
		}
	}
	return rand.Uint64() //nolint:gosec // intentionally weak random for test data
}

type article struct {
	slug        string
	title       string
	updateTime  time.Time
	content     string
	isPlainText bool
}

// Service is an HTTP server that serves fake pages for the rewriting proxy.
type Service struct {
	mux      *http.ServeMux
	articles []article
}

// New creates a new dev service with a seeded random corpus.
func New(seed uint64) *Service {
	faker := gofakeit.New(seed)
	svc := &Service{mux: http.NewServeMux()}
	svc.generateCorpus(faker)
	svc.registerRoutes()
	return svc
}

// ServeHTTP satisfies [http.Handler].
func (s *Service) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	s.mux.ServeHTTP(writer, request)
}

// ArticlePaths lists the path of every generated article.
func (s *Service) ArticlePaths() []string {
	paths := make([]string, len(s.articles))
	for i, art := range s.articles {
		paths[i] = "/articles/" + art.slug
	}
	return paths
}

func (s *Service) generateCorpus(faker *gofakeit.Faker) {
	numArticles := minArticles + faker.IntN(maxExtraArticles)
	s.articles = make([]article, numArticles)
	for i := range numArticles {
		content, isPlainText := generateContent(faker)
		s.articles[i] = article{
			slug:  fmt.Sprintf("article-%d", i+1),
			title: generateTitle(faker),
			updateTime: faker.DateRange(
				time.Now().AddDate(-1, 0, 0),
				time.Now(),
			),
			content:     content,
			isPlainText: isPlainText,
		}
	}
}

func (s *Service) registerRoutes() {
	// Root page - list of articles
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	// Article page - HTML or plain text
	s.mux.HandleFunc("GET /articles/{article}", s.handleArticle)

	// Page whose copy is only inserted by script at runtime
	s.mux.HandleFunc("GET /dynamic", s.handleDynamic)

	// Page served in a legacy charset
	s.mux.HandleFunc("GET /latin1", s.handleLatin1)

	// Non-text asset that must pass through
	s.mux.HandleFunc("GET /site.css", s.handleStylesheet)
}

func (s *Service) handleRoot(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.Header().Set("Last-Modified", time.Now().Format(time.RFC1123))

	writeString(writer, `<!DOCTYPE html><html><head><title>Recent releases</title>`+HeadStyle+`</head><body>`)
	writef(writer, `<h1>Recent releases</h1><ul id="%s">`, IDArticleList)
	for _, art := range s.articles {
		writef(writer, `<li><a href="/articles/%s">%s</a></li>`, art.slug, html.EscapeString(art.title))
	}
	writeString(writer, `</ul>`+BodyScript+NoScript+`</body></html>`)
}

func (s *Service) handleArticle(writer http.ResponseWriter, request *http.Request) {
	slug := request.PathValue("article")

	var art *article
	for i := range s.articles {
		if s.articles[i].slug == slug {
			art = &s.articles[i]
			break
		}
	}
	if art == nil {
		http.NotFound(writer, request)
		return
	}

	writer.Header().Set("Last-Modified", art.updateTime.Format(time.RFC1123))
	if art.isPlainText {
		writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeString(writer, art.content)
		return
	}
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writef(writer,
		`<!DOCTYPE html><html><head><title>%s</title>%s<link rel="stylesheet" href="/site.css"></head>`+
			`<body><h1>%s</h1><article>%s</article>%s%s</body></html>`,
		html.EscapeString(art.title), HeadStyle,
		html.EscapeString(art.title), art.content, BodyScript, NoScript)
}

func (s *Service) handleDynamic(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writef(writer, `<!DOCTYPE html><html><head><title>Live feed</title></head><body>`+
		`<p id="%[1]s">read the release notes</p><div id="%[2]s"></div>`+
		`<script>document.getElementById("%[2]s").insertAdjacentHTML("beforeend", `+
		`"<p id=\"%[3]s\">remember to refresh</p>");</script>`+
		`</body></html>`, IDStatic, IDFeed, IDLate)
}

func (s *Service) handleLatin1(writer http.ResponseWriter, _ *http.Request) {
	body, err := charmap.ISO8859_1.NewEncoder().String(
		`<!DOCTYPE html><html><head><title>Café</title></head><body><p>café rebuild</p></body></html>`)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	writer.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
	writeString(writer, body)
}

func (s *Service) handleStylesheet(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "text/css; charset=utf-8")
	writeString(writer, `.reveal { display: block }`)
}

// writeString writes a string to the writer, discarding any error.
// Errors are ignored since this is test/dev infrastructure where write failures
// are unrecoverable and will manifest as test failures anyway.
func writeString(writer io.Writer, str string) {
	_, _ = io.WriteString(writer, str)
}

// writef writes a formatted string to the writer, discarding any error.
// See writeString for rationale on discarded errors.
func writef(writer io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(writer, format, args...)
}
