package command

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/stolasapp/recorrect/internal/config"
	"github.com/stolasapp/recorrect/internal/content"
	"github.com/stolasapp/recorrect/internal/fetch"
)

func pageCommand() *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "page SOURCE [OUTPUT]",
		Short: "Apply ReCorReCt transformations to the visible text of a web page",
		Long: "Loads SOURCE (a local file or an http(s) URL) as a document and rewrites every\n" +
			"\"re\" that starts a word in its visible text, leaving scripts, styles and\n" +
			"noscript blocks untouched. With --render, the page is loaded in a headless\n" +
			"browser first so script-inserted text is rewritten too. The result is\n" +
			"written to OUTPUT, or stdout when OUTPUT is omitted.",
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // source and optional output
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			page, err := loadPage(cmd.Context(), cfg, logger, args[0], render)
			if err != nil {
				return err
			}
			output, contentType, err := content.Transform(cmd.Context(), logger, page.ContentType, page.Body)
			if err != nil {
				return fmt.Errorf("failed to rewrite %s: %w", args[0], err)
			}

			logger.InfoContext(cmd.Context(), "rewrote page",
				slog.String("source", page.URL),
				slog.String("title", pageTitle(contentType, output)),
				slog.String("content_type", contentType),
				slog.Int("bytes", len(output)),
			)

			if len(args) > 1 {
				if err = os.WriteFile(args[1], output, 0o644); err != nil { //nolint:gosec,mnd // rendered page is public
					return fmt.Errorf("failed to write output file %s: %w", args[1], err)
				}
				return nil
			}
			_, err = cmd.OutOrStdout().Write(output)
			return err
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "load the page in a headless browser before rewriting")
	return cmd
}

func loadPage(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	source string,
	render bool,
) (fetch.Page, error) {
	target, remote := remoteURL(source)
	if !remote && !render {
		return readLocalPage(source)
	}
	if !remote {
		abs, err := filepath.Abs(source)
		if err != nil {
			return fetch.Page{}, err
		}
		if _, err = os.Stat(abs); err != nil {
			return fetch.Page{}, fmt.Errorf("failed to read input file %s: %w", source, err)
		}
		target = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}

	var src fetch.Source = fetch.NewFetcher(cfg, logger)
	if render {
		src = fetch.NewRenderer(cfg, logger)
	}
	page, err := src.Fetch(ctx, target)
	if err != nil {
		return fetch.Page{}, err
	}
	if page.StatusCode < http.StatusOK || page.StatusCode >= http.StatusMultipleChoices {
		return fetch.Page{}, fmt.Errorf("failed to fetch %s: upstream returned %d %s",
			target, page.StatusCode, http.StatusText(page.StatusCode))
	}
	return page, nil
}

func remoteURL(source string) (string, bool) {
	addr, err := url.Parse(source)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(addr.Scheme) {
	case "http", "https":
		return addr.String(), true
	default:
		return "", false
	}
}

func readLocalPage(path string) (fetch.Page, error) {
	body, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return fetch.Page{}, fmt.Errorf("failed to read input file %s: %w", path, err)
	}
	// unknown extensions are treated as HTML
	return fetch.Page{
		URL:         path,
		StatusCode:  http.StatusOK,
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Body:        body,
	}, nil
}

func pageTitle(contentType string, body []byte) string {
	if kind, err := content.Classify(contentType); err != nil || kind != content.HTML {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
