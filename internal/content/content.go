// Package content rewrites whole documents: HTML through the in-page
// transformer, plain text through the anchored rule.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"mime"

	"github.com/stolasapp/recorrect/internal/rule"
)

// Media types with a rewrite pipeline.
const (
	htmlType      = "text/html"
	xhtmlType     = "application/xhtml+xml"
	plainTextType = "text/plain"
)

// Kind is the pipeline selected for a media type.
type Kind int

// Pipelines.
const (
	// Passthrough content is returned untouched.
	Passthrough Kind = iota
	// HTML content is rewritten through a hosted document.
	HTML
	// PlainText content is rewritten with the anchored rule, as a browser
	// shows it inside the page body.
	PlainText
)

// Classify selects the pipeline for a Content-Type header value. An empty
// content type is treated as HTML, matching how a browser renders it.
func Classify(contentType string) (Kind, error) {
	if contentType == "" {
		return HTML, nil
	}
	mimeType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Passthrough, fmt.Errorf("failed to parse content mime type %q: %w", contentType, err)
	}
	switch mimeType {
	case htmlType, xhtmlType:
		return HTML, nil
	case plainTextType:
		return PlainText, nil
	default:
		return Passthrough, nil
	}
}

// Transform rewrites input according to its content type. It returns the
// rewritten content and the content type to serve it with: text is always
// re-encoded as UTF-8, anything else keeps its original type.
func Transform(
	ctx context.Context,
	logger *slog.Logger,
	contentType string,
	input []byte,
) ([]byte, string, error) {
	kind, err := Classify(contentType)
	if err != nil {
		return nil, "", err
	}

	var pipeline TransformerFunc
	outputType := htmlType
	switch kind {
	case HTML:
		pipeline = Chain(
			UTF8Transformer(contentType, logger),
			RecapitalizeHTML(ctx, logger),
		)
		if mimeType, _, _ := mime.ParseMediaType(contentType); mimeType == xhtmlType {
			outputType = xhtmlType
		}
	case PlainText:
		pipeline = Chain(
			UTF8Transformer(contentType, logger),
			RecapitalizeText(rule.Anchored),
		)
		outputType = plainTextType
	default:
		return input, contentType, nil
	}

	output, err := pipeline(input)
	if err != nil {
		return nil, "", err
	}
	return output, mime.FormatMediaType(outputType, map[string]string{"charset": "utf-8"}), nil
}
