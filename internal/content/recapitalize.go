package content

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/stolasapp/recorrect/internal/dom"
	"github.com/stolasapp/recorrect/internal/inpage"
	"github.com/stolasapp/recorrect/internal/rule"
)

// RecapitalizeText applies r to the whole input.
func RecapitalizeText(r rule.Rule) TransformerFunc {
	return func(input []byte) ([]byte, error) {
		return r.ApplyBytes(input), nil
	}
}

// RecapitalizeHTML hosts the input as a document, installs the in-page
// transformer, runs the document through its full lifecycle and renders the
// result. Script, style and noscript content is left as is. Meta charset
// declarations are updated to match the UTF-8 output.
func RecapitalizeHTML(ctx context.Context, logger *slog.Logger) TransformerFunc {
	return func(input []byte) ([]byte, error) {
		doc, err := dom.Parse(bytes.NewReader(input))
		if err != nil {
			return nil, err
		}
		defer doc.Unload()

		if declared := declareUTF8(doc.Root()); declared > 0 {
			logger.Debug("updated charset declarations", slog.Int("count", declared))
		}
		inpage.Install(doc, logger)
		doc.FinishLoading()
		if err = doc.Settle(ctx); err != nil {
			return nil, fmt.Errorf("failed to settle document: %w", err)
		}

		var out bytes.Buffer
		if err = doc.Render(&out); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}
}
