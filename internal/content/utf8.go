package content

import (
	"bytes"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

const utf8Charset = "utf-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// chardet guesses below this confidence keep the Windows-1252 fallback.
const minChardetConfidence = 50

// UTF8Transformer decodes upstream bytes so the rules see real letters
// rather than the bytes of a legacy charset. See decodeUTF8.
func UTF8Transformer(contentType string, logger *slog.Logger) TransformerFunc {
	return func(input []byte) ([]byte, error) {
		output, name, err := decodeUTF8(input, contentType, logger)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(name, utf8Charset) {
			logger.Debug("re-encoded content as UTF-8",
				slog.String("charset", name),
				slog.String("content_type", contentType),
			)
		}
		return output, nil
	}
}

// decodeUTF8 returns input as UTF-8 without a leading BOM, along with the
// name of the charset it was decoded from. The charset comes from the BOM,
// the content type parameter or an HTML meta declaration, in that order.
// Plain text without any of those is sniffed with chardet.
func decodeUTF8(input []byte, contentType string, logger *slog.Logger) ([]byte, string, error) {
	enc, name, certain := charset.DetermineEncoding(input, contentType)
	if !certain && isPlainText(contentType) {
		if sniffed, sniffedName := sniffCharset(input, logger); sniffed != nil {
			enc, name = sniffed, sniffedName
		}
	}
	if !certain {
		logger.Debug("charset detection uncertain",
			slog.String("charset", name),
			slog.String("content_type", contentType),
		)
	}

	output := input
	if enc != encoding.Nop && enc != unicode.UTF8 {
		var err error
		if output, err = enc.NewDecoder().Bytes(input); err != nil {
			return nil, name, fmt.Errorf("failed to decode %s content to UTF-8: %w", name, err)
		}
	}
	return bytes.TrimPrefix(output, utf8BOM), name, nil
}

func isPlainText(contentType string) bool {
	mimeType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mimeType == plainTextType
}

// sniffCharset statistically guesses the charset of plain text. It returns
// nil when the guess is weak or does not name a known encoding.
func sniffCharset(input []byte, logger *slog.Logger) (encoding.Encoding, string) {
	result, err := chardet.NewTextDetector().DetectBest(input)
	if err != nil || result.Confidence < minChardetConfidence {
		return nil, ""
	}
	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return nil, ""
	}
	logger.Debug("charset sniffed",
		slog.String("charset", result.Charset),
		slog.Int("confidence", result.Confidence),
	)
	return enc, result.Charset
}

// declareUTF8 points every meta charset declaration under node at UTF-8 and
// returns how many it changed. Rendered documents are always UTF-8, so a
// stale declaration would make a saved page decode wrongly.
func declareUTF8(node *html.Node) int {
	changed := 0
	if node.Type == html.ElementNode && node.DataAtom == atom.Meta {
		changed += declareMetaUTF8(node)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		changed += declareUTF8(child)
	}
	return changed
}

func declareMetaUTF8(meta *html.Node) int {
	var contentAttr *html.Attribute
	httpEquiv := false
	changed := 0
	for idx := range meta.Attr {
		attr := &meta.Attr[idx]
		switch attr.Key {
		case "charset":
			if !strings.EqualFold(strings.TrimSpace(attr.Val), utf8Charset) {
				attr.Val = utf8Charset
				changed++
			}
		case "http-equiv":
			httpEquiv = strings.EqualFold(strings.TrimSpace(attr.Val), "content-type")
		case "content":
			contentAttr = attr
		}
	}
	if !httpEquiv || contentAttr == nil {
		return changed
	}
	mimeType, params, err := mime.ParseMediaType(contentAttr.Val)
	if err != nil {
		return changed
	}
	if cs, ok := params["charset"]; !ok || strings.EqualFold(cs, utf8Charset) {
		return changed
	}
	params["charset"] = utf8Charset
	contentAttr.Val = mime.FormatMediaType(mimeType, params)
	return changed + 1
}
