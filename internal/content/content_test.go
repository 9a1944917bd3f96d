package content

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/recorrect/internal/rule"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        Kind
		wantErr     bool
	}{
		{contentType: "", want: HTML},
		{contentType: "text/html", want: HTML},
		{contentType: "TEXT/HTML; charset=ISO-8859-1", want: HTML},
		{contentType: "application/xhtml+xml", want: HTML},
		{contentType: "text/plain; charset=utf-8", want: PlainText},
		{contentType: "image/png", want: Passthrough},
		{contentType: "application/javascript", want: Passthrough},
		{contentType: "text/css", want: Passthrough},
		{contentType: "text/html; charset", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.contentType, func(t *testing.T) {
			t.Parallel()
			got, err := Classify(test.contentType)
			if test.wantErr {
				require.ErrorContains(t, err, "failed to parse content mime type")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestTransform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		input       string
		wantType    string
		want        string
	}{
		{
			name:        "html rewrites body text only",
			contentType: "text/html",
			input:       `<html><head><title>recap</title></head><body><p>rebuild the report</p><script>return reassign</script></body></html>`,
			wantType:    "text/html; charset=utf-8",
			want:        `<html><head><title>recap</title></head><body><p>ReBuild the RePort</p><script>return reassign</script></body></html>`,
		},
		{
			name:        "html fragment gains document structure",
			contentType: "text/html; charset=utf-8",
			input:       `<p>we need to rename the reviewer</p>`,
			wantType:    "text/html; charset=utf-8",
			want:        `<html><head></head><body><p>we need to ReName the ReViewer</p></body></html>`,
		},
		{
			name:        "plain text uses the anchored rule",
			contentType: "text/plain",
			input:       "prepare report",
			wantType:    "text/plain; charset=utf-8",
			want:        "prepare RePort",
		},
		{
			name:        "xhtml keeps its type",
			contentType: "application/xhtml+xml",
			input:       `<p>reopen</p>`,
			wantType:    "application/xhtml+xml; charset=utf-8",
			want:        `<html><head></head><body><p>ReOpen</p></body></html>`,
		},
		{
			name:        "other types pass through",
			contentType: "text/css",
			input:       ".reset { margin: 0 }",
			wantType:    "text/css",
			want:        ".reset { margin: 0 }",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, gotType, err := Transform(t.Context(), discardLogger(), test.contentType, []byte(test.input))
			require.NoError(t, err)
			assert.Equal(t, test.wantType, gotType)
			assert.Equal(t, test.want, string(got))
		})
	}
}

func TestTransform_DecodesCharset(t *testing.T) {
	t.Parallel()

	// ISO-8859-1 "café rebuild"
	input := []byte{'<', 'p', '>', 'c', 'a', 'f', 0xe9, ' ', 'r', 'e', 'b', 'u', 'i', 'l', 'd', '<', '/', 'p', '>'}
	got, gotType, err := Transform(t.Context(), discardLogger(), "text/html; charset=iso-8859-1", input)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", gotType)
	assert.Contains(t, string(got), "<p>café ReBuild</p>")
}

func TestTransform_InvalidContentType(t *testing.T) {
	t.Parallel()

	_, _, err := Transform(t.Context(), discardLogger(), "text/html; charset", []byte("<p>x</p>"))
	require.Error(t, err)
}

func TestRecapitalizeText(t *testing.T) {
	t.Parallel()

	anchored := RecapitalizeText(rule.Anchored)
	unanchored := RecapitalizeText(rule.Unanchored)

	got, err := anchored([]byte("prepare report"))
	require.NoError(t, err)
	assert.Equal(t, "prepare RePort", string(got))

	got, err = unanchored([]byte("prepare report"))
	require.NoError(t, err)
	assert.Equal(t, "pRePare RePort", string(got))
}

func TestChain(t *testing.T) {
	t.Parallel()

	upper := RecapitalizeText(rule.Unanchored)
	prefix := TransformerFunc(func(input []byte) ([]byte, error) {
		return append([]byte("re"), input...), nil
	})
	failing := TransformerFunc(func([]byte) ([]byte, error) { return nil, errors.New("boom") })

	got, err := Chain(prefix, upper)([]byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, "ReFReSh", string(got))

	got, err = Chain(upper, prefix)([]byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, "refresh", string(got))

	got, err = Chain(upper, upper)([]byte("refresh"))
	require.NoError(t, err)
	assert.Equal(t, "ReFReSh", string(got))

	got, err = Chain(upper, failing, upper)([]byte("refresh"))
	require.EqualError(t, err, "boom")
	assert.Nil(t, got)
}

func TestRecapitalizeHTML_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	// a canceled context only matters if deliveries are still pending, so
	// the result is either the rewritten page or the context error
	got, err := RecapitalizeHTML(ctx, discardLogger())([]byte(`<p>retry</p>`))
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
		return
	}
	assert.Contains(t, string(got), "ReTry")
}
