package filetransform

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
)

// Reporter prints operator-facing messages for processed files. It is safe
// for concurrent use.
type Reporter struct {
	out  io.Writer
	diff bool

	mu    sync.Mutex
	check *color.Color
	label *color.Color
}

// NewReporter creates a Reporter writing to out. With diff set, every
// changed line is listed after the confirmation.
func NewReporter(out io.Writer, diff, colorize bool) *Reporter {
	check := color.New(color.FgGreen, color.Bold)
	label := color.New(color.Faint)
	if colorize {
		check.EnableColor()
		label.EnableColor()
	} else {
		check.DisableColor()
		label.DisableColor()
	}
	return &Reporter{
		out:   out,
		diff:  diff,
		check: check,
		label: label,
	}
}

// Report prints the confirmation for a changed file. Unchanged files are
// silent.
func (r *Reporter) Report(res Result) {
	if !res.Changed {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "%s Applied ReCorReCt transformations to: %s\n",
		r.check.Sprint("✓"), filepath.Base(res.Output))
	if !r.diff {
		return
	}
	for _, change := range res.Changes() {
		_, _ = fmt.Fprintf(r.out, "  %s \"%s\" → \"%s\"\n",
			r.label.Sprintf("Line %d:", change.Line), change.Before, change.After)
	}
}
