// Package filetransform applies the unanchored rule to text files.
package filetransform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stolasapp/recorrect/internal/rule"
)

// ErrInputNotFound is returned when the input path does not exist. Nothing
// is read or written in that case.
var ErrInputNotFound = errors.New("input file does not exist")

// Rule is the rule applied to file contents.
var Rule = rule.Unanchored

// DebugEnv names the environment variable enabling per-line diagnostics.
const DebugEnv = "DEBUG_RECORRECT"

// DebugEnabled reports whether DebugEnv is set to a non-empty value.
func DebugEnabled() bool {
	return os.Getenv(DebugEnv) != ""
}

// Result describes a processed file.
type Result struct {
	Input       string
	Output      string
	Original    string
	Transformed string
	// Changed is true when the rule rewrote at least one match.
	Changed bool
	// Replacements counts the rewritten matches.
	Replacements int
	// Written is false only when an unchanged file was processed in place.
	Written bool
}

// Changes lists the lines that differ between Original and Transformed.
func (r Result) Changes() []LineChange {
	return DiffLines(r.Original, r.Transformed)
}

// LineChange is one rewritten line. Line is 1-based.
type LineChange struct {
	Line   int
	Before string
	After  string
}

// DiffLines compares before and after line by line. The rule never adds or
// removes newlines, so lines are paired by index.
func DiffLines(before, after string) []LineChange {
	if before == after {
		return nil
	}
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")
	var changes []LineChange
	for idx, line := range beforeLines {
		var other string
		if idx < len(afterLines) {
			other = afterLines[idx]
		}
		if line != other {
			changes = append(changes, LineChange{Line: idx + 1, Before: line, After: other})
		}
	}
	return changes
}

// Option configures Process.
type Option func(*options)

type options struct {
	reporter *Reporter
}

// WithReporter prints a confirmation (and optionally a diff) for every file
// that changed.
func WithReporter(reporter *Reporter) Option {
	return func(opts *options) { opts.reporter = reporter }
}

// Process rewrites the file at inputPath and writes the result to
// outputPath, or back to inputPath when outputPath is empty. An unchanged
// file processed in place is left untouched. A failed write is not rolled
// back.
func Process(inputPath, outputPath string, opts ...Option) (Result, error) {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	info, err := os.Stat(inputPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
	} else if err != nil {
		return Result{}, fmt.Errorf("failed to stat input file %s: %w", inputPath, err)
	}

	original, err := os.ReadFile(inputPath) //nolint:gosec // operator supplied path
	if err != nil {
		return Result{}, fmt.Errorf("failed to read input file %s: %w", inputPath, err)
	}

	res := Result{
		Input:       inputPath,
		Output:      outputPath,
		Original:    string(original),
		Transformed: string(original),
	}
	if res.Output == "" {
		res.Output = inputPath
	}
	if Rule.Match(res.Original) {
		res.Replacements = Rule.Count(res.Original)
		res.Transformed = Rule.Apply(res.Original)
		res.Changed = true
	}

	inPlace := filepath.Clean(res.Output) == filepath.Clean(inputPath)
	if res.Changed || !inPlace {
		if err = os.WriteFile(res.Output, []byte(res.Transformed), info.Mode().Perm()); err != nil {
			return res, fmt.Errorf("failed to write output file %s: %w", res.Output, err)
		}
		res.Written = true
	}

	if cfg.reporter != nil {
		cfg.reporter.Report(res)
	}
	return res, nil
}
