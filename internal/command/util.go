package command

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/stolasapp/recorrect/internal/config"
	"github.com/stolasapp/recorrect/internal/filetransform"
)

type configKey struct{}

// prompt reads a single line from in, echoing the prompt to errOut only when
// in is an interactive terminal.
func prompt(in io.Reader, errOut io.Writer, msg string) (string, error) {
	if isTerminal(in) {
		if _, err := io.WriteString(errOut, msg); err != nil {
			return "", err
		}
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTerminal(stream any) bool {
	file, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// newReporter prints file confirmations to out, with colors only on a
// terminal.
func newReporter(out io.Writer) *filetransform.Reporter {
	return filetransform.NewReporter(out,
		filetransform.DebugEnabled(),
		!color.NoColor && isTerminal(out),
	)
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-dev"
	}
	ver := "unknown"
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			ver = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if dirty {
		ver += "-dev"
	}
	return ver
}

func loadConfig(ctx context.Context) (*config.Config, *slog.Logger, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		return nil, nil, errors.New("config file resolution failed")
	}
	return cfg, slog.Default(), nil
}
