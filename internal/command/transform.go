package command

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolasapp/recorrect/internal/filetransform"
)

func transformCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transform INPUT [OUTPUT]",
		Short: "Apply ReCorReCt transformations to a text file",
		Long: "Rewrites every \"re\" followed by a letter in INPUT, anywhere in a word, to \"Re\"\n" +
			"and the uppercased letter. The result is written to OUTPUT, or back to INPUT\n" +
			"when OUTPUT is omitted; an unchanged file is never rewritten in place.\n" +
			"Set " + filetransform.DebugEnv + " to list every changed line.",
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // input and optional output
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			var output string
			if len(args) > 1 {
				output = args[1]
			}
			res, err := filetransform.Process(args[0], output,
				filetransform.WithReporter(newReporter(cmd.OutOrStdout())),
			)
			if err != nil {
				return err
			}

			logger.DebugContext(cmd.Context(), "processed file",
				slog.String("input", res.Input),
				slog.String("output", res.Output),
				slog.String("rule", filetransform.Rule.Name()),
				slog.Int("replacements", res.Replacements),
				slog.Bool("changed", res.Changed),
				slog.Bool("written", res.Written),
			)
			return nil
		},
	}
}
