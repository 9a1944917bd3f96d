package command

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolasapp/recorrect/internal/filetransform"
)

func sweepCommand() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "sweep PATTERN...",
		Short: "Apply ReCorReCt transformations in place to every matching file",
		Long: "Expands each doublestar PATTERN (e.g. \"docs/**/*.md\") relative to --root and\n" +
			"transforms every matching regular file in place. Failures are reported\n" +
			"together once every file has been processed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			results, err := filetransform.Sweep(cmd.Context(), root, args,
				filetransform.WithReporter(newReporter(cmd.OutOrStdout())),
			)
			if results == nil && err != nil {
				return err
			} else if len(results) == 0 {
				logger.WarnContext(cmd.Context(), "no files matched",
					slog.String("root", root),
					slog.Any("patterns", args),
				)
				return nil
			}

			changed := 0
			for _, res := range results {
				if res.Changed {
					changed++
				}
			}
			logger.InfoContext(cmd.Context(), "sweep complete",
				slog.Int("files", len(results)),
				slog.Int("changed", changed),
			)
			return err
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "directory the patterns are relative to")
	return cmd
}
