package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stolasapp/recorrect/internal/config"
)

func initCommand(configFilePath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Long: "Writes the default configuration to the --config path, prompting for the\n" +
			"upstream site the proxy should rewrite. An existing file is kept unless\n" +
			"--force is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := *configFilePath
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists at %s", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			upstream, err := prompt(cmd.InOrStdin(), cmd.ErrOrStderr(),
				"Enter the upstream URL to proxy (blank for none): ")
			if err != nil {
				return err
			}

			cfg := config.Default()
			cfg.UpstreamURI = upstream
			if err = cfg.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config to YAML: %w", err)
			}
			if err = os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:mnd // owner and group access
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err = os.WriteFile(path, data, 0o600); err != nil { //nolint:mnd // owner rw access
				return fmt.Errorf("failed to write config file to %s: %w", path, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return cmd
}
