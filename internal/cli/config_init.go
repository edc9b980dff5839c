package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thecopy-and-thepaste/DA/internal/config"
)

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd())
	return cmd
}

// NewConfigInitCmd creates the config init command for initializing configuration.
func NewConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a configuration file with default values at the path given by
--config, $DA_CONFIG, or $DA_HOME/config.yaml (default ~/.da/config.yaml).

The current effective cache connection string is written too, so running
init with CACHR_DB_CONNECTION set records it in the file.`,
		Example: `  # Create configuration
  da config init

  # Create configuration, overwriting existing
  da config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if path == "" {
		return errors.New("cannot determine configuration path, set --config or " + config.EnvConfigFile)
	}

	cfg := config.Default()
	cfg.Cache.URI = config.GetGlobalConfig().Cache.URI

	if err := config.WriteDefault(path, cfg, force); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w, use --force to overwrite", err)
		}
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", path)

	return nil
}
