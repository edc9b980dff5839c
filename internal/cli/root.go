package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thecopy-and-thepaste/DA/internal/config"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
	"github.com/thecopy-and-thepaste/DA/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the da CLI.
// It loads configuration, applies the worker and batch counts, wires up
// logging and registers the config and cache command groups.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "da",
		Short:         "Data acquisition utilities",
		Long:          "da: batch processing and document caching for biodiversity data pipelines",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			config.SetGlobalConfig(cfg)

			result := setupLogging(cmd, cfg)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file (default $DA_CONFIG or ~/.da/config.yaml)")
	cmd.PersistentFlags().Int("workers", 0, "worker pool size (0 = config or CPUs-1)")
	cmd.PersistentFlags().Int("batches", 0, "number of batches (0 = config or CPUs-1)")
	cmd.AddCommand(newConfigCmd(), newCacheCmd())

	return cmd
}

const rootCmdExample = `  # Show the effective configuration
  da config show --output json

  # Write a default configuration file
  da config init

  # Check that the cache store is reachable
  da cache ping

  # Cache every record of a JSON lines file, keyed by its "id" field
  da cache warm taxa --file taxa.jsonl --key-field id --workers 8

  # Read one cached document
  da cache get taxa 2878688`

// Execute runs cmd and then closes the shared cache connection, whether or
// not the command succeeded.
func Execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if closeErr := cache.ResetShared(context.WithoutCancel(ctx)); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("closing cache connection: %w", closeErr))
	}
	return err
}

// loadConfig reads the config file and environment, then applies the
// persistent flag overrides and the process settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	overrides := []struct {
		flag string
		dst  *int
	}{
		{flag: "workers", dst: &cfg.Process.NumWorkers},
		{flag: "batches", dst: &cfg.Process.NumBatches},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.flag) {
			continue
		}
		v, _ := cmd.Flags().GetInt(o.flag)
		if v < 1 {
			return nil, fmt.Errorf("--%s=%d: %w", o.flag, v, config.ErrInvalidProcessValue)
		}
		*o.dst = v
	}

	config.Process().Reset()
	if err := cfg.Process.Apply(config.Process()); err != nil {
		return nil, err
	}

	return cfg, nil
}
