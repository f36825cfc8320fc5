// Package cmd implements the CLI commands for memmux.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/memmux/internal/config"
	"github.com/jmylchreest/memmux/internal/observability"
	"github.com/jmylchreest/memmux/internal/version"
)

// configKeyAnnotation marks a flag that overrides a configuration key.
const configKeyAnnotation = "memmux_config_key"

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile string
	// cfg is the loaded configuration, set before any command runs.
	cfg *config.Config
	// logger is the process logger, set before any command runs.
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "memmux",
	Short:   "In-memory audio remuxer and transcoder",
	Version: version.Short(),
	Long: `memmux converts audio between containers entirely in memory.

It reads WebM, Matroska, Ogg, MP4, MPEG-TS and WAV, picks the best audio
stream and rewraps it into the target container, transcoding when the
target cannot carry the source codec. Tags, cover art and a time window
can be applied on the way through.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set here to avoid an initialization cycle through rootCmd.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, /etc/memmux/config.yaml or $HOME/.memmux/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	bindConfigFlag(rootCmd.PersistentFlags(), "log-level", "logging.level")
	bindConfigFlag(rootCmd.PersistentFlags(), "log-format", "logging.format")
}

// bindConfigFlag marks flag name as the command line override for key.
func bindConfigFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", name, key, err))
	}
}

// configFlags collects the bound flags of cmd, inherited ones included.
func configFlags(cmd *cobra.Command) []config.LoadOption {
	var opts []config.LoadOption
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 {
			opts = append(opts, config.WithFlag(keys[0], f))
		}
	})
	return opts
}

// initConfig loads the configuration and installs the logger.
//
// Priority order (highest to lowest):
//  1. CLI flags, only when explicitly given
//  2. Environment variables (MEMMUX_LOGGING_LEVEL, ...)
//  3. Config file values
//  4. Built-in defaults
func initConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(cfgFile, configFlags(cmd)...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded

	logger = observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	return nil
}
