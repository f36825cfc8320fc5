package cmd

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/memmux/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing memmux configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  memmux config dump > config.yaml

Environment variables use the MEMMUX_ prefix and underscores for nesting.
Example: server.port -> MEMMUX_SERVER_PORT`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfig(cmd.OutOrStdout(), config.Defaults(), "All values shown below are defaults.")
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Show the configuration after applying the config file, environment variables and flags.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfig(cmd.OutOrStdout(), cfg, "Effective configuration.")
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
	configCmd.AddCommand(configShowCmd)
}

func writeConfig(w io.Writer, c *config.Config, note string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(w, "# memmux Configuration File")
	fmt.Fprintln(w, "# =========================")
	fmt.Fprintln(w, "#")
	fmt.Fprintf(w, "# %s\n", note)
	fmt.Fprintln(w, "# Duration format: 30s, 5m, 1h, 1d")
	fmt.Fprintln(w, "# Size format: 512KB, 256MB, 1GB")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "# Environment variable overrides:")
	for _, env := range envKeys(reflect.TypeOf(config.Config{}), "MEMMUX") {
		fmt.Fprintf(w, "#   %s\n", env)
	}
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w)
	_, err = w.Write(data)
	return err
}

// envKeys lists the environment variable for every leaf of t, following
// the mapstructure tags viper decodes with.
func envKeys(t reflect.Type, prefix string) []string {
	var out []string
	for i := range t.NumField() {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		name := prefix + "_" + strings.ToUpper(key)
		if field.Type.Kind() == reflect.Struct {
			out = append(out, envKeys(field.Type, name)...)
			continue
		}
		out = append(out, name)
	}
	return out
}
