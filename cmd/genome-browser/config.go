package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage genome-browser configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/" + configFileName + ".",
		Example: `  genome-browser config                                # show effective config
  genome-browser config set oracle.model gpt-4o            # pick the chat model
  genome-browser config set discovery.cycle_delay 5s       # slow down discovery
  genome-browser config get snpedia.request_delay          # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigShow(cmd)
		},
	}

	cmd.AddCommand(a.newConfigSetCmd())
	cmd.AddCommand(a.newConfigGetCmd())

	return cmd
}

func (a *app) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigSet(cmd, args[0], args[1])
		},
	}
}

func (a *app) newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigGet(cmd, args[0])
		},
	}
}

func (a *app) runConfigShow(cmd *cobra.Command) error {
	settings := a.v.AllSettings()
	if o, ok := settings["oracle"].(map[string]any); ok {
		if key, ok := o["api_key"].(string); ok {
			o["api_key"] = redact(key)
		}
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# Config file: %s\n%s", a.configPath(), out)
	return nil
}

// configPath is the file config set writes to.
func (a *app) configPath() string {
	if f := a.v.ConfigFileUsed(); f != "" {
		return f
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}

func (a *app) runConfigSet(cmd *cobra.Command, key, value string) error {
	if !slices.Contains(a.v.AllKeys(), key) {
		return usagef("unknown config key %q", key)
	}
	parsed := parseConfigValue(value)

	// Write through a viper that only sees the file, so defaults and
	// environment values are not persisted.
	cfgFile := a.configPath()
	fv := viper.New()
	fv.SetConfigFile(cfgFile)
	fv.SetConfigType("yaml")
	if err := fv.ReadInConfig(); err != nil && !isNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	fv.Set(key, parsed)

	if err := os.MkdirAll(filepath.Dir(cfgFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := fv.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	a.v.Set(key, parsed)

	shown := value
	if key == "oracle.api_key" {
		shown = redact(value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, shown, cfgFile)
	return nil
}

// parseConfigValue maps boolean-like and numeric strings to typed values.
// Durations such as "5s" stay strings; the settings decoder parses them.
func parseConfigValue(value string) any {
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func (a *app) runConfigGet(cmd *cobra.Command, key string) error {
	if !a.v.IsSet(key) && !slices.Contains(a.v.AllKeys(), key) {
		return fmt.Errorf("key %q is not set", key)
	}
	val := a.v.Get(key)
	if key == "oracle.api_key" {
		val = redact(a.v.GetString(key))
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
