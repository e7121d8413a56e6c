package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// configKeys maps each settable key to the parser that checks its value.
var configKeys = map[string]func(string) (any, error){
	"db.path":              parseText,
	"search.workers":       parsePositive,
	"search.store_timeout": parseDuration,
	"search.max_results":   parsePositive,
	"search.page_size":     parsePositive,
	"log.level":            parseLevel,
	"log.format":           parseOneOf("console", "json"),
	"metrics.textfile":     parseText,
}

func parseText(s string) (any, error) { return s, nil }

func parsePositive(s string) (any, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("want a positive integer, got %q", s)
	}
	return n, nil
}

// parseDuration keeps the text form; viper parses it on read.
func parseDuration(s string) (any, error) {
	if _, err := time.ParseDuration(s); err != nil {
		return nil, err
	}
	return s, nil
}

func parseLevel(s string) (any, error) {
	if _, err := zapcore.ParseLevel(s); err != nil {
		return nil, err
	}
	return s, nil
}

func parseOneOf(allowed ...string) func(string) (any, error) {
	return func(s string) (any, error) {
		if !slices.Contains(allowed, s) {
			return nil, fmt.Errorf("want one of %s, got %q", strings.Join(allowed, ", "), s)
		}
		return s, nil
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage featureindex configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.featureindex.yaml
unless --config names another file. Settable keys:
  ` + strings.Join(sortedConfigKeys(), "\n  "),
		Example: `  featureindex config                               # show all config
  featureindex config set search.store_timeout 10s  # shorten the per-file deadline
  featureindex config get db.path                   # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func runConfigShow(w io.Writer) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "# %s\n", used)
	}
	_, err = w.Write(out)
	return err
}

// runConfigSet writes one key to the config file. Only what the file already
// holds is rewritten; flag, environment and default values stay out of it.
func runConfigSet(w io.Writer, key, value string) error {
	parse, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", errUsage, key)
	}
	v, err := parse(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, key, err)
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".featureindex.yaml")
	}

	file := viper.New()
	file.SetConfigFile(cfgFile)
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}
	file.Set(key, v)
	if err := file.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	viper.Set(key, v)

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	if _, ok := configKeys[key]; !ok {
		return fmt.Errorf("%w: unknown config key %q", errUsage, key)
	}
	fmt.Fprintln(w, viper.Get(key))
	return nil
}
