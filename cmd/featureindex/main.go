// Package main provides the featureindex command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/featureindex/internal/filter"
	"github.com/inodb/featureindex/internal/search"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if errors.Is(err, filter.ErrInvalidFilter) || errors.Is(err, filter.ErrUnknownField) ||
		errors.Is(err, search.ErrEmptyScope) || errors.Is(err, errUsage) {
		return ExitUsage
	}
	return ExitError
}

var errUsage = errors.New("usage")

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "featureindex",
		Short: "Index VCF and gene annotation files and query them",
		Long: `featureindex indexes variant (VCF, MAF) and gene annotation (GTF/GFF3) files and
answers filtered, paginated, grouped and cross-file queries over them.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ~/.featureindex.yaml)")
	flags.String("db", "", "Index database path (default: ~/.featureindex/index.duckdb)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console, json")
	viper.BindPFlag("db.path", flags.Lookup("db"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newIndexCmd(),
		newRemoveCmd(),
		newFilesCmd(),
		newProjectCmd(),
		newFilterCmd(),
		newGroupCmd(),
		newSearchCmd(),
		newGenesCmd(),
		newCatalogCmd(),
		newDownloadCmd(),
		newConfigCmd(),
	)
	return root
}

// initConfig reads the config file and environment.
func initConfig(cmd *cobra.Command, cfgFile string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	viper.SetDefault("db.path", filepath.Join(home, ".featureindex", "index.duckdb"))
	viper.SetDefault("search.workers", runtime.NumCPU())
	viper.SetDefault("search.store_timeout", "30s")
	viper.SetDefault("search.max_results", 100)
	viper.SetDefault("search.page_size", 50)
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("metrics.textfile", "")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(".featureindex")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("FEATUREINDEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// newLogger builds the logger from log.level and log.format. Logs go to
// stderr so they never mix with query output.
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var cfg zap.Config
	switch viper.GetString("log.format") {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", viper.GetString("log.format"))
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// searchConfig maps the search.* keys onto the engine config.
func searchConfig() search.Config {
	return search.Config{
		Workers:      viper.GetInt("search.workers"),
		StoreTimeout: viper.GetDuration("search.store_timeout"),
		MaxResults:   viper.GetInt("search.max_results"),
		PageSize:     viper.GetInt("search.page_size"),
	}
}
