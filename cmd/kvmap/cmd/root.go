// Package cmd implements the kvmap command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/kvmap/internal/config"
	"github.com/MeKo-Tech/kvmap/internal/version"
)

// configKeyAnnotation marks a flag as an override of a configuration key.
const configKeyAnnotation = "kvmap/config-key"

// app is the state shared by one command tree.
type app struct {
	v       *viper.Viper
	loader  *config.Loader
	cfg     *config.Config
	cfgFile string
	logger  *slog.Logger
}

// NewRootCommand builds a fresh command tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	a.loader = config.NewLoaderWithViper(a.v)

	rootCmd := &cobra.Command{
		Use:   "kvmap",
		Short: "Propagate key/value annotations from a template onto new documents",
		Long: `kvmap transfers the labelled boxes of an annotation template onto a new
scan of the same form, using two OCR word lists of that scan: a fine list
with accurate word polygons and a coarse list with axis-aligned boxes.

Examples:
  kvmap map --template form.json --fine scan.fine.json --coarse scan.coarse.json
  kvmap batch --images scans/ --fine ocr/fine --coarse ocr/coarse --output mapped/
  kvmap serve --port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, true)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/kvmap, /etc/kvmap)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	bindConfigKey(rootCmd.PersistentFlags(), "verbose", "verbose")
	bindConfigKey(rootCmd.PersistentFlags(), "log-level", "log_level")

	rootCmd.AddCommand(
		newMapCommand(a),
		newBatchCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
	)
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns a new command tree for in-process execution in tests.
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// bindConfigKey records that flag overrides key when set.
func bindConfigKey(flags *pflag.FlagSet, flag, key string) {
	if err := flags.SetAnnotation(flag, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("unknown flag %q", flag))
	}
}

// setup binds the running command's flags, loads the configuration and
// installs the logger.
func (a *app) setup(cmd *cobra.Command, validate bool) error {
	var bindErr error
	bind := func(f *pflag.Flag) {
		if keys, ok := f.Annotations[configKeyAnnotation]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	if bindErr != nil {
		return bindErr
	}

	var err error
	if validate {
		a.cfg, err = a.loader.Load(a.cfgFile)
	} else {
		a.cfg, err = a.loader.LoadWithoutValidation(a.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	a.logger = newLogger(cmd.ErrOrStderr(), a.cfg)
	slog.SetDefault(a.logger)
	return nil
}

// newLogger builds the JSON logger. Logs go to stderr so that stdout only
// carries command output.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
