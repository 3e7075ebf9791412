package main

import (
	"fmt"
	"io"

	"visualdiff/internal/config"
	"visualdiff/internal/debug/memtracker"
	"visualdiff/internal/logger"
	"visualdiff/internal/opencv/safe"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootEnv holds the flags shared by every subcommand.
type rootEnv struct {
	logLevel   string
	logFormat  string
	configPath string

	level zerolog.Level
}

func newRootCmd() *cobra.Command {
	env := &rootEnv{}
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Structural similarity diffs for screenshots",
		Version:       AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&env.logLevel, "log-level", "warn", "debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&env.logFormat, "log-format", "console", "console or json")
	cmd.PersistentFlags().StringVar(&env.configPath, "config", "", "YAML settings file")

	cmd.AddCommand(getCompareCmd(env))
	cmd.AddCommand(getBatchCmd(env))
	return cmd
}

func (r *rootEnv) logger(w io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(r.logLevel)
	if err != nil {
		return nil, err
	}
	r.level = level

	switch r.logFormat {
	case "", "console":
		return logger.NewConsoleLogger(w, level), nil
	case "json":
		return logger.NewJSONLogger(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", r.logFormat)
	}
}

func (r *rootEnv) settings() (config.Settings, error) {
	return config.Load(r.configPath)
}

// trackMemory accounts for native Mats at debug level. The returned function
// logs the summary and must be deferred.
func (r *rootEnv) trackMemory(log logger.Logger) func() {
	if r.level > zerolog.DebugLevel {
		return func() {}
	}

	tracker := memtracker.NewTracker(log)
	restore := safe.SetObserver(tracker)
	return func() {
		tracker.Report()
		restore()
	}
}
