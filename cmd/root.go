// Package cmd implements the toolpane command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/toolpane/toolpane/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type subCommandGroup string

const (
	subCommandGroupBasic    subCommandGroup = "basic"
	subCommandGroupAdvanced subCommandGroup = "advanced"
)

var (
	rootCmdLogLevel string

	// settings and logger are initialized before any subcommand runs
	settings *config.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "toolpane",
	Short: "Build internal dashboards from declarative tool files",
	Long: "toolpane discovers *.tool.yaml files in your project and serves them as a dashboard.\n\n" +
		"Each tool file declares one dashboard unit (a record, an action, a table or a form)\n" +
		"and the functions it calls: shell commands, scripts, HTTP endpoints, MCP tools or SQL queries.\n\n" +
		"Settings can also be supplied through TOOLPANE_* environment variables or a .env file.",
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&rootCmdLogLevel,
		"log-level",
		"",
		"log level: debug, info, warn or error (overrides env var TOOLPANE_LOG_LEVEL)",
	)
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

// initRuntime loads .env and the TOOLPANE_* settings, then builds the logger.
func initRuntime(cmd *cobra.Command, args []string) error {
	// a missing .env file is not an error
	_ = godotenv.Load()

	s, err := config.LoadSettings()
	if err != nil {
		return err
	}
	if rootCmdLogLevel != "" {
		s.LogLevel = rootCmdLogLevel
	}
	settings = s

	l, err := newLogger(s.ZapLevel())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l
	return nil
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = level > zapcore.DebugLevel
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// getBindPort returns the TCP port to bind the server to
// precedence: command line flag > environment variable > default
func getBindPort(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv("PORT"); p != "" && os.Getenv("TOOLPANE_PORT") == "" {
		return p
	}
	return settings.Port
}

// getTitle applies flag > TOOLPANE_TITLE; an empty result lets the router pick its default.
func getTitle(flag string) string {
	if flag != "" {
		return flag
	}
	return settings.Title
}
