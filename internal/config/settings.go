package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of every environment variable read into Settings.
const EnvPrefix = "toolpane"

// Settings holds the runtime settings of toolpane.
// Fields are loaded from environment variables with the prefix "TOOLPANE_".
// Command line flags take precedence over them.
type Settings struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Title    string `envconfig:"TITLE"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Database is the default DSN used by sql functions that do not declare their own.
	Database string `envconfig:"DATABASE" default:".toolpane/toolpane.db"`

	OtelEnabled     bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OtelServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"toolpane"`

	// AccessToken, when set, must be sent as a bearer token to the api and mcp endpoints.
	AccessToken string `envconfig:"ACCESS_TOKEN"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	// HandlerTimeout bounds command, script and http functions. Zero disables the limit.
	HandlerTimeout time.Duration `envconfig:"HANDLER_TIMEOUT" default:"60s"`

	// MCPInitTimeout bounds the initialization handshake with upstream MCP servers.
	MCPInitTimeout time.Duration `envconfig:"MCP_INIT_TIMEOUT" default:"10s"`

	// WatchDebounce is the quiet period after a file change before rediscovery runs.
	WatchDebounce time.Duration `envconfig:"WATCH_DEBOUNCE" default:"300ms"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return &s, nil
}

// ZapLevel returns the zap level for the configured LogLevel string.
func (s *Settings) ZapLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
