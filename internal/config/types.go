package config

import "time"

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceDotEnv   ConfigSource = ".env file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource

	// Files lists the config files that were read, in load order.
	Files []string
}

// Default values.
const (
	DefaultAPIURL                 = "http://localhost:3001/api"
	DefaultSessionFile            = "~/.taskboard/session.json"
	DefaultLogDir                 = "~/.taskboard/logs"
	DefaultRequestTimeoutSeconds  = 15
	DefaultRefreshIntervalSeconds = 0
	DefaultMovePolicy             = "serialize"
	DefaultMovePlacement          = "append"
	DefaultMouse                  = true
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "text"
)

// Config holds the full configuration for taskboard.
type Config struct {
	// API
	APIURL                string `toml:"api_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`

	// Paths
	SessionFile string `toml:"session_file"`
	LogDir      string `toml:"log_dir"`

	// Board
	RefreshIntervalSeconds int    `toml:"refresh_interval_seconds"`
	MovePolicy             string `toml:"move_policy"`
	MovePlacement          string `toml:"move_placement"`
	Mouse                  bool   `toml:"mouse"`

	// Hooks
	HookCommand string `toml:"hook_command"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Working directory (computed)
	ProjectRoot string `toml:"-"`
}

// fileConfig mirrors Config with pointer fields so a decoded file can tell
// an explicit zero value apart from an absent key.
type fileConfig struct {
	APIURL                 *string `toml:"api_url"`
	RequestTimeoutSeconds  *int    `toml:"request_timeout_seconds"`
	SessionFile            *string `toml:"session_file"`
	LogDir                 *string `toml:"log_dir"`
	RefreshIntervalSeconds *int    `toml:"refresh_interval_seconds"`
	MovePolicy             *string `toml:"move_policy"`
	MovePlacement          *string `toml:"move_placement"`
	Mouse                  *bool   `toml:"mouse"`
	HookCommand            *string `toml:"hook_command"`
	LogLevel               *string `toml:"log_level"`
	LogFormat              *string `toml:"log_format"`
	LogTimestamps          *bool   `toml:"log_timestamps"`
	LogCaller              *bool   `toml:"log_caller"`
}

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RefreshInterval returns the board's background refresh period.
// Zero disables periodic refresh.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}
