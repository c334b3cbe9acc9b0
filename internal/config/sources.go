package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"api_url",
		"request_timeout_seconds",
		"session_file",
		"log_dir",
		"refresh_interval_seconds",
		"move_policy",
		"move_placement",
		"mouse",
		"hook_command",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}

// Fields returns all config keys in display order.
func Fields() []string {
	return configFields()
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	cfg.SessionFile = DefaultSessionFile
	cfg.LogDir = DefaultLogDir
	cfg.RefreshIntervalSeconds = DefaultRefreshIntervalSeconds
	cfg.MovePolicy = DefaultMovePolicy
	cfg.MovePlacement = DefaultMovePlacement
	cfg.Mouse = DefaultMouse
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// loadConfigFileWithSources decodes a TOML file over cfg, recording source
// for every key present in the file.
func loadConfigFileWithSources(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	apply(&cfg.APIURL, fc.APIURL, sources, "api_url", source)
	apply(&cfg.RequestTimeoutSeconds, fc.RequestTimeoutSeconds, sources, "request_timeout_seconds", source)
	apply(&cfg.SessionFile, fc.SessionFile, sources, "session_file", source)
	apply(&cfg.LogDir, fc.LogDir, sources, "log_dir", source)
	apply(&cfg.RefreshIntervalSeconds, fc.RefreshIntervalSeconds, sources, "refresh_interval_seconds", source)
	apply(&cfg.MovePolicy, fc.MovePolicy, sources, "move_policy", source)
	apply(&cfg.MovePlacement, fc.MovePlacement, sources, "move_placement", source)
	apply(&cfg.Mouse, fc.Mouse, sources, "mouse", source)
	apply(&cfg.HookCommand, fc.HookCommand, sources, "hook_command", source)
	apply(&cfg.LogLevel, fc.LogLevel, sources, "log_level", source)
	apply(&cfg.LogFormat, fc.LogFormat, sources, "log_format", source)
	apply(&cfg.LogTimestamps, fc.LogTimestamps, sources, "log_timestamps", source)
	apply(&cfg.LogCaller, fc.LogCaller, sources, "log_caller", source)
	return nil
}

// apply copies a decoded value into field when the file set it.
func apply[T any](field *T, value *T, sources map[string]ConfigSource, name string, source ConfigSource) {
	if value == nil {
		return
	}
	setSource(field, *value, sources, name, source)
}

// setSource assigns value and records where it came from.
func setSource[T any](field *T, value T, sources map[string]ConfigSource, name string, source ConfigSource) {
	*field = value
	if sources != nil {
		sources[name] = source
	}
}

// Source returns where key's value came from.
func (cws *ConfigWithSources) Source(key string) ConfigSource {
	if s, ok := cws.Sources[key]; ok {
		return s
	}
	return SourceDefault
}

// GetConfigFile returns the highest-priority config file that was read.
func (cws *ConfigWithSources) GetConfigFile() string {
	if len(cws.Files) == 0 {
		return ""
	}
	return cws.Files[len(cws.Files)-1]
}
