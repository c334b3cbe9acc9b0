package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable taskboard reads.
const EnvPrefix = "TASKBOARD_"

// lookupFunc matches os.LookupEnv.
type lookupFunc func(string) (string, bool)

// envFile reads TASKBOARD_* keys from dir/.env that are not already set
// in the process environment. A missing file yields nil.
func envFile(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for k, v := range values {
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		if _, set := os.LookupEnv(k); set {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func mapLookup(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// loadFromEnvWithSources overrides cfg from variables visible through
// lookup and records source for each one applied.
func loadFromEnvWithSources(cfg *Config, lookup lookupFunc, sources map[string]ConfigSource, source ConfigSource) {
	str := func(name, field string, target *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			setSource(target, v, sources, field, source)
		}
	}
	num := func(name, field string, target *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				setSource(target, i, sources, field, source)
			}
		}
	}
	flag := func(name, field string, target *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			setSource(target, boolFromString(v), sources, field, source)
		}
	}

	str("API_URL", "api_url", &cfg.APIURL)
	num("REQUEST_TIMEOUT", "request_timeout_seconds", &cfg.RequestTimeoutSeconds)
	str("SESSION_FILE", "session_file", &cfg.SessionFile)
	str("LOG_DIR", "log_dir", &cfg.LogDir)
	num("REFRESH_INTERVAL", "refresh_interval_seconds", &cfg.RefreshIntervalSeconds)
	str("MOVE_POLICY", "move_policy", &cfg.MovePolicy)
	str("MOVE_PLACEMENT", "move_placement", &cfg.MovePlacement)
	flag("MOUSE", "mouse", &cfg.Mouse)
	str("HOOK", "hook_command", &cfg.HookCommand)
	str("LOG_LEVEL", "log_level", &cfg.LogLevel)
	str("LOG_FORMAT", "log_format", &cfg.LogFormat)
	flag("LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	flag("LOG_CALLER", "log_caller", &cfg.LogCaller)
}

// boolFromString parses a boolean from a string.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
