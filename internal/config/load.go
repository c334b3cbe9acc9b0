package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/nibzard/taskboard-go/internal/move"
)

// Load loads configuration from all sources. See the package documentation
// for the priority order.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return loadIn(wd, fs, args)
}

// loadIn is LoadWithSources with an explicit working directory.
func loadIn(wd string, fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	cfg := &Config{ProjectRoot: wd}
	cws := &ConfigWithSources{Config: cfg, Sources: sources}

	// 1. Defaults
	setDefaults(cfg)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}

	// 2. User config file
	if path := findUserConfigFile(); path != "" {
		if err := loadConfigFileWithSources(cfg, path, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
		cws.Files = append(cws.Files, path)
	}

	// 3. Project config file (overrides user config)
	if path := findProjectConfigFile(wd); path != "" {
		if err := loadConfigFileWithSources(cfg, path, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
		cws.Files = append(cws.Files, path)
	}

	// 4. .env values not already in the environment
	dotenv, err := envFile(wd)
	if err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if len(dotenv) > 0 {
		loadFromEnvWithSources(cfg, mapLookup(dotenv), sources, SourceDotEnv)
	}

	// 5. Environment
	loadFromEnvWithSources(cfg, os.LookupEnv, sources, SourceEnv)

	// 6. CLI flags (they override everything)
	if err := parseFlagsWithSources(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := finalizeConfig(cfg); err != nil {
		return nil, err
	}
	return cws, nil
}

// finalizeConfig expands paths and validates values.
func finalizeConfig(cfg *Config) error {
	cfg.SessionFile = expandPath(cfg.SessionFile)
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	return Validate(cfg)
}

// Validate reports the first invalid value in cfg.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url %q must be an absolute http(s) URL", cfg.APIURL)
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", cfg.RequestTimeoutSeconds)
	}
	if cfg.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("refresh_interval_seconds must not be negative, got %d", cfg.RefreshIntervalSeconds)
	}
	if _, err := move.ParsePolicy(cfg.MovePolicy); err != nil {
		return err
	}
	if _, err := move.ParsePlacement(cfg.MovePlacement); err != nil {
		return err
	}
	if cfg.SessionFile == "" {
		return fmt.Errorf("session_file must not be empty")
	}
	if cfg.LogDir == "" {
		return fmt.Errorf("log_dir must not be empty")
	}
	return nil
}
