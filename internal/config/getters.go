package config

import (
	"github.com/nibzard/taskboard-go/internal/move"
)

// Policy returns the configured concurrent-move policy.
func (c *Config) Policy() move.Policy {
	p, err := move.ParsePolicy(c.MovePolicy)
	if err != nil {
		return move.PolicySerialize
	}
	return p
}

// Placement returns where a moved task lands in its new column.
func (c *Config) Placement() move.Placement {
	p, err := move.ParsePlacement(c.MovePlacement)
	if err != nil {
		return move.PlacementAppend
	}
	return p
}

// Get returns a config value by its TOML key, formatted for display.
func (c *Config) Get(key string) (any, bool) {
	switch key {
	case "api_url":
		return c.APIURL, true
	case "request_timeout_seconds":
		return c.RequestTimeoutSeconds, true
	case "session_file":
		return c.SessionFile, true
	case "log_dir":
		return c.LogDir, true
	case "refresh_interval_seconds":
		return c.RefreshIntervalSeconds, true
	case "move_policy":
		return c.MovePolicy, true
	case "move_placement":
		return c.MovePlacement, true
	case "mouse":
		return c.Mouse, true
	case "hook_command":
		return c.HookCommand, true
	case "log_level":
		return c.LogLevel, true
	case "log_format":
		return c.LogFormat, true
	case "log_timestamps":
		return c.LogTimestamps, true
	case "log_caller":
		return c.LogCaller, true
	}
	return nil, false
}
