package config

import (
	"flag"
)

// parseFlagsWithSources defines the global flags on fs, parses args and
// applies only the flags that were set explicitly.
func parseFlagsWithSources(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("taskboard", flag.ContinueOnError)
	}

	var (
		apiURL        = fs.String("api-url", cfg.APIURL, "Task API base URL")
		timeout       = fs.Int("timeout", cfg.RequestTimeoutSeconds, "Request timeout (seconds)")
		sessionFile   = fs.String("session-file", cfg.SessionFile, "Path to the saved login session")
		logDir        = fs.String("log-dir", cfg.LogDir, "Log directory")
		refresh       = fs.Int("refresh-interval", cfg.RefreshIntervalSeconds, "Board refresh interval in seconds (0 disables)")
		movePolicy    = fs.String("move-policy", cfg.MovePolicy, "Concurrent moves of one task (serialize, allow)")
		movePlacement = fs.String("move-placement", cfg.MovePlacement, "Where a moved task lands (append, in-place)")
		mouse         = fs.Bool("mouse", cfg.Mouse, "Enable mouse drag and drop on the board")
		hook          = fs.String("hook", cfg.HookCommand, "Hook command to run after each move settles")
		logLevel      = fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
		logFormat     = fs.String("log-format", cfg.LogFormat, "Log format (text, json, logfmt)")
		logTimestamps = fs.Bool("log-timestamps", cfg.LogTimestamps, "Show timestamps in logs")
		logCaller     = fs.Bool("log-caller", cfg.LogCaller, "Show caller location in logs")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-url":
			setSource(&cfg.APIURL, *apiURL, sources, "api_url", SourceFlag)
		case "timeout":
			setSource(&cfg.RequestTimeoutSeconds, *timeout, sources, "request_timeout_seconds", SourceFlag)
		case "session-file":
			setSource(&cfg.SessionFile, *sessionFile, sources, "session_file", SourceFlag)
		case "log-dir":
			setSource(&cfg.LogDir, *logDir, sources, "log_dir", SourceFlag)
		case "refresh-interval":
			setSource(&cfg.RefreshIntervalSeconds, *refresh, sources, "refresh_interval_seconds", SourceFlag)
		case "move-policy":
			setSource(&cfg.MovePolicy, *movePolicy, sources, "move_policy", SourceFlag)
		case "move-placement":
			setSource(&cfg.MovePlacement, *movePlacement, sources, "move_placement", SourceFlag)
		case "mouse":
			setSource(&cfg.Mouse, *mouse, sources, "mouse", SourceFlag)
		case "hook":
			setSource(&cfg.HookCommand, *hook, sources, "hook_command", SourceFlag)
		case "log-level":
			setSource(&cfg.LogLevel, *logLevel, sources, "log_level", SourceFlag)
		case "log-format":
			setSource(&cfg.LogFormat, *logFormat, sources, "log_format", SourceFlag)
		case "log-timestamps":
			setSource(&cfg.LogTimestamps, *logTimestamps, sources, "log_timestamps", SourceFlag)
		case "log-caller":
			setSource(&cfg.LogCaller, *logCaller, sources, "log_caller", SourceFlag)
		}
	})
	return nil
}
