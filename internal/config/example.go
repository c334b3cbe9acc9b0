package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# taskboard configuration file
# Values can be overridden by TASKBOARD_* environment variables or CLI flags

# Task API base URL
api_url = "http://localhost:3001/api"

# Per-request timeout (seconds)
request_timeout_seconds = 15

# Saved login session (supports ~ expansion)
session_file = "~/.taskboard/session.json"

# Session log directory
log_dir = "~/.taskboard/logs"

# Reload the board every N seconds (0 disables)
refresh_interval_seconds = 0

# A second move of a task while its first is still saving:
# "serialize" rejects it, "allow" lets both run
move_policy = "serialize"

# Where a moved task lands: "append" (end of column) or "in-place"
move_placement = "append"

# Mouse drag and drop on the board
mouse = true

# Command run after each move settles; receives task id, status and outcome
# hook_command = "/path/to/hook.sh"

# Logging
log_level = "info"    # debug, info, warn, error
log_format = "text"   # text, json, logfmt
log_timestamps = false
log_caller = false
`
}
