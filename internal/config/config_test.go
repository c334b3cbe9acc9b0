package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nibzard/taskboard-go/internal/move"
)

// isolate points HOME at a temp dir and clears TASKBOARD_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, EnvPrefix) {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
	return home
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("taskboard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	home := isolate(t)
	cws, err := loadIn(t.TempDir(), newFlagSet(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := cws.Config

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL: got %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.RequestTimeout() != 15*time.Second {
		t.Errorf("RequestTimeout: got %v", cfg.RequestTimeout())
	}
	if cfg.RefreshInterval() != 0 {
		t.Errorf("RefreshInterval: got %v, want 0", cfg.RefreshInterval())
	}
	if cfg.Policy() != move.PolicySerialize || cfg.Placement() != move.PlacementAppend {
		t.Errorf("policy/placement: got %q/%q", cfg.Policy(), cfg.Placement())
	}
	if !cfg.Mouse {
		t.Error("Mouse: want true")
	}
	if want := filepath.Join(home, ".taskboard", "session.json"); cfg.SessionFile != want {
		t.Errorf("SessionFile: got %q, want %q", cfg.SessionFile, want)
	}
	for _, field := range Fields() {
		if got := cws.Source(field); got != SourceDefault {
			t.Errorf("source of %s: got %q, want default", field, got)
		}
	}
	if cws.GetConfigFile() != "" {
		t.Errorf("GetConfigFile: got %q, want empty", cws.GetConfigFile())
	}
}

func TestLayering(t *testing.T) {
	home := isolate(t)
	wd := t.TempDir()

	writeFile(t, filepath.Join(home, ".taskboard", "taskboard.toml"), `
api_url = "http://user.example/api"
request_timeout_seconds = 20
move_policy = "allow"
mouse = false
`)
	writeFile(t, filepath.Join(wd, "taskboard.toml"), `
api_url = "http://project.example/api"
log_level = "debug"
`)
	writeFile(t, filepath.Join(wd, ".env"), `
TASKBOARD_LOG_LEVEL=warn
TASKBOARD_HOOK=./dotenv-hook.sh
TASKBOARD_MOVE_PLACEMENT=in-place
OTHER_VAR=ignored
`)
	t.Setenv("TASKBOARD_MOVE_PLACEMENT", "append")
	t.Setenv("TASKBOARD_REQUEST_TIMEOUT", "30")

	cws, err := loadIn(wd, newFlagSet(), []string{"--log-level", "error", "ls"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := cws.Config

	tests := []struct {
		key    string
		want   any
		source ConfigSource
	}{
		{"api_url", "http://project.example/api", SourceProjFile},
		{"request_timeout_seconds", 30, SourceEnv},
		{"move_policy", "allow", SourceUserFile},
		{"mouse", false, SourceUserFile},
		{"hook_command", "./dotenv-hook.sh", SourceDotEnv},
		{"move_placement", "append", SourceEnv},
		{"log_level", "error", SourceFlag},
		{"log_format", DefaultLogFormat, SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := cfg.Get(tt.key)
			if !ok {
				t.Fatalf("Get(%q) unknown key", tt.key)
			}
			if got != tt.want {
				t.Errorf("value: got %v, want %v", got, tt.want)
			}
			if src := cws.Source(tt.key); src != tt.source {
				t.Errorf("source: got %q, want %q", src, tt.source)
			}
		})
	}

	if len(cws.Files) != 2 || cws.GetConfigFile() != filepath.Join(wd, "taskboard.toml") {
		t.Errorf("Files: got %v", cws.Files)
	}
}

func TestDotEnvDoesNotLeakIntoProcess(t *testing.T) {
	isolate(t)
	wd := t.TempDir()
	writeFile(t, filepath.Join(wd, ".env"), "TASKBOARD_LOG_FORMAT=json\n")

	cws, err := loadIn(wd, newFlagSet(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cws.Config.LogFormat != "json" {
		t.Errorf("LogFormat: got %q, want json", cws.Config.LogFormat)
	}
	if _, set := os.LookupEnv("TASKBOARD_LOG_FORMAT"); set {
		t.Error(".env value was exported into the process environment")
	}
}

func TestFlagsLeaveRemainingArgs(t *testing.T) {
	isolate(t)
	fs := newFlagSet()
	cws, err := loadIn(t.TempDir(), fs, []string{"--api-url", "https://tasks.example.com/api/", "--mouse=false", "mv", "1", "--to", "DONE"})
	if err != nil {
		t.Fatal(err)
	}
	if cws.Config.APIURL != "https://tasks.example.com/api" {
		t.Errorf("APIURL: got %q", cws.Config.APIURL)
	}
	if cws.Config.Mouse {
		t.Error("Mouse: want false")
	}
	if got := strings.Join(fs.Args(), " "); got != "mv 1 --to DONE" {
		t.Errorf("remaining args: got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		args    []string
		wantErr string
	}{
		{"bad url", "", []string{"--api-url", "localhost:3001"}, "api_url"},
		{"bad policy", `move_policy = "sometimes"`, nil, "invalid move policy"},
		{"bad placement", "", []string{"--move-placement", "top"}, "invalid move placement"},
		{"zero timeout", `request_timeout_seconds = 0`, nil, "request_timeout_seconds"},
		{"negative refresh", "", []string{"--refresh-interval", "-1"}, "refresh_interval_seconds"},
		{"unknown key", `colour = "blue"`, nil, "unknown keys: colour"},
		{"bad toml", `api_url = `, nil, "loading project config file"},
		{"unknown flag", "", []string{"--nope"}, "parsing flags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			wd := t.TempDir()
			if tt.file != "" {
				writeFile(t, filepath.Join(wd, ".taskboard.toml"), tt.file)
			}
			_, err := loadIn(wd, newFlagSet(), tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TASKBOARD_TEST_DIR", "/var/tb")

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"~", home},
		{"~/logs", filepath.Join(home, "logs")},
		{"$TASKBOARD_TEST_DIR/s.json", "/var/tb/s.json"},
		{"/abs/path", "/abs/path"},
		{"rel/~/x", "rel/~/x"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBoolFromString(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on "} {
		if !boolFromString(s) {
			t.Errorf("boolFromString(%q) = false", s)
		}
	}
	for _, s := range []string{"0", "false", "no", "off", "maybe", ""} {
		if boolFromString(s) {
			t.Errorf("boolFromString(%q) = true", s)
		}
	}
}

func TestExampleConfigDecodes(t *testing.T) {
	var fc fileConfig
	md, err := toml.Decode(ExampleConfig(), &fc)
	if err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if len(md.Undecoded()) != 0 {
		t.Errorf("example config has unknown keys: %v", md.Undecoded())
	}
	cfg := &Config{}
	setDefaults(cfg)
	if err := loadConfigFileWithSources(cfg, writeTemp(t, ExampleConfig()), map[string]ConfigSource{}, SourceUserFile); err != nil {
		t.Fatal(err)
	}
	if err := finalizeConfig(cfg); err != nil {
		t.Fatalf("example config invalid: %v", err)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskboard.toml")
	writeFile(t, path, content)
	return path
}

func TestGetUnknownKey(t *testing.T) {
	cfg := &Config{}
	if _, ok := cfg.Get("nope"); ok {
		t.Error("Get(nope) should report unknown")
	}
	for _, key := range Fields() {
		if _, ok := cfg.Get(key); !ok {
			t.Errorf("Get(%q) unknown", key)
		}
	}
}
