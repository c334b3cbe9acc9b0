// Package cmd implements the CLI command structure for taskboard.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/config"
	"github.com/nibzard/taskboard-go/internal/logging"
	"github.com/nibzard/taskboard-go/internal/session"
	"github.com/nibzard/taskboard-go/internal/task"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin

	timeNow = time.Now
)

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = errors.New("not logged in, run `taskboard login` first")

// Run executes the taskboard CLI.
func Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("taskboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	subcommand := "board"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	cfg := cws.Config
	switch subcommand {
	case "board":
		return boardCommand(ctx, cfg, remainingArgs)
	case "ls", "list":
		return lsCommand(ctx, cfg, remainingArgs)
	case "show":
		return showCommand(ctx, cfg, remainingArgs)
	case "add":
		return addCommand(ctx, cfg, remainingArgs)
	case "edit":
		return editCommand(ctx, cfg, remainingArgs)
	case "rm", "delete":
		return rmCommand(ctx, cfg, remainingArgs)
	case "mv", "move":
		return mvCommand(ctx, cfg, remainingArgs)
	case "login":
		return loginCommand(ctx, cfg, remainingArgs)
	case "logout":
		return logoutCommand(ctx, cfg, remainingArgs)
	case "whoami":
		return whoamiCommand(ctx, cfg, remainingArgs)
	case "config":
		return configCommand(cws, remainingArgs)
	case "doctor":
		return doctorCommand(ctx, cfg, remainingArgs)
	case "logs":
		return logsCommand(ctx, cfg, remainingArgs)
	case "dev-server":
		return devServerCommand(ctx, cfg, remainingArgs)
	case "version":
		return versionCommand()
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// newLogger returns the stderr logger used by non-interactive commands.
func newLogger(cfg *config.Config) *log.Logger {
	return logging.NewFromConfig(stderr, cfg.LogLevel, cfg.LogFormat, cfg.LogTimestamps, cfg.LogCaller)
}

// newClient builds an API client. With requireAuth set it attaches the
// saved session and fails when there is none or it has expired.
func newClient(cfg *config.Config, logger *log.Logger, requireAuth bool) (*api.Client, *session.Session, error) {
	var sess *session.Session
	if requireAuth {
		s, err := loadSession(cfg)
		if err != nil {
			return nil, nil, err
		}
		sess = s
	}
	opts := api.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.RequestTimeout(),
		Logger:    logger,
		UserAgent: "taskboard/" + Version,
		OnUnauthorized: func() {
			if err := session.Clear(cfg.SessionFile); err != nil {
				logger.Warn("clear session", "err", err)
			}
		},
	}
	if sess != nil {
		opts.Token = sess.Token
	}
	client, err := api.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return client, sess, nil
}

// loadSession returns the saved session if it is usable.
func loadSession(cfg *config.Config) (*session.Session, error) {
	sess, err := session.Load(cfg.SessionFile)
	if errors.Is(err, session.ErrNoSession) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	if sess.Expired(timeNow()) {
		return nil, fmt.Errorf("session expired, run `taskboard login` again")
	}
	return sess, nil
}

// commandError turns API failures into the message a user should see.
func commandError(action string, err error) error {
	if err == nil {
		return nil
	}
	if api.IsUnauthorized(err) {
		return fmt.Errorf("%s: session is no longer valid, run `taskboard login` again", action)
	}
	var ve *task.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%s: invalid task: %w", action, err)
	}
	var apiErr *api.APIError
	var transportErr *api.TransportError
	if errors.As(err, &apiErr) || errors.As(err, &transportErr) {
		return fmt.Errorf("%s: %s", action, api.Message(err))
	}
	return fmt.Errorf("%s: %w", action, err)
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Fprintf(stdout, "taskboard version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "taskboard - a terminal kanban board for the task API")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  taskboard [global options] [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  board                 Interactive board with drag and drop (default command)")
	fmt.Fprintln(w, "  ls [--status S]       List tasks by column (--json for raw output)")
	fmt.Fprintln(w, "  show <id>             Show task details")
	fmt.Fprintln(w, "  add --name N          Create a task")
	fmt.Fprintln(w, "  edit <id>             Update task fields")
	fmt.Fprintln(w, "  rm <id>               Delete a task")
	fmt.Fprintln(w, "  mv <id>... --to S     Move tasks to a status")
	fmt.Fprintln(w, "  login                 Sign in and save the session")
	fmt.Fprintln(w, "  logout                Sign out and remove the session")
	fmt.Fprintln(w, "  whoami                Show the signed-in user")
	fmt.Fprintln(w, "  config [example|init] Show effective config with sources")
	fmt.Fprintln(w, "  doctor                Check config, session and API reachability")
	fmt.Fprintln(w, "  logs [-f] [-n N]      Tail the latest board session log (--list to list)")
	fmt.Fprintln(w, "  dev-server [--addr]   Run a local API server with demo data")
	fmt.Fprintln(w, "  version               Show version information")
	fmt.Fprintln(w, "  help                  Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Statuses: TO_DO (todo), DOING, DONE. Teams: DESIGN, BACKEND, FRONTEND.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}
