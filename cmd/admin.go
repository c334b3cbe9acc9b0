package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/config"
	"github.com/nibzard/taskboard-go/internal/devserver"
	"github.com/nibzard/taskboard-go/internal/logging"
)

// configCommand shows the effective configuration and where each value
// came from.
func configCommand(cws *config.ConfigWithSources, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "example":
			fmt.Fprint(stdout, config.ExampleConfig())
			return nil
		case "init":
			return configInit()
		case "path":
			path, err := config.UserConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, path)
			return nil
		default:
			return fmt.Errorf("unknown config command: %s", args[0])
		}
	}

	if file := cws.GetConfigFile(); file != "" {
		fmt.Fprintf(stdout, "Config file: %s\n\n", file)
	} else {
		fmt.Fprintln(stdout, "Config file: (none)")
		fmt.Fprintln(stdout)
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	for _, key := range config.Fields() {
		v, _ := cws.Config.Get(key)
		fmt.Fprintf(tw, "%s\t%v\t%s\n", key, v, cws.Source(key))
	}
	return tw.Flush()
}

func configInit() error {
	path, err := config.UserConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.ExampleConfig()), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}

// doctorCommand checks that the CLI can reach and use the API.
func doctorCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	failed := 0
	check := func(name string, err error, ok string) {
		if err != nil {
			failed++
			fmt.Fprintf(stdout, "[FAIL] %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(stdout, "[ OK ] %s: %s\n", name, ok)
	}

	check("config", config.Validate(cfg), "valid")

	sess, sessErr := loadSession(cfg)
	if sessErr != nil {
		check("session", sessErr, "")
	} else {
		detail := "logged in as " + displayName(sess.User)
		if exp, ok := sess.ExpiresAt(); ok {
			detail += ", expires " + exp.Local().Format(detailTimeLayout)
		}
		if sess.APIURL != "" && sess.APIURL != cfg.APIURL {
			detail += fmt.Sprintf(" (saved for %s)", sess.APIURL)
		}
		check("session", nil, detail)
	}

	client, _, err := newClient(cfg, newLogger(cfg), sessErr == nil)
	if err != nil {
		check("api", err, "")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
		_, err := client.ListTasks(pingCtx)
		cancel()
		// Any HTTP answer, including 401, proves the API is reachable.
		var transportErr *api.TransportError
		switch {
		case errors.As(err, &transportErr):
			check("api", fmt.Errorf("%s unreachable: %s", cfg.APIURL, api.Message(err)), "")
		case sessErr == nil && api.IsUnauthorized(err):
			check("api", errors.New("the server rejected the saved session"), "")
		default:
			check("api", nil, cfg.APIURL+" reachable")
		}
	}

	check("log dir", checkWritable(cfg.LogDir), cfg.LogDir)

	if cmd := strings.TrimSpace(cfg.HookCommand); cmd != "" {
		path, err := exec.LookPath(cmd)
		check("hook", err, path)
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// logsCommand lists or tails board session logs for the configured API.
func logsCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskboard logs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	follow := fs.Bool("f", false, "Follow the log")
	fs.BoolVar(follow, "follow", false, "Follow the log")
	lines := fs.Int("n", 50, "Number of lines to show (0 for all)")
	list := fs.Bool("list", false, "List session logs instead of tailing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logDir, err := logging.FindLogDir(cfg.LogDir, cfg.APIURL)
	if err != nil {
		return err
	}

	if *list {
		runs, err := logging.FindLogRuns(logDir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintf(stdout, "No session logs in %s\n", logDir)
			return nil
		}
		tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSIZE\tMODIFIED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", r.RunID, r.Size, r.ModTime.Local().Format(time.DateTime))
		}
		return tw.Flush()
	}

	path := ""
	if fs.NArg() > 0 {
		path = filepath.Join(logDir, strings.TrimSuffix(fs.Arg(0), ".jsonl")+".jsonl")
	} else {
		path, err = logging.FindLatestLog(logDir)
		if err != nil {
			return err
		}
	}
	if path == "" {
		return fmt.Errorf("no session logs in %s", logDir)
	}
	err = logging.TailLog(ctx, stdout, path, *lines, *follow)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// devServerCommand serves a local API with demo data until interrupted.
func devServerCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskboard dev-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", ":3001", "Listen address")
	ttl := fs.Duration("token-ttl", 24*time.Hour, "Lifetime of issued tokens")
	empty := fs.Bool("empty", false, "Start without demo tasks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, _, err := net.SplitHostPort(*addr); err != nil {
		return fmt.Errorf("invalid --addr %q: %w", *addr, err)
	}

	logger := newLogger(cfg)
	opts := devserver.Options{TokenTTL: *ttl, Logger: logger}
	if !*empty {
		opts.Tasks = devserver.DemoTasks()
	}
	srv := devserver.New(opts)
	demo := devserver.DemoAccount()
	logger.Info("demo account", "username", demo.Username, "password", demo.Password)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(*addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
