package cmd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/config"
	"github.com/nibzard/taskboard-go/internal/session"
)

// passwordEnv lets scripts log in without a prompt.
const passwordEnv = config.EnvPrefix + "PASSWORD"

// loginCommand signs in and saves the session.
func loginCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskboard login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	username := fs.String("u", "", "Username")
	fs.StringVar(username, "username", "", "Username")
	password := fs.String("p", "", "Password (or set "+passwordEnv+")")
	fs.StringVar(password, "password", "", "Password (or set "+passwordEnv+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	reader := bufio.NewReader(stdin)
	if strings.TrimSpace(*username) == "" {
		u, err := prompt(reader, "Username: ")
		if err != nil {
			return err
		}
		*username = u
	}
	if *password == "" {
		*password = os.Getenv(passwordEnv)
	}
	if *password == "" {
		p, err := promptPassword(reader, "Password: ")
		if err != nil {
			return err
		}
		*password = p
	}
	creds := api.Credentials{Username: strings.TrimSpace(*username), Password: *password}
	if creds.Username == "" || creds.Password == "" {
		return errors.New("username and password are required")
	}

	client, _, err := newClient(cfg, newLogger(cfg), false)
	if err != nil {
		return err
	}
	res, err := client.Login(ctx, creds)
	if err != nil {
		if api.IsUnauthorized(err) {
			return errors.New("login failed: invalid username or password")
		}
		return commandError("login", err)
	}

	sess := &session.Session{Token: res.Token, User: res.User, APIURL: cfg.APIURL, SavedAt: timeNow().UTC()}
	if err := session.Save(cfg.SessionFile, sess); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Logged in as %s\n", displayName(res.User))
	return nil
}

// logoutCommand ends the session. The server call is best effort; the local
// session is always removed.
func logoutCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	logger := newLogger(cfg)
	sess, err := session.Load(cfg.SessionFile)
	if errors.Is(err, session.ErrNoSession) {
		fmt.Fprintln(stdout, "Not logged in")
		return nil
	}
	if err != nil {
		logger.Warn("read session", "err", err)
	}
	if sess != nil && !sess.Expired(timeNow()) {
		client, _, cerr := newClient(cfg, logger, true)
		if cerr == nil {
			if err := client.Logout(ctx); err != nil {
				logger.Debug("server logout failed", "err", err)
			}
		}
	}
	if err := session.Clear(cfg.SessionFile); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Logged out")
	return nil
}

// whoamiCommand prints the signed-in user as the server sees it.
func whoamiCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	client, sess, err := newClient(cfg, newLogger(cfg), true)
	if err != nil {
		return err
	}
	user, err := client.Me(ctx)
	if err != nil {
		return commandError("whoami", err)
	}
	fmt.Fprintf(stdout, "%s (%s)\n", displayName(user), user.Username)
	fmt.Fprintf(stdout, "API: %s\n", client.BaseURL())
	if exp, ok := sess.ExpiresAt(); ok {
		fmt.Fprintf(stdout, "Session expires: %s (in %s)\n", exp.Local().Format(detailTimeLayout), exp.Sub(timeNow()).Round(time.Minute))
	}
	return nil
}

func displayName(u api.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(stderr, label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo when stdin is the terminal.
func promptPassword(r *bufio.Reader, label string) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
		fmt.Fprint(stderr, label)
		b, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return prompt(r, label)
}
