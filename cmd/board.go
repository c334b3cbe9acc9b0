package cmd

import (
	"context"
	"fmt"

	"github.com/nibzard/taskboard-go/internal/config"
	"github.com/nibzard/taskboard-go/internal/hooks"
	"github.com/nibzard/taskboard-go/internal/logging"
	"github.com/nibzard/taskboard-go/internal/move"
	"github.com/nibzard/taskboard-go/internal/notify"
	"github.com/nibzard/taskboard-go/internal/store"
	"github.com/nibzard/taskboard-go/internal/ui"
)

// boardCommand runs the interactive board. While it owns the terminal all
// logging goes to a session file under the log directory.
func boardCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	sessionLog, err := logging.NewSessionLogger(cfg.LogDir, cfg.APIURL)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer sessionLog.Close()
	logger := sessionLog.Logger(logging.ParseLevel(cfg.LogLevel))
	logger.Info("board started", "api", cfg.APIURL, "run", sessionLog.RunID, "version", Version)

	client, sess, err := newClient(cfg, logger, true)
	if err != nil {
		return err
	}

	st := store.New()
	st.Register(store.TasksKey, client.ListTasks)

	notices := notify.NewCenter(3)
	runner := &hooks.Runner{Command: cfg.HookCommand, WorkDir: cfg.ProjectRoot, Logger: logger}
	coord, err := move.New(move.Options{
		Store:          st,
		Updater:        client,
		Notifier:       notify.Multi{notices, notify.Logger{Log: logger}},
		Logger:         logger,
		Policy:         cfg.Policy(),
		Placement:      cfg.Placement(),
		RequestTimeout: cfg.RequestTimeout(),
		OnSettled:      runner.OnSettled,
	})
	if err != nil {
		return err
	}

	name := sess.User.Name
	if name == "" {
		name = sess.User.Username
	}

	err = ui.Run(ctx, ui.Options{
		Store:           st,
		Mover:           coord,
		Deleter:         client,
		Notices:         notices,
		Logger:          logger,
		UserName:        name,
		RefreshInterval: cfg.RefreshInterval(),
		Mouse:           cfg.Mouse,
	})

	// Let in-flight moves settle so no request is abandoned mid-way.
	coord.Wait()
	runner.Wait()
	logger.Info("board closed", "err", err)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Session log: %s\n", sessionLog.LogPath)
	return nil
}
