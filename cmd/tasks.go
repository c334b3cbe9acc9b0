package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/board"
	"github.com/nibzard/taskboard-go/internal/config"
	"github.com/nibzard/taskboard-go/internal/hooks"
	"github.com/nibzard/taskboard-go/internal/move"
	"github.com/nibzard/taskboard-go/internal/notify"
	"github.com/nibzard/taskboard-go/internal/parallel"
	"github.com/nibzard/taskboard-go/internal/store"
	"github.com/nibzard/taskboard-go/internal/task"
	"github.com/nibzard/taskboard-go/internal/utils"
)

// detailTimeLayout formats timestamps on the task detail view.
const detailTimeLayout = "2 January 2006 03:04 PM"

// maxConcurrentRequests bounds requests when a command touches several tasks.
const maxConcurrentRequests = 4

// lsCommand lists tasks grouped by column in board order.
func lsCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskboard ls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	statusFilter := fs.String("status", "", "Only show one status (todo|doing|done)")
	asJSON := fs.Bool("json", false, "Print tasks as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var only task.Status
	if *statusFilter != "" {
		s, err := task.ParseStatus(*statusFilter)
		if err != nil {
			return err
		}
		only = s
	}

	logger := newLogger(cfg)
	client, _, err := newClient(cfg, logger, true)
	if err != nil {
		return err
	}
	tasks, err := client.ListTasks(ctx)
	if err != nil {
		return commandError("list tasks", err)
	}

	if *asJSON {
		if only != "" {
			tasks = task.Partition(tasks)[only]
		}
		if tasks == nil {
			tasks = []task.Task{}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	now := timeNow()
	for _, col := range board.Columns(tasks) {
		if only != "" && col.Status != only {
			continue
		}
		fmt.Fprintf(stdout, "%s (%d)\n", col.Title, len(col.Tasks))
		if len(col.Tasks) == 0 {
			fmt.Fprintf(stdout, "  %s\n\n", board.EmptyText)
			continue
		}
		tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		for _, t := range col.Tasks {
			fmt.Fprintf(tw, "  #%d\t%s\t%s\t%s\n", t.ID, utils.Truncate(t.Name, 48), formatTeams(t.Teams), board.Ago(t.UpdatedAt, now))
		}
		tw.Flush()
		fmt.Fprintln(stdout)
	}
	return nil
}

// showCommand prints one task's details.
func showCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskboard show <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	client, _, err := newClient(cfg, newLogger(cfg), true)
	if err != nil {
		return err
	}
	t, err := client.GetTask(ctx, id)
	if err != nil {
		return commandError(fmt.Sprintf("get task %d", id), err)
	}
	printTaskDetail(t)
	return nil
}

func printTaskDetail(t task.Task) {
	fmt.Fprintf(stdout, "#%d %s\n\n", t.ID, t.Name)
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Status\t%s\n", t.Status.Title())
	fmt.Fprintf(tw, "Teams\t%s\n", formatTeams(t.Teams))
	if t.ExternalLink != "" {
		fmt.Fprintf(tw, "Link\t%s\n", t.ExternalLink)
	}
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Created\t%s\n", t.CreatedAt.Local().Format(detailTimeLayout))
	}
	if !t.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "Updated\t%s (%s)\n", t.UpdatedAt.Local().Format(detailTimeLayout), board.Ago(t.UpdatedAt, timeNow()))
	}
	tw.Flush()
	if t.Description != "" {
		fmt.Fprintf(stdout, "\n%s\n", t.Description)
	}
	if len(t.Attachments) > 0 {
		fmt.Fprintln(stdout, "\nAttachments:")
		for _, a := range t.Attachments {
			fmt.Fprintf(stdout, "  %s  %s\n", a.Name, a.URL)
		}
	}
}

// taskFlags binds the editable task fields to fs.
type taskFlags struct {
	name, description, status, teams, link *string
}

func bindTaskFlags(fs *flag.FlagSet, defaultStatus string) taskFlags {
	return taskFlags{
		name:        fs.String("name", "", "Task name"),
		description: fs.String("description", "", "Task description"),
		status:      fs.String("status", defaultStatus, "Status (todo|doing|done)"),
		teams:       fs.String("teams", "", "Comma-separated teams (design,backend,frontend)"),
		link:        fs.String("link", "", "External link (http/https URL)"),
	}
}

// apply copies explicitly set flags (or every flag when all is true) onto p.
func (f taskFlags) apply(fs *flag.FlagSet, p *task.Payload, all bool) error {
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if all || set["name"] {
		p.Name = strings.TrimSpace(*f.name)
	}
	if all || set["description"] {
		p.Description = *f.description
	}
	if all || set["status"] {
		s, err := task.ParseStatus(*f.status)
		if err != nil {
			return err
		}
		p.Status = s
	}
	if all || set["teams"] {
		teams, err := task.ParseTeams(utils.SplitAndTrim(*f.teams, ","))
		if err != nil {
			return err
		}
		p.Teams = teams
	}
	if all || set["link"] {
		p.ExternalLink = strings.TrimSpace(*f.link)
	}
	return nil
}

// addCommand creates a task.
func addCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskboard add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := bindTaskFlags(fs, string(task.StatusTodo))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var p task.Payload
	if err := flags.apply(fs, &p, true); err != nil {
		return err
	}
	if err := task.ValidatePayload(p).Err(); err != nil {
		return commandError("create task", err)
	}

	client, _, err := newClient(cfg, newLogger(cfg), true)
	if err != nil {
		return err
	}
	created, err := client.CreateTask(ctx, p)
	if err != nil {
		return commandError("create task", err)
	}
	fmt.Fprintf(stdout, "Created task #%d %q in %s\n", created.ID, created.Name, created.Status.DisplayName())
	return nil
}

// editCommand updates the given fields of a task.
func editCommand(ctx context.Context, cfg *config.Config, args []string) error {
	ids, rest := splitPositional(args)
	fs := flag.NewFlagSet("taskboard edit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := bindTaskFlags(fs, "")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ids = append(ids, fs.Args()...)
	if len(ids) != 1 {
		return fmt.Errorf("usage: taskboard edit <id> [--name N] [--description D] [--status S] [--teams T] [--link URL]")
	}
	if fs.NFlag() == 0 {
		return fmt.Errorf("nothing to change, pass at least one field flag")
	}
	id, err := parseID(ids[0])
	if err != nil {
		return err
	}

	client, _, err := newClient(cfg, newLogger(cfg), true)
	if err != nil {
		return err
	}
	current, err := client.GetTask(ctx, id)
	if err != nil {
		return commandError(fmt.Sprintf("get task %d", id), err)
	}
	p := task.PayloadFrom(current)
	if err := flags.apply(fs, &p, false); err != nil {
		return err
	}
	if err := task.ValidatePayload(p).Err(); err != nil {
		return commandError(fmt.Sprintf("update task %d", id), err)
	}
	updated, err := client.UpdateTask(ctx, id, p)
	if err != nil {
		return commandError(fmt.Sprintf("update task %d", id), err)
	}
	fmt.Fprintf(stdout, "Updated task #%d %q\n", updated.ID, updated.Name)
	return nil
}

// rmCommand deletes tasks.
func rmCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: taskboard rm <id>...")
	}
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	client, _, err := newClient(cfg, newLogger(cfg), true)
	if err != nil {
		return err
	}

	pool := parallel.NewPool[struct{}](ctx, maxConcurrentRequests, false)
	for _, id := range ids {
		id := id
		pool.Submit(id, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, client.DeleteTask(ctx, id)
		})
	}
	results, errs := pool.Wait()
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(stdout, "#%d not deleted: %s\n", res.TaskID, describeError(res.Err))
			continue
		}
		fmt.Fprintf(stdout, "Deleted task #%d\n", res.TaskID)
	}
	if len(errs) == 1 && len(ids) == 1 {
		return commandError(fmt.Sprintf("delete task %d", ids[0]), results[0].Err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d deletes failed", len(errs), len(ids))
	}
	return nil
}

// mvCommand moves tasks through the same optimistic coordinator the board
// uses. Several ids move concurrently.
func mvCommand(ctx context.Context, cfg *config.Config, args []string) error {
	positional, rest := splitPositional(args)
	fs := flag.NewFlagSet("taskboard mv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	to := fs.String("to", "", "Target status (todo|doing|done)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	positional = append(positional, fs.Args()...)
	if len(positional) == 0 || *to == "" {
		return fmt.Errorf("usage: taskboard mv <id>... --to STATUS")
	}
	target, err := task.ParseStatus(*to)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(positional))
	for _, a := range positional {
		id, err := parseID(a)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	logger := newLogger(cfg)
	client, _, err := newClient(cfg, logger, true)
	if err != nil {
		return err
	}

	st := store.New()
	st.Register(store.TasksKey, client.ListTasks)
	tasks, err := st.Fetch(ctx, store.TasksKey)
	if err != nil {
		return commandError("list tasks", err)
	}

	runner := &hooks.Runner{Command: cfg.HookCommand, WorkDir: cfg.ProjectRoot, Logger: logger}
	coord, err := move.New(move.Options{
		Store:          st,
		Updater:        client,
		Notifier:       notify.Logger{Log: logger},
		Logger:         logger,
		Policy:         cfg.Policy(),
		Placement:      cfg.Placement(),
		RequestTimeout: cfg.RequestTimeout(),
		OnSettled:      runner.OnSettled,
	})
	if err != nil {
		return err
	}

	pool := parallel.NewPool[move.Result](ctx, 0, false)
	for _, id := range ids {
		id := id
		pool.Submit(id, func(ctx context.Context) (move.Result, error) {
			t, ok := task.Find(tasks, id)
			if !ok {
				return move.Result{TaskID: id, To: target, Outcome: move.OutcomeSkipped}, fmt.Errorf("task %d not found", id)
			}
			res := <-coord.MoveTask(ctx, id, target, t)
			return res, res.Err
		})
	}
	settled, _ := pool.Wait()
	coord.Wait()
	runner.Wait()

	results := make([]move.Result, len(settled))
	for i, s := range settled {
		results[i] = s.Value
		results[i].TaskID, results[i].Err = s.TaskID, s.Err
	}

	failed := 0
	for _, res := range results {
		switch {
		case res.OK():
			fmt.Fprintf(stdout, "#%d %s -> %s\n", res.TaskID, res.From.Title(), res.To.Title())
		case res.Outcome == move.OutcomeSkipped && errors.Is(res.Err, move.ErrSameStatus):
			fmt.Fprintf(stdout, "#%d already in %s\n", res.TaskID, res.To.Title())
		default:
			failed++
			fmt.Fprintf(stdout, "#%d failed: %s\n", res.TaskID, describeError(res.Err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d moves failed", failed, len(results))
	}
	return nil
}

func describeError(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case api.IsUnauthorized(err):
		return "session is no longer valid, run `taskboard login` again"
	}
	var apiErr *api.APIError
	var transportErr *api.TransportError
	if errors.As(err, &apiErr) || errors.As(err, &transportErr) {
		return api.Message(err)
	}
	return err.Error()
}

// splitPositional returns the leading non-flag arguments and the rest.
func splitPositional(args []string) (positional, rest []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			return args[:i:i], args[i:]
		}
	}
	return args, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func formatTeams(teams []task.Team) string {
	if len(teams) == 0 {
		return "-"
	}
	normalized := task.NormalizeTeams(teams)
	names := make([]string, len(normalized))
	for i, t := range normalized {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
