// Package hooks runs an external command after a task move settles.
//
// The command is invoked as
//
//	<hook_command> <task-id> <status> <outcome>
//
// with the move described in TASKBOARD_* environment variables and as a
// JSON object on stdin.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskboard-go/internal/move"
)

// DefaultTimeout bounds a single hook run.
const DefaultTimeout = 30 * time.Second

// Event describes a settled move.
type Event struct {
	TaskID  int64  `json:"task_id"`
	Name    string `json:"name"`
	From    string `json:"from"`
	To      string `json:"to"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// EventFrom converts a move result.
func EventFrom(res move.Result) Event {
	ev := Event{
		TaskID:  res.TaskID,
		Name:    res.Name,
		From:    string(res.From),
		To:      string(res.To),
		Outcome: string(res.Outcome),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	return ev
}

// Options configures one hook invocation.
type Options struct {
	Command string
	Event   Event
	WorkDir string
}

// Result captures details about a hook invocation.
type Result struct {
	Ran      bool
	Command  []string
	ExitCode int
	Output   string
}

// Invoke runs the hook command for opts.Event. An empty command does nothing.
func Invoke(ctx context.Context, opts Options) (Result, error) {
	result := Result{}
	command := strings.TrimSpace(opts.Command)
	if command == "" {
		return result, nil
	}
	if opts.Event.TaskID <= 0 {
		return result, errors.New("hook event has no task id")
	}

	payload, err := json.Marshal(opts.Event)
	if err != nil {
		return result, fmt.Errorf("encode hook event: %w", err)
	}

	args := []string{strconv.FormatInt(opts.Event.TaskID, 10), opts.Event.To, opts.Event.Outcome}
	result.Command = append([]string{command}, args...)

	cmd := commandFor(ctx, command, args)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	cmd.Env = append(os.Environ(), eventEnv(opts.Event)...)
	cmd.Stdin = bytes.NewReader(payload)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	result.Ran = true
	err = cmd.Run()
	result.Output = strings.TrimSpace(out.String())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, fmt.Errorf("hook %s: %w", command, err)
	}
	return result, nil
}

// commandFor runs .bat and .cmd scripts through cmd.exe on Windows.
func commandFor(ctx context.Context, command string, args []string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		lower := strings.ToLower(command)
		if strings.HasSuffix(lower, ".bat") || strings.HasSuffix(lower, ".cmd") {
			return exec.CommandContext(ctx, "cmd", append([]string{"/c", command}, args...)...)
		}
	}
	return exec.CommandContext(ctx, command, args...)
}

func eventEnv(ev Event) []string {
	return []string{
		"TASKBOARD_TASK_ID=" + strconv.FormatInt(ev.TaskID, 10),
		"TASKBOARD_TASK_NAME=" + ev.Name,
		"TASKBOARD_FROM_STATUS=" + ev.From,
		"TASKBOARD_TO_STATUS=" + ev.To,
		"TASKBOARD_OUTCOME=" + ev.Outcome,
		"TASKBOARD_ERROR=" + ev.Error,
	}
}

// Runner invokes a hook in the background for every settled move.
// Its OnSettled method plugs into move.Options.
type Runner struct {
	Command string
	WorkDir string
	Timeout time.Duration
	Logger  *log.Logger

	wg sync.WaitGroup
}

// OnSettled starts the hook for res and returns immediately.
func (r *Runner) OnSettled(res move.Result) {
	if r == nil || strings.TrimSpace(r.Command) == "" {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		timeout := r.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := Invoke(ctx, Options{Command: r.Command, Event: EventFrom(res), WorkDir: r.WorkDir})
		if r.Logger == nil {
			return
		}
		if err != nil {
			r.Logger.Warn("hook failed", "task", res.TaskID, "exit", result.ExitCode, "output", result.Output, "err", err)
			return
		}
		r.Logger.Debug("hook ran", "task", res.TaskID, "command", strings.Join(result.Command, " "))
	}()
}

// Wait blocks until every started hook has finished.
func (r *Runner) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
