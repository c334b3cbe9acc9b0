package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskboard-go/internal/move"
	"github.com/nibzard/taskboard-go/internal/task"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("hook scripts are POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "hook.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

var sampleEvent = Event{TaskID: 7, Name: "Write docs", From: "TO_DO", To: "DONE", Outcome: "succeeded"}

func TestInvoke(t *testing.T) {
	t.Run("empty command does nothing", func(t *testing.T) {
		result, err := Invoke(context.Background(), Options{Event: sampleEvent})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Ran {
			t.Error("expected Ran to be false")
		}
	})

	t.Run("missing task id returns error", func(t *testing.T) {
		result, err := Invoke(context.Background(), Options{Command: "true"})
		if err == nil {
			t.Fatal("expected error")
		}
		if result.Ran {
			t.Error("expected Ran to be false")
		}
	})

	t.Run("arguments env and stdin", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.txt")
		script := writeScript(t, `echo "$1 $2 $3" > `+out+`
echo "$TASKBOARD_TASK_NAME|$TASKBOARD_FROM_STATUS|$TASKBOARD_ERROR" >> `+out+`
cat >> `+out)

		result, err := Invoke(context.Background(), Options{Command: script, Event: sampleEvent})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !result.Ran || result.ExitCode != 0 {
			t.Fatalf("result = %+v", result)
		}
		if len(result.Command) != 4 || result.Command[1] != "7" {
			t.Errorf("Command = %v", result.Command)
		}

		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.SplitN(string(data), "\n", 3)
		if lines[0] != "7 DONE succeeded" {
			t.Errorf("args line = %q", lines[0])
		}
		if lines[1] != "Write docs|TO_DO|" {
			t.Errorf("env line = %q", lines[1])
		}
		var got Event
		if err := json.Unmarshal([]byte(lines[2]), &got); err != nil {
			t.Fatalf("stdin is not JSON: %q", lines[2])
		}
		if got != sampleEvent {
			t.Errorf("stdin event = %+v", got)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		script := writeScript(t, "echo boom\nexit 42")
		result, err := Invoke(context.Background(), Options{Command: script, Event: sampleEvent})
		if err == nil {
			t.Fatal("expected error for failed hook, got nil")
		}
		if !result.Ran || result.ExitCode != 42 || result.Output != "boom" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("work dir", func(t *testing.T) {
		dir := t.TempDir()
		script := writeScript(t, "pwd")
		result, err := Invoke(context.Background(), Options{Command: script, Event: sampleEvent, WorkDir: dir})
		if err != nil {
			t.Fatal(err)
		}
		want, _ := filepath.EvalSymlinks(dir)
		got, _ := filepath.EvalSymlinks(result.Output)
		if got != want {
			t.Errorf("pwd = %q, want %q", result.Output, dir)
		}
	})

	t.Run("context cancellation kills hook", func(t *testing.T) {
		script := writeScript(t, "sleep 10")
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := Invoke(ctx, Options{Command: script, Event: sampleEvent})
		if err == nil {
			t.Fatal("expected error from cancelled hook")
		}
		if time.Since(start) > 5*time.Second {
			t.Error("hook was not killed on cancellation")
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		result, err := Invoke(context.Background(), Options{Command: "/nonexistent/hook", Event: sampleEvent})
		if err == nil || result.ExitCode != -1 {
			t.Fatalf("result = %+v, err = %v", result, err)
		}
	})
}

func TestEventFrom(t *testing.T) {
	res := move.Result{
		TaskID:  3,
		Name:    "Ship",
		From:    task.StatusDoing,
		To:      task.StatusDone,
		Outcome: move.OutcomeFailed,
		Err:     errors.New("Request failed with status code 500"),
	}
	ev := EventFrom(res)
	want := Event{TaskID: 3, Name: "Ship", From: "DOING", To: "DONE", Outcome: "failed", Error: "Request failed with status code 500"}
	if ev != want {
		t.Errorf("EventFrom = %+v, want %+v", ev, want)
	}
}

func TestRunner(t *testing.T) {
	out := filepath.Join(t.TempDir(), "calls.txt")
	script := writeScript(t, `echo "$1 $3" >> `+out)

	var logs bytes.Buffer
	r := &Runner{Command: script, Logger: log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel})}
	r.OnSettled(move.Result{TaskID: 1, To: task.StatusDone, Outcome: move.OutcomeSucceeded})
	r.Wait()
	r.OnSettled(move.Result{TaskID: 2, To: task.StatusDoing, Outcome: move.OutcomeFailed})
	r.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1 succeeded\n2 failed\n" {
		t.Errorf("calls = %q", data)
	}
	if !strings.Contains(logs.String(), "hook ran") {
		t.Errorf("expected debug log, got %q", logs.String())
	}

	var nilRunner *Runner
	nilRunner.OnSettled(move.Result{TaskID: 1})
	nilRunner.Wait()
	(&Runner{}).OnSettled(move.Result{TaskID: 1})
}
