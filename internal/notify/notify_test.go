package notify

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestConstructors(t *testing.T) {
	if n := Success("a", "b"); n.Level != LevelSuccess || n.Duration != 3*time.Second {
		t.Errorf("Success() = %+v", n)
	}
	if n := Error("a", "b"); n.Level != LevelError || n.Duration != 4*time.Second {
		t.Errorf("Error() = %+v", n)
	}
	if n := Info("a"); n.Level != LevelInfo || n.Description != "" {
		t.Errorf("Info() = %+v", n)
	}
}

func TestCenterExpiry(t *testing.T) {
	c := NewCenter(2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Notify(Success("moved", ""))
	c.Notify(Error("failed", ""))

	select {
	case <-c.C:
	default:
		t.Fatalf("expected a signal on C")
	}

	if got := c.Active(); len(got) != 2 {
		t.Fatalf("Active() len = %d, want 2", len(got))
	}

	now = now.Add(3500 * time.Millisecond)
	got := c.Active()
	if len(got) != 1 || got[0].Title != "failed" {
		t.Fatalf("after 3.5s Active() = %+v, want only the error", got)
	}

	now = now.Add(time.Second)
	if got := c.Active(); len(got) != 0 {
		t.Fatalf("after 4.5s Active() = %+v, want none", got)
	}
}

func TestCenterEvictsOldest(t *testing.T) {
	c := NewCenter(2)
	c.Notify(Info("1"))
	c.Notify(Info("2"))
	c.Notify(Info("3"))
	got := c.Active()
	if len(got) != 2 || got[0].Title != "2" || got[1].Title != "3" {
		t.Fatalf("Active() = %+v", got)
	}
	c.Dismiss()
	if len(c.Active()) != 0 {
		t.Fatalf("Dismiss left notices")
	}
}

func TestLoggerNotifier(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	Multi{Logger{Log: l}, nil}.Notify(Error("Failed to move task", `Could not move "x". Please try again.`))
	out := buf.String()
	if !strings.Contains(out, "Failed to move task") || !strings.Contains(out, "Please try again") {
		t.Fatalf("unexpected log output: %q", out)
	}
	if !strings.Contains(out, "ERRO") {
		t.Errorf("error notice not logged at error level: %q", out)
	}

	buf.Reset()
	Logger{Log: l}.Notify(Success("Task moved successfully!", `"x" is now in Done`))
	Logger{Log: l}.Notify(Info("refreshing"))
	out = buf.String()
	if strings.Count(out, "INFO") != 2 || strings.Contains(out, "ERRO") {
		t.Errorf("success and info notices should log at info level: %q", out)
	}
}
