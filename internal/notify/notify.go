// Package notify carries short-lived user notices (toasts) from the move
// coordinator and drag controller to whatever surface is displaying them.
package notify

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Default display durations.
const (
	SuccessDuration = 3 * time.Second
	ErrorDuration   = 4 * time.Second
	InfoDuration    = 2 * time.Second
)

// Notice is a single message shown to the user.
type Notice struct {
	Level       Level
	Title       string
	Description string
	Duration    time.Duration
}

// Info builds an informational notice.
func Info(title string) Notice {
	return Notice{Level: LevelInfo, Title: title, Duration: InfoDuration}
}

// Success builds a success notice.
func Success(title, description string) Notice {
	return Notice{Level: LevelSuccess, Title: title, Description: description, Duration: SuccessDuration}
}

// Error builds an error notice.
func Error(title, description string) Notice {
	return Notice{Level: LevelError, Title: title, Description: description, Duration: ErrorDuration}
}

// Notifier accepts notices. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

// Notify calls f(n).
func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Active is a notice with its expiry time.
type Active struct {
	Notice
	ID        uint64
	ExpiresAt time.Time
}

// Center keeps the currently visible notices for an interactive display and
// signals on C whenever a notice arrives.
type Center struct {
	mu     sync.Mutex
	active []Active
	nextID uint64
	max    int
	now    func() time.Time

	C chan struct{}
}

// NewCenter returns a center that keeps at most max visible notices.
func NewCenter(max int) *Center {
	if max <= 0 {
		max = 3
	}
	return &Center{max: max, now: time.Now, C: make(chan struct{}, 1)}
}

// Notify adds n to the visible set, evicting the oldest when full.
func (c *Center) Notify(n Notice) {
	if n.Duration <= 0 {
		n.Duration = InfoDuration
	}
	c.mu.Lock()
	c.nextID++
	c.active = append(c.active, Active{Notice: n, ID: c.nextID, ExpiresAt: c.now().Add(n.Duration)})
	if len(c.active) > c.max {
		c.active = c.active[len(c.active)-c.max:]
	}
	c.mu.Unlock()

	select {
	case c.C <- struct{}{}:
	default:
	}
}

// Active returns unexpired notices, oldest first, and prunes expired ones.
func (c *Center) Active() []Active {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	kept := c.active[:0]
	for _, a := range c.active {
		if now.Before(a.ExpiresAt) {
			kept = append(kept, a)
		}
	}
	c.active = kept
	out := make([]Active, len(kept))
	copy(out, kept)
	return out
}

// Dismiss removes every visible notice.
func (c *Center) Dismiss() {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
}

// Logger writes notices to a charmbracelet logger. The CLI uses it where
// there is no toast surface.
type Logger struct {
	Log *log.Logger
}

// Notify logs n at a level matching its severity.
func (l Logger) Notify(n Notice) {
	if l.Log == nil {
		return
	}
	msg := n.Title
	keyvals := []interface{}{}
	if n.Description != "" {
		keyvals = append(keyvals, "detail", n.Description)
	}
	switch n.Level {
	case LevelError:
		l.Log.Error(msg, keyvals...)
	default:
		l.Log.Info(msg, keyvals...)
	}
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify forwards n to every non-nil notifier.
func (m Multi) Notify(n Notice) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}
