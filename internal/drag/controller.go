// Package drag turns pointer gestures into task moves.
//
// The controller is a two-state machine. Start enters Dragging with a
// session describing the card under the pointer; Drop, DropOn and Cancel
// return to Idle. Only a drop onto a different column calls the mover, and
// the session is cleared before that call so a new gesture can begin while
// the move is still in flight.
package drag

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskboard-go/internal/move"
	"github.com/nibzard/taskboard-go/internal/notify"
	"github.com/nibzard/taskboard-go/internal/task"
)

// State of the controller.
type State int

const (
	StateIdle State = iota
	StateDragging
)

func (s State) String() string {
	if s == StateDragging {
		return "dragging"
	}
	return "idle"
}

// Session is the in-progress gesture.
type Session struct {
	Task    task.Task // copy of the task when the drag started
	Origin  task.Status
	Pointer Point
	Grab    Point // pointer offset inside the card, kept while moving
}

// CardOrigin is where the floating card's top-left corner belongs.
func (s Session) CardOrigin() Point {
	return s.Pointer.Sub(s.Grab)
}

// Mover starts a status change. *move.Coordinator satisfies it.
type Mover interface {
	MoveTask(ctx context.Context, taskID int64, to task.Status, snapshot task.Task) <-chan move.Result
}

// Outcome describes what a drop did.
type Outcome string

const (
	OutcomeNotDragging Outcome = "not_dragging"
	OutcomeNoTarget    Outcome = "no_target"
	OutcomeSameColumn  Outcome = "same_column"
	OutcomeMoved       Outcome = "moved"
)

// AlreadyInColumn is the notice title for a drop onto the task's own column.
const AlreadyInColumn = "Task is already in this column"

// Drop is returned by Drop and DropOn.
type Drop struct {
	Outcome Outcome
	Task    task.Task
	Target  Region
	// Result is set for OutcomeMoved and delivers the move's result.
	Result <-chan move.Result
}

// Options configures a Controller.
type Options struct {
	Mover    Mover
	Notifier notify.Notifier
	Resolver Resolver
	Logger   *log.Logger
}

// DefaultTolerance is how far outside a region, in cells, a drop still
// counts as landing on it.
const DefaultTolerance = 2

// Controller is safe for concurrent use.
type Controller struct {
	mover    Mover
	notifier notify.Notifier
	resolve  Resolver
	logger   *log.Logger

	mu      sync.Mutex
	session *Session
}

// NewController returns an idle controller.
func NewController(opts Options) *Controller {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	resolve := opts.Resolver
	if resolve == nil {
		resolve = ClosestRegion(DefaultTolerance)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{mover: opts.Mover, notifier: notifier, resolve: resolve, logger: logger}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return StateDragging
	}
	return StateIdle
}

// Session returns a copy of the active session.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	s := *c.session
	s.Task = s.Task.Clone()
	return s, true
}

// Start begins dragging t, grabbed at pointer inside card. It returns false
// if a drag is already active.
func (c *Controller) Start(t task.Task, pointer Point, card Rect) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return false
	}
	c.session = &Session{
		Task:    t.Clone(),
		Origin:  t.Status,
		Pointer: pointer,
		Grab:    pointer.Sub(card.Min),
	}
	c.logger.Debug("drag start", "task", t.ID, "status", t.Status)
	return true
}

// Move updates the pointer of the active drag.
func (c *Controller) Move(p Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return false
	}
	c.session.Pointer = p
	return true
}

// Target resolves the region under p without ending the drag. The board
// uses it to highlight the hovered column.
func (c *Controller) Target(p Point, regions []Region) (Region, bool) {
	return c.resolve(p, regions)
}

// Drop ends the drag at p and resolves the target among regions.
func (c *Controller) Drop(ctx context.Context, p Point, regions []Region) Drop {
	c.mu.Lock()
	if c.session != nil {
		c.session.Pointer = p
	}
	c.mu.Unlock()

	target, ok := c.resolve(p, regions)
	if !ok {
		return c.finish(ctx, nil)
	}
	return c.finish(ctx, &target)
}

// DropOn ends the drag on a known region, as keyboard drops do.
func (c *Controller) DropOn(ctx context.Context, target Region) Drop {
	return c.finish(ctx, &target)
}

// Cancel abandons the drag. It returns false when idle.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return false
	}
	c.logger.Debug("drag cancelled", "task", c.session.Task.ID)
	c.session = nil
	return true
}

func (c *Controller) finish(ctx context.Context, target *Region) Drop {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return Drop{Outcome: OutcomeNotDragging}
	}
	if target == nil {
		c.logger.Debug("drop outside any column", "task", s.Task.ID)
		return Drop{Outcome: OutcomeNoTarget, Task: s.Task}
	}
	if target.Status == s.Origin {
		c.notifier.Notify(notify.Info(AlreadyInColumn))
		return Drop{Outcome: OutcomeSameColumn, Task: s.Task, Target: *target}
	}

	c.logger.Debug("drop", "task", s.Task.ID, "from", s.Origin, "to", target.Status)
	var result <-chan move.Result
	if c.mover != nil {
		result = c.mover.MoveTask(ctx, s.Task.ID, target.Status, s.Task)
	}
	return Drop{Outcome: OutcomeMoved, Task: s.Task, Target: *target, Result: result}
}
