// Package move applies task status changes optimistically.
//
// A move snapshots the cached task list, rewrites the moved task's status in
// the cache, and only then issues the remote update. Success keeps the
// optimistic state; failure restores the snapshot. Either way the cache is
// invalidated and refetched afterwards so it converges on server truth.
package move

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/notify"
	"github.com/nibzard/taskboard-go/internal/store"
	"github.com/nibzard/taskboard-go/internal/task"
)

var (
	// ErrSameStatus is returned when a task is moved to the status it has.
	ErrSameStatus = errors.New("task already has this status")
	// ErrMoveInFlight is returned under PolicySerialize when the task is
	// still being moved.
	ErrMoveInFlight = errors.New("a move for this task is already in progress")
	// ErrInvalidStatus is returned for a target outside the known statuses.
	ErrInvalidStatus = errors.New("invalid target status")
)

// Policy decides what happens when a task is moved again before its
// previous move has settled.
type Policy string

const (
	// PolicySerialize rejects the second move.
	PolicySerialize Policy = "serialize"
	// PolicyAllow runs both; a late rollback may clobber the newer optimistic
	// write until the follow-up refresh lands.
	PolicyAllow Policy = "allow"
)

// Placement decides where the moved task sits in the cached list.
type Placement string

const (
	// PlacementAppend moves the task to the end of the list, so it shows up
	// last in its new column.
	PlacementAppend Placement = "append"
	// PlacementInPlace keeps the task at its current index.
	PlacementInPlace Placement = "in-place"
)

// ParsePolicy validates a policy name. Empty means PolicySerialize.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySerialize:
		return PolicySerialize, nil
	case PolicyAllow:
		return PolicyAllow, nil
	}
	return "", fmt.Errorf("invalid move policy %q, must be one of: serialize, allow", s)
}

// ParsePlacement validates a placement name. Empty means PlacementAppend.
func ParsePlacement(s string) (Placement, error) {
	switch Placement(s) {
	case "", PlacementAppend:
		return PlacementAppend, nil
	case PlacementInPlace, "inplace", "in_place":
		return PlacementInPlace, nil
	}
	return "", fmt.Errorf("invalid move placement %q, must be one of: append, in-place", s)
}

// Updater performs the remote status update. *api.Client satisfies it.
type Updater interface {
	UpdateTask(ctx context.Context, id int64, p task.Payload) (task.Task, error)
}

// Outcome classifies a settled move.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result is delivered once per MoveTask call.
type Result struct {
	TaskID  int64
	Name    string
	From    task.Status
	To      task.Status
	Outcome Outcome
	Task    task.Task // server copy on success
	Err     error
}

// OK reports whether the move was accepted by the server.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSucceeded
}

// Options configures a Coordinator.
type Options struct {
	Store     *store.Store
	Updater   Updater
	Notifier  notify.Notifier
	Logger    *log.Logger
	Policy    Policy
	Placement Placement

	// RequestTimeout bounds each remote update. The update is detached from
	// the caller's cancellation so an issued request is never abandoned.
	RequestTimeout time.Duration

	// OnSettled is called after every move that reached the server, once
	// the snapshot has been committed or restored.
	OnSettled func(Result)
}

// Coordinator runs optimistic moves against a store.
type Coordinator struct {
	store     *store.Store
	updater   Updater
	notifier  notify.Notifier
	logger    *log.Logger
	policy    Policy
	placement Placement
	timeout   time.Duration
	onSettled func(Result)

	mu       sync.Mutex
	inFlight map[int64]int
	// base is the list as it was before the first of the moves currently
	// in flight. Rollbacks take their position from it.
	base []task.Task
	wg   sync.WaitGroup
}

// New returns a coordinator. Store and Updater are required.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("move: store is required")
	}
	if opts.Updater == nil {
		return nil, errors.New("move: updater is required")
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	placement, err := ParsePlacement(string(opts.Placement))
	if err != nil {
		return nil, err
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Coordinator{
		store:     opts.Store,
		updater:   opts.Updater,
		notifier:  notifier,
		logger:    logger,
		policy:    policy,
		placement: placement,
		timeout:   timeout,
		onSettled: opts.OnSettled,
		inFlight:  make(map[int64]int),
	}, nil
}

// MoveTask moves the task to status to. snapshot is the caller's copy of the
// task as it looked when the gesture started; its fields fill the update
// payload.
//
// The optimistic cache write has happened by the time MoveTask returns. The
// returned channel receives exactly one Result once the remote update has
// settled, and is then closed. The background refresh that follows may
// still be running; use Wait to block until it finishes.
func (c *Coordinator) MoveTask(ctx context.Context, taskID int64, to task.Status, snapshot task.Task) <-chan Result {
	out := make(chan Result, 1)
	res := Result{TaskID: taskID, Name: snapshot.Name, From: snapshot.Status, To: to}

	if !to.Valid() {
		res.Outcome, res.Err = OutcomeSkipped, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
		out <- res
		close(out)
		return out
	}
	if to == snapshot.Status {
		res.Outcome, res.Err = OutcomeSkipped, ErrSameStatus
		out <- res
		close(out)
		return out
	}
	if !c.acquire(taskID) {
		c.notifier.Notify(notify.Info(fmt.Sprintf("%q is still being moved", snapshot.Name)))
		c.logger.Debug("move rejected, already in flight", "task", taskID)
		res.Outcome, res.Err = OutcomeSkipped, ErrMoveInFlight
		out <- res
		close(out)
		return out
	}

	c.mu.Lock()
	snap := c.store.Snapshot(store.TasksKey)
	_, cached := task.Find(snap.Tasks(), taskID)
	var version uint64
	if cached {
		if c.base == nil {
			c.base = snap.Tasks()
		}
		version = c.store.Update(store.TasksKey, func(tasks []task.Task) []task.Task {
			return applyMove(tasks, taskID, to, c.placement)
		})
	}
	base := c.base
	c.mu.Unlock()
	if cached {
		c.logger.Debug("optimistic move", "task", taskID, "from", snapshot.Status, "to", to)
	} else {
		c.logger.Debug("task not cached, skipping optimistic write", "task", taskID)
	}

	payload := task.PayloadFrom(snapshot)
	payload.Status = to

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		updated, err := c.updater.UpdateTask(reqCtx, taskID, payload)
		cancel()

		if err != nil {
			if cached {
				c.rollback(snap, version, snapshot, base)
			}
			res.Outcome, res.Err = OutcomeFailed, err
			c.logger.Error("move task failed", "task", taskID, "to", to, "error", api.Message(err))
			c.notifier.Notify(notify.Error(
				"Failed to move task",
				fmt.Sprintf("Could not move %q. Please try again.", snapshot.Name),
			))
		} else {
			res.Outcome, res.Task = OutcomeSucceeded, updated
			c.logger.Info("task moved", "task", taskID, "from", snapshot.Status, "to", to)
			c.notifier.Notify(notify.Success(
				"Task moved successfully!",
				fmt.Sprintf("%q is now in %s", snapshot.Name, to.DisplayName()),
			))
		}
		idle := c.release(taskID)

		// Resync runs for both outcomes. While other moves are still in
		// flight the refetch is left to the last one to settle, so a server
		// list that predates their writes does not briefly undo them.
		c.store.Invalidate(store.TasksKey)
		if c.onSettled != nil {
			c.onSettled(res)
		}
		out <- res
		close(out)

		if idle {
			c.resync(ctx)
		}
	}()
	return out
}

// Wait blocks until every issued move and its refresh have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// InFlight reports whether a move of taskID has not settled yet.
func (c *Coordinator) InFlight(taskID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[taskID] > 0
}

func (c *Coordinator) acquire(taskID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.policy == PolicySerialize && c.inFlight[taskID] > 0 {
		return false
	}
	c.inFlight[taskID]++
	return true
}

// release marks one move of taskID as settled and reports whether no moves
// remain in flight.
func (c *Coordinator) release(taskID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight[taskID]--
	if c.inFlight[taskID] <= 0 {
		delete(c.inFlight, taskID)
	}
	if len(c.inFlight) == 0 {
		c.base = nil
		return true
	}
	return false
}

// rollback restores the snapshot exactly when nothing else touched the cache
// since the optimistic write. Otherwise only the moved task is put back, so
// concurrent moves of other tasks keep their optimistic state.
func (c *Coordinator) rollback(snap store.Snapshot, version uint64, moved task.Task, base []task.Task) {
	if c.store.CompareAndRestore(store.TasksKey, snap, version) {
		return
	}
	var old task.Task
	if t, ok := task.Find(snap.Tasks(), moved.ID); ok {
		old = t
	} else {
		old = moved
	}
	c.store.Update(store.TasksKey, func(tasks []task.Task) []task.Task {
		return revertTask(tasks, base, old)
	})
}

func (c *Coordinator) resync(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if _, err := c.store.Refresh(refreshCtx, store.TasksKey); err != nil {
		c.logger.Warn("refresh after move failed", "error", err)
	}
}

// applyMove returns tasks with taskID's status set to to. Unknown ids leave
// the list unchanged.
func applyMove(tasks []task.Task, taskID int64, to task.Status, placement Placement) []task.Task {
	idx := -1
	for i := range tasks {
		if tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return tasks
	}
	moved := tasks[idx].WithStatus(to)
	if placement == PlacementInPlace {
		tasks[idx] = moved
		return tasks
	}
	out := make([]task.Task, 0, len(tasks))
	out = append(out, tasks[:idx]...)
	out = append(out, tasks[idx+1:]...)
	return append(out, moved)
}

// revertTask puts old back into tasks. Its position comes from order, the
// list before any of the in-flight moves: it goes in front of the first task
// that followed it there and is still in its column, else behind the nearest
// one that preceded it, else in front of any task that followed it. Anchoring
// on order rather than on the failed move's own snapshot keeps a column
// intact when several moves out of it fail.
func revertTask(tasks, order []task.Task, old task.Task) []task.Task {
	out := make([]task.Task, 0, len(tasks)+1)
	index := make(map[int64]int, len(tasks))
	for _, t := range tasks {
		if t.ID != old.ID {
			index[t.ID] = len(out)
			out = append(out, t)
		}
	}

	pos := -1
	if at := indexOf(order, old.ID); at >= 0 {
		sameColumn := func(id int64) (int, bool) {
			i, ok := index[id]
			return i, ok && out[i].Status == old.Status
		}
		for _, t := range order[at+1:] {
			if i, ok := sameColumn(t.ID); ok {
				pos = i
				break
			}
		}
		if pos < 0 {
			for j := at - 1; j >= 0; j-- {
				if i, ok := sameColumn(order[j].ID); ok {
					pos = i + 1
					break
				}
			}
		}
		if pos < 0 {
			for _, t := range order[at+1:] {
				if i, ok := index[t.ID]; ok {
					pos = i
					break
				}
			}
		}
	}
	if pos < 0 {
		return append(out, old)
	}
	out = append(out, task.Task{})
	copy(out[pos+1:], out[pos:])
	out[pos] = old
	return out
}

func indexOf(tasks []task.Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
