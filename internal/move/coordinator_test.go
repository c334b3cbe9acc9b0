package move

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nibzard/taskboard-go/internal/notify"
	"github.com/nibzard/taskboard-go/internal/store"
	"github.com/nibzard/taskboard-go/internal/task"
)

// fakeServer is an Updater whose responses can be held per task.
type fakeServer struct {
	mu    sync.Mutex
	tasks []task.Task
	gates map[int64]chan error
	calls int
	loads int

	// loadGate, when set, blocks every load until it is closed.
	loadGate chan struct{}
}

func newFakeServer(tasks []task.Task) *fakeServer {
	return &fakeServer{tasks: task.CloneAll(tasks), gates: make(map[int64]chan error)}
}

// hold makes the next update of id block until a value is sent on the
// returned channel (nil for success).
func (f *fakeServer) hold(id int64) chan error {
	ch := make(chan error, 1)
	f.mu.Lock()
	f.gates[id] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeServer) UpdateTask(ctx context.Context, id int64, p task.Payload) (task.Task, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[id]
	delete(f.gates, id)
	f.mu.Unlock()

	if gate != nil {
		if err := <-gate; err != nil {
			return task.Task{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = applyMove(f.tasks, id, p.Status, PlacementAppend)
	t, _ := task.Find(f.tasks, id)
	return t, nil
}

func (f *fakeServer) load(ctx context.Context) ([]task.Task, error) {
	f.mu.Lock()
	gate := f.loadGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return task.CloneAll(f.tasks), nil
}

func (f *fakeServer) counts() (calls, loads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.loads
}

type recorder struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (r *recorder) Notify(n notify.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recorder) all() []notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notice(nil), r.notices...)
}

type harness struct {
	store  *store.Store
	server *fakeServer
	notes  *recorder
	coord  *Coordinator
}

func newHarness(t *testing.T, tasks []task.Task, policy Policy) *harness {
	t.Helper()
	h := &harness{store: store.New(), server: newFakeServer(tasks), notes: &recorder{}}
	h.store.Register(store.TasksKey, h.server.load)
	h.store.Write(store.TasksKey, tasks)
	coord, err := New(Options{
		Store:          h.store,
		Updater:        h.server,
		Notifier:       h.notes,
		Policy:         policy,
		RequestTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.coord = coord
	return h
}

func (h *harness) cached(t *testing.T) []task.Task {
	t.Helper()
	tasks, ok := h.store.Read(store.TasksKey)
	if !ok {
		t.Fatalf("tasks missing from store")
	}
	return tasks
}

func statusOf(tasks []task.Task, id int64) task.Status {
	t, _ := task.Find(tasks, id)
	return t.Status
}

func ids(tasks []task.Task) []int64 {
	out := []int64{}
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for move result")
	}
	return Result{}
}

func TestSameStatusIsNoop(t *testing.T) {
	tasks := []task.Task{{ID: 1, Name: "a", Status: task.StatusTodo}}
	h := newHarness(t, tasks, PolicySerialize)
	before := h.store.Version(store.TasksKey)

	res := receive(t, h.coord.MoveTask(context.Background(), 1, task.StatusTodo, tasks[0]))
	if !errors.Is(res.Err, ErrSameStatus) || res.Outcome != OutcomeSkipped {
		t.Fatalf("result = %+v, want ErrSameStatus", res)
	}
	h.coord.Wait()
	if calls, loads := h.server.counts(); calls != 0 || loads != 0 {
		t.Fatalf("calls=%d loads=%d, want none", calls, loads)
	}
	if h.store.Version(store.TasksKey) != before {
		t.Fatalf("store mutated by a no-op move")
	}
	if len(h.notes.all()) != 0 {
		t.Fatalf("no-op move produced notices")
	}
}

func TestInvalidTarget(t *testing.T) {
	tasks := []task.Task{{ID: 1, Name: "a", Status: task.StatusTodo}}
	h := newHarness(t, tasks, PolicySerialize)
	res := receive(t, h.coord.MoveTask(context.Background(), 1, "ARCHIVED", tasks[0]))
	if !errors.Is(res.Err, ErrInvalidStatus) {
		t.Fatalf("result = %+v, want ErrInvalidStatus", res)
	}
}

func TestOptimisticThenCommit(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Name: "Write spec", Status: task.StatusTodo},
		{ID: 2, Name: "b", Status: task.StatusDoing},
	}
	h := newHarness(t, tasks, PolicySerialize)
	gate := h.server.hold(1)

	var settled []Result
	var settledMu sync.Mutex
	h.coord.onSettled = func(r Result) {
		settledMu.Lock()
		settled = append(settled, r)
		settledMu.Unlock()
	}

	ch := h.coord.MoveTask(context.Background(), 1, task.StatusDone, tasks[0])

	// Visible before the server answers.
	if got := statusOf(h.cached(t), 1); got != task.StatusDone {
		t.Fatalf("optimistic status = %s, want DONE", got)
	}
	if !h.coord.InFlight(1) {
		t.Fatalf("move not reported in flight")
	}

	gate <- nil
	res := receive(t, ch)
	if !res.OK() || res.Task.Status != task.StatusDone {
		t.Fatalf("result = %+v", res)
	}
	h.coord.Wait()

	if got := statusOf(h.cached(t), 1); got != task.StatusDone {
		t.Fatalf("status after commit = %s", got)
	}
	if h.store.Stale(store.TasksKey) {
		t.Fatalf("store still stale after resync")
	}
	if _, loads := h.server.counts(); loads != 1 {
		t.Fatalf("loads = %d, want 1", loads)
	}

	notes := h.notes.all()
	if len(notes) != 1 {
		t.Fatalf("notices = %+v", notes)
	}
	want := notify.Success("Task moved successfully!", `"Write spec" is now in Done`)
	if notes[0] != want {
		t.Fatalf("notice = %+v, want %+v", notes[0], want)
	}
	settledMu.Lock()
	defer settledMu.Unlock()
	if len(settled) != 1 || settled[0].TaskID != 1 {
		t.Fatalf("OnSettled calls = %+v", settled)
	}
}

func TestRollbackExactness(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Name: "a", Status: task.StatusTodo},
		{ID: 2, Name: "b", Status: task.StatusDoing},
	}
	h := newHarness(t, tasks, PolicySerialize)
	gate := h.server.hold(1)

	ch := h.coord.MoveTask(context.Background(), 1, task.StatusDone, tasks[0])
	if got := ids(h.cached(t)); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Fatalf("optimistic order = %v, want [2 1]", got)
	}

	gate <- errors.New("network down")
	res := receive(t, ch)
	if res.Outcome != OutcomeFailed || res.Err == nil {
		t.Fatalf("result = %+v, want failure", res)
	}
	if got := h.cached(t); !reflect.DeepEqual(got, tasks) {
		t.Fatalf("after rollback = %+v, want %+v", got, tasks)
	}

	notes := h.notes.all()
	want := notify.Error("Failed to move task", `Could not move "a". Please try again.`)
	if len(notes) != 1 || notes[0] != want {
		t.Fatalf("notices = %+v, want %+v", notes, want)
	}

	h.coord.Wait()
	if got := h.cached(t); !reflect.DeepEqual(got, tasks) {
		t.Fatalf("after resync = %+v, want %+v", got, tasks)
	}
	if _, loads := h.server.counts(); loads != 1 {
		t.Fatalf("failure path skipped the refresh")
	}
}

func TestMovedTaskLandsLastInColumn(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Name: "a", Status: task.StatusDone},
		{ID: 2, Name: "b", Status: task.StatusTodo},
		{ID: 3, Name: "c", Status: task.StatusDone},
	}
	h := newHarness(t, tasks, PolicySerialize)
	gate := h.server.hold(2)

	ch := h.coord.MoveTask(context.Background(), 2, task.StatusDone, tasks[1])
	done := task.Partition(h.cached(t))[task.StatusDone]
	if got := ids(done); !reflect.DeepEqual(got, []int64{1, 3, 2}) {
		t.Fatalf("optimistic DONE = %v, want [1 3 2]", got)
	}
	gate <- nil
	receive(t, ch)
	h.coord.Wait()

	done = task.Partition(h.cached(t))[task.StatusDone]
	if got := ids(done); !reflect.DeepEqual(got, []int64{1, 3, 2}) {
		t.Fatalf("DONE after resync = %v, want [1 3 2]", got)
	}
}

func TestInPlacePlacement(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Status: task.StatusDone},
		{ID: 2, Status: task.StatusTodo},
		{ID: 3, Status: task.StatusDone},
	}
	got := applyMove(task.CloneAll(tasks), 2, task.StatusDone, PlacementInPlace)
	if ids := ids(task.Partition(got)[task.StatusDone]); !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Fatalf("in-place DONE = %v, want [1 2 3]", ids)
	}
	if same := applyMove(task.CloneAll(tasks), 42, task.StatusDone, PlacementAppend); !reflect.DeepEqual(same, tasks) {
		t.Fatalf("unknown id changed the list: %+v", same)
	}
}

func TestSerializeRejectsSecondMove(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Name: "a", Status: task.StatusTodo},
		{ID: 2, Name: "b", Status: task.StatusTodo},
	}
	h := newHarness(t, tasks, PolicySerialize)
	gate := h.server.hold(1)

	first := h.coord.MoveTask(context.Background(), 1, task.StatusDoing, tasks[0])
	moved := tasks[0].WithStatus(task.StatusDoing)
	second := receive(t, h.coord.MoveTask(context.Background(), 1, task.StatusDone, moved))
	if !errors.Is(second.Err, ErrMoveInFlight) {
		t.Fatalf("second result = %+v, want ErrMoveInFlight", second)
	}
	if got := statusOf(h.cached(t), 1); got != task.StatusDoing {
		t.Fatalf("rejected move changed the cache: %s", got)
	}

	// Another task is unaffected.
	other := receive(t, h.coord.MoveTask(context.Background(), 2, task.StatusDone, tasks[1]))
	if !other.OK() {
		t.Fatalf("other task result = %+v", other)
	}

	gate <- nil
	receive(t, first)
	h.coord.Wait()

	got := h.cached(t)
	if statusOf(got, 1) != task.StatusDoing || statusOf(got, 2) != task.StatusDone {
		t.Fatalf("final cache = %+v", got)
	}
	if calls, _ := h.server.counts(); calls != 2 {
		t.Fatalf("server calls = %d, want 2", calls)
	}
	infos := 0
	for _, n := range h.notes.all() {
		if n.Level == notify.LevelInfo {
			infos++
		}
	}
	if infos != 1 {
		t.Fatalf("info notices = %d, want 1", infos)
	}
}

func TestAllowPolicyRunsBoth(t *testing.T) {
	tasks := []task.Task{{ID: 1, Name: "a", Status: task.StatusTodo}}
	h := newHarness(t, tasks, PolicyAllow)
	gate := h.server.hold(1)

	first := h.coord.MoveTask(context.Background(), 1, task.StatusDoing, tasks[0])
	second := h.coord.MoveTask(context.Background(), 1, task.StatusDone, tasks[0].WithStatus(task.StatusDoing))
	gate <- nil
	if res := receive(t, first); !res.OK() {
		t.Fatalf("first result = %+v", res)
	}
	if res := receive(t, second); !res.OK() {
		t.Fatalf("second result = %+v", res)
	}
	h.coord.Wait()

	if calls, _ := h.server.counts(); calls != 2 {
		t.Fatalf("server calls = %d, want 2", calls)
	}
	// Whichever write landed last on the server, the final refresh brings
	// the cache in line with it.
	server, _ := h.server.load(context.Background())
	if got, want := statusOf(h.cached(t), 1), statusOf(server, 1); got != want {
		t.Fatalf("cache status %s, server status %s", got, want)
	}
}

func TestFailureDoesNotUndoOtherTasks(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Name: "a", Status: task.StatusTodo},
		{ID: 2, Name: "b", Status: task.StatusTodo},
	}
	h := newHarness(t, tasks, PolicySerialize)
	gateA := h.server.hold(1)
	gateB := h.server.hold(2)

	chA := h.coord.MoveTask(context.Background(), 1, task.StatusDoing, tasks[0])
	chB := h.coord.MoveTask(context.Background(), 2, task.StatusDone, tasks[1])

	gateA <- errors.New("boom")
	receive(t, chA)

	got := h.cached(t)
	if statusOf(got, 1) != task.StatusTodo {
		t.Fatalf("task 1 not rolled back: %+v", got)
	}
	if statusOf(got, 2) != task.StatusDone {
		t.Fatalf("rollback of task 1 undid task 2: %+v", got)
	}
	if got := ids(got); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("order after partial rollback = %v, want [1 2]", got)
	}
	if _, loads := h.server.counts(); loads != 0 {
		t.Fatalf("refresh ran while another move was in flight")
	}

	gateB <- nil
	receive(t, chB)
	h.coord.Wait()
	got = h.cached(t)
	if statusOf(got, 1) != task.StatusTodo || statusOf(got, 2) != task.StatusDone {
		t.Fatalf("final cache = %+v", got)
	}
	if _, loads := h.server.counts(); loads != 1 {
		t.Fatalf("loads = %d, want 1", loads)
	}
}

func TestFailuresKeepColumnOrder(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int64
	}{
		{"first move fails first", 1},
		{"second move fails first", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := []task.Task{
				{ID: 1, Name: "a", Status: task.StatusTodo},
				{ID: 2, Name: "b", Status: task.StatusTodo},
				{ID: 3, Name: "c", Status: task.StatusDone},
			}
			h := newHarness(t, tasks, PolicySerialize)
			h.server.loadGate = make(chan struct{})
			gates := map[int64]chan error{1: h.server.hold(1), 2: h.server.hold(2)}

			chans := map[int64]<-chan Result{
				1: h.coord.MoveTask(context.Background(), 1, task.StatusDone, tasks[0]),
				2: h.coord.MoveTask(context.Background(), 2, task.StatusDone, tasks[1]),
			}
			order := []int64{tt.failFirst, 3 - tt.failFirst}
			for _, id := range order {
				gates[id] <- errors.New("boom")
				if res := receive(t, chans[id]); res.OK() {
					t.Fatalf("move %d succeeded, want failure", id)
				}
			}

			got := h.cached(t)
			parts := task.Partition(got)
			if todo := ids(parts[task.StatusTodo]); !reflect.DeepEqual(todo, []int64{1, 2}) {
				t.Errorf("TO_DO before resync = %v, want [1 2] (cache %v)", todo, ids(got))
			}
			if done := ids(parts[task.StatusDone]); !reflect.DeepEqual(done, []int64{3}) {
				t.Errorf("DONE before resync = %v, want [3]", done)
			}

			close(h.server.loadGate)
			h.coord.Wait()
			if todo := ids(task.Partition(h.cached(t))[task.StatusTodo]); !reflect.DeepEqual(todo, []int64{1, 2}) {
				t.Errorf("TO_DO after resync = %v, want [1 2]", todo)
			}
		})
	}
}

func TestRevertTask(t *testing.T) {
	order := []task.Task{
		{ID: 1, Status: task.StatusTodo},
		{ID: 2, Status: task.StatusTodo},
		{ID: 3, Status: task.StatusDone},
	}
	tests := []struct {
		name    string
		current []task.Task
		old     task.Task
		want    []int64
	}{
		{
			name:    "before a later task of the same column",
			current: []task.Task{{ID: 2, Status: task.StatusTodo}, {ID: 3, Status: task.StatusDone}, {ID: 1, Status: task.StatusDone}},
			old:     order[0],
			want:    []int64{1, 2, 3},
		},
		{
			name:    "behind an earlier task of the same column",
			current: []task.Task{{ID: 3, Status: task.StatusDone}, {ID: 1, Status: task.StatusTodo}, {ID: 2, Status: task.StatusDone}},
			old:     order[1],
			want:    []int64{3, 1, 2},
		},
		{
			name:    "before any later task when its column is empty",
			current: []task.Task{{ID: 2, Status: task.StatusDone}, {ID: 3, Status: task.StatusDone}, {ID: 1, Status: task.StatusDone}},
			old:     order[0],
			want:    []int64{1, 2, 3},
		},
		{
			name:    "appended when unknown to the order",
			current: []task.Task{{ID: 1, Status: task.StatusTodo}},
			old:     task.Task{ID: 9, Status: task.StatusTodo},
			want:    []int64{1, 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := revertTask(tt.current, order, tt.old)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("revertTask = %v, want %v", ids(got), tt.want)
			}
			if statusOf(got, tt.old.ID) != tt.old.Status {
				t.Errorf("reverted status = %v, want %v", statusOf(got, tt.old.ID), tt.old.Status)
			}
		})
	}
}

func TestUncachedTaskSkipsOptimisticWrite(t *testing.T) {
	tasks := []task.Task{{ID: 1, Name: "a", Status: task.StatusTodo}}
	h := newHarness(t, tasks, PolicySerialize)
	before := h.store.Version(store.TasksKey)
	gate := h.server.hold(9)

	ch := h.coord.MoveTask(context.Background(), 9, task.StatusDone, task.Task{ID: 9, Name: "z", Status: task.StatusTodo})
	if v := h.store.Version(store.TasksKey); v != before {
		t.Fatalf("version moved from %d to %d for a task not in the cache", before, v)
	}
	gate <- errors.New("boom")
	if res := receive(t, ch); res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome)
	}
	if got := ids(h.cached(t)); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("cache after failed uncached move = %v", got)
	}
	h.coord.Wait()

	empty := store.New()
	coord, err := New(Options{Store: empty, Updater: newFakeServer(nil)})
	if err != nil {
		t.Fatal(err)
	}
	receive(t, coord.MoveTask(context.Background(), 1, task.StatusDone, tasks[0]))
	coord.Wait()
	if _, ok := empty.Read(store.TasksKey); ok {
		t.Fatalf("move created a tasks entry in an empty store")
	}
}

func TestCallerCancellationDoesNotAbortRequest(t *testing.T) {
	tasks := []task.Task{{ID: 1, Name: "a", Status: task.StatusTodo}}
	h := newHarness(t, tasks, PolicySerialize)
	gate := h.server.hold(1)

	ctx, cancel := context.WithCancel(context.Background())
	ch := h.coord.MoveTask(ctx, 1, task.StatusDone, tasks[0])
	cancel()
	gate <- nil
	if res := receive(t, ch); !res.OK() {
		t.Fatalf("result = %+v, want success", res)
	}
	h.coord.Wait()
}

func TestParse(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicySerialize {
		t.Errorf("ParsePolicy(\"\") = %q, %v", p, err)
	}
	if _, err := ParsePolicy("queue"); err == nil {
		t.Errorf("ParsePolicy(queue) expected error")
	}
	if p, err := ParsePlacement("in_place"); err != nil || p != PlacementInPlace {
		t.Errorf("ParsePlacement(in_place) = %q, %v", p, err)
	}
	if _, err := ParsePlacement("top"); err == nil {
		t.Errorf("ParsePlacement(top) expected error")
	}
	if _, err := New(Options{}); err == nil {
		t.Errorf("New without store expected error")
	}
}
