// Package ui runs the interactive board.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/board"
	"github.com/nibzard/taskboard-go/internal/drag"
	"github.com/nibzard/taskboard-go/internal/move"
	"github.com/nibzard/taskboard-go/internal/notify"
	"github.com/nibzard/taskboard-go/internal/store"
	"github.com/nibzard/taskboard-go/internal/task"
)

// headerLines is the greeting line plus a blank line above the board.
const headerLines = 2

// footerLines is reserved below the board for notices and help.
const footerLines = 6

const tickInterval = 500 * time.Millisecond

// Deleter removes a task remotely. *api.Client satisfies it.
type Deleter interface {
	DeleteTask(ctx context.Context, id int64) error
}

// Options configures the board model.
type Options struct {
	Store   *store.Store
	Mover   drag.Mover
	Deleter Deleter
	Notices *notify.Center
	Logger  *log.Logger

	// UserName is shown in the greeting.
	UserName string
	// RefreshInterval reloads the task list periodically. Zero disables it.
	RefreshInterval time.Duration
	// Mouse enables drag and drop with the mouse.
	Mouse bool
	Now   func() time.Time
}

// Model is the bubbletea model for the board.
type Model struct {
	ctx      context.Context
	store    *store.Store
	ctrl     *drag.Controller
	deleter  Deleter
	notices  *notify.Center
	logger   *log.Logger
	userName string
	refresh  time.Duration
	now      func() time.Time

	keys keyMap
	help help.Model

	events      <-chan store.Event
	unsubscribe func()

	width, height int
	tasks         []task.Task
	loaded        bool
	loadErr       error
	lastFetch     time.Time

	selected      int64
	hover         task.Status
	pending       map[int64]bool
	confirmDelete int64
	view          board.View
}

type (
	tickMsg       time.Time
	storeEventMsg struct{ event store.Event }
	noticeMsg     struct{}
	loadedMsg     struct{ err error }
	moveResultMsg struct{ result move.Result }
	deletedMsg    struct {
		id   int64
		name string
		err  error
	}
)

// NewModel returns a board model. ctx bounds requests started from the UI.
func NewModel(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	notices := opts.Notices
	if notices == nil {
		notices = notify.NewCenter(3)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	events, unsubscribe := opts.Store.Subscribe()
	m := &Model{
		ctx:      ctx,
		store:    opts.Store,
		deleter:  opts.Deleter,
		notices:  notices,
		logger:   logger,
		userName: opts.UserName,
		refresh:  opts.RefreshInterval,
		now:      now,
		keys:     defaultKeyMap(),
		help:     help.New(),
		events:   events,
		pending:  make(map[int64]bool),

		unsubscribe: unsubscribe,
	}
	m.ctrl = drag.NewController(drag.Options{
		Mover:    opts.Mover,
		Notifier: notices,
		Logger:   logger,
	})
	if tasks, ok := opts.Store.Read(store.TasksKey); ok {
		m.tasks, m.loaded = tasks, true
		m.selected = m.firstTask()
	}
	m.layout()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchCmd(false),
		listenStore(m.events),
		listenNotices(m.notices.C),
		tickCmd(tickInterval),
	)
}

// Close stops the store subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	case tea.MouseMsg:
		cmd = m.handleMouse(msg)
	case storeEventMsg:
		m.applyEvent(msg.event)
		cmd = listenStore(m.events)
	case noticeMsg:
		cmd = listenNotices(m.notices.C)
	case loadedMsg:
		m.lastFetch = m.now()
		if msg.err != nil {
			m.loadErr = msg.err
		}
	case moveResultMsg:
		// A skipped move never reached the server; an earlier move of the
		// same task may still be pending.
		if msg.result.Outcome != move.OutcomeSkipped {
			delete(m.pending, msg.result.TaskID)
		}
		if msg.result.Err != nil && api.IsUnauthorized(msg.result.Err) {
			m.loadErr = msg.result.Err
		}
	case deletedMsg:
		cmd = m.handleDeleted(msg)
	case tickMsg:
		cmds := []tea.Cmd{tickCmd(tickInterval)}
		if m.refresh > 0 && m.ctrl.State() == drag.StateIdle && len(m.pending) == 0 &&
			!m.lastFetch.IsZero() && m.now().Sub(m.lastFetch) >= m.refresh {
			m.lastFetch = m.now()
			cmds = append(cmds, m.fetchCmd(true))
		}
		cmd = tea.Batch(cmds...)
	}
	m.layout()
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(greetingStyle.Render(m.greeting()))
	b.WriteString("\n\n")

	switch {
	case m.loadErr != nil && !m.loaded:
		b.WriteString(errorStyle.Render(m.errorText()))
		b.WriteString("\n")
	case !m.loaded:
		b.WriteString(subtleStyle.Render("Loading tasks..."))
		b.WriteString("\n")
	default:
		b.WriteString(m.view.Body)
		b.WriteString("\n")
		if m.loadErr != nil {
			b.WriteString(errorStyle.Render(m.errorText()))
			b.WriteString("\n")
		}
	}

	if m.confirmDelete != 0 {
		if t, ok := task.Find(m.tasks, m.confirmDelete); ok {
			b.WriteString(confirmStyle.Render(fmt.Sprintf("Delete %q? (y/n)", t.Name)))
			b.WriteString("\n")
		}
	}
	for _, n := range m.notices.Active() {
		b.WriteString(renderNotice(n.Notice))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) greeting() string {
	name := m.userName
	if name == "" {
		name = "there"
	}
	if m.loaded && len(m.tasks) > 0 {
		return fmt.Sprintf("Hello %s, Here's your tasks", name)
	}
	return fmt.Sprintf("Hello %s", name)
}

func (m *Model) errorText() string {
	if errors.Is(m.loadErr, api.ErrUnauthorized) {
		return "Your session has expired. Run `taskboard login` to sign in again."
	}
	return "Could not load tasks: " + api.Message(m.loadErr)
}

func renderNotice(n notify.Notice) string {
	line := noticeIcons[n.Level] + " " + n.Title
	if n.Description != "" {
		line += ": " + n.Description
	}
	return noticeStyles[n.Level].Render(line)
}

// layout re-renders the board so regions match what the user sees.
func (m *Model) layout() {
	opts := board.Options{
		Width:    m.width,
		Origin:   drag.Point{X: 0, Y: headerLines},
		Now:      m.now(),
		Selected: m.selected,
		Pending:  m.pending,
	}
	if m.height > 0 {
		opts.Height = max(m.height-headerLines-footerLines, 8)
	}
	if s, ok := m.ctrl.Session(); ok {
		opts.Session = &s
		opts.Hover = m.hover
	}
	m.view = board.Render(m.tasks, opts)
}

func (m *Model) applyEvent(ev store.Event) {
	if ev.Key != store.TasksKey {
		return
	}
	if ev.Kind == store.EventFetchFailed {
		m.loadErr = ev.Err
		return
	}
	tasks, ok := m.store.Read(store.TasksKey)
	if !ok {
		return
	}
	m.tasks, m.loaded = tasks, true
	if ev.Kind == store.EventFetched {
		m.loadErr = nil
	}
	if _, ok := task.Find(m.tasks, m.selected); !ok {
		m.selected = 0
	}
	if m.selected == 0 {
		m.selected = m.firstTask()
	}
}

func (m *Model) firstTask() int64 {
	for _, col := range board.Columns(m.tasks) {
		if len(col.Tasks) > 0 {
			return col.Tasks[0].ID
		}
	}
	return 0
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.confirmDelete != 0 {
		id := m.confirmDelete
		m.confirmDelete = 0
		if key.Matches(msg, m.keys.Confirm) {
			return m.deleteCmd(id)
		}
		return nil
	}

	if m.ctrl.State() == drag.StateDragging {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.ctrl.Cancel()
			return tea.Quit
		case key.Matches(msg, m.keys.Cancel):
			m.ctrl.Cancel()
			m.hover = ""
		case key.Matches(msg, m.keys.Left):
			m.hoverColumn(-1)
		case key.Matches(msg, m.keys.Right):
			m.hoverColumn(1)
		case key.Matches(msg, m.keys.Drop):
			target, ok := m.view.ColumnRegion(m.hover)
			if !ok {
				m.ctrl.Cancel()
				m.hover = ""
				return nil
			}
			return m.finishDrop(m.ctrl.DropOn(m.ctx, target))
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Refresh):
		return m.fetchCmd(true)
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(0, -1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(0, 1)
	case key.Matches(msg, m.keys.Left):
		m.moveSelection(-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.moveSelection(1, 0)
	case key.Matches(msg, m.keys.Grab):
		m.pickUp()
	case key.Matches(msg, m.keys.Delete):
		if _, ok := task.Find(m.tasks, m.selected); ok {
			m.confirmDelete = m.selected
		}
	case key.Matches(msg, m.keys.Cancel):
		m.notices.Dismiss()
	}
	return nil
}

// pickUp starts a keyboard drag of the selected card.
func (m *Model) pickUp() {
	t, ok := task.Find(m.tasks, m.selected)
	if !ok {
		return
	}
	card, ok := m.view.CardRegion(t.ID)
	if !ok {
		return
	}
	if m.ctrl.Start(t, card.Rect.Min, card.Rect) {
		m.hover = t.Status
	}
}

// hoverColumn moves a keyboard drag to the neighbouring column.
func (m *Model) hoverColumn(delta int) {
	statuses := task.Statuses()
	i := m.hover.Index() + delta
	if i < 0 || i >= len(statuses) {
		return
	}
	col, ok := m.view.ColumnRegion(statuses[i])
	if !ok {
		return
	}
	m.hover = statuses[i]
	// Land the floating card just inside the column's content area.
	m.ctrl.Move(drag.Point{X: col.Rect.Min.X + 2, Y: col.Rect.Min.Y + 2})
}

func (m *Model) moveSelection(dx, dy int) {
	cols := board.Columns(m.tasks)
	ci, ri := -1, -1
	for i, col := range cols {
		for j, t := range col.Tasks {
			if t.ID == m.selected {
				ci, ri = i, j
			}
		}
	}
	if ci < 0 {
		m.selected = m.firstTask()
		return
	}
	if dy != 0 {
		if j := ri + dy; j >= 0 && j < len(cols[ci].Tasks) {
			m.selected = cols[ci].Tasks[j].ID
		}
		return
	}
	for i := ci + dx; i >= 0 && i < len(cols); i += dx {
		if n := len(cols[i].Tasks); n > 0 {
			m.selected = cols[i].Tasks[min(ri, n-1)].ID
			return
		}
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	p := drag.Point{X: msg.X, Y: msg.Y}
	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if m.ctrl.State() == drag.StateDragging {
			return nil
		}
		card, ok := m.view.CardAt(p)
		if !ok {
			return nil
		}
		t, ok := task.Find(m.tasks, card.TaskID)
		if !ok {
			return nil
		}
		m.selected = t.ID
		if m.ctrl.Start(t, p, card.Rect) {
			m.hover = t.Status
		}
	case msg.Action == tea.MouseActionMotion:
		if !m.ctrl.Move(p) {
			return nil
		}
		m.hover = ""
		if target, ok := m.ctrl.Target(p, m.view.Regions); ok {
			m.hover = target.Status
		}
	case msg.Action == tea.MouseActionRelease:
		if m.ctrl.State() != drag.StateDragging {
			return nil
		}
		return m.finishDrop(m.ctrl.Drop(m.ctx, p, m.view.Regions))
	}
	return nil
}

func (m *Model) finishDrop(d drag.Drop) tea.Cmd {
	m.hover = ""
	if d.Outcome != drag.OutcomeMoved || d.Result == nil {
		return nil
	}
	m.pending[d.Task.ID] = true
	m.selected = d.Task.ID
	// The optimistic write is already in the store.
	if tasks, ok := m.store.Read(store.TasksKey); ok {
		m.tasks = tasks
	}
	return waitResult(d.Result)
}

func (m *Model) handleDeleted(msg deletedMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Error("delete task failed", "task", msg.id, "error", api.Message(msg.err))
		m.notices.Notify(notify.Error("Failed to delete task", api.Message(msg.err)))
		return nil
	}
	m.logger.Info("task deleted", "task", msg.id)
	m.notices.Notify(notify.Success("Task deleted", fmt.Sprintf("%q was removed", msg.name)))
	m.store.Invalidate(store.TasksKey)
	return m.fetchCmd(true)
}

func (m *Model) fetchCmd(force bool) tea.Cmd {
	ctx, st := m.ctx, m.store
	return func() tea.Msg {
		var err error
		if force {
			_, err = st.Refresh(ctx, store.TasksKey)
		} else {
			_, err = st.Fetch(ctx, store.TasksKey)
		}
		return loadedMsg{err: err}
	}
}

func (m *Model) deleteCmd(id int64) tea.Cmd {
	if m.deleter == nil {
		return nil
	}
	t, _ := task.Find(m.tasks, id)
	ctx, deleter := m.ctx, m.deleter
	return func() tea.Msg {
		return deletedMsg{id: id, name: t.Name, err: deleter.DeleteTask(ctx, id)}
	}
}

func listenStore(ch <-chan store.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return storeEventMsg{event: ev}
	}
}

func listenNotices(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return noticeMsg{}
	}
}

func waitResult(ch <-chan move.Result) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return nil
		}
		return moveResultMsg{result: res}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
