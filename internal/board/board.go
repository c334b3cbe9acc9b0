// Package board renders the kanban board.
//
// Render is a pure function of the task list and the drag state: it returns
// the text to draw and the screen regions of every column and card, which
// the drag controller uses as drop targets. It holds no state and makes no
// decisions about moves.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/nibzard/taskboard-go/internal/drag"
	"github.com/nibzard/taskboard-go/internal/task"
)

const (
	// EmptyText fills a column with no tasks.
	EmptyText = "No tasks in this column"
	// DropHereText fills an empty column while a card hovers over it.
	DropHereText = "Drop task here"

	columnGap      = 1
	minColumnWidth = 16
	headerHeight   = 1
	maxNameLines   = 2
	maxDescLines   = 2
)

// Column is one status column.
type Column struct {
	Status task.Status
	Title  string
	Tasks  []task.Task
}

// Columns partitions tasks into the three columns in order. Within a column
// tasks keep their order from the input list.
func Columns(tasks []task.Task) []Column {
	parts := task.Partition(tasks)
	cols := make([]Column, 0, 3)
	for _, s := range task.Statuses() {
		cols = append(cols, Column{Status: s, Title: s.Title(), Tasks: parts[s]})
	}
	return cols
}

// CardState is how a card is drawn.
type CardState int

const (
	CardNormal CardState = iota
	CardSelected
	// CardPlaceholder is the blank slot a dragged card leaves behind.
	CardPlaceholder
)

// Options controls a render.
type Options struct {
	Width  int
	Height int // 0 lets columns size to their content
	// Origin is the screen position of the board's top-left cell. Regions
	// are reported in screen coordinates.
	Origin drag.Point
	Now    time.Time

	Session  *drag.Session
	Hover    task.Status // column under the dragged card, if any
	Selected int64       // keyboard cursor
	Pending  map[int64]bool
}

// View is the result of Render.
type View struct {
	Body    string
	Regions []drag.Region
	Cards   map[int64]CardState
	// Overlay is the screen rect of the floating card, if one is drawn.
	Overlay *drag.Rect
}

// ColumnWidth returns the width of each column for a board width.
func ColumnWidth(width int) int {
	w := (width - 2*columnGap) / 3
	if w < minColumnWidth {
		w = minColumnWidth
	}
	return w
}

// Render draws tasks.
func Render(tasks []task.Task, opts Options) View {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	colW := ColumnWidth(opts.Width)
	cardW := colW - 4 // column border and padding
	innerH := 0
	if opts.Height > 0 {
		innerH = max(opts.Height-headerHeight-2, 1)
	}

	var dragged int64
	if opts.Session != nil {
		dragged = opts.Session.Task.ID
	}

	view := View{Cards: make(map[int64]CardState, len(tasks))}
	var cardRegions []drag.Region
	rendered := make([]string, 0, 3)

	for i, col := range Columns(tasks) {
		colX := opts.Origin.X + i*(colW+columnGap)
		contentTop := opts.Origin.Y + headerHeight + 1
		contentX := colX + 2

		var body []string
		offset := 0
		for _, t := range col.Tasks {
			state := CardNormal
			switch {
			case t.ID == dragged:
				state = CardPlaceholder
			case t.ID == opts.Selected:
				state = CardSelected
			}
			view.Cards[t.ID] = state

			card := renderCard(t, cardW, now, state, opts.Pending[t.ID])
			h := lipgloss.Height(card)
			if innerH == 0 || offset < innerH {
				cardRegions = append(cardRegions, drag.Region{
					Kind:   drag.RegionCard,
					Status: col.Status,
					TaskID: t.ID,
					Rect:   drag.RectAt(contentX, contentTop+offset, cardW, h),
				})
			}
			body = append(body, card)
			offset += h
		}

		hovered := opts.Session != nil && opts.Hover == col.Status
		content := strings.Join(body, "\n")
		if len(col.Tasks) == 0 {
			text := EmptyText
			if hovered {
				text = DropHereText
			}
			content = lipgloss.PlaceHorizontal(cardW, lipgloss.Center, emptyStyle.Render(ansi.Truncate(text, cardW, "…")))
		}
		if innerH > 0 {
			content = clipLines(content, innerH)
		}

		style := columnStyle.Width(colW - 2)
		if innerH > 0 {
			style = style.Height(innerH)
		}
		if hovered {
			style = style.BorderForeground(colorAccent)
		}
		box := style.Render(content)

		header := lipgloss.NewStyle().Width(colW).Render(
			headerStyle.Foreground(columnColors[col.Status]).Render(col.Title) + " " +
				countStyle.Render(fmt.Sprintf("%d", len(col.Tasks))),
		)
		column := lipgloss.JoinVertical(lipgloss.Left, header, box)
		rendered = append(rendered, column)

		view.Regions = append(view.Regions, drag.Region{
			Kind:   drag.RegionColumn,
			Status: col.Status,
			Rect:   drag.RectAt(colX, opts.Origin.Y, colW, lipgloss.Height(column)),
		})
	}
	view.Regions = append(view.Regions, cardRegions...)

	gap := strings.Repeat(" ", columnGap)
	view.Body = lipgloss.JoinHorizontal(lipgloss.Top, rendered[0], gap, rendered[1], gap, rendered[2])

	if opts.Session != nil {
		floating := renderOverlay(opts.Session.Task, cardW, now)
		at := opts.Session.CardOrigin()
		view.Body = Overlay(view.Body, floating, at.X-opts.Origin.X, at.Y-opts.Origin.Y)
		rect := drag.RectAt(at.X, at.Y, lipgloss.Width(floating), lipgloss.Height(floating))
		view.Overlay = &rect
	}
	return view
}

// CardAt returns the card region containing p.
func (v View) CardAt(p drag.Point) (drag.Region, bool) {
	for _, r := range v.Regions {
		if r.Kind == drag.RegionCard && r.Rect.Contains(p) {
			return r, true
		}
	}
	return drag.Region{}, false
}

// ColumnRegion returns the region of a status column.
func (v View) ColumnRegion(s task.Status) (drag.Region, bool) {
	for _, r := range v.Regions {
		if r.Kind == drag.RegionColumn && r.Status == s {
			return r, true
		}
	}
	return drag.Region{}, false
}

// CardRegion returns the region of a task's card.
func (v View) CardRegion(id int64) (drag.Region, bool) {
	for _, r := range v.Regions {
		if r.Kind == drag.RegionCard && r.TaskID == id {
			return r, true
		}
	}
	return drag.Region{}, false
}

func cardLines(t task.Task, width int, now time.Time, pending bool) []string {
	var lines []string
	for _, l := range wrap(t.Name, width, maxNameLines) {
		lines = append(lines, nameStyle.Render(l))
	}
	if t.Description != "" {
		for _, l := range wrap(t.Description, width, maxDescLines) {
			lines = append(lines, descStyle.Render(l))
		}
	}
	if len(t.Teams) > 0 {
		badges := make([]string, 0, len(t.Teams))
		for _, team := range t.Teams {
			badges = append(badges, badgeStyle(team).Render(string(team)))
		}
		lines = append(lines, ansi.Truncate(strings.Join(badges, " "), width, "…"))
	}
	meta := "Updated " + Ago(t.UpdatedAt, now)
	if pending {
		meta = "Saving…"
	}
	lines = append(lines, metaStyle.Render(ansi.Truncate(meta, width, "…")))
	return lines
}

func renderCard(t task.Task, width int, now time.Time, state CardState, pending bool) string {
	lines := cardLines(t, width-4, now, pending)
	switch state {
	case CardPlaceholder:
		blank := make([]string, len(lines))
		return placeholderStyle.Width(width - 2).Render(strings.Join(blank, "\n"))
	case CardSelected:
		return cardStyle.Width(width - 2).BorderForeground(colorCursor).Render(strings.Join(lines, "\n"))
	}
	return cardStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func renderOverlay(t task.Task, width int, now time.Time) string {
	lines := cardLines(t, width-4, now, false)
	return overlayStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

// wrap word-wraps s to width and keeps at most n lines, marking a cut with
// an ellipsis.
func wrap(s string, width, n int) []string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return []string{""}
	}
	lines := strings.Split(ansi.Wrap(s, width, ""), "\n")
	if len(lines) > n {
		lines = lines[:n]
		last := strings.TrimRight(lines[n-1], " ")
		if ansi.StringWidth(last) >= width {
			last = ansi.Truncate(last, width-1, "")
		}
		lines[n-1] = last + "…"
	}
	for i, l := range lines {
		lines[i] = ansi.Truncate(strings.TrimRight(l, " "), width, "…")
	}
	return lines
}

func clipLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n")
}
