package task

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the column a task lives in.
type Status string

const (
	StatusTodo  Status = "TO_DO"
	StatusDoing Status = "DOING"
	StatusDone  Status = "DONE"
)

// Statuses returns every status in column order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusDoing, StatusDone}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone:
		return true
	}
	return false
}

// Index returns the column position of s, or -1 for unknown values.
func (s Status) Index() int {
	return slices.Index(Statuses(), s)
}

// DisplayName is the human label used in notices ("To Do").
func (s Status) DisplayName() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusDoing:
		return "Doing"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// Title is the column heading ("TO DO").
func (s Status) Title() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// ParseStatus accepts the wire values in any case plus a few aliases.
func ParseStatus(input string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "to_do", "todo", "to-do", "to do":
		return StatusTodo, nil
	case "doing", "in-progress", "in_progress":
		return StatusDoing, nil
	case "done":
		return StatusDone, nil
	}
	return "", fmt.Errorf("invalid status %q, must be one of: TO_DO, DOING, DONE", input)
}

// Team tags a task with the group responsible for it.
type Team string

const (
	TeamDesign   Team = "DESIGN"
	TeamBackend  Team = "BACKEND"
	TeamFrontend Team = "FRONTEND"
)

// Teams returns every team in canonical order.
func Teams() []Team {
	return []Team{TeamDesign, TeamBackend, TeamFrontend}
}

// Valid reports whether t is a known team.
func (t Team) Valid() bool {
	return slices.Contains(Teams(), t)
}

// ParseTeam accepts a team name in any case.
func ParseTeam(input string) (Team, error) {
	t := Team(strings.ToUpper(strings.TrimSpace(input)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid team %q, must be one of: DESIGN, BACKEND, FRONTEND", input)
	}
	return t, nil
}

// ParseTeams parses a list of team names.
func ParseTeams(inputs []string) ([]Team, error) {
	teams := make([]Team, 0, len(inputs))
	for _, in := range inputs {
		t, err := ParseTeam(in)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return NormalizeTeams(teams), nil
}

// NormalizeTeams drops duplicates and orders teams canonically.
// The result is never nil.
func NormalizeTeams(teams []Team) []Team {
	out := make([]Team, 0, len(teams))
	for _, t := range Teams() {
		if slices.Contains(teams, t) {
			out = append(out, t)
		}
	}
	for _, t := range teams {
		if !t.Valid() && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Attachment is a named link attached to a task.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Task is a unit of work on the board.
type Task struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Status       Status       `json:"status"`
	Teams        []Team       `json:"teams"`
	ExternalLink string       `json:"external_link,omitempty"`
	Attachments  []Attachment `json:"attachments"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	CreatedBy    int64        `json:"created_by"`
}

// IsZero returns true if the task has no ID.
func (t Task) IsZero() bool {
	return t.ID == 0
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	out := t
	if t.Teams != nil {
		out.Teams = slices.Clone(t.Teams)
	}
	if t.Attachments != nil {
		out.Attachments = slices.Clone(t.Attachments)
	}
	return out
}

// WithStatus returns a copy of t moved to status s.
func (t Task) WithStatus(s Status) Task {
	out := t.Clone()
	out.Status = s
	return out
}

// CloneAll deep-copies a task list. A nil input stays nil.
func CloneAll(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// Find returns the task with the given id.
func Find(tasks []Task, id int64) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Partition splits tasks into their columns, preserving input order within
// each column. Tasks with an unknown status are dropped.
func Partition(tasks []Task) map[Status][]Task {
	out := make(map[Status][]Task, 3)
	for _, s := range Statuses() {
		out[s] = []Task{}
	}
	for _, t := range tasks {
		if !t.Status.Valid() {
			continue
		}
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}

// Payload is the request body for creating or updating a task.
type Payload struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Status       Status `json:"status"`
	Teams        []Team `json:"teams"`
	ExternalLink string `json:"external_link,omitempty"`
}

// PayloadFrom builds the full update payload for t.
func PayloadFrom(t Task) Payload {
	return Payload{
		Name:         t.Name,
		Description:  t.Description,
		Status:       t.Status,
		Teams:        slices.Clone(t.Teams),
		ExternalLink: t.ExternalLink,
	}.Normalized()
}

// Normalized trims text fields and canonicalizes teams.
func (p Payload) Normalized() Payload {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.ExternalLink = strings.TrimSpace(p.ExternalLink)
	p.Teams = NormalizeTeams(p.Teams)
	return p
}
