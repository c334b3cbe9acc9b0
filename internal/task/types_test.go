package task

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"TO_DO", StatusTodo, false},
		{"todo", StatusTodo, false},
		{" Doing ", StatusDoing, false},
		{"done", StatusDone, false},
		{"blocked", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusLabels(t *testing.T) {
	tests := []struct {
		status  Status
		display string
		title   string
	}{
		{StatusTodo, "To Do", "TO DO"},
		{StatusDoing, "Doing", "DOING"},
		{StatusDone, "Done", "DONE"},
	}
	for _, tt := range tests {
		if got := tt.status.DisplayName(); got != tt.display {
			t.Errorf("%s.DisplayName() = %q, want %q", tt.status, got, tt.display)
		}
		if got := tt.status.Title(); got != tt.title {
			t.Errorf("%s.Title() = %q, want %q", tt.status, got, tt.title)
		}
	}
}

func TestNormalizeTeams(t *testing.T) {
	got := NormalizeTeams([]Team{TeamFrontend, TeamDesign, TeamFrontend})
	want := []Team{TeamDesign, TeamFrontend}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeTeams() = %v, want %v", got, want)
	}
	if got := NormalizeTeams(nil); got == nil || len(got) != 0 {
		t.Fatalf("NormalizeTeams(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Task{
		ID:          1,
		Teams:       []Team{TeamDesign},
		Attachments: []Attachment{{Name: "a", URL: "https://example.com/a"}},
	}
	c := orig.Clone()
	c.Teams[0] = TeamBackend
	c.Attachments[0].Name = "b"
	if orig.Teams[0] != TeamDesign || orig.Attachments[0].Name != "a" {
		t.Fatalf("Clone shares backing arrays with the original")
	}
}

func TestPartitionStable(t *testing.T) {
	tasks := []Task{
		{ID: 1, Status: StatusDone},
		{ID: 2, Status: StatusTodo},
		{ID: 3, Status: StatusDone},
		{ID: 4, Status: "ARCHIVED"},
		{ID: 5, Status: StatusTodo},
	}
	cols := Partition(tasks)
	ids := func(ts []Task) []int64 {
		out := []int64{}
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}
	if got := ids(cols[StatusTodo]); !reflect.DeepEqual(got, []int64{2, 5}) {
		t.Errorf("TO_DO = %v, want [2 5]", got)
	}
	if got := ids(cols[StatusDoing]); len(got) != 0 {
		t.Errorf("DOING = %v, want []", got)
	}
	if got := ids(cols[StatusDone]); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Errorf("DONE = %v, want [1 3]", got)
	}
}

func TestTaskJSON(t *testing.T) {
	raw := `{
		"id": 7,
		"name": "Ship",
		"description": "",
		"status": "DOING",
		"teams": ["BACKEND"],
		"attachments": [],
		"created_at": "2024-01-01T00:00:00Z",
		"updated_at": "2024-01-02T10:00:00Z",
		"created_by": 1
	}`
	var got Task
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.ID != 7 || got.Status != StatusDoing || got.CreatedBy != 1 {
		t.Fatalf("unexpected task: %+v", got)
	}
	if got.UpdatedAt.Hour() != 10 {
		t.Fatalf("UpdatedAt = %v", got.UpdatedAt)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  Payload
		wantPath string
	}{
		{
			name:    "valid",
			payload: Payload{Name: "Task", Status: StatusTodo, Teams: []Team{TeamDesign}},
		},
		{
			name:    "valid with link and no teams",
			payload: Payload{Name: "Task", Status: StatusDone, ExternalLink: "https://example.com/x"},
		},
		{
			name:     "empty name",
			payload:  Payload{Name: "   ", Status: StatusTodo},
			wantPath: "name",
		},
		{
			name:     "bad status",
			payload:  Payload{Name: "Task", Status: "BLOCKED"},
			wantPath: "status",
		},
		{
			name:     "bad team",
			payload:  Payload{Name: "Task", Status: StatusTodo, Teams: []Team{"QA"}},
			wantPath: "teams[0]",
		},
		{
			name:     "relative link",
			payload:  Payload{Name: "Task", Status: StatusTodo, ExternalLink: "not a url"},
			wantPath: "external_link",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidatePayload(tt.payload)
			if !res.UsedSchema {
				t.Fatalf("expected schema validation, warnings: %v", res.Warnings)
			}
			if tt.wantPath == "" {
				if !res.Valid {
					t.Fatalf("expected valid, got %v", res.Errors)
				}
				return
			}
			if res.Valid {
				t.Fatalf("expected invalid payload")
			}
			found := false
			for _, err := range res.Errors {
				var ve *ValidationError
				if errors.As(err, &ve) && ve.Path == tt.wantPath {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected error at %q, got %v", tt.wantPath, res.Errors)
			}
			if res.Err() == nil {
				t.Fatalf("Err() returned nil for invalid result")
			}
		})
	}
}

func TestValidateMinimal(t *testing.T) {
	res := &ValidationResult{Valid: true}
	validateMinimal(Payload{Name: "", Status: "X", Teams: []Team{"QA"}, ExternalLink: "nope"}, res)
	if res.Valid {
		t.Fatalf("expected invalid")
	}
	if len(res.Errors) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(res.Errors), res.Errors)
	}

	res = &ValidationResult{Valid: true}
	validateMinimal(Payload{Name: "ok", Status: StatusDoing, Teams: []Team{TeamBackend}}, res)
	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
}
