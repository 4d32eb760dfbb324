package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/models"
)

func TestNormalizeInstance(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "mastodon.social", want: "https://mastodon.social"},
		{input: "  https://mastodon.social/  ", want: "https://mastodon.social"},
		{input: "HTTPS://Mastodon.Social", want: "https://mastodon.social"},
		{input: "http://localhost.test:3000/", want: "http://localhost.test:3000"},
		{input: "https://fosstodon.org/@someone", want: "https://fosstodon.org"},
		{input: "", wantErr: true},
		{input: "localhost", wantErr: true},
		{input: "ftp://mastodon.social", wantErr: true},
		{input: "https://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeInstance(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeInstance(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				var vErr *apperrors.ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("error %v is not a ValidationError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeInstance(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func hasConflict(result ValidationResult, typ ConflictType) bool {
	for _, c := range result.Conflicts {
		if c.Type == typ {
			return true
		}
	}
	return false
}

func TestValidateHabits(t *testing.T) {
	validator := New()

	habits := []models.Habit{
		{ID: "1", Title: "Read", ShortcutSlot: 1, Records: models.Records{"2024-05-01": true}, TotalDone: 1},
		{ID: "2", Title: "read", ShortcutSlot: 1, Records: models.Records{}},
		{ID: "3", Title: "Run", RootStatusID: "111", Records: models.Records{"May 1": true}, TotalDone: 1},
		{ID: "4", Title: "Write", Records: models.Records{"2024-05-01": true}, TotalDone: 4},
	}

	result := validator.ValidateHabits(habits)

	for _, typ := range []ConflictType{
		ConflictDuplicateShortcut,
		ConflictDuplicateTitle,
		ConflictHalfBoundThread,
		ConflictMalformedRecord,
		ConflictStaleCounters,
	} {
		if !hasConflict(result, typ) {
			t.Errorf("expected %s conflict", typ)
		}
	}
	if hasConflict(result, ConflictHabitLimit) {
		t.Error("four habits are within the limit")
	}
	if !strings.Contains(result.FormatReport(), "shortcut 1 is assigned to 2 habits") {
		t.Errorf("report = %q", result.FormatReport())
	}
}

func TestValidateHabitsClean(t *testing.T) {
	habits := []models.Habit{
		{ID: "1", Title: "Read", ShortcutSlot: 1, Records: models.Records{"2024-05-01": true}, TotalDone: 1},
		{ID: "2", Title: "Run", RootStatusID: "9", LastStatusID: "10", Records: models.Records{}},
	}

	result := New().ValidateHabits(habits)
	if result.HasConflicts() {
		t.Errorf("unexpected conflicts: %s", result.FormatReport())
	}
	if result.FormatReport() != "No conflicts detected." {
		t.Errorf("report = %q", result.FormatReport())
	}
}

func TestValidateHabitsLimit(t *testing.T) {
	var habits []models.Habit
	for i := 0; i < 11; i++ {
		habits = append(habits, models.Habit{ID: fmt.Sprint(i), Title: fmt.Sprintf("habit %d", i)})
	}
	if !hasConflict(New().ValidateHabits(habits), ConflictHabitLimit) {
		t.Error("expected habit limit conflict")
	}
}

func TestValidateSettings(t *testing.T) {
	good := models.DefaultSettings()
	good.Instance = "https://mastodon.social"
	if result := New().ValidateSettings(good); result.HasConflicts() {
		t.Errorf("unexpected conflicts: %s", result.FormatReport())
	}

	bad := models.Settings{
		Instance:          "mastodon.social/",
		DefaultVisibility: "friends",
		Timezone:          "Mars/Olympus",
	}
	result := New().ValidateSettings(bad)
	if got := len(result.Conflicts); got != 4 {
		t.Errorf("expected 4 conflicts, got %d:\n%s", got, result.FormatReport())
	}

	threading := models.DefaultSettings()
	threading.EnableThreading = true
	threadingResult := New().ValidateSettings(threading)
	if !threadingResult.HasConflicts() {
		t.Error("threading without an instance should conflict")
	}
}

func TestAutoFixDuplicateShortcuts(t *testing.T) {
	conflicts := []Conflict{
		{Type: ConflictDuplicateShortcut, Description: "shortcut 2 is assigned to 3 habits", HabitIDs: []string{"a", "b", "c"}},
		{Type: ConflictDuplicateTitle, HabitIDs: []string{"x", "y"}},
	}

	var cleared []string
	actions := AutoFixDuplicateShortcuts(conflicts, func(id string) error {
		if id == "c" {
			return errors.New("boom")
		}
		cleared = append(cleared, id)
		return nil
	})

	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if len(cleared) != 1 || cleared[0] != "b" {
		t.Errorf("cleared = %v, want [b]", cleared)
	}
	if !strings.Contains(actions[0].Action, "failed to clear: [c]") {
		t.Errorf("action = %q", actions[0].Action)
	}
}

func TestAutoFixHalfBoundThreads(t *testing.T) {
	conflicts := []Conflict{
		{Type: ConflictHalfBoundThread, Description: `habit "Read" has only one of its thread pointers set`, HabitIDs: []string{"a"}},
		{Type: ConflictHalfBoundThread, Description: `habit "Run" has only one of its thread pointers set`, HabitIDs: []string{"b"}},
		{Type: ConflictDuplicateTitle, HabitIDs: []string{"x", "y"}},
	}

	var fixed []string
	actions := AutoFixHalfBoundThreads(conflicts, func(id string) error {
		if id == "b" {
			return errors.New("boom")
		}
		fixed = append(fixed, id)
		return nil
	})

	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if len(fixed) != 1 || fixed[0] != "a" {
		t.Errorf("fixed = %v, want [a]", fixed)
	}
	if !strings.HasPrefix(actions[1].Action, "Failed:") {
		t.Errorf("action = %q", actions[1].Action)
	}
}
