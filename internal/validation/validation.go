package validation

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/streaktoot/internal/constants"
	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/utils"
)

// NormalizeInstance turns user input such as " mastodon.social/ " into an
// origin like "https://mastodon.social". The scheme defaults to https; paths,
// queries and fragments are dropped.
func NormalizeInstance(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return "", apperrors.Validation("instance", "instance cannot be empty")
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(raw, "://") {
			return "", apperrors.Validation("instance", "%q must use http or https", raw)
		}
		raw = "https://" + raw
	}

	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return "", apperrors.Validation("instance", "%q is not a URL", input)
	}
	host := strings.ToLower(u.Host)
	if u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return "", apperrors.Validation("instance", "%q has no valid host", input)
	}
	return strings.ToLower(u.Scheme) + "://" + host, nil
}

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictDuplicateShortcut ConflictType = "duplicate_shortcut"
	ConflictHalfBoundThread   ConflictType = "half_bound_thread"
	ConflictHabitLimit        ConflictType = "habit_limit"
	ConflictDuplicateTitle    ConflictType = "duplicate_title"
	ConflictMalformedRecord   ConflictType = "malformed_record"
	ConflictStaleCounters     ConflictType = "stale_counters"
	ConflictInvalidSetting    ConflictType = "invalid_setting"
)

// Conflict represents a detected inconsistency in stored habits or settings
type Conflict struct {
	Type        ConflictType
	Description string
	HabitIDs    []string // IDs of habits involved (for auto-fixing)
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// FixAction represents an action taken during auto-fix
type FixAction struct {
	Action         string
	SourceConflict Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Validator checks stored data for inconsistencies
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateHabits checks the habit list for conflicts
func (v *Validator) ValidateHabits(habits []models.Habit) ValidationResult {
	result := ValidationResult{}

	if len(habits) > constants.MaxHabits {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictHabitLimit,
			Description: fmt.Sprintf("%d habits stored, at most %d are supported", len(habits), constants.MaxHabits),
		})
	}

	bySlot := map[int][]string{}
	byTitle := map[string][]string{}
	for _, h := range habits {
		if h.ShortcutSlot > 0 {
			bySlot[h.ShortcutSlot] = append(bySlot[h.ShortcutSlot], h.ID)
		}
		title := strings.ToLower(strings.TrimSpace(h.Title))
		byTitle[title] = append(byTitle[title], h.ID)

		if (h.RootStatusID == "") != (h.LastStatusID == "") {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictHalfBoundThread,
				Description: fmt.Sprintf("habit %q has only one of its thread pointers set", h.Title),
				HabitIDs:    []string{h.ID},
			})
		}

		for day := range h.Records {
			if _, err := time.Parse(constants.DateFormat, day); err != nil {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictMalformedRecord,
					Description: fmt.Sprintf("habit %q has a malformed record key %q", h.Title, day),
					HabitIDs:    []string{h.ID},
				})
			}
		}

		if h.TotalDone != h.Records.Total() {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictStaleCounters,
				Description: fmt.Sprintf("habit %q total is %d but %d days are recorded", h.Title, h.TotalDone, h.Records.Total()),
				HabitIDs:    []string{h.ID},
			})
		}
	}

	for _, slot := range sortedKeys(bySlot) {
		if ids := bySlot[slot]; len(ids) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateShortcut,
				Description: fmt.Sprintf("shortcut %d is assigned to %d habits", slot, len(ids)),
				HabitIDs:    ids,
			})
		}
	}
	titles := make([]string, 0, len(byTitle))
	for title := range byTitle {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	for _, title := range titles {
		if ids := byTitle[title]; len(ids) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateTitle,
				Description: fmt.Sprintf("%d habits are titled %q", len(ids), title),
				HabitIDs:    ids,
			})
		}
	}

	return result
}

// ValidateSettings checks the settings snapshot for unusable values
func (v *Validator) ValidateSettings(settings models.Settings) ValidationResult {
	result := ValidationResult{}
	add := func(format string, args ...interface{}) {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictInvalidSetting,
			Description: fmt.Sprintf(format, args...),
		})
	}

	if settings.Instance != "" {
		if normalized, err := NormalizeInstance(settings.Instance); err != nil {
			add("instance: %v", err)
		} else if normalized != settings.Instance {
			add("instance %q is not normalized (expected %q)", settings.Instance, normalized)
		}
	}
	if !settings.DefaultVisibility.Valid() {
		add("default_visibility %q is not a visibility", settings.DefaultVisibility)
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		add("timezone %q is not a known IANA zone", settings.Timezone)
	}
	if settings.EmojiDone == "" || settings.EmojiEmpty == "" {
		add("heatmap glyphs cannot be empty")
	}
	if settings.EnableThreading && settings.Instance == "" {
		add("threading is enabled but no instance is configured")
	}
	return result
}

// AutoFixDuplicateShortcuts keeps a shortcut on the first habit holding it
// and clears it from the rest. clearFunc receives each habit to clear.
func AutoFixDuplicateShortcuts(conflicts []Conflict, clearFunc func(id string) error) []FixAction {
	actions := []FixAction{}

	for _, conflict := range conflicts {
		if conflict.Type != ConflictDuplicateShortcut || len(conflict.HabitIDs) <= 1 {
			continue
		}

		var cleared, failed []string
		for _, id := range conflict.HabitIDs[1:] {
			if err := clearFunc(id); err != nil {
				failed = append(failed, id)
				continue
			}
			cleared = append(cleared, id)
		}

		msg := fmt.Sprintf("Resolved: %s (kept ID: %s, cleared: %v)", conflict.Description, conflict.HabitIDs[0], cleared)
		if len(failed) > 0 {
			msg += fmt.Sprintf(" (failed to clear: %v)", failed)
		}
		actions = append(actions, FixAction{Action: msg, SourceConflict: conflict})
	}

	return actions
}

// AutoFixHalfBoundThreads completes thread pointers of habits that have only
// one of them set.
func AutoFixHalfBoundThreads(conflicts []Conflict, backfillFunc func(id string) error) []FixAction {
	actions := []FixAction{}

	for _, conflict := range conflicts {
		if conflict.Type != ConflictHalfBoundThread {
			continue
		}
		for _, id := range conflict.HabitIDs {
			msg := fmt.Sprintf("Resolved: %s (backfilled)", conflict.Description)
			if err := backfillFunc(id); err != nil {
				msg = fmt.Sprintf("Failed: %s (%v)", conflict.Description, err)
			}
			actions = append(actions, FixAction{Action: msg, SourceConflict: conflict})
		}
	}

	return actions
}

func sortedKeys(m map[int][]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
