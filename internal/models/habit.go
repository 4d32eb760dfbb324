package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/streaktoot/internal/constants"
)

type Habit struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Records        Records   `json:"records"`
	BestStreak     int       `json:"best_streak"`
	TotalDone      int       `json:"total_done"`
	Link           string    `json:"link,omitempty"`
	CustomTemplate string    `json:"custom_template,omitempty"`
	RootStatusID   string    `json:"root_status_id,omitempty"`
	LastStatusID   string    `json:"last_status_id,omitempty"`
	ShortcutSlot   int       `json:"shortcut_slot,omitempty"`   // 1..3, 0 when unassigned
	ShortcutAction string    `json:"shortcut_action,omitempty"` // checkin | open-link
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Habit) Validate() error {
	if strings.TrimSpace(h.Title) == "" {
		return fmt.Errorf("habit title cannot be empty")
	}
	if h.ShortcutSlot < 0 || h.ShortcutSlot > constants.MaxShortcutSlots {
		return fmt.Errorf("shortcut slot must be between 1 and %d", constants.MaxShortcutSlots)
	}
	switch h.ShortcutAction {
	case "", constants.ShortcutActionCheckIn, constants.ShortcutActionOpenLink:
	default:
		return fmt.Errorf("unknown shortcut action %q", h.ShortcutAction)
	}
	if (h.RootStatusID == "") != (h.LastStatusID == "") {
		return fmt.Errorf("thread pointers must be set together")
	}
	return nil
}

// BackfillThread sets whichever thread pointer is missing from the other one.
// It reports whether anything changed.
func (h *Habit) BackfillThread() bool {
	switch {
	case h.RootStatusID == "" && h.LastStatusID != "":
		h.RootStatusID = h.LastStatusID
	case h.LastStatusID == "" && h.RootStatusID != "":
		h.LastStatusID = h.RootStatusID
	default:
		return false
	}
	return true
}

// IsThreadBound reports whether check-ins continue an existing thread.
func (h *Habit) IsThreadBound() bool {
	return h.RootStatusID != ""
}

// ReplyTarget is the status a continuation replies to: the last post of the
// thread, or its root when no reply has been recorded.
func (h *Habit) ReplyTarget() string {
	if h.LastStatusID != "" {
		return h.LastStatusID
	}
	return h.RootStatusID
}

// FindHabit returns the index of the habit with the given id, or -1.
func FindHabit(habits []Habit, id string) int {
	for i := range habits {
		if habits[i].ID == id {
			return i
		}
	}
	return -1
}
