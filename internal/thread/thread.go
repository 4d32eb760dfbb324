// Package thread decides whether a check-in starts a new thread or continues
// the habit's existing one, and keeps the habit's thread pointers in step
// with what was actually published.
package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/mastodon"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/publish"
)

type State int

const (
	NoThread State = iota
	ThreadBound
)

func (s State) String() string {
	if s == ThreadBound {
		return "bound"
	}
	return "none"
}

// StateOf derives the thread state from the habit's pointers.
func StateOf(h models.Habit) State {
	if h.IsThreadBound() {
		return ThreadBound
	}
	return NoThread
}

type Mode string

const (
	ModeNew   Mode = "new"
	ModeReply Mode = "reply"
)

// Options is the visibility choice offered for a post.
type Options struct {
	Floor   models.Visibility
	Allowed []models.Visibility
	// Warning is set when the floor could not be looked up and fell back to
	// public.
	Warning error
}

// Plan is the editor's starting point for a habit.
type Plan struct {
	Mode       Mode
	ReplyTo    string
	Visibility models.Visibility
	Options    Options
}

// Draft is what the user decided to publish.
type Draft struct {
	Text       string
	Mode       Mode
	ReplyTo    string
	Visibility models.Visibility
	Media      *mastodon.Media
}

type Result struct {
	Status models.PublishedStatus
	Habit  models.Habit
	// Warning carries a non-fatal visibility lookup failure.
	Warning error
}

// Lookup resolves the visibility of an existing status.
type Lookup interface {
	StatusVisibility(ctx context.Context, instance, token, id string) (models.Visibility, error)
}

type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (models.PublishedStatus, error)
}

type HabitStore interface {
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	UpdateHabit(ctx context.Context, habit models.Habit) error
}

type Machine struct {
	lookup    Lookup
	publisher Publisher
	habits    HabitStore
}

func NewMachine(lookup Lookup, publisher Publisher, habits HabitStore) *Machine {
	return &Machine{lookup: lookup, publisher: publisher, habits: habits}
}

// Prepare returns the default plan for habit: a reply to the thread's last
// post when bound, otherwise a new thread at the configured default
// visibility.
func (m *Machine) Prepare(ctx context.Context, habit models.Habit, settings models.Settings, token string) Plan {
	if StateOf(habit) == ThreadBound {
		target := habit.ReplyTarget()
		opts := m.Options(ctx, settings, token, ModeReply, target)
		return Plan{Mode: ModeReply, ReplyTo: target, Visibility: opts.Floor, Options: opts}
	}

	opts := m.Options(ctx, settings, token, ModeNew, "")
	visibility := settings.DefaultVisibility
	if !visibility.Valid() {
		visibility = models.VisibilityPublic
	}
	return Plan{Mode: ModeNew, Visibility: visibility, Options: opts}
}

// Options computes the allowed visibilities. A reply may not be less
// restrictive than the post it answers.
func (m *Machine) Options(ctx context.Context, settings models.Settings, token string, mode Mode, replyTo string) Options {
	replyTo = strings.TrimSpace(replyTo)
	if mode != ModeReply || replyTo == "" {
		return Options{Floor: models.VisibilityPublic, Allowed: models.AllowedFrom(models.VisibilityPublic)}
	}

	floor, err := m.lookup.StatusVisibility(ctx, settings.Instance, token, replyTo)
	if err != nil {
		var lookupErr *apperrors.VisibilityLookupError
		if !errors.As(err, &lookupErr) {
			err = &apperrors.VisibilityLookupError{StatusID: replyTo, Err: err}
		}
		logger.Warn("visibility lookup failed, allowing every visibility", "status_id", replyTo, "err", err)
		return Options{Floor: models.VisibilityPublic, Allowed: models.AllowedFrom(models.VisibilityPublic), Warning: err}
	}
	return Options{Floor: floor, Allowed: models.AllowedFrom(floor)}
}

// CheckVisibility rejects a choice less restrictive than floor.
func CheckVisibility(choice, floor models.Visibility) error {
	if !choice.Valid() {
		return apperrors.Validation("visibility", "unknown visibility %q", choice)
	}
	if floor.Valid() && !choice.AtLeast(floor) {
		return apperrors.Validation("visibility", "%s is less restrictive than the %s post being replied to", choice, floor)
	}
	return nil
}

// Publish sends draft for the habit and, only when the instance accepted it,
// moves the habit's thread pointers.
func (m *Machine) Publish(ctx context.Context, habitID string, draft Draft, settings models.Settings, token string) (Result, error) {
	habit, err := m.habits.GetHabit(ctx, habitID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	replyTo := strings.TrimSpace(draft.ReplyTo)
	switch draft.Mode {
	case ModeNew:
		replyTo = ""
	case ModeReply:
		if replyTo == "" {
			return Result{}, apperrors.Validation("reply_to", "a reply needs the id of the post to reply to")
		}
		opts := m.Options(ctx, settings, token, ModeReply, replyTo)
		result.Warning = opts.Warning
		if err := CheckVisibility(draft.Visibility, opts.Floor); err != nil {
			return Result{}, err
		}
	default:
		return Result{}, apperrors.Validation("mode", "unknown thread mode %q", draft.Mode)
	}
	if err := CheckVisibility(draft.Visibility, ""); err != nil {
		return Result{}, err
	}

	published, err := m.publisher.Publish(ctx, publish.Request{
		Instance:    settings.Instance,
		Token:       token,
		Text:        draft.Text,
		Media:       draft.Media,
		Visibility:  draft.Visibility,
		InReplyToID: replyTo,
	})
	if err != nil {
		return Result{}, err
	}

	from := StateOf(habit)
	apply(&habit, draft.Mode, replyTo, published.ID)
	if err := m.habits.UpdateHabit(ctx, habit); err != nil {
		return Result{}, fmt.Errorf("status %s was published but the thread could not be saved: %w", published.ID, err)
	}
	logger.Info("thread transition",
		"habit", habit.ID,
		"mode", draft.Mode,
		"from", from,
		"to", StateOf(habit),
		"root", habit.RootStatusID,
		"last", habit.LastStatusID)

	result.Status = published
	result.Habit = habit
	return result, nil
}

// apply performs the single pointer transition of a successful publish.
func apply(h *models.Habit, mode Mode, replyTo, statusID string) {
	if mode == ModeNew {
		h.RootStatusID = statusID
		h.LastStatusID = statusID
		return
	}
	if h.RootStatusID == "" {
		h.RootStatusID = replyTo
	}
	h.LastStatusID = statusID
}

// Bind attaches the habit to an existing thread whose root is statusID.
func (m *Machine) Bind(ctx context.Context, habitID, statusID string) (models.Habit, error) {
	statusID = strings.TrimSpace(statusID)
	if statusID == "" {
		return models.Habit{}, apperrors.Validation("status_id", "status id cannot be empty")
	}
	habit, err := m.habits.GetHabit(ctx, habitID)
	if err != nil {
		return models.Habit{}, err
	}
	habit.RootStatusID = statusID
	habit.LastStatusID = statusID
	if err := m.habits.UpdateHabit(ctx, habit); err != nil {
		return models.Habit{}, err
	}
	logger.Info("thread bound", "habit", habit.ID, "root", statusID)
	return habit, nil
}

// Unbind clears both thread pointers.
func (m *Machine) Unbind(ctx context.Context, habitID string) (models.Habit, error) {
	habit, err := m.habits.GetHabit(ctx, habitID)
	if err != nil {
		return models.Habit{}, err
	}
	habit.RootStatusID = ""
	habit.LastStatusID = ""
	if err := m.habits.UpdateHabit(ctx, habit); err != nil {
		return models.Habit{}, err
	}
	logger.Info("thread unbound", "habit", habit.ID)
	return habit, nil
}
