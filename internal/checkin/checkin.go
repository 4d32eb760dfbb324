// Package checkin records a day as done and turns it into a post: a share
// page when threading is off, or a published status in the habit's thread.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/editor"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/streak"
	"github.com/julianstephens/streaktoot/internal/templates"
	"github.com/julianstephens/streaktoot/internal/thread"
	"github.com/julianstephens/streaktoot/internal/utils"
	"github.com/julianstephens/streaktoot/internal/validation"
)

type HabitStore interface {
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	UpdateHabit(ctx context.Context, habit models.Habit) error
}

type TokenSource interface {
	AccessToken(ctx context.Context, instance string) (models.AccessToken, error)
}

type Service struct {
	habits  HabitStore
	machine *thread.Machine
	tokens  TokenSource

	// Now is the wall clock, replaced in tests.
	Now utils.Clock
}

// Outcome describes what a check-in produced. Exactly one of ShareURL,
// Published or Cancelled is set.
type Outcome struct {
	Habit     models.Habit
	Streak    int
	Text      string
	ShareURL  string
	Published *thread.Result
	Cancelled bool
}

func NewService(habits HabitStore, machine *thread.Machine, tokens TokenSource) *Service {
	return &Service{habits: habits, machine: machine, tokens: tokens, Now: time.Now}
}

// Today is the current instant in the configured timezone.
func (s *Service) Today(settings models.Settings) (time.Time, error) {
	return utils.InTimezone(s.Now(), settings.Timezone)
}

// CheckIn marks today as done for the habit and persists it before any post
// is attempted, so a failed publish never loses the record.
func (s *Service) CheckIn(ctx context.Context, habitID string, settings models.Settings, surface editor.Surface) (Outcome, error) {
	asOf, err := s.Today(settings)
	if err != nil {
		return Outcome{}, err
	}
	habit, err := s.habits.GetHabit(ctx, habitID)
	if err != nil {
		return Outcome{}, err
	}

	if habit.Records == nil {
		habit.Records = models.Records{}
	}
	habit.Records.Mark(models.DayKey(asOf))
	current := streak.Refresh(&habit, asOf)
	if err := s.habits.UpdateHabit(ctx, habit); err != nil {
		return Outcome{}, fmt.Errorf("failed to save check-in: %w", err)
	}
	logger.Info("checked in", "habit", habit.ID, "streak", current, "best", habit.BestStreak, "total", habit.TotalDone)

	out := Outcome{
		Habit:  habit,
		Streak: current,
		Text:   templates.BuildPostText(habit, settings, asOf),
	}

	if !settings.EnableThreading {
		out.ShareURL = ShareURL(settings.Instance, out.Text)
		return out, nil
	}

	token, err := s.tokens.AccessToken(ctx, settings.Instance)
	if err != nil {
		return out, fmt.Errorf("check-in saved but not posted: %w", err)
	}

	plan := s.machine.Prepare(ctx, habit, settings, token.Token)
	draft, err := surface.Edit(ctx, editor.Session{
		Habit: habit,
		Text:  out.Text,
		Plan:  plan,
		Requery: func(ctx context.Context, mode thread.Mode, replyTo string) thread.Options {
			return s.machine.Options(ctx, settings, token.Token, mode, replyTo)
		},
	})
	if errors.Is(err, editor.ErrCancelled) {
		out.Cancelled = true
		return out, nil
	}
	if err != nil {
		return out, err
	}

	result, err := s.machine.Publish(ctx, habit.ID, draft, settings, token.Token)
	if err != nil {
		return out, fmt.Errorf("check-in saved but not posted: %w", err)
	}
	if result.Warning == nil {
		result.Warning = plan.Options.Warning
	}
	out.Habit = result.Habit
	out.Published = &result
	return out, nil
}

// Undo removes today's record. The best streak is kept.
func (s *Service) Undo(ctx context.Context, habitID string, settings models.Settings) (models.Habit, error) {
	asOf, err := s.Today(settings)
	if err != nil {
		return models.Habit{}, err
	}
	habit, err := s.habits.GetHabit(ctx, habitID)
	if err != nil {
		return models.Habit{}, err
	}
	habit.Records.Unmark(models.DayKey(asOf))
	streak.Refresh(&habit, asOf)
	if err := s.habits.UpdateHabit(ctx, habit); err != nil {
		return models.Habit{}, fmt.Errorf("failed to save habit: %w", err)
	}
	logger.Info("check-in undone", "habit", habit.ID, "day", models.DayKey(asOf))
	return habit, nil
}

// ShareURL is the instance's share page prefilled with text. An unusable
// instance falls back to a placeholder so the link can still be copied.
func ShareURL(instance, text string) string {
	origin, err := validation.NormalizeInstance(instance)
	if err != nil {
		origin = constants.FallbackInstance
	}
	return origin + "/share?text=" + url.QueryEscape(text)
}
