package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/streak"
	"github.com/julianstephens/streaktoot/internal/validation"
)

type ValidateCmd struct {
	Fix bool `help:"Repair half-bound threads, duplicate shortcuts and stale counters."`
}

func (cmd *ValidateCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	habits, err := ctx.Store.GetAllHabits(bg)
	if err != nil {
		return fmt.Errorf("failed to load habits: %w", err)
	}

	validator := validation.New()

	fmt.Println("Validating settings...")
	settingsResult := validator.ValidateSettings(settings)
	fmt.Println("Validating habits...")
	habitResult := validator.ValidateHabits(habits)

	combined := validation.ValidationResult{
		Conflicts: append(settingsResult.Conflicts, habitResult.Conflicts...),
	}

	fmt.Println()
	fmt.Println(combined.FormatReport())

	if !cmd.Fix || !habitResult.HasConflicts() {
		return nil
	}

	asOf, err := ctx.Today(settings)
	if err != nil {
		return err
	}

	update := func(id string, change func(h *models.Habit)) error {
		h, err := ctx.Store.GetHabit(bg, id)
		if err != nil {
			return err
		}
		change(&h)
		return ctx.Store.UpdateHabit(bg, h)
	}

	// Thread pointers first: a half-bound habit fails validation on every
	// other update.
	actions := validation.AutoFixHalfBoundThreads(habitResult.Conflicts, func(id string) error {
		return update(id, func(h *models.Habit) { h.BackfillThread() })
	})
	actions = append(actions, validation.AutoFixDuplicateShortcuts(habitResult.Conflicts, func(id string) error {
		return update(id, func(h *models.Habit) {
			h.ShortcutSlot = 0
			h.ShortcutAction = ""
		})
	})...)

	for _, conflict := range habitResult.Conflicts {
		if conflict.Type != validation.ConflictStaleCounters {
			continue
		}
		for _, id := range conflict.HabitIDs {
			if err := update(id, func(h *models.Habit) { streak.Refresh(h, asOf) }); err != nil {
				return fmt.Errorf("failed to recount habit %s: %w", id, err)
			}
			actions = append(actions, validation.FixAction{
				Action:         fmt.Sprintf("Resolved: %s (recounted)", conflict.Description),
				SourceConflict: conflict,
			})
		}
	}

	for _, action := range actions {
		fmt.Println(action.Action)
	}
	if len(actions) == 0 {
		fmt.Println("Nothing could be fixed automatically.")
	}
	return nil
}
