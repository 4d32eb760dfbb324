package cli

import (
	"context"
	"fmt"

	"github.com/julianstephens/streaktoot/internal/constants"
)

type ShortcutCmd struct {
	Slot int `arg:"" help:"Shortcut slot (1-3)."`
}

func (c *ShortcutCmd) Run(ctx *Context) error {
	if c.Slot < 1 || c.Slot > constants.MaxShortcutSlots {
		return fmt.Errorf("shortcut slot must be between 1 and %d", constants.MaxShortcutSlots)
	}
	bg := context.Background()
	habit, err := ctx.Store.HabitForSlot(bg, c.Slot)
	if err != nil {
		return err
	}

	switch habit.ShortcutAction {
	case constants.ShortcutActionOpenLink:
		if habit.Link == "" {
			return fmt.Errorf("habit %q has no link", habit.Title)
		}
		return ctx.Launcher.Open(habit.Link)
	default:
		settings, err := ctx.Settings(bg)
		if err != nil {
			return err
		}
		return ctx.Done(bg, habit.ID, settings, ctx.Surface)
	}
}
