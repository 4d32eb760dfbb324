package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/editor"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/streak"
	"github.com/julianstephens/streaktoot/internal/templates"
	"github.com/julianstephens/streaktoot/internal/thread"
)

type HabitCmd struct {
	Add      HabitAddCmd      `cmd:"" help:"Add a new habit."`
	List     HabitListCmd     `cmd:"" help:"List habits with their streaks."`
	Show     HabitShowCmd     `cmd:"" help:"Show one habit in detail."`
	Log      HabitLogCmd      `cmd:"" help:"Show habit log (ASCII history)."`
	Rename   HabitRenameCmd   `cmd:"" help:"Rename a habit."`
	Delete   HabitDeleteCmd   `cmd:"" help:"Delete a habit and its records."`
	Move     HabitMoveCmd     `cmd:"" help:"Move a habit up or down the list."`
	Link     HabitLinkCmd     `cmd:"" help:"Set or clear the link of a habit."`
	Template HabitTemplateCmd `cmd:"" help:"Set or clear the custom post template of a habit."`
	Slot     HabitSlotCmd     `cmd:"" help:"Assign a habit to a shortcut slot."`
	Done     HabitDoneCmd     `cmd:"" help:"Check in today and post it."`
	Undo     HabitUndoCmd     `cmd:"" help:"Remove today's check-in."`
}

type HabitAddCmd struct {
	Title string `arg:"" help:"Habit title."`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	bg := context.Background()

	if err := checkTitleFree(bg, ctx, c.Title, ""); err != nil {
		return err
	}

	habit, err := ctx.Store.AddHabit(bg, c.Title)
	if err != nil {
		return err
	}

	fmt.Printf("Added habit: %s\n", habit.Title)
	if habit.ShortcutSlot > 0 {
		fmt.Printf("  Shortcut: %d (%s)\n", habit.ShortcutSlot, habit.ShortcutAction)
	}
	return nil
}

// checkTitleFree rejects a title another habit already uses.
func checkTitleFree(ctx context.Context, c *Context, title, exceptID string) error {
	habits, err := c.Store.GetAllHabits(ctx)
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	for _, h := range habits {
		if h.ID != exceptID && strings.EqualFold(h.Title, title) {
			return fmt.Errorf("habit with title %q already exists", title)
		}
	}
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	habits, err := ctx.Store.GetAllHabits(bg)
	if err != nil {
		return err
	}

	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	asOf, err := ctx.Today(settings)
	if err != nil {
		return err
	}
	for i, habit := range habits {
		mark := "[ ]"
		if habit.Records.Done(models.DayKey(asOf)) {
			mark = DoneStyle.Render("[x]")
		}
		slot := ""
		if habit.ShortcutSlot > 0 {
			slot = DimStyle.Render(fmt.Sprintf(" (shortcut %d)", habit.ShortcutSlot))
		}
		fmt.Printf("%d. %s %s%s\n", i+1, mark, TitleStyle.Render(habit.Title), slot)
		fmt.Printf("   streak %d, best %d, total %d\n", streak.Compute(habit.Records, asOf), habit.BestStreak, habit.TotalDone)
		fmt.Println(Indent(Heatmap(habit, settings, asOf), "   "))
	}
	return nil
}

type HabitShowCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
}

func (c *HabitShowCmd) Run(ctx *Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	asOf, err := ctx.Today(settings)
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render(habit.Title))
	fmt.Printf("  ID:          %s\n", habit.ID)
	fmt.Printf("  Created:     %s\n", habit.CreatedAt.Local().Format("2006-01-02"))
	fmt.Printf("  Streak:      %d (best %d)\n", streak.Compute(habit.Records, asOf), habit.BestStreak)
	fmt.Printf("  Total:       %d\n", habit.TotalDone)
	if habit.Link != "" {
		fmt.Printf("  Link:        %s\n", habit.Link)
	}
	if habit.ShortcutSlot > 0 {
		fmt.Printf("  Shortcut:    %d (%s)\n", habit.ShortcutSlot, habit.ShortcutAction)
	}
	fmt.Printf("  Thread:      %s\n", thread.StateOf(habit))
	if habit.IsThreadBound() {
		fmt.Printf("  Root post:   %s\n", habit.RootStatusID)
		fmt.Printf("  Last post:   %s\n", habit.LastStatusID)
	}
	if habit.CustomTemplate != "" {
		fmt.Printf("  Template:    %q\n", habit.CustomTemplate)
	}
	fmt.Println()
	fmt.Println(Indent(Heatmap(habit, settings, asOf), "  "))
	fmt.Println()
	fmt.Println(DimStyle.Render("Next post:"))
	fmt.Println(DimStyle.Render(Indent(templates.BuildPostText(habit, settings, asOf), "  ")))
	return nil
}

type HabitLogCmd struct {
	Days  int    `help:"Number of days to show." default:"14"`
	Habit string `help:"Show log for specific habit only."`
}

func (c *HabitLogCmd) Run(ctx *Context) error {
	if c.Days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	var selected []models.Habit
	if c.Habit != "" {
		habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
		if err != nil {
			return err
		}
		selected = []models.Habit{habit}
	} else {
		selected, err = ctx.Store.GetAllHabits(bg)
		if err != nil {
			return err
		}
	}

	if len(selected) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	endDay, err := ctx.Today(settings)
	if err != nil {
		return err
	}
	startDay := endDay.AddDate(0, 0, -(c.Days - 1))

	fmt.Printf("Habit log (last %d days):\n\n", c.Days)

	const nameWidth = 20
	fmt.Print(strings.Repeat(" ", nameWidth))
	for i := 0; i < c.Days; i++ {
		fmt.Printf(" %5s", startDay.AddDate(0, 0, i).Format("01/02"))
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", nameWidth+6*c.Days))

	for _, habit := range selected {
		fmt.Print(padTitle(habit.Title, nameWidth))
		for i := 0; i < c.Days; i++ {
			if habit.Records.Done(models.DayKey(startDay.AddDate(0, 0, i))) {
				fmt.Print("  x   ")
			} else {
				fmt.Print("  .   ")
			}
		}
		fmt.Println()
	}
	return nil
}

// padTitle truncates or pads a title to exactly width runes.
func padTitle(title string, width int) string {
	r := []rune(title)
	if len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return title + strings.Repeat(" ", width-len(r))
}

type HabitRenameCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
	Title string `arg:"" help:"New title."`
}

func (c *HabitRenameCmd) Run(ctx *Context) error {
	bg := context.Background()
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	if err := checkTitleFree(bg, ctx, c.Title, habit.ID); err != nil {
		return err
	}

	old := habit.Title
	habit.Title = strings.TrimSpace(c.Title)
	if err := ctx.Store.UpdateHabit(bg, habit); err != nil {
		return err
	}
	fmt.Printf("Renamed habit: %s -> %s\n", old, habit.Title)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
	Yes   bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *HabitDeleteCmd) Run(ctx *Context) error {
	bg := context.Background()
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.Confirm(fmt.Sprintf("Delete %q and its %d check-in(s)?", habit.Title, habit.TotalDone))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := ctx.Store.DeleteHabit(bg, habit.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted habit: %s\n", habit.Title)
	return nil
}

type HabitMoveCmd struct {
	Habit     string `arg:"" help:"Habit title, position or id."`
	Direction string `arg:"" enum:"up,down" help:"up or down."`
	Steps     int    `help:"Number of positions to move." default:"1"`
}

func (c *HabitMoveCmd) Run(ctx *Context) error {
	bg := context.Background()
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	if c.Steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	delta := c.Steps
	if c.Direction == "up" {
		delta = -delta
	}
	if err := ctx.Store.MoveHabit(bg, habit.ID, delta); err != nil {
		return err
	}
	fmt.Printf("Moved habit %s %s\n", habit.Title, c.Direction)
	return nil
}

type HabitLinkCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
	URL   string `arg:"" optional:"" help:"Link to open from the shortcut. Omit to clear."`
}

func (c *HabitLinkCmd) Run(ctx *Context) error {
	bg := context.Background()
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}

	link := strings.TrimSpace(c.URL)
	if link != "" {
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid link %q: expected an http or https URL", c.URL)
		}
	}
	habit.Link = link
	if err := ctx.Store.UpdateHabit(bg, habit); err != nil {
		return err
	}

	if link == "" {
		fmt.Printf("Cleared link of %s\n", habit.Title)
	} else {
		fmt.Printf("Set link of %s to %s\n", habit.Title, link)
	}
	return nil
}

type HabitTemplateCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
	Text  string `arg:"" optional:"" help:"Template with {topic}, {streak}, {best}, {total}, {heatmap} placeholders. Omit to clear."`
}

func (c *HabitTemplateCmd) Run(ctx *Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}

	habit.CustomTemplate = c.Text
	if err := ctx.Store.UpdateHabit(bg, habit); err != nil {
		return err
	}

	if c.Text == "" {
		fmt.Printf("Cleared custom template of %s\n", habit.Title)
		return nil
	}
	asOf, err := ctx.Today(settings)
	if err != nil {
		return err
	}
	fmt.Printf("Set custom template of %s. Preview:\n", habit.Title)
	fmt.Println(DimStyle.Render(Indent(templates.BuildPostText(habit, settings, asOf), "  ")))
	return nil
}

type HabitSlotCmd struct {
	Habit  string `arg:"" help:"Habit title, position or id."`
	Slot   int    `arg:"" help:"Shortcut slot (1-3), 0 to clear."`
	Action string `help:"What the shortcut does." enum:"checkin,open-link" default:"checkin"`
}

func (c *HabitSlotCmd) Run(ctx *Context) error {
	bg := context.Background()
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	if c.Action == constants.ShortcutActionOpenLink && habit.Link == "" && c.Slot > 0 {
		return fmt.Errorf("habit %q has no link, set one with 'streaktoot habit link'", habit.Title)
	}

	if err := ctx.Store.AssignShortcut(bg, habit.ID, c.Slot, c.Action); err != nil {
		return err
	}
	if c.Slot == 0 {
		fmt.Printf("Cleared shortcut of %s\n", habit.Title)
	} else {
		fmt.Printf("Shortcut %d now runs %s for %s\n", c.Slot, c.Action, habit.Title)
	}
	return nil
}

type HabitDoneCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`

	PostFlags `embed:""`
}

// PostFlags override the editor for a single post.
type PostFlags struct {
	NoEdit     bool   `help:"Publish without opening the editor." name:"no-edit"`
	Mode       string `help:"Start a new thread (new) or reply (reply)."`
	ReplyTo    string `help:"Status id to reply to." name:"reply-to"`
	Visibility string `help:"Post visibility (public, unlisted, private, direct)."`
	Image      string `help:"Image to attach." type:"existingfile"`
	Alt        string `help:"Alt text of the attached image."`
}

// Surface picks the static surface when any override is given.
func (f *PostFlags) Surface(ctx *Context) (editor.Surface, error) {
	if !f.NoEdit && f.Mode == "" && f.ReplyTo == "" && f.Visibility == "" && f.Image == "" {
		return ctx.Surface, nil
	}
	mode := thread.Mode(f.Mode)
	if mode != "" && mode != thread.ModeNew && mode != thread.ModeReply {
		return nil, fmt.Errorf("invalid mode %q: expected new or reply", f.Mode)
	}
	s := &editor.StaticSurface{
		Mode:      mode,
		ReplyTo:   strings.TrimSpace(f.ReplyTo),
		MediaPath: f.Image,
		MediaAlt:  f.Alt,
	}
	if f.ReplyTo != "" && f.Mode == "" {
		s.Mode = thread.ModeReply
	}
	if f.Visibility != "" {
		v, err := models.ParseVisibility(f.Visibility)
		if err != nil {
			return nil, err
		}
		s.Visibility = v
	}
	return s, nil
}

func (c *HabitDoneCmd) Run(ctx *Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	surface, err := c.Surface(ctx)
	if err != nil {
		return err
	}
	return ctx.Done(bg, habit.ID, settings, surface)
}

// Done checks a habit in and reports the outcome. A failed post still
// reports the saved check-in.
func (c *Context) Done(ctx context.Context, habitID string, settings models.Settings, surface editor.Surface) error {
	out, err := c.CheckIn.CheckIn(ctx, habitID, settings, surface)
	if err != nil && out.Habit.ID != "" {
		if _, rerr := c.RecoverUnauthorized(ctx, settings.Instance, err); rerr != nil {
			err = rerr
		} else {
			// Checking in again on the same day only retries the post.
			out, err = c.CheckIn.CheckIn(ctx, habitID, settings, surface)
		}
	}
	if err != nil {
		if out.Habit.ID == "" {
			return err
		}
		fmt.Printf("%s %s: %d day streak (best %d, total %d)\n",
			DoneStyle.Render("✓"), out.Habit.Title, out.Streak, out.Habit.BestStreak, out.Habit.TotalDone)
		return err
	}
	return c.PrintOutcome(out)
}

type HabitUndoCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
}

func (c *HabitUndoCmd) Run(ctx *Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	asOf, err := ctx.Today(settings)
	if err != nil {
		return err
	}
	if !habit.Records.Done(models.DayKey(asOf)) {
		return errors.New("nothing to undo: not checked in today")
	}

	habit, err = ctx.CheckIn.Undo(bg, habit.ID, settings)
	if err != nil {
		return err
	}
	fmt.Printf("Undid today's check-in of %s (streak %d, best %d)\n",
		habit.Title, streak.Compute(habit.Records, asOf), habit.BestStreak)
	return nil
}
