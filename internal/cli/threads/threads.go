package threads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/editor"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/templates"
	"github.com/julianstephens/streaktoot/internal/thread"
)

type ThreadCmd struct {
	Show   ShowCmd   `cmd:"" help:"Show the thread each habit posts into."`
	Bind   BindCmd   `cmd:"" help:"Continue an existing thread from now on."`
	Unbind UnbindCmd `cmd:"" help:"Forget the thread of a habit. The next post starts a new one."`
	Post   PostCmd   `cmd:"" help:"Publish a post into a habit's thread without checking in."`
}

type ShowCmd struct {
	Habit string `arg:"" optional:"" help:"Habit title, position or id. Defaults to all habits."`
}

func (c *ShowCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	var habits []models.Habit
	if c.Habit != "" {
		habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
		if err != nil {
			return err
		}
		habits = []models.Habit{habit}
	} else {
		all, err := ctx.Store.GetAllHabits(bg)
		if err != nil {
			return err
		}
		habits = all
	}

	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	for _, habit := range habits {
		if !habit.IsThreadBound() {
			fmt.Printf("%s: %s\n", cli.TitleStyle.Render(habit.Title), cli.DimStyle.Render("no thread, the next post starts one"))
			continue
		}
		fmt.Printf("%s: replying to %s\n", cli.TitleStyle.Render(habit.Title), habit.ReplyTarget())
		fmt.Printf("  Root: %s\n", habit.RootStatusID)
		fmt.Printf("  Last: %s\n", habit.LastStatusID)
	}
	return nil
}

type BindCmd struct {
	Habit    string `arg:"" help:"Habit title, position or id."`
	StatusID string `arg:"" help:"Id of the status the thread starts with."`
}

func (c *BindCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	if habit.IsThreadBound() {
		fmt.Printf("Replacing thread %s\n", habit.RootStatusID)
	}
	habit, err = ctx.Threads.Bind(bg, habit.ID, c.StatusID)
	if err != nil {
		return err
	}
	fmt.Printf("%s now continues thread %s\n", habit.Title, habit.RootStatusID)
	return nil
}

type UnbindCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
}

func (c *UnbindCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	if !habit.IsThreadBound() {
		fmt.Printf("%s has no thread.\n", habit.Title)
		return nil
	}
	if _, err := ctx.Threads.Unbind(bg, habit.ID); err != nil {
		return err
	}
	fmt.Printf("Unbound thread of %s\n", habit.Title)
	return nil
}

type PostCmd struct {
	Habit string `arg:"" help:"Habit title, position or id."`
	Text  string `help:"Post text. Defaults to the habit's rendered template."`

	cli.PostFlags `embed:""`
}

func (c *PostCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	if settings.Instance == "" {
		return errors.New("no instance configured, run 'streaktoot auth login <instance>'")
	}
	habit, err := ctx.Store.ResolveHabit(bg, c.Habit)
	if err != nil {
		return err
	}
	token, err := ctx.Credentials.AccessToken(bg, settings.Instance)
	if err != nil {
		return err
	}
	surface, err := c.Surface(ctx)
	if err != nil {
		return err
	}

	text := c.Text
	if strings.TrimSpace(text) == "" {
		asOf, err := ctx.Today(settings)
		if err != nil {
			return err
		}
		text = templates.BuildPostText(habit, settings, asOf)
	}

	machine := ctx.Threads
	plan := machine.Prepare(bg, habit, settings, token.Token)
	draft, err := surface.Edit(bg, editor.Session{
		Habit: habit,
		Text:  text,
		Plan:  plan,
		Requery: func(rctx context.Context, mode thread.Mode, replyTo string) thread.Options {
			return machine.Options(rctx, settings, token.Token, mode, replyTo)
		},
	})
	if errors.Is(err, editor.ErrCancelled) {
		fmt.Println("⊘ Post cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	result, err := machine.Publish(bg, habit.ID, draft, settings, token.Token)
	if err != nil {
		token, err = ctx.RecoverUnauthorized(bg, settings.Instance, err)
		if err != nil {
			return err
		}
		if result, err = machine.Publish(bg, habit.ID, draft, settings, token.Token); err != nil {
			return err
		}
	}
	if result.Warning != nil {
		fmt.Printf("%s %v\n", cli.WarnStyle.Render("⚠"), result.Warning)
	}
	fmt.Printf("✓ Posted %s (%s)\n", result.Status.ID, result.Status.Visibility)
	if result.Status.URL != "" {
		fmt.Printf("  %s\n", result.Status.URL)
	}
	return nil
}
