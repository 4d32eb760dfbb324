// Package editor holds the surfaces on which the user reviews a check-in post
// before it is published.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/publish"
	"github.com/julianstephens/streaktoot/internal/thread"
)

// ErrCancelled is returned when the user closes the editor without posting.
var ErrCancelled = errors.New("post cancelled")

// Session is what the editor is opened with.
type Session struct {
	Habit models.Habit
	Text  string
	Plan  thread.Plan
	// Requery recomputes the visibility options after the reply target
	// changes.
	Requery func(ctx context.Context, mode thread.Mode, replyTo string) thread.Options
}

type Surface interface {
	Edit(ctx context.Context, s Session) (thread.Draft, error)
}

// StaticSurface accepts the plan unchanged, applying only the overrides that
// are set. It backs non-interactive use.
type StaticSurface struct {
	Mode       thread.Mode
	ReplyTo    string
	Visibility models.Visibility
	MediaPath  string
	MediaAlt   string
}

func (s *StaticSurface) Edit(ctx context.Context, sess Session) (thread.Draft, error) {
	draft := thread.Draft{
		Text:       sess.Text,
		Mode:       sess.Plan.Mode,
		ReplyTo:    sess.Plan.ReplyTo,
		Visibility: sess.Plan.Visibility,
	}
	if s.Mode != "" {
		draft.Mode = s.Mode
		if s.Mode == thread.ModeNew {
			draft.ReplyTo = ""
		}
	}
	if s.ReplyTo != "" {
		draft.ReplyTo = s.ReplyTo
	}
	if s.Visibility != "" {
		draft.Visibility = s.Visibility
	} else if draft.Mode != sess.Plan.Mode || draft.ReplyTo != sess.Plan.ReplyTo {
		draft.Visibility = visibilityFor(ctx, sess, draft.Mode, draft.ReplyTo)
	}
	if s.MediaPath != "" {
		media, err := publish.LoadMedia(s.MediaPath, s.MediaAlt)
		if err != nil {
			return thread.Draft{}, err
		}
		draft.Media = media
	}
	return draft, nil
}

// visibilityFor keeps the plan's visibility when it is still allowed,
// otherwise it moves up to the new floor.
func visibilityFor(ctx context.Context, sess Session, mode thread.Mode, replyTo string) models.Visibility {
	if sess.Requery == nil {
		return sess.Plan.Visibility
	}
	opts := sess.Requery(ctx, mode, replyTo)
	if sess.Plan.Visibility.AtLeast(opts.Floor) {
		return sess.Plan.Visibility
	}
	return opts.Floor
}

// FormSurface is the interactive editor.
type FormSurface struct {
	Theme *huh.Theme
}

func (f *FormSurface) theme() *huh.Theme {
	if f.Theme != nil {
		return f.Theme
	}
	return huh.ThemeDracula()
}

func (f *FormSurface) Edit(ctx context.Context, sess Session) (thread.Draft, error) {
	text := sess.Text
	mode := sess.Plan.Mode
	replyTo := sess.Plan.ReplyTo

	threadForm := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title(sess.Habit.Title).
				Value(&text).
				CharLimit(500).
				Lines(8),
			huh.NewSelect[thread.Mode]().
				Title("Thread").
				Options(
					huh.NewOption("Start a new thread", thread.ModeNew),
					huh.NewOption("Reply to a post", thread.ModeReply),
				).
				Value(&mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Reply to status id").
				Description("Prefilled with the last post of this habit's thread").
				Value(&replyTo).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a reply needs a status id")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return mode != thread.ModeReply }),
	).WithTheme(f.theme())

	if err := runForm(ctx, threadForm); err != nil {
		return thread.Draft{}, err
	}
	if mode == thread.ModeNew {
		replyTo = ""
	}

	opts := sess.Plan.Options
	visibility := sess.Plan.Visibility
	if (mode != sess.Plan.Mode || replyTo != sess.Plan.ReplyTo) && sess.Requery != nil {
		opts = sess.Requery(ctx, mode, replyTo)
		if !visibility.AtLeast(opts.Floor) {
			visibility = opts.Floor
		}
	}
	if opts.Warning != nil {
		fmt.Printf("⚠️  %v; every visibility is offered\n", opts.Warning)
	}

	allowed := opts.Allowed
	if len(allowed) == 0 {
		allowed = models.Visibilities
	}
	visOptions := make([]huh.Option[models.Visibility], 0, len(allowed))
	for _, v := range allowed {
		visOptions = append(visOptions, huh.NewOption(string(v), v))
	}

	var mediaPath, mediaAlt string
	var confirmed bool
	postForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[models.Visibility]().
				Title("Visibility").
				Options(visOptions...).
				Value(&visibility),
			huh.NewInput().
				Title("Image (optional)").
				Description("Path to a single image to attach").
				Value(&mediaPath),
			huh.NewInput().
				Title("Alt text").
				Value(&mediaAlt),
			huh.NewConfirm().
				Title("Publish now?").
				Value(&confirmed),
		),
	).WithTheme(f.theme())

	if err := runForm(ctx, postForm); err != nil {
		return thread.Draft{}, err
	}
	if !confirmed {
		return thread.Draft{}, ErrCancelled
	}

	draft := thread.Draft{Text: text, Mode: mode, ReplyTo: strings.TrimSpace(replyTo), Visibility: visibility}
	if strings.TrimSpace(mediaPath) != "" {
		media, err := publish.LoadMedia(strings.TrimSpace(mediaPath), mediaAlt)
		if err != nil {
			return thread.Draft{}, err
		}
		draft.Media = media
	}
	return draft, nil
}

func runForm(ctx context.Context, form *huh.Form) error {
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrCancelled
		}
		return fmt.Errorf("editor form error: %w", err)
	}
	return nil
}
