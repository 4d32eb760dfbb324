package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/streaktoot/internal/checkin"
	"github.com/julianstephens/streaktoot/internal/config"
	"github.com/julianstephens/streaktoot/internal/credentials"
	"github.com/julianstephens/streaktoot/internal/editor"
	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/keyring"
	"github.com/julianstephens/streaktoot/internal/launcher"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/mastodon"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/publish"
	"github.com/julianstephens/streaktoot/internal/storage"
	"github.com/julianstephens/streaktoot/internal/streak"
	"github.com/julianstephens/streaktoot/internal/thread"
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true)
	DimStyle   = lipgloss.NewStyle().Faint(true)
	DoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	WarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

type Context struct {
	Store       storage.Provider
	Config      *config.Config
	Tokens      credentials.TokenStore
	Client      *mastodon.Client
	Credentials *credentials.Manager
	Threads     *thread.Machine
	CheckIn     *checkin.Service
	Launcher    *launcher.Launcher

	// Authorizer obtains the authorization code during login.
	Authorizer credentials.Authorizer
	// Surface edits a thread post before it is published.
	Surface editor.Surface
	// Confirm asks a yes/no question before destructive changes.
	Confirm func(title string) (bool, error)
}

// NewContext wires the services used by every command around one store.
func NewContext(store storage.Provider, cfg *config.Config, tokens credentials.TokenStore) *Context {
	client := mastodon.NewClient(cfg.Mastodon())
	creds := credentials.NewManager(client, store, tokens, cfg.Credentials())
	machine := thread.NewMachine(client, publish.NewPipeline(client), store)
	browser := launcher.New(os.Stdout, false)
	authorizer := credentials.NewPromptAuthorizer()
	authorizer.Open = browser.Open

	return &Context{
		Store:       store,
		Config:      cfg,
		Tokens:      tokens,
		Client:      client,
		Credentials: creds,
		Threads:     machine,
		CheckIn:     checkin.NewService(store, machine, creds),
		Launcher:    browser,
		Authorizer:  authorizer,
		Surface:     &editor.FormSurface{},
		Confirm:     confirm,
	}
}

// TokenStore keeps the access token in the OS keyring when it is enabled and
// reachable, and in the store otherwise.
func TokenStore(cfg *config.Config, store storage.Provider) credentials.TokenStore {
	if cfg.Keyring && keyring.IsAvailable() {
		return keyring.NewTokenStore()
	}
	if cfg.Keyring {
		logger.Warn("OS keyring unavailable, keeping the access token in the store")
	}
	return credentials.StoreTokens(store)
}

func confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(huh.ThemeDracula())
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// Settings returns the persisted settings snapshot.
func (c *Context) Settings(ctx context.Context) (models.Settings, error) {
	settings, err := c.Store.GetSettings(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// Today is the current day in the configured timezone, on the same clock
// check-ins use.
func (c *Context) Today(settings models.Settings) (time.Time, error) {
	return c.CheckIn.Today(settings)
}

// Heatmap renders the last two weeks of a habit as two rows of glyphs.
func Heatmap(h models.Habit, settings models.Settings, asOf time.Time) string {
	return streak.HeatmapText(h.Records, asOf, settings.EmojiDone, settings.EmojiEmpty)
}

// Indent prefixes every line of s.
func Indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// PrintOutcome reports a check-in the way every command that performs one does.
func (c *Context) PrintOutcome(out checkin.Outcome) error {
	fmt.Printf("%s %s: %d day streak (best %d, total %d)\n",
		DoneStyle.Render("✓"), out.Habit.Title, out.Streak, out.Habit.BestStreak, out.Habit.TotalDone)

	switch {
	case out.Cancelled:
		fmt.Println("⊘ Post cancelled. The check-in is saved.")
	case out.Published != nil:
		if out.Published.Warning != nil {
			fmt.Printf("%s %v\n", WarnStyle.Render("⚠"), out.Published.Warning)
		}
		status := out.Published.Status
		fmt.Printf("✓ Posted %s (%s)\n", status.ID, status.Visibility)
		if status.URL != "" {
			fmt.Printf("  %s\n", status.URL)
		}
	case out.ShareURL != "":
		fmt.Println(DimStyle.Render(out.Text))
		return c.Launcher.Open(out.ShareURL)
	}
	return nil
}

// RecoverUnauthorized handles a publish the instance rejected with 401. The
// stale token is dropped and the user is offered a new login. The new token
// is returned when the login succeeds, otherwise cause is returned with the
// re-login instruction.
func (c *Context) RecoverUnauthorized(ctx context.Context, instance string, cause error) (models.AccessToken, error) {
	var pubErr *apperrors.PublishError
	if !errors.As(cause, &pubErr) || !pubErr.Unauthorized() {
		return models.AccessToken{}, cause
	}

	logger.Warn("access token rejected", "instance", instance)
	if err := c.Credentials.Logout(ctx); err != nil {
		return models.AccessToken{}, fmt.Errorf("failed to clear rejected token: %w", err)
	}
	fmt.Printf("%s %s rejected the access token\n", WarnStyle.Render("⚠"), instance)

	ok, err := c.Confirm(fmt.Sprintf("Log in to %s again?", instance))
	if err != nil || !ok {
		return models.AccessToken{}, fmt.Errorf("%w (run 'streaktoot auth login')", cause)
	}
	token, err := c.Credentials.ObtainAccessToken(ctx, instance, c.Authorizer)
	if err != nil {
		return models.AccessToken{}, err
	}
	fmt.Printf("✓ Logged in to %s again\n", instance)
	return token, nil
}
