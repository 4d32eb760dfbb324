package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/credentials"
	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/templates"
	"github.com/julianstephens/streaktoot/internal/utils"
	"github.com/julianstephens/streaktoot/internal/validation"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Instance          *string           `help:"Mastodon-compatible instance, e.g. mastodon.social."`
	Language          *string           `help:"Template language (en-us, zh-cn, zh-tw, jp)."`
	DefaultVisibility *string           `help:"Visibility preselected for new threads."`
	EmojiDone         *string           `help:"Heatmap glyph for a done day."`
	EmojiEmpty        *string           `help:"Heatmap glyph for a missed day."`
	EnableThreading   *bool             `help:"Publish through the API instead of the share page."`
	Timezone          *string           `help:"IANA timezone that decides what 'today' is, or Local."`
	Template          map[string]string `help:"Set the template of a language (LANG=TEXT). An empty TEXT removes it." mapsep:"none"`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	if c.List {
		printSettings(settings)
		return nil
	}

	updated := false
	if c.Instance != nil {
		instance, err := validation.NormalizeInstance(*c.Instance)
		if err != nil {
			return err
		}
		if instance != settings.Instance {
			cleared, err := ctx.Credentials.SwitchInstance(bg, settings.Instance, instance)
			if err != nil {
				return fmt.Errorf("failed to clear access token: %w", err)
			}
			if cleared && settings.Instance != "" {
				fmt.Println("Access token cleared. Run 'streaktoot auth login' for the new instance.")
			}
			if settings.EnableThreading {
				settings.EnableThreading = false
				fmt.Println("Threading disabled until you log in again.")
			}
			settings.Instance = instance
			updated = true
		}
	}
	if c.Language != nil {
		lang, err := templateLanguage("language", *c.Language)
		if err != nil {
			return err
		}
		settings.Language = lang
		updated = true
	}
	if c.DefaultVisibility != nil {
		v, err := models.ParseVisibility(*c.DefaultVisibility)
		if err != nil {
			return apperrors.Validation("default_visibility", "%v", err)
		}
		settings.DefaultVisibility = v
		updated = true
	}
	if c.EmojiDone != nil {
		if strings.TrimSpace(*c.EmojiDone) == "" {
			return apperrors.Validation("emoji_done", "glyph cannot be empty")
		}
		settings.EmojiDone = *c.EmojiDone
		updated = true
	}
	if c.EmojiEmpty != nil {
		if strings.TrimSpace(*c.EmojiEmpty) == "" {
			return apperrors.Validation("emoji_empty", "glyph cannot be empty")
		}
		settings.EmojiEmpty = *c.EmojiEmpty
		updated = true
	}
	if c.Timezone != nil {
		if !utils.ValidateTimezone(*c.Timezone) {
			return apperrors.Validation("timezone", "%q is not a known IANA zone", *c.Timezone)
		}
		settings.Timezone = *c.Timezone
		updated = true
	}
	for tag, text := range c.Template {
		lang, err := templateLanguage("template", tag)
		if err != nil {
			return err
		}
		if settings.Templates == nil {
			settings.Templates = map[string]string{}
		}
		if strings.TrimSpace(text) == "" {
			delete(settings.Templates, lang)
		} else {
			settings.Templates[lang] = text
		}
		updated = true
	}
	if c.EnableThreading != nil {
		if *c.EnableThreading {
			if err := requireLogin(bg, ctx, settings.Instance); err != nil {
				return err
			}
		}
		settings.EnableThreading = *c.EnableThreading
		updated = true
	}

	if updated {
		if err := ctx.Store.SaveSettings(bg, settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Println("Settings updated successfully.")
	} else {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
	}

	return nil
}

func templateLanguage(field, tag string) (string, error) {
	lang, ok := templates.LookupLanguage(tag)
	if !ok {
		return "", apperrors.Validation(field, "unsupported language %q (supported: %s)",
			tag, strings.Join(templates.Languages(), ", "))
	}
	return lang, nil
}

func requireLogin(ctx context.Context, c *cli.Context, instance string) error {
	if instance == "" {
		return errors.New("set an instance with --instance before enabling threading")
	}
	if _, err := c.Credentials.AccessToken(ctx, instance); err != nil {
		if errors.Is(err, credentials.ErrNoToken) {
			return errors.New("threading needs an access token, run 'streaktoot auth login' first")
		}
		return err
	}
	return nil
}

func printSettings(settings models.Settings) {
	values := models.SettingsToMap(settings)
	keys := make([]string, 0, len(values))
	width := 0
	for k := range values {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	fmt.Println(cli.TitleStyle.Render("Current Settings:"))
	for _, k := range keys {
		value := values[k]
		if value == "" {
			value = cli.DimStyle.Render("(not set)")
		}
		fmt.Printf("  %-*s  %s\n", width, k, value)
	}

	if len(settings.Templates) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(cli.TitleStyle.Render("Templates:"))
	langs := make([]string, 0, len(settings.Templates))
	for lang := range settings.Templates {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		fmt.Printf("  [%s]\n%s\n", lang, cli.Indent(settings.Templates[lang], "    "))
	}
}
