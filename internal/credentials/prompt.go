package credentials

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// PromptAuthorizer prints the authorization URL and asks for the code the
// instance displays after the user approves access.
type PromptAuthorizer struct {
	Out io.Writer
	// Open shows the URL, typically in a browser. When nil or failing the URL
	// is printed to Out.
	Open func(url string) error
	// Ask reads the code; nil uses an interactive form.
	Ask func(ctx context.Context) (string, error)
}

func NewPromptAuthorizer() *PromptAuthorizer {
	return &PromptAuthorizer{Out: os.Stdout}
}

func (p *PromptAuthorizer) Authorize(ctx context.Context, authURL string) (string, error) {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, "Open this URL in your browser and approve access:")
	if p.Open == nil || p.Open(authURL) != nil {
		fmt.Fprintf(out, "\n  %s\n\n", authURL)
	}

	ask := p.Ask
	if ask == nil {
		ask = askCode
	}
	return ask(ctx)
}

func askCode(ctx context.Context) (string, error) {
	var code string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Authorization code").
				Description("Paste the code (or the full redirect URL) shown by your instance").
				Value(&code).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("code cannot be empty")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return code, nil
}
