package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/credentials"
	"github.com/julianstephens/streaktoot/internal/keyring"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/validation"
)

type AuthCmd struct {
	Login  LoginCmd  `cmd:"" help:"Register streaktoot on the instance and obtain an access token."`
	Status StatusCmd `cmd:"" help:"Show the credential state of the configured instance."`
	Logout LogoutCmd `cmd:"" help:"Forget the access token."`
}

type LoginCmd struct {
	Instance string `arg:"" optional:"" help:"Instance to log in to. Defaults to the configured one."`
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	target := c.Instance
	if target == "" {
		target = settings.Instance
	}
	if strings.TrimSpace(target) == "" {
		return errors.New("no instance configured, pass one: streaktoot auth login mastodon.social")
	}
	instance, err := validation.NormalizeInstance(target)
	if err != nil {
		return err
	}

	// The new token replaces the old one only once it has been issued, so a
	// failed login leaves the configured instance usable.
	token, err := ctx.Credentials.ObtainAccessToken(bg, instance, ctx.Authorizer)
	if err != nil {
		return err
	}

	if instance != settings.Instance {
		logger.Info("instance changed on login", "from", settings.Instance, "to", instance)
		settings.Instance = instance
	}
	settings.EnableThreading = true
	if err := ctx.Store.SaveSettings(bg, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	who := instance
	if account, err := ctx.Client.VerifyCredentials(bg, instance, token.Token); err == nil {
		who = fmt.Sprintf("@%s on %s", account.Acct, instance)
	} else {
		logger.Warn("credential check after login failed", "instance", instance, "err", err)
	}
	fmt.Printf("✓ Logged in as %s\n", who)
	fmt.Println("  Threading enabled: check-ins are now published to your thread.")
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	if ctx.Config != nil && ctx.Config.Keyring {
		if keyring.IsAvailable() {
			fmt.Println("✓ OS keyring is available")
		} else {
			fmt.Println("⚠ OS keyring is not available, the access token is kept in the store")
		}
	} else {
		fmt.Println("ℹ OS keyring disabled, the access token is kept in the store")
	}

	if settings.Instance == "" {
		fmt.Println("ℹ No instance configured")
		return nil
	}

	state, err := ctx.Credentials.State(bg, settings.Instance)
	if err != nil {
		return err
	}
	fmt.Printf("  Instance:  %s\n", settings.Instance)
	fmt.Printf("  State:     %s\n", state)
	fmt.Printf("  Threading: %v\n", settings.EnableThreading)

	if state != credentials.Authorized {
		return nil
	}
	token, err := ctx.Credentials.AccessToken(bg, settings.Instance)
	if err != nil {
		return err
	}
	fmt.Printf("  Token:     %s\n", maskToken(token))

	account, err := ctx.Client.VerifyCredentials(bg, settings.Instance, token.Token)
	if err != nil {
		fmt.Printf("❌ Token rejected: %v\n", err)
		return errors.New("access token is no longer valid, run 'streaktoot auth login'")
	}
	fmt.Printf("✓ Logged in as @%s\n", account.Acct)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Credentials.Logout(bg); err != nil {
		return err
	}

	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	if settings.EnableThreading {
		settings.EnableThreading = false
		if err := ctx.Store.SaveSettings(bg, settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}

	fmt.Println("✓ Access token deleted")
	return nil
}

// maskToken keeps the first and last characters of the token for display.
func maskToken(token models.AccessToken) string {
	t := token.Token
	if len(t) <= 8 {
		return "****"
	}
	return t[:4] + "****" + t[len(t)-4:]
}
