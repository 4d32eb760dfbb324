package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/cli/auth"
	"github.com/julianstephens/streaktoot/internal/cli/settings"
	"github.com/julianstephens/streaktoot/internal/cli/system"
	"github.com/julianstephens/streaktoot/internal/cli/threads"
	"github.com/julianstephens/streaktoot/internal/config"
	"github.com/julianstephens/streaktoot/internal/constants"
	apperrors "github.com/julianstephens/streaktoot/internal/errors"
	"github.com/julianstephens/streaktoot/internal/kvstore"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/storage"
)

var CLI struct {
	Version    kong.VersionFlag
	ConfigFile string `help:"Config file path." name:"config-file" type:"path"`
	Store      string `help:"Store location, overriding the config file: SQLite path or postgres:// URL (credentials must NOT be embedded; use environment variables or .pgpass), or diskv://<dir>."`
	Debug      bool   `help:"Log to stderr at debug level."`
	NoBrowser  bool   `help:"Print links instead of opening them in a browser." name:"no-browser"`

	Init     system.InitCmd       `cmd:"" help:"Initialize streaktoot storage."`
	Migrate  system.MigrateCmd    `cmd:"" help:"Run database migrations."`
	Doctor   system.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
	Validate system.ValidateCmd   `cmd:"" help:"Validate habits and settings for conflicts."`
	DebugCmd system.DebugCmd      `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`
	Settings settings.SettingsCmd `cmd:"" help:"Manage application settings."`
	Auth     auth.AuthCmd         `cmd:"" help:"Log in to your Mastodon instance."`
	Habit    cli.HabitCmd         `cmd:"" help:"Manage habits and check in."`
	Thread   threads.ThreadCmd    `cmd:"" help:"Manage the thread each habit posts into."`
	Shortcut cli.ShortcutCmd      `cmd:"" help:"Run the action bound to a shortcut slot."`
}

// skipLoad lists the commands that open the store themselves.
var skipLoad = map[string]bool{"init": true, "doctor": true}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker that posts your streaks to Mastodon"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(CLI.ConfigFile)
	if err != nil {
		apperrors.Fatal(err)
	}
	if CLI.Store != "" {
		cfg.Store = CLI.Store
	}
	if CLI.Debug {
		cfg.Debug = true
	}

	dir, err := config.Dir()
	if err != nil {
		apperrors.Fatal(err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: dir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	store, err := storage.Open(cfg.Store)
	if errors.Is(err, kvstore.ErrEmbeddedCredentials) {
		fmt.Fprintf(os.Stderr, "❌ Error: PostgreSQL connection strings with embedded credentials are NOT allowed.\n")
		fmt.Fprintf(os.Stderr, "       Use one of these secure alternatives:\n")
		fmt.Fprintf(os.Stderr, "       1. Environment:   export PGPASSWORD=...\n")
		fmt.Fprintf(os.Stderr, "       2. .pgpass file:  Use connection string without password: \"postgresql://user@host:5432/streaktoot\"\n")
		os.Exit(1)
	}
	if err != nil {
		apperrors.Fatal(err)
	}

	appCtx := cli.NewContext(store, cfg, cli.TokenStore(cfg, store))
	appCtx.Launcher.NoBrowser = CLI.NoBrowser

	if ctx.Selected() != nil && !skipLoad[ctx.Selected().Name] {
		if err := store.Load(); err != nil {
			apperrors.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	if cerr := store.Close(); cerr != nil {
		logger.Warn("failed to close store", "err", cerr)
	}
	apperrors.Fatal(err)
}
