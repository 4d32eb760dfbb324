package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/credentials"
	"github.com/julianstephens/streaktoot/internal/keyring"
	"github.com/julianstephens/streaktoot/internal/kvstore"
	"github.com/julianstephens/streaktoot/internal/validation"
)

// skipped marks a check that does not apply to the current setup.
type skipped string

func (s skipped) Error() string { return string(s) }

type DoctorCmd struct {
	Offline bool `help:"Skip checks that contact the instance."`
}

type check struct {
	name     string
	needsDB  bool
	warnOnly bool
	run      func(ctx context.Context, c *cli.Context) error
}

func (cmd *DoctorCmd) checks() []check {
	checks := []check{
		{name: "Store reachable", run: checkStoreReachable},
		{name: "Schema version", needsDB: true, run: checkSchemaVersion},
		{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
		{name: "Settings", needsDB: true, run: checkSettings},
		{name: "Habit integrity", needsDB: true, run: checkHabits},
		{name: "Clock", run: checkClock},
		{name: "OS keyring", warnOnly: true, run: checkKeyring},
	}
	if !cmd.Offline {
		checks = append(checks, check{name: "Instance credentials", needsDB: true, run: checkCredentials})
	}
	return checks
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	bg := context.Background()
	hasError := false
	dbReachable := false

	for i, chk := range cmd.checks() {
		if chk.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (store not reachable)\n", chk.name)
			continue
		}
		err := chk.run(bg, ctx)
		var skip skipped
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", chk.name)
			if i == 0 {
				dbReachable = true
			}
		case errors.As(err, &skip):
			fmt.Printf("⊘ %s: SKIPPED (%s)\n", chk.name, skip)
		case chk.warnOnly:
			fmt.Printf("⚠ %s: WARNING\n", chk.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", chk.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkStoreReachable(ctx context.Context, c *cli.Context) error {
	if err := c.Store.Load(); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	if _, err := c.Store.Backend().Keys(ctx); err != nil {
		return fmt.Errorf("failed to query store: %w", err)
	}
	return nil
}

func migrator(c *cli.Context) (kvstore.Migrator, bool) {
	m, ok := c.Store.Backend().(kvstore.Migrator)
	return m, ok
}

func checkSchemaVersion(_ context.Context, c *cli.Context) error {
	m, ok := migrator(c)
	if !ok {
		return skipped("backend has no schema")
	}
	current, latest, err := m.SchemaVersion()
	if err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(_ context.Context, c *cli.Context) error {
	m, ok := migrator(c)
	if !ok {
		return skipped("backend has no schema")
	}
	current, latest, err := m.SchemaVersion()
	if err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkSettings(ctx context.Context, c *cli.Context) error {
	settings, err := c.Settings(ctx)
	if err != nil {
		return err
	}
	result := validation.New().ValidateSettings(settings)
	if result.HasConflicts() {
		return errors.New(result.FormatReport())
	}
	return nil
}

func checkHabits(ctx context.Context, c *cli.Context) error {
	habits, err := c.Store.GetAllHabits(ctx)
	if err != nil {
		return fmt.Errorf("failed to get habits: %w", err)
	}
	result := validation.New().ValidateHabits(habits)
	if result.HasConflicts() {
		return fmt.Errorf("%s(run 'streaktoot validate --fix' to repair)", result.FormatReport())
	}
	return nil
}

func checkClock(context.Context, *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkKeyring(_ context.Context, c *cli.Context) error {
	if c.Config != nil && !c.Config.Keyring {
		return skipped("disabled in config")
	}
	if !keyring.IsAvailable() {
		return errors.New("OS keyring is not available, the access token is kept in the store")
	}
	return nil
}

func checkCredentials(ctx context.Context, c *cli.Context) error {
	settings, err := c.Settings(ctx)
	if err != nil {
		return err
	}
	if settings.Instance == "" {
		return skipped("no instance configured")
	}
	token, err := c.Credentials.AccessToken(ctx, settings.Instance)
	if errors.Is(err, credentials.ErrNoToken) {
		return skipped("not logged in")
	}
	if err != nil {
		return err
	}
	if _, err := c.Client.VerifyCredentials(ctx, settings.Instance, token.Token); err != nil {
		return fmt.Errorf("token rejected by %s: %w (run 'streaktoot auth login')", settings.Instance, err)
	}
	return nil
}
