package system

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/config"
	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/kvstore"
)

type InitCmd struct {
	Force       bool   `help:"Delete existing data before initialization."`
	Source      string `help:"Store to copy data from (SQLite path, postgres:// URL or diskv://<dir>)."`
	WriteConfig bool   `help:"Also write a sample config file." name:"write-config"`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force && c.Source != "" && sameLocation(c.Source, ctx.Store.GetConfigPath()) {
		return fmt.Errorf("cannot use --force when source and destination are the same: %s", ctx.Store.GetConfigPath())
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}

	if c.Force {
		n, err := clearStore(context.Background(), ctx.Store.Backend())
		if err != nil {
			return fmt.Errorf("failed to delete existing data: %w", err)
		}
		// Recreates the default settings
		if err := ctx.Store.Init(); err != nil {
			return err
		}
		fmt.Printf("Deleted %d existing key(s) at: %s\n", n, ctx.Store.GetConfigPath())
	}
	fmt.Printf("Initialized %s storage at: %s\n", constants.AppName, ctx.Store.GetConfigPath())

	if c.Source != "" {
		fmt.Printf("Migrating data from: %s\n", c.Source)
		if err := c.migrateData(ctx, c.Source); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("Migration completed successfully!")
	}

	if c.WriteConfig {
		path := ctx.Config.File
		if path == "" {
			expanded, err := kvstore.ExpandPath(constants.DefaultConfigFile)
			if err != nil {
				return err
			}
			path = expanded
		}
		if err := config.InitConfig(path); err != nil {
			return err
		}
		fmt.Printf("Wrote sample config to: %s\n", path)
	}

	return nil
}

func (c *InitCmd) migrateData(ctx *cli.Context, location string) error {
	source, err := kvstore.Open(location)
	if err != nil {
		if errors.Is(err, kvstore.ErrEmbeddedCredentials) {
			return fmt.Errorf("PostgreSQL source connection string contains embedded credentials. Use environment variables or .pgpass instead")
		}
		return err
	}
	if err := source.Load(); err != nil {
		return fmt.Errorf("failed to load source store: %w", err)
	}
	defer source.Close()

	n, err := kvstore.Copy(context.Background(), ctx.Store.Backend(), source)
	if err != nil {
		return err
	}
	fmt.Printf("  Migrated %d key(s)\n", n)
	return nil
}

func clearStore(ctx context.Context, kv kvstore.Store) (int, error) {
	keys, err := kv.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err := kv.Delete(ctx, key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func sameLocation(a, b string) bool {
	if a == b {
		return true
	}
	if kvstore.IsPostgres(a) || kvstore.IsPostgres(b) {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
