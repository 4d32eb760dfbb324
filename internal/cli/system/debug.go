package system

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/streaktoot/internal/cli"
)

type DebugCmd struct {
	Path         DebugPathCmd         `cmd:"" help:"Show store location and config file."`
	DumpHabit    DebugDumpHabitCmd    `cmd:"" help:"Dump habit data as JSON."`
	DumpSettings DebugDumpSettingsCmd `cmd:"" help:"Dump settings data as JSON."`
	Keys         DebugKeysCmd         `cmd:"" help:"List stored keys."`
}

func printJSON(v interface{}) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}

type DebugPathCmd struct{}

func (cmd *DebugPathCmd) Run(ctx *cli.Context) error {
	output := map[string]string{
		"store": ctx.Store.GetConfigPath(),
	}
	if ctx.Config != nil {
		output["config"] = ctx.Config.File
	}
	return printJSON(output)
}

type DebugDumpHabitCmd struct {
	Ref string `arg:"" help:"Habit id, position or title."`
}

func (cmd *DebugDumpHabitCmd) Run(ctx *cli.Context) error {
	habit, err := ctx.Store.ResolveHabit(context.Background(), cmd.Ref)
	if err != nil {
		return err
	}
	return printJSON(habit)
}

type DebugDumpSettingsCmd struct{}

func (cmd *DebugDumpSettingsCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Settings(context.Background())
	if err != nil {
		return err
	}
	return printJSON(settings)
}

type DebugKeysCmd struct{}

func (cmd *DebugKeysCmd) Run(ctx *cli.Context) error {
	keys, err := ctx.Store.Backend().Keys(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	return printJSON(keys)
}
