package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// entitySyncOrder refreshes groups before the views that join against
// them, so dependent invalidations land before the dependents refresh.
var entitySyncOrder = []string{"groups", "devices", "applications", "assignments"}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [entity]",
		Short: "Refresh the local mirror (all entities, or one of: devices, applications, groups, assignments)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			targets := entitySyncOrder
			if len(args) == 1 {
				targets = []string{args[0]}
			}

			bar := progressbar.NewOptions(len(targets),
				progressbar.OptionSetDescription("syncing"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)

			ctx := cmd.Context()
			for _, entity := range targets {
				if err := syncEntity(ctx, a, entity); err != nil {
					return err
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			fmt.Println("sync complete")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&forceFresh, "force", "f", false, "refresh even when the cache is fresh")
	return cmd
}

func syncEntity(ctx context.Context, a *app, entity string) error {
	switch entity {
	case "devices":
		_, err := a.devices.List(ctx, forceFresh)
		return err
	case "applications":
		_, err := a.apps.List(ctx, forceFresh)
		return err
	case "groups":
		_, err := a.groups.List(ctx, forceFresh)
		return err
	case "assignments":
		_, err := a.assignments.List(ctx, forceFresh)
		return err
	default:
		return fmt.Errorf("unknown entity %q (want devices, applications, groups, or assignments)", entity)
	}
}
