package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAssignCmd() *cobra.Command {
	var intent string

	cmd := &cobra.Command{
		Use:   "assign <app-id> <group-id>...",
		Short: "Assign an application to one or more groups",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			appID := args[0]
			groupIDs := args[1:]

			results, err := a.assignments.Assign(cmd.Context(), appID, intent, groupIDs)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Status >= 200 && res.Status < 300 {
					continue
				}
				failed++
				fmt.Printf("%s: status %d\n", res.ID, res.Status)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d assignments failed", failed, len(results))
			}
			fmt.Printf("assigned %s to %d group(s)\n", appID, len(groupIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&intent, "intent", "required", "assignment intent (required, available, uninstall)")
	return cmd
}
