package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List mirrored records (devices, applications, groups, assignments)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()

			switch args[0] {
			case "devices":
				devices, err := a.devices.List(ctx, forceFresh)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "ID\tNAME\tOS\tCOMPLIANCE\tUSER")
				for _, d := range devices {
					fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n",
						d.ID, d.DeviceName, d.OperatingSystem, d.OSVersion, d.ComplianceState, d.UserPrincipal)
				}

			case "applications":
				apps, err := a.apps.List(ctx, forceFresh)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "ID\tNAME\tPUBLISHER\tSTATE")
				for _, app := range apps {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", app.ID, app.DisplayName, app.Publisher, app.PublishingState)
				}

			case "groups":
				groups, err := a.groups.List(ctx, forceFresh)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
				for _, g := range groups {
					fmt.Fprintf(w, "%s\t%s\t%d\n", g.ID, g.DisplayName, g.MemberCount)
				}

			case "assignments":
				assignments, err := a.assignments.List(ctx, forceFresh)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "ID\tAPP\tINTENT\tGROUP")
				for _, as := range assignments {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", as.ID, as.AppID, as.Intent, as.Target.GroupID)
				}

			default:
				return fmt.Errorf("unknown entity %q (want devices, applications, groups, or assignments)", args[0])
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&forceFresh, "force", "f", false, "refresh even when the cache is fresh")
	return cmd
}
