// Command fleetlink mirrors a Graph-style device-management tenant into a
// local store: managed devices, applications, groups, and app assignments.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fleetlink/fleetlink-int/internal/logging"
)

var (
	verbose       bool
	forceFresh    bool
	storePath     string
	metricsListen string
)

func main() {
	root := &cobra.Command{
		Use:   "fleetlink",
		Short: "Fleetlink tenant mirror",
		Long:  "Fleetlink keeps a local mirror of your device-management tenant:\ndevices, applications, groups, and app assignments.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&storePath, "store", "", "local store path (default ~/.config/fleetlink/store.db)")
	root.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9090)")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newAssignCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
