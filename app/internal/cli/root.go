package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the pulse command tree. With no subcommand it serves.
func NewRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "pulse",
		Short: "Uptime sampler, status API and incident log",
		Long: `pulse probes a site on a fixed interval, keeps a bounded log of the
results, and serves per-day uptime, latency and a manually curated incident
log over HTTP.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configFile != "" {
				_ = os.Setenv("CONFIG_FILE", configFile)
			}
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveFlags{})
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")

	root.AddCommand(newServeCmd(), newProbeCmd(), newStatusCmd())
	return root
}

// Execute runs the command tree with ctx, which is cancelled on shutdown signals
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
