package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"pulse/app/internal/checker"
	"pulse/app/internal/config"
)

func newProbeCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe [url]",
		Short: "Probe a URL once and print the result (default SITE_URL)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := defaultTarget()
			if len(args) == 1 {
				target = args[0]
				if err := checker.ValidateTarget(target); err != nil {
					return err
				}
			}

			s := checker.New(target, timeout).Probe(cmd.Context(), "")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, bannerStyle.Render("pulse probe"))
			fmt.Fprintf(out, "  %s  %s\n", statusLabel(string(s.Status)), boldStyle.Render(s.URL))
			if s.HTTPStatus != 0 {
				fmt.Fprintf(out, "  %s %d\n", dimStyle.Render("http:   "), s.HTTPStatus)
			}
			fmt.Fprintf(out, "  %s %dms\n", dimStyle.Render("latency:"), s.LatencyMs)
			if s.Error != "" {
				fmt.Fprintln(out, errorBox.Render(s.Error))
			}
			if !s.Up() {
				return fmt.Errorf("%s is down", s.URL)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "probe timeout")
	return cmd
}

// defaultTarget is the site URL pulse serve would sample
func defaultTarget() string {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v; using defaults", err)
		return config.Defaults().SiteURL
	}
	return cfg.SiteURL
}
