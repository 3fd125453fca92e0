package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newStatusCmd() *cobra.Command {
	var (
		server string
		days   int
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status report of a running pulse server",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetchStatus(cmd.Context(), server, days)
			if err != nil {
				return err
			}
			return renderStatus(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:4555", "pulse server base URL")
	cmd.Flags().IntVar(&days, "days", 0, "days of history (server default when 0)")
	return cmd
}

func fetchStatus(ctx context.Context, server string, days int) ([]byte, error) {
	u, err := url.Parse(strings.TrimRight(server, "/") + "/status")
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if days > 0 {
		q := u.Query()
		q.Set("days", strconv.Itoa(days))
		u.RawQuery = q.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach %s: %w", server, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("server returned %d with a non-JSON body", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !gjson.GetBytes(body, "success").Bool() {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("status request failed: %s", msg)
	}
	return body, nil
}

func renderStatus(w io.Writer, body []byte) error {
	data := gjson.GetBytes(body, "data")
	cur := data.Get("currentStatus")

	fmt.Fprintln(w, bannerStyle.Render("pulse status"))
	fmt.Fprintf(w, "  %s  %s  %s\n",
		statusLabel(cur.Get("status").String()),
		boldStyle.Render(cur.Get("url").String()),
		dimStyle.Render(fmt.Sprintf("%dms", cur.Get("responseTimeMs").Int())))
	fmt.Fprintf(w, "  %s %.2f%% over %d checks\n", dimStyle.Render("uptime: "),
		data.Get("overallUptime").Float(), data.Get("totalChecks").Int())
	fmt.Fprintf(w, "  %s %.2fms\n", dimStyle.Render("latency:"), data.Get("avgResponseTime").Float())

	history := data.Get("history").Array()
	if len(history) > 0 {
		var strip strings.Builder
		for _, d := range history {
			strip.WriteString(uptimeCell(d.Get("uptimePercent").Float(), d.Get("measured").Bool()))
		}
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render(history[0].Get("date").String()), strip.String())
	}

	incidents := data.Get("incidents").Array()
	fmt.Fprintln(w)
	if len(incidents) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  No incidents reported"))
	} else {
		fmt.Fprintln(w, boldStyle.Render("  Incidents"))
		for _, inc := range incidents {
			st := inc.Get("status").String()
			label := warnStyle.Render(st)
			if st == "resolved" {
				label = upStyle.Render(st)
			}
			fmt.Fprintf(w, "  %s  %s  %s\n", dimStyle.Render(inc.Get("date").String()), label, inc.Get("title").String())
		}
	}
	fmt.Fprintln(w, dimStyle.Render("  as of "+data.Get("currentTime").String()))
	return nil
}
