package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

func newHealthCmd(c *cli) *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check API and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !watch {
				h, err := c.client.Health(cmd.Context())
				if h == nil {
					return err
				}
				if emitErr := c.emit(h, func(w io.Writer) { printHealth(w, h) }); emitErr != nil {
					return emitErr
				}
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var last *bool
			client.NewHealthPoller(c.client, interval).Run(ctx, func(r client.HealthResult) {
				healthy := r.Healthy()
				if c.jsonOutput() {
					_ = c.emit(healthSample(r), nil)
					return
				}
				if last != nil && *last == healthy {
					dim.Fprintf(c.out, "%s  %s (%s)\n", r.CheckedAt.Format(time.TimeOnly), statusWord(healthy), r.Latency.Round(time.Millisecond))
					return
				}
				last = &healthy
				fmt.Fprintf(c.out, "%s  ", r.CheckedAt.Format(time.TimeOnly))
				if r.Health != nil {
					printHealth(c.out, r.Health)
				} else {
					red.Fprintf(c.out, "unreachable: %s\n", client.DisplayMessage(r.Err))
				}
			})
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling and report changes")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Poll interval with --watch")
	return cmd
}

func statusWord(healthy bool) string {
	if healthy {
		return green.Sprint("ok")
	}
	return red.Sprint("degraded")
}

func printHealth(w io.Writer, h *client.Health) {
	fmt.Fprintf(w, "API: %s\n", statusWord(h.OK()))
	names := make([]string, 0, len(h.Details))
	for name := range h.Details {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ind := h.Details[name]
		line := fmt.Sprintf("  %-10s %s", name, statusWord(ind.Status == "up"))
		if ind.Message != "" {
			line += "  " + ind.Message
		}
		fmt.Fprintln(w, line)
	}
}

type healthSampleJSON struct {
	CheckedAt time.Time      `json:"checked_at"`
	LatencyMS int64          `json:"latency_ms"`
	Healthy   bool           `json:"healthy"`
	Health    *client.Health `json:"health,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func healthSample(r client.HealthResult) healthSampleJSON {
	s := healthSampleJSON{
		CheckedAt: r.CheckedAt,
		LatencyMS: r.Latency.Milliseconds(),
		Healthy:   r.Healthy(),
		Health:    r.Health,
	}
	if r.Err != nil {
		s.Error = client.DisplayMessage(r.Err)
	}
	return s
}
