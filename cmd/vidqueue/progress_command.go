package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidqueue/internal/api"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var interval time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "progress <id>",
		Short:       "Show transcoding progress for a video",
		Args:        cobra.ExactArgs(1),
		Annotations: clientAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if interval <= 0 {
				interval = time.Second
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			return ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				var last string
				for {
					prog, err := client.Progress(c, id)
					if err != nil {
						return err
					}
					if jsonOutput {
						if err := writeJSON(cmd, prog); err != nil {
							return err
						}
					} else if line := renderProgress(id, *prog, colorize); line != last {
						fmt.Fprintln(out, line)
						last = line
					}
					if !watch || progressDone(prog.Status) {
						return nil
					}
					select {
					case <-c.Done():
						return c.Err()
					case <-time.After(interval):
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the job completes or fails")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval for --watch")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// progressDone reports whether polling can stop. Unknown ids never advance.
func progressDone(status string) bool {
	switch status {
	case "completed", "failed", "unknown":
		return true
	default:
		return false
	}
}

func renderProgress(id string, prog api.Progress, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %3d%% %s", renderProgressBar(prog.Progress), prog.Progress, prog.Message)
	if prog.ActiveResolution != "" && prog.TotalSteps > 0 {
		fmt.Fprintf(&b, " (%s %d%%, step %d/%d)", prog.ActiveResolution, prog.ResolutionProgress, prog.CurrentStep, prog.TotalSteps)
	}
	if prog.Status == "queued" {
		fmt.Fprintf(&b, " (queue position %d)", prog.QueuePosition)
	}
	if prog.Visible && prog.Status != "completed" {
		b.WriteString(" [playable]")
	}
	if prog.Error != "" {
		fmt.Fprintf(&b, ": %s", prog.Error)
	}
	return renderStatusLine(id+" "+displayStatus(prog.Status), statusKindFor(prog.Status), b.String(), colorize)
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
