package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vidqueue/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "queue",
		Short:       "Show the job queue",
		Annotations: clientAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				status, err := client.Queue(c)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				if status.CurrentProcessing == "" && len(status.Queue) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderQueueTable(*status))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderQueueTable(status api.QueueStatus) string {
	rows := make([][]string, 0, len(status.Queue)+1)
	if status.CurrentProcessing != "" {
		rows = append(rows, []string{"-", status.CurrentProcessing, displayStatus("processing")})
	}
	for i, id := range status.Queue {
		rows = append(rows, []string{strconv.Itoa(i), id, displayStatus("queued")})
	}
	return renderTable([]column{{title: "Position", numeric: true}, {title: "ID"}, {title: "State"}}, rows)
}
