package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vidqueue/internal/api"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var tags []string
	var upload bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Submit a video for transcoding",
		Long: `Submit a video for transcoding.

By default the daemon reads the file from its own filesystem, so the path must
be visible to it. Use --upload when the daemon runs on another host.`,
		Args:        cobra.ExactArgs(1),
		Annotations: clientAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			if path == "" {
				return fmt.Errorf("file path is required")
			}
			req := api.SubmitRequest{
				Title:       strings.TrimSpace(title),
				Description: strings.TrimSpace(description),
				Tags:        normalizeTags(tags),
			}
			if req.Title == "" {
				req.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			return ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				var (
					resp *api.SubmitResponse
					err  error
				)
				if upload {
					resp, err = client.Upload(c, path, req)
				} else {
					abs, absErr := filepath.Abs(path)
					if absErr != nil {
						return fmt.Errorf("resolve path: %w", absErr)
					}
					req.SourcePath = abs
					resp, err = client.Submit(c, req)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s (%s)\n", resp.ID, req.Title)
				if resp.Progress.Status == "queued" {
					fmt.Fprintf(out, "Queue position: %d\n", resp.Progress.QueuePosition)
				}
				fmt.Fprintf(out, "Follow with: vidqueue progress --watch %s\n", resp.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Video title (defaults to the file name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Video description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Comma-separated tags")
	cmd.Flags().BoolVar(&upload, "upload", false, "Stream the file to the daemon instead of passing its path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
