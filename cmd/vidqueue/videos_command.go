package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidqueue/internal/api"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "videos",
		Short:       "List catalog videos, newest first",
		Annotations: clientAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				videos, err := client.Videos(c, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.VideoListResponse{Videos: videos})
				}
				out := cmd.OutOrStdout()
				if len(videos) == 0 {
					fmt.Fprintln(out, "No videos")
					return nil
				}
				fmt.Fprint(out, renderVideoTable(videos, time.Now()))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of videos to list (0 uses the server default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "show <id>",
		Short:       "Show a catalog video",
		Args:        cobra.ExactArgs(1),
		Annotations: clientAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				video, err := client.Video(c, id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.VideoResponse{Video: *video})
				}
				writeLines(cmd.OutOrStdout(), renderVideoDetail(*video, time.Now()))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderVideoTable(videos []api.Video, now time.Time) string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.ID,
			v.Title,
			displayStatus(v.ConversionStatus),
			fmt.Sprintf("%d", len(v.Renditions)),
			humanize.Bytes(uint64(max(v.OriginalInfo.Size, 0))),
			relativeTime(v.CreatedAt, now),
		})
	}
	return renderTable([]column{
		{title: "ID"},
		{title: "Title", maxWidth: 40},
		{title: "Status"},
		{title: "Renditions", numeric: true},
		{title: "Source", numeric: true},
		{title: "Created"},
	}, rows)
}

func renderVideoDetail(v api.Video, now time.Time) []string {
	lines := []string{
		fmt.Sprintf("ID:          %s", v.ID),
		fmt.Sprintf("Title:       %s", v.Title),
		fmt.Sprintf("Status:      %s", displayStatus(v.ConversionStatus)),
	}
	if v.Description != "" {
		lines = append(lines, fmt.Sprintf("Description: %s", v.Description))
	}
	if len(v.Tags) > 0 {
		lines = append(lines, fmt.Sprintf("Tags:        %s", strings.Join(v.Tags, ", ")))
	}
	info := v.OriginalInfo
	lines = append(lines,
		fmt.Sprintf("Source:      %dx%d %s, %s, %s", info.Width, info.Height, info.VideoCodec,
			formatDuration(info.Duration), humanize.Bytes(uint64(max(info.Size, 0)))),
		fmt.Sprintf("Created:     %s", relativeTime(v.CreatedAt, now)),
	)
	if v.ThumbnailKey != "" {
		lines = append(lines, fmt.Sprintf("Thumbnail:   %s", v.ThumbnailKey))
	}
	if v.ErrorMessage != "" {
		lines = append(lines, fmt.Sprintf("Error:       %s", v.ErrorMessage))
	}
	if len(v.Renditions) > 0 {
		rows := make([][]string, 0, len(v.Renditions))
		for _, r := range v.Renditions {
			marker := ""
			if r.Key == v.DefaultKey {
				marker = "default"
			}
			rows = append(rows, []string{r.Resolution, r.Bitrate, r.Key, marker})
		}
		lines = append(lines, "", renderTable([]column{
			{title: "Resolution"}, {title: "Bitrate", numeric: true}, {title: "Key", maxWidth: 60}, {title: ""},
		}, rows))
	}
	return lines
}

func relativeTime(value string, now time.Time) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}
