package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidqueue/internal/encoding"
	"vidqueue/internal/ladder"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a local file and preview its rendition plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(args[0])
			meta, err := encoding.NewFFmpeg(encoding.SettingsFromConfig(cfg)).Probe(cmd.Context(), path)
			if err != nil {
				return err
			}
			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			plan := ladder.Plan(ladder.FromConfig(cfg.Transcode.Tiers), "", stem, cfg.Transcode.Container)
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"source": meta, "plan": plan})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:       %s\n", path)
			fmt.Fprintf(out, "Format:     %s\n", meta.FormatName)
			fmt.Fprintf(out, "Video:      %dx%d %s\n", meta.Width, meta.Height, meta.VideoCodec)
			if meta.AudioCodec != "" {
				fmt.Fprintf(out, "Audio:      %s\n", meta.AudioCodec)
			}
			fmt.Fprintf(out, "Duration:   %s\n", formatDuration(meta.DurationSeconds))
			fmt.Fprintf(out, "Size:       %s\n", humanize.Bytes(uint64(max(meta.SizeBytes, 0))))
			rows := make([][]string, 0, len(plan))
			for _, task := range plan {
				rows = append(rows, []string{
					fmt.Sprintf("%d/%d", task.Step, task.TotalSteps),
					task.Tier.Label,
					fmt.Sprintf("%dp", task.Tier.Height),
					task.Tier.Bitrate,
					task.OutputPath,
				})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable([]column{
				{title: "Step"}, {title: "Tier"}, {title: "Height", numeric: true},
				{title: "Bitrate", numeric: true}, {title: "Output", maxWidth: 60},
			}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
