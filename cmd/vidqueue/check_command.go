package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidqueue/internal/deps"
	"vidqueue/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, artifact storage, encoders and the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			writeLines(out, renderSectionHeader("Environment", colorize))
			writeLines(out, resultLines(results, colorize))

			dependencies := preflight.CheckSystemDeps(cmd.Context(), cfg)
			fmt.Fprintln(out)
			writeLines(out, renderSectionHeader("Dependencies", colorize))
			writeLines(out, dependencyLines(dependencies, colorize))

			addr, err := ctx.apiAddress()
			if err != nil {
				return err
			}
			daemonResult := preflight.CheckDaemon(cmd.Context(), addr)
			fmt.Fprintln(out)
			writeLines(out, renderSectionHeader("Daemon", colorize))
			kind := statusOK
			if !daemonResult.Passed {
				kind = statusInfo
			}
			fmt.Fprintln(out, renderStatusLine(daemonResult.Name, kind, daemonResult.Detail, colorize))

			failed := len(preflight.Failed(results))
			for _, dep := range dependencies {
				if !dep.Available && !dep.Optional {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func resultLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	if len(statuses) == 0 {
		return []string{renderStatusLine("Summary", statusInfo, "No dependencies checked", colorize)}
	}

	var missing []string
	for _, dep := range statuses {
		if !dep.Available && !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}

	lines := make([]string, 0, len(statuses)+2)
	if len(missing) == 0 {
		lines = append(lines, renderStatusLine("Summary", statusOK, fmt.Sprintf("%d/%d available", len(statuses), len(statuses)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Summary", statusError,
			fmt.Sprintf("%d/%d available", len(statuses)-len(missing), len(statuses)), colorize))
	}

	for _, dep := range statuses {
		switch {
		case dep.Available:
			detail := "Ready"
			if dep.Version != "" {
				detail = "Ready " + dep.Version
			}
			if dep.Command != "" {
				detail = fmt.Sprintf("%s (command: %s)", detail, dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, detail, colorize))
		case dep.Optional:
			lines = append(lines, renderStatusLine(dep.Name, statusWarn, dependencyDetail(dep), colorize))
		default:
			lines = append(lines, renderStatusLine(dep.Name, statusError, dependencyDetail(dep), colorize))
		}
	}

	if len(missing) > 0 {
		lines = append(lines, fmt.Sprintf("%sMissing dependencies: %s", statusIndent, strings.Join(missing, ", ")))
	}
	return lines
}

func dependencyDetail(dep deps.Status) string {
	if detail := strings.TrimSpace(dep.Detail); detail != "" {
		return detail
	}
	return "not available"
}
