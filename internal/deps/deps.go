package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds each `<tool> -version` call.
const versionTimeout = 5 * time.Second

// Tool is an external program the transcoder shells out to.
type Tool struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// Status reports whether a tool resolved on PATH and which build it is.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// CheckTools resolves every tool and reads its version banner. A tool that
// resolves but cannot report a version is still available.
func CheckTools(ctx context.Context, tools []Tool) []Status {
	results := make([]Status, 0, len(tools))
	for _, tool := range tools {
		results = append(results, checkTool(ctx, tool))
	}
	return results
}

func checkTool(ctx context.Context, tool Tool) Status {
	status := Status{
		Name:        tool.Name,
		Command:     strings.TrimSpace(tool.Command),
		Description: strings.TrimSpace(tool.Purpose),
		Optional:    tool.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	status.Version = toolVersion(ctx, path)
	return status
}

// toolVersion returns the version token from the first line of
// `<path> -version`, e.g. "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func toolVersion(ctx context.Context, path string) string {
	versionCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	var stdout bytes.Buffer
	cmd := commandContext(versionCtx, path, "-version") //nolint:gosec
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ""
	}
	return parseVersion(stdout.Bytes())
}

func parseVersion(output []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	if !scanner.Scan() {
		return ""
	}
	fields := strings.Fields(scanner.Text())
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "version" {
			return fields[i+1]
		}
	}
	return ""
}
