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

var commandContext = exec.CommandContext

// CheckEncoders reports whether ffmpeg was built with every named encoder.
// Missing encoders make every transcode fail, so the check is not optional.
func CheckEncoders(ctx context.Context, ffmpegBinary string, encoders ...string) Status {
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     strings.TrimSpace(ffmpegBinary),
		Description: "Encoders used by the rendition ladder",
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := commandContext(checkCtx, result.Command, "-hide_banner", "-encoders") //nolint:gosec
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}

	available := parseEncoderList(stdout.Bytes())
	var missing []string
	for _, name := range encoders {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	result.Detail = strings.Join(encoders, ", ")
	return result
}

// parseEncoderList reads `ffmpeg -encoders` output. Encoder rows start with a
// six-character capability column such as "V....D".
func parseEncoderList(output []byte) map[string]struct{} {
	found := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "------") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		found[fields[1]] = struct{}{}
	}
	return found
}
