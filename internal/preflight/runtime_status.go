package preflight

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CheckDaemon reports whether a daemon answers /healthz on addr.
func CheckDaemon(ctx context.Context, addr string) Result {
	const name = "Daemon"

	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Result{Name: name, Detail: "api bind not configured"}
	}
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, strings.TrimRight(base, "/")+"/healthz", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid address (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not running on %s", addr)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("running on %s", addr)}
}
