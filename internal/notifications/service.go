package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vidqueue/internal/config"
)

const userAgent = "vidqueue/0.1.0"

// Service defines the notification surface used by the pipeline.
type Service interface {
	NotifyVideoReady(ctx context.Context, title string, renditions int) error
	NotifyVideoFailed(ctx context.Context, title string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
	}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyVideoReady(ctx context.Context, title string, renditions int) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Ready to watch: %s", title)
	if renditions > 0 {
		message = fmt.Sprintf("%s (%d renditions)", message, renditions)
	}
	return n.send(ctx, payload{
		title:    "vidqueue - Ready",
		message:  message,
		tags:     []string{"vidqueue", "conversion", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyVideoFailed(ctx context.Context, title string, err error) error {
	var builder strings.Builder
	builder.WriteString("Conversion failed")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(" for ")
		builder.WriteString(title)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "vidqueue - Error",
		message:  builder.String(),
		tags:     []string{"vidqueue", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "vidqueue - Test",
		message:  "Notification system test",
		tags:     []string{"vidqueue", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyVideoReady(context.Context, string, int) error    { return nil }
func (noopService) NotifyVideoFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
