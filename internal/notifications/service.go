package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ratingsync/internal/config"
)

const userAgent = "ratingsync/1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, duration time.Duration) error
	NotifyBatchDeferred(ctx context.Context, library, reason string, pending int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
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

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title:    "ratingsync - Batch Complete",
		message:  fmt.Sprintf("All libraries synchronized in %s", duration),
		tags:     []string{"ratingsync", "batch", "completed"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchDeferred(ctx context.Context, library, reason string, pending int) error {
	library = strings.TrimSpace(library)
	if library == "" {
		library = "unknown library"
	}
	message := fmt.Sprintf("Stopped at %s (%s); %d job(s) wait for the next run", library, reason, pending)
	data := payload{
		title:   "ratingsync - Batch Deferred",
		message: message,
		tags:    []string{"ratingsync", "batch", "deferred"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "ratingsync - Error",
		message:  builder.String(),
		tags:     []string{"ratingsync", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ratingsync - Test",
		message:  "Notification system test",
		tags:     []string{"ratingsync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyBatchCompleted(context.Context, time.Duration) error      { return nil }
func (noopService) NotifyBatchDeferred(context.Context, string, string, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error               { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
