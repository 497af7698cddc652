package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidforge/internal/config"
)

const userAgent = "vidforge/0.1.0"

// Event names a notification-worthy job milestone.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Known keys: jobId, videoId, title, type,
// videoUrl, stage, error, attempts.
type Payload map[string]any

// Service publishes job events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		enabled: map[Event]bool{
			EventJobCompleted: cfg.Notifications.JobCompleted,
			EventJobFailed:    cfg.Notifications.JobFailed,
			EventTest:         true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	label := field(payload, "title")
	if label == "" {
		label = "video " + shortID(field(payload, "videoId"))
	}
	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("✅ Rendered: %s", label)
		if url := field(payload, "videoUrl"); url != "" {
			body += "\n" + url
		}
		return message{
			title:    "vidforge - Video Ready",
			body:     body,
			tags:     []string{"vidforge", "job", "completed"},
			priority: "high",
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("❌ Failed: %s", label)
		if stage := field(payload, "stage"); stage != "" {
			body += fmt.Sprintf(" during %s", stage)
		}
		if attempts := field(payload, "attempts"); attempts != "" {
			body += fmt.Sprintf(" after %s attempts", attempts)
		}
		if errText := field(payload, "error"); errText != "" {
			body += "\n" + errText
		}
		return message{
			title:    "vidforge - Job Failed",
			body:     body,
			tags:     []string{"vidforge", "job", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "vidforge - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"vidforge", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func field(payload Payload, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if err, ok := v.(error); ok {
		return strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "unknown"
	}
	return id
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
