package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
)

const userAgent = "fiomax/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventUploadCompleted   Event = "upload_completed"
	EventUploadFailed      Event = "upload_failed"
	EventDownloadCompleted Event = "download_completed"
	EventDownloadFailed    Event = "download_failed"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries event-specific values used when formatting a message.
type Payload map[string]any

// Service publishes operator notifications for pipeline events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	return n.send(ctx, format(event, payload))
}

func format(event Event, payload Payload) message {
	switch event {
	case EventUploadCompleted:
		return message{
			title: "Frame.io - Upload Complete",
			body:  fmt.Sprintf("⬆️ Uploaded: %s", payloadString(payload, "filename")),
			tags:  []string{"fiomax", "upload", "completed"},
		}
	case EventUploadFailed:
		return message{
			title:    "Frame.io - Upload Failed",
			body:     fmt.Sprintf("Upload failed: %s: %s", payloadString(payload, "filename"), payloadString(payload, "error")),
			tags:     []string{"fiomax", "upload", "failed"},
			priority: "high",
		}
	case EventDownloadCompleted:
		return message{
			title: "Frame.io - Download Complete",
			body:  fmt.Sprintf("⬇️ Downloaded approved asset: %s", payloadString(payload, "name")),
			tags:  []string{"fiomax", "download", "completed"},
		}
	case EventDownloadFailed:
		return message{
			title:    "Frame.io - Download Failed",
			body:     fmt.Sprintf("Download failed: %s: %s", payloadString(payload, "name"), payloadString(payload, "error")),
			tags:     []string{"fiomax", "download", "failed"},
			priority: "high",
		}
	case EventError:
		body := "❌ Error"
		if label := payloadString(payload, "context"); label != "" {
			body += " with " + label
		}
		body += ": " + payloadString(payload, "error")
		return message{
			title:    "Frame.io - Error",
			body:     body,
			tags:     []string{"fiomax", "error", "alert"},
			priority: "high",
		}
	case EventTest:
		return message{
			title:    "Frame.io - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"fiomax", "test"},
			priority: "low",
		}
	default:
		return message{
			title: "Frame.io - Notification",
			body:  string(event),
			tags:  []string{"fiomax"},
		}
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

// Noop returns a Service that drops every event.
func Noop() Service { return noopService{} }

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
