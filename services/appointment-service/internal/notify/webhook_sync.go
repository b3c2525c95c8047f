package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
)

// WebhookSync posts appointment changes to an HTTP automation endpoint.
type WebhookSync struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSync(url, token string) *WebhookSync {
	return &WebhookSync{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookSync) AppointmentUpdated(ctx context.Context, ev AppointmentUpdated) error {
	return s.post(ctx, EventAppointmentUpdated, ev)
}

func (s *WebhookSync) AppointmentCancelled(ctx context.Context, ev AppointmentCancelled) error {
	return s.post(ctx, EventAppointmentCancelled, ev)
}

func (s *WebhookSync) post(ctx context.Context, event string, data any) error {
	if s.url == "" {
		return errors.New("sync webhook url not configured")
	}
	raw, err := json.Marshal(map[string]any{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	otelx.InjectHTTPHeaders(ctx, req.Header)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync webhook returned %d", resp.StatusCode)
	}
	return nil
}
