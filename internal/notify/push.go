package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// PushConfig holds push gateway settings.
type PushConfig struct {
	URL           string
	InternalToken string
	Timeout       time.Duration
}

// PushSink delivers notifications through the internal push gateway:
// POST {target, text} to the gateway's notify endpoint. Any non-2xx
// response is a failed delivery.
type PushSink struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

func NewPushSink(cfg *PushConfig, logger *slog.Logger) *PushSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &PushSink{
		url:    cfg.URL,
		token:  cfg.InternalToken,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type pushRequest struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

func (s *PushSink) Send(ctx context.Context, target, text string) error {
	body, err := json.Marshal(pushRequest{Target: target, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("X-Internal-Token", s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("Push gateway rejected notification",
			slog.Int("status", resp.StatusCode),
			slog.String("target", target),
		)
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	return nil
}
