package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Emitter publishes state-transition events for notification and audit
// consumers. Emission is fire-and-forget: failures are logged, never
// surfaced to the write path that triggered them.
type Emitter interface {
	Emit(eventType string, payload any)
}

type envelope struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	EmittedAt uint64 `json:"emitted_at"`
}

type webhookEmitter struct {
	url    string
	client http.Client
	logger *slog.Logger
}

func (e *webhookEmitter) Emit(eventType string, payload any) {
	go func() {
		body, err := json.Marshal(envelope{
			Type:      eventType,
			Payload:   payload,
			EmittedAt: uint64(time.Now().Unix()),
		})
		if err != nil {
			e.logger.Error("failed to encode event", slog.String("type", eventType), slog.String("error", err.Error()))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		r, err := http.NewRequestWithContext(ctx, "POST", e.url, bytes.NewReader(body))
		if err != nil {
			e.logger.Error("failed to build event request", slog.String("type", eventType), slog.String("error", err.Error()))
			return
		}
		r.Header.Set("Content-Type", "application/json")

		res, err := e.client.Do(r)
		if err != nil {
			e.logger.Warn("failed to deliver event", slog.String("type", eventType), slog.String("error", err.Error()))
			return
		}
		res.Body.Close()

		if res.StatusCode >= 300 {
			e.logger.Warn("event consumer rejected event",
				slog.String("type", eventType),
				slog.Int("status_code", res.StatusCode),
			)
		}
	}()
}

type logEmitter struct {
	logger *slog.Logger
}

func (e *logEmitter) Emit(eventType string, payload any) {
	e.logger.Debug("event", slog.String("type", eventType), slog.Any("payload", payload))
}

// NewEmitter returns a webhook emitter when a URL is configured, and a
// log-only emitter otherwise.
func NewEmitter(webhookURL string, logger *slog.Logger) Emitter {
	if webhookURL == "" {
		return &logEmitter{logger: logger}
	}

	return &webhookEmitter{
		url: webhookURL,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}
