package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/internal/config"
	"github.com/worldsweep/extension/pkg/sweep"
)

// Webhook posts each pass report as JSON to a configured HTTP endpoint.
type Webhook struct {
	url        string
	apiKey     string
	session    SessionInfo
	httpClient *http.Client
	log        zerolog.Logger
}

// webhookDelivery is the JSON body posted for each pass.
type webhookDelivery struct {
	Extension string        `json:"extension"`
	Version   string        `json:"version"`
	Report    *sweep.Report `json:"report"`
}

// NewWebhook creates a webhook report sink.
func NewWebhook(cfg config.WebhookReportConfig, session SessionInfo, log zerolog.Logger) *Webhook {
	return &Webhook{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		session:    session,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Init verifies the endpoint is reachable so a bad URL or a down service
// is caught at startup instead of on the first delivery.
func (w *Webhook) Init() error {
	u, err := url.Parse(w.url)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	u.Path = "/healthcheck"
	u.RawQuery = ""

	resp, err := w.httpClient.Get(u.String())
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// RecordPass posts the report. Deliveries run on the worker goroutine, so
// a slow endpoint delays later sinks but never the game thread.
func (w *Webhook) RecordPass(r *sweep.Report) error {
	body, err := json.Marshal(webhookDelivery{
		Extension: w.session.Extension,
		Version:   w.session.Version,
		Report:    r,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("X-API-Key", w.apiKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) Close() error { return nil }
