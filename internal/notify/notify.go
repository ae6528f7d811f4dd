// Package notify delivers drift alerts to an external webhook. Delivery is
// best effort; a failed notification never fails the detection run.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"driftwatch/internal/drift"
)

// Webhook posts alert batches to a single HTTP endpoint.
type Webhook struct {
	client *resty.Client
	url    string
}

// payload is the JSON body posted to the webhook.
type payload struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	OverallDrift   bool          `json:"overall_drift"`
	CriticalAlerts int           `json:"critical_alerts"`
	Alerts         []drift.Alert `json:"alerts"`
}

// NewWebhook creates a webhook notifier for the given URL. Transient
// failures are retried twice with a short backoff.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Webhook{client: client, url: url}
}

// SendAlerts posts the report's alerts to the webhook. Reports without
// alerts are skipped. The returned error is informational; callers log it
// and move on.
func (w *Webhook) SendAlerts(ctx context.Context, rep *drift.Report) error {
	if w.url == "" || len(rep.Alerts) == 0 {
		return nil
	}

	body := payload{
		GeneratedAt:    rep.GeneratedAt,
		OverallDrift:   rep.Summary.FeaturesWithDrift > 0 || rep.Summary.CriticalAlerts > 0,
		CriticalAlerts: rep.Summary.CriticalAlerts,
		Alerts:         rep.Alerts,
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(w.url)
	if err != nil {
		log.Warn().Err(err).Str("url", w.url).Msg("webhook delivery failed")
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		log.Warn().Int("status", resp.StatusCode()).Str("url", w.url).Msg("webhook rejected alert batch")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	log.Info().Int("alerts", len(rep.Alerts)).Str("url", w.url).Msg("drift alerts delivered")
	return nil
}
