// Package notify posts a webhook when a probe run completes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazz-dev/sitecheck/internal/result"
)

// Notifier sends run-completed webhook notifications.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// New creates a new Notifier. Pass nil logger to use the default logger.
func New(webhookURL string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Run describes a completed run.
type Run struct {
	ID         string
	Input      string
	Table      *result.Table
	FinishedAt time.Time
}

type webhookPayload struct {
	RunID      string         `json:"run_id"`
	Input      string         `json:"input"`
	Total      int            `json:"total"`
	Failures   int            `json:"failures"`
	Codes      map[string]int `json:"codes"`
	FinishedAt string         `json:"finished_at"`
	Source     string         `json:"source"`
}

// RunCompleted posts the per-code counts of run to the webhook. Failures are
// logged and returned; they never affect the run itself.
func (n *Notifier) RunCompleted(ctx context.Context, run Run) error {
	counts := result.Group(run.Table).Counts()
	payload := webhookPayload{
		RunID:      run.ID,
		Input:      run.Input,
		Total:      run.Table.Len(),
		Failures:   counts[result.FailureMarker],
		Codes:      counts,
		FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339),
		Source:     "sitecheck",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("marshaling webhook payload", "run_id", run.ID, "error", err)
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("building webhook request", "url", n.webhookURL, "error", err)
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("sending webhook", "run_id", run.ID, "url", n.webhookURL, "error", err)
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook returned non-2xx status",
			"run_id", run.ID,
			"status", resp.StatusCode,
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	n.logger.Debug("webhook sent", "run_id", run.ID)
	return nil
}
