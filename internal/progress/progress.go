// Package progress notifies the XP/progress collaborator that an interview
// finished. The notification is fire-and-forget: failures are logged at
// debug level and never surface to the user.
package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	actionInterviewComplete = "interview_complete"

	defaultTimeout = 5 * time.Second
)

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	URL        string
}

func New(url string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		URL: strings.TrimSpace(url),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// InterviewComplete reports the finished session. It is issued exactly once
// per session, after feedback is finalized, regardless of whether the
// feedback came from the remote service or the fallback path.
func (c *Client) InterviewComplete(ctx context.Context, sessionID string) {
	if c == nil || c.URL == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"action":    actionInterviewComplete,
		"sessionId": sessionID,
	})
	if err != nil {
		c.logger.Debug("marshal progress payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		c.logger.Debug("build progress request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Debug("progress notification failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Debug("progress notification rejected", zap.String("status", resp.Status))
	}
}
