package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	contentType = "application/json"
	userAgent   = "prepwise/intervu"

	generatePath = "/api/ai/generate"
	feedbackPath = "/api/ai/interview-feedback"

	defaultTimeout = 30 * time.Second
)

// HTTPService talks to the remote completion API.
type HTTPService struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	SessionID  string
}

// apiResponse is the wire contract shared by the generate and feedback endpoints.
type apiResponse struct {
	Success bool   `mapstructure:"success"`
	Message string `mapstructure:"message"`
}

// NewHTTPService creates a client for the remote completion API.
// An empty timeout falls back to the built-in default.
func NewHTTPService(apiURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPService{
		token:  token,
		APIURL: strings.TrimRight(strings.TrimSpace(apiURL), "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

func (s *HTTPService) Complete(ctx context.Context, prompt string, history []Message) (string, error) {
	payload := map[string]any{
		"message": prompt,
		"history": history,
	}

	return s.post(ctx, generatePath, payload)
}

func (s *HTTPService) Feedback(ctx context.Context, summary, mode string) (string, error) {
	payload := map[string]any{
		"interviewSummary": summary,
		"mode":             mode,
	}

	return s.post(ctx, feedbackPath, payload)
}

func (s *HTTPService) post(ctx context.Context, path string, payload map[string]any) (string, error) {
	if s.SessionID != "" {
		payload["sessionId"] = s.SessionID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req = s.setHeaders(req)

	s.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// The API answers with a loose JSON object; decode the fields we rely
	// on into the typed response.
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var parsed apiResponse
	if err := mapstructure.Decode(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response fields: %w", err)
	}

	if !parsed.Success {
		return "", fmt.Errorf("completion service reported failure")
	}

	message := strings.TrimSpace(parsed.Message)
	if message == "" {
		return "", ErrEmptyResponse
	}

	return message, nil
}

func (s *HTTPService) setHeaders(req *http.Request) *http.Request {
	if s.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.token))
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Content-Type", contentType)

	return req
}
