// Package bootstrap runs the backend checks that must pass before an
// interview can start: availability, then bot initialization.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "gyani-interview/client/pkg/errors"
)

const (
	stepHealth     = "health check"
	stepInitialize = "initialize"
)

// Health is the backend's /health payload
type Health struct {
	Status          string `json:"status"`
	InterviewActive bool   `json:"interview_active"`
	Message         string `json:"message"`
}

type initializeResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Error   *string `json:"error"`
}

// Client talks to the backend's HTTP endpoints
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a bootstrap client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "bootstrap")),
	}
}

// Health checks that the backend is reachable
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	status, err := c.do(ctx, http.MethodGet, "/health", &h)
	if err != nil {
		return nil, apperrors.NewBootstrapFailed(stepHealth, status, err)
	}
	if status != http.StatusOK {
		return nil, apperrors.NewBootstrapFailed(stepHealth, status, fmt.Errorf("backend not responding"))
	}
	c.logger.Info("Backend healthy", zap.String("status", h.Status), zap.Bool("interview_active", h.InterviewActive))
	return &h, nil
}

// Initialize asks the backend to prepare the interview bot
func (c *Client) Initialize(ctx context.Context) (string, error) {
	var resp initializeResponse
	status, err := c.do(ctx, http.MethodPost, "/api/initialize", &resp)
	if err != nil {
		return "", apperrors.NewBootstrapFailed(stepInitialize, status, err)
	}
	if status != http.StatusOK || !resp.Success {
		reason := resp.Message
		if resp.Error != nil && *resp.Error != "" {
			reason = *resp.Error
		}
		if reason == "" {
			reason = "failed to initialize bot"
		}
		return "", apperrors.NewBootstrapFailed(stepInitialize, status, fmt.Errorf("%s", reason))
	}
	c.logger.Info("Backend initialized", zap.String("message", resp.Message))
	return resp.Message, nil
}

// Run performs the health check followed by initialization
func (c *Client) Run(ctx context.Context) error {
	if _, err := c.Health(ctx); err != nil {
		return err
	}
	_, err := c.Initialize(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, apperrors.NewContextCancelled(method+" "+path, err)
		}
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if len(body) > 0 && out != nil {
		if err := json.Unmarshal(body, out); err != nil && resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("invalid response body: %w", err)
		}
	}
	return resp.StatusCode, nil
}
