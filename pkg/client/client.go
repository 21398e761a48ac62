package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL matches a control surface listening on 127.0.0.1:3900.
const DefaultBaseURL = "http://127.0.0.1:3900"

// Client talks to a running launcher's control surface.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 5 * time.Second,
	}
}

func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the launcher is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Status(ctx)
	if err != nil {
		c.logger.Debug("Launcher unreachable", "error", err)
		return false
	}
	return true
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, "/status", &st)
	return st, err
}

// Show asks the launcher to show and focus its window.
func (c *Client) Show(ctx context.Context) (Ack, error) {
	var a Ack
	err := c.do(ctx, http.MethodPost, "/show", &a)
	return a, err
}

// Hide asks the launcher to hide its window to the tray.
func (c *Client) Hide(ctx context.Context) (Ack, error) {
	var a Ack
	err := c.do(ctx, http.MethodPost, "/hide", &a)
	return a, err
}

// Quit asks the launcher to stop the server and exit.
func (c *Client) Quit(ctx context.Context) (Ack, error) {
	var a Ack
	err := c.do(ctx, http.MethodPost, "/quit", &a)
	return a, err
}

// do performs HTTP request with common error handling
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse turns a non-2xx reply into an error
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResp
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		return fmt.Errorf("launcher returned %d: %s", resp.StatusCode, er.Error)
	}
	return fmt.Errorf("launcher returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
