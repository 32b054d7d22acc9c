package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paper-trading-go/internal/config"
	"paper-trading-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const statusSuccess = "success"

// Command names accepted by the backend.
const (
	CommandStart        = "start"
	CommandStop         = "stop"
	CommandReset        = "reset"
	CommandSwitch       = "switch"
	CommandAPI          = "api"
	CommandAutoExecute  = "auto-execute"
	CommandExecuteTrade = "execute-trade"
	CommandExport       = "export"
)

// ClientInterface defines the interface for the paper-trading backend client.
type ClientInterface interface {
	FetchStatus(ctx context.Context) (*models.PaperTradingStatus, error)
	SendCommand(ctx context.Context, command string, params map[string]any) error
}

// Client talks to the paper-trading backend endpoint: GET for the current
// snapshot, POST for commands. It never mutates shared state itself; the
// snapshot is handed to the reconciliation layer.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// statusEnvelope is the backend's read response.
type statusEnvelope struct {
	Status  string                     `json:"status"`
	Data    *models.PaperTradingStatus `json:"data"`
	Message string                     `json:"message,omitempty"`
}

// commandEnvelope is the backend's write response.
type commandEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewClient creates a new backend API client.
func NewClient(cfg *config.Backend, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// doRequest executes the request with rate limiting and retry logic.
// Transport failures and retryable statuses (429, 5xx) are retried with
// backoff; any other response is returned to the caller so the error
// message can be extracted from the body.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			// Non-retryable HTTP error: hand the response back so the
			// caller can surface the server's message.
			return resp, nil
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
	}
	return resp, nil
}

// FetchStatus retrieves the current paper-trading snapshot.
func (c *Client) FetchStatus(ctx context.Context) (*models.PaperTradingStatus, error) {
	var envelope statusEnvelope
	req := c.client.R().
		SetContext(ctx).
		SetResult(&envelope).
		SetHeader("Accept", "application/json")

	resp, err := c.doRequest(ctx, http.MethodGet, "", req)
	if err != nil {
		c.logger.Error("Failed to fetch status", zap.Error(err))
		return nil, &StatusFetchError{Message: err.Error()}
	}

	if resp.IsError() {
		return nil, &StatusFetchError{
			Code:    resp.StatusCode(),
			Message: extractMessage(resp.Body(), resp.Status()),
		}
	}

	if envelope.Status != statusSuccess {
		msg := envelope.Message
		if msg == "" {
			msg = "backend reported failure"
		}
		return nil, &StatusFetchError{Message: msg}
	}
	if envelope.Data == nil {
		return nil, &StatusFetchError{Message: "backend returned no data"}
	}

	return envelope.Data, nil
}

// SendCommand posts a command with its parameters. Every parameter value is
// normalized to its string representation before transmission; the backend
// only accepts string-typed fields.
func (c *Client) SendCommand(ctx context.Context, command string, params map[string]any) error {
	payload := make(map[string]string, len(params)+1)
	payload["command"] = command
	for k, v := range params {
		payload[k] = stringify(v)
	}

	var envelope commandEnvelope
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&envelope)

	resp, err := c.doRequest(ctx, http.MethodPost, "", req)
	if err != nil {
		c.logger.Error("Failed to send command", zap.String("command", command), zap.Error(err))
		return &CommandError{Command: command, Message: err.Error()}
	}

	if resp.IsError() {
		return &CommandError{
			Command: command,
			Code:    resp.StatusCode(),
			Message: extractMessage(resp.Body(), resp.Status()),
		}
	}

	if envelope.Status != statusSuccess {
		msg := envelope.Message
		if msg == "" {
			msg = "command rejected by backend"
		}
		return &CommandError{Command: command, Message: msg}
	}

	c.logger.Info("Command accepted", zap.String("command", command))
	return nil
}

// Start begins the trading loop on the backend.
func (c *Client) Start(ctx context.Context) error {
	return c.SendCommand(ctx, CommandStart, nil)
}

// Stop halts the trading loop on the backend.
func (c *Client) Stop(ctx context.Context) error {
	return c.SendCommand(ctx, CommandStop, nil)
}

// Reset restores the paper account to its initial state.
func (c *Client) Reset(ctx context.Context) error {
	return c.SendCommand(ctx, CommandReset, nil)
}

// SwitchMode switches between paper and live trading.
func (c *Client) SwitchMode(ctx context.Context, mode string) error {
	return c.SendCommand(ctx, CommandSwitch, map[string]any{"mode": mode})
}

// SetAPIKeys stores exchange API credentials on the backend.
func (c *Client) SetAPIKeys(ctx context.Context, key, secret string) error {
	return c.SendCommand(ctx, CommandAPI, map[string]any{"key": key, "secret": secret})
}

// ConfigureAutoExecute enables or disables auto-execution of suggested
// trades with the given confidence threshold and refresh interval.
func (c *Client) ConfigureAutoExecute(ctx context.Context, enabled bool, confidence float64, interval int) error {
	return c.SendCommand(ctx, CommandAutoExecute, map[string]any{
		"enabled":    enabled,
		"confidence": confidence,
		"interval":   interval,
	})
}

// ExecuteTrade asks the backend to execute a single trade.
func (c *Client) ExecuteTrade(ctx context.Context, symbol, side string, price, quantity, confidence float64) error {
	return c.SendCommand(ctx, CommandExecuteTrade, map[string]any{
		"symbol":     symbol,
		"side":       side,
		"price":      price,
		"quantity":   quantity,
		"confidence": confidence,
	})
}

// stringify normalizes a command parameter to its wire form.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// extractMessage pulls a JSON-embedded message field out of an error body,
// falling back to the raw body appended to the status line.
func extractMessage(body []byte, statusLine string) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return statusLine
	}
	return statusLine + ": " + text
}
