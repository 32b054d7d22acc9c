package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	c := &Client{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return c, server
}

func TestFetchStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"status": "success",
				"data": {
					"is_running": true,
					"mode": "paper",
					"balance": 9500.5,
					"base_currency": "USDT",
					"trade_history": [
						{"timestamp": "2025-06-01T10:00:00Z", "symbol": "BTCUSDT", "side": "BUY", "quantity": 0.01, "price": 50000, "value": 500, "balance_after": 9500.5, "type": "market"}
					]
				}
			}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		status, err := c.FetchStatus(context.Background())

		require.NoError(t, err)
		assert.True(t, status.IsRunning)
		assert.Equal(t, "paper", status.Mode)
		assert.InDelta(t, 9500.5, status.Balance, 1e-9)
		assert.Len(t, status.TradeHistory, 1)
		assert.Equal(t, "BTCUSDT", status.TradeHistory[0].Symbol)
	})

	t.Run("HTTPError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "trading state not found"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		status, err := c.FetchStatus(context.Background())

		assert.Nil(t, status)
		var fetchErr *StatusFetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusNotFound, fetchErr.Code)
		assert.Equal(t, "trading state not found", fetchErr.Message)
	})

	t.Run("LogicalFailure", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status": "error", "message": "engine not initialized"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		status, err := c.FetchStatus(context.Background())

		assert.Nil(t, status)
		var fetchErr *StatusFetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "engine not initialized", fetchErr.Message)
	})
}

func TestSendCommand(t *testing.T) {
	t.Run("StringifiesParams", func(t *testing.T) {
		var received map[string]string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status": "success"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		err := c.ConfigureAutoExecute(context.Background(), true, 0.8, 300)

		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"command":    "auto-execute",
			"enabled":    "true",
			"confidence": "0.8",
			"interval":   "300",
		}, received)
	})

	t.Run("HTTPErrorWithJSONMessage", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message": "unknown command"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		err := c.SendCommand(context.Background(), "bogus", nil)

		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, http.StatusBadRequest, cmdErr.Code)
		assert.Equal(t, "unknown command", cmdErr.Message)
		assert.Equal(t, "bogus", cmdErr.Command)
	})

	t.Run("HTTPErrorWithUnparseableBody", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`upstream exploded`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		err := c.SendCommand(context.Background(), "start", nil)

		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, http.StatusBadGateway, cmdErr.Code)
		assert.Contains(t, cmdErr.Message, "upstream exploded")
	})

	t.Run("LogicalFailure", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status": "error", "message": "API keys not configured"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		err := c.SwitchMode(context.Background(), "live")

		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, "API keys not configured", cmdErr.Message)
	})

	t.Run("LogicalFailureGenericFallback", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status": "error"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		err := c.Start(context.Background())

		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, "command rejected by backend", cmdErr.Message)
	})
}

func TestStringify(t *testing.T) {
	testCases := []struct {
		name     string
		value    any
		expected string
	}{
		{"String", "paper", "paper"},
		{"BoolTrue", true, "true"},
		{"BoolFalse", false, "false"},
		{"Float", 0.8, "0.8"},
		{"FloatWhole", 300.0, "300"},
		{"Int", 300, "300"},
		{"Int64", int64(42), "42"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stringify(tc.value))
		})
	}
}
