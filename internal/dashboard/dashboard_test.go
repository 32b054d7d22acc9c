package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"paper-trading-go/internal/backend"
	"paper-trading-go/internal/models"
	"paper-trading-go/internal/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClient is an in-memory backend for dashboard tests.
type fakeClient struct {
	mu         sync.Mutex
	status     *models.PaperTradingStatus
	fetchErr   error
	commandErr error
	fetches    int
	commands   []string
}

func (f *fakeClient) FetchStatus(_ context.Context) (*models.PaperTradingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.status.Clone(), nil
}

func (f *fakeClient) SendCommand(_ context.Context, command string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	return f.commandErr
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func baseStatus(balance float64) *models.PaperTradingStatus {
	return &models.PaperTradingStatus{
		IsRunning:    true,
		Mode:         models.ModePaper,
		Balance:      balance,
		BaseCurrency: "USDT",
		TradeHistory: []models.TradeHistoryItem{
			{Timestamp: "2025-06-01T10:00:00Z", Symbol: "BTCUSDT", Side: models.SideBuy, Quantity: 0.1, Price: 50000, Value: 5000, BalanceAfter: balance},
		},
	}
}

func newTestDashboard(client backend.ClientInterface) *Dashboard {
	reconciler := reconcile.NewReconciler(zap.NewNop(), nil, reconcile.NewSeededSynthesizer(1, time.Now), 0)
	return New(zap.NewNop(), client, reconciler, time.Hour)
}

func TestRefreshOncePipeline(t *testing.T) {
	client := &fakeClient{status: baseStatus(9500)}
	d := newTestDashboard(client)

	d.refreshOnce(context.Background())

	status, errMsg := d.Status()
	require.NotNil(t, status)
	assert.Empty(t, errMsg)
	assert.InDelta(t, 9500, status.Balance, 1e-9)
	// The deriver ran: total trades matches history length.
	require.NotNil(t, status.Performance)
	assert.Equal(t, 1, status.Performance.TotalTrades)
}

func TestFetchErrorKeepsPriorDisplay(t *testing.T) {
	client := &fakeClient{status: baseStatus(9500)}
	d := newTestDashboard(client)
	d.refreshOnce(context.Background())

	client.mu.Lock()
	client.fetchErr = &backend.StatusFetchError{Code: 500, Message: "boom"}
	client.mu.Unlock()
	d.refreshOnce(context.Background())

	status, errMsg := d.Status()
	require.NotNil(t, status)
	assert.InDelta(t, 9500, status.Balance, 1e-9)
	assert.Contains(t, errMsg, "boom")
}

func TestErrorMessageAutoClears(t *testing.T) {
	client := &fakeClient{fetchErr: errors.New("down")}
	d := newTestDashboard(client)
	d.errorTTL = 20 * time.Millisecond

	d.refreshOnce(context.Background())
	_, errMsg := d.Status()
	assert.NotEmpty(t, errMsg)

	assert.Eventually(t, func() bool {
		_, msg := d.Status()
		return msg == ""
	}, time.Second, 5*time.Millisecond)
}

func TestStaleCommitIsDropped(t *testing.T) {
	client := &fakeClient{status: baseStatus(100)}
	d := newTestDashboard(client)

	older := d.takeSeq()
	newer := d.takeSeq()

	require.True(t, d.commit(newer, baseStatus(2000)))
	// A slower in-flight fetch that started earlier must not overwrite
	// the fresher committed state.
	assert.False(t, d.commit(older, baseStatus(1000)))

	status, _ := d.Status()
	assert.InDelta(t, 2000, status.Balance, 1e-9)
}

func TestDispatchRefetchesAfterCommand(t *testing.T) {
	client := &fakeClient{status: baseStatus(9500)}
	d := newTestDashboard(client)

	err := d.Dispatch(context.Background(), backend.CommandStart, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{backend.CommandStart}, client.commands)
	assert.Equal(t, 1, client.fetchCount())
}

func TestDispatchErrorSurfacedNoRefetch(t *testing.T) {
	client := &fakeClient{
		status:     baseStatus(9500),
		commandErr: &backend.CommandError{Command: "switch", Message: "API keys not configured"},
	}
	d := newTestDashboard(client)

	err := d.Dispatch(context.Background(), backend.CommandSwitch, map[string]any{"mode": "live"})

	require.Error(t, err)
	assert.Equal(t, 0, client.fetchCount())
	_, errMsg := d.Status()
	assert.Contains(t, errMsg, "API keys not configured")
}

func TestRunRespondsToRefreshSignal(t *testing.T) {
	client := &fakeClient{status: baseStatus(9500)}
	d := newTestDashboard(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// The loop primes the display with an initial fetch.
	assert.Eventually(t, func() bool { return client.fetchCount() >= 1 }, time.Second, 5*time.Millisecond)

	d.Refresh()
	assert.Eventually(t, func() bool { return client.fetchCount() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
