package papertrading

import (
	"testing"
	"time"

	"paper-trading-go/internal/config"
	"paper-trading-go/internal/models"
	"paper-trading-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPrices struct {
	prices map[string]float64
	err    error
}

func (s stubPrices) Prices(symbols []string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if p, ok := s.prices[symbol]; ok {
			out[symbol] = p
		}
	}
	return out, nil
}

type stubSignals struct {
	signals []Signal
	err     error
}

func (s stubSignals) Fetch() ([]Signal, error) {
	return s.signals, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Trading: config.Trading{
			Symbols:        []string{"BTCUSDT", "ETHUSDT"},
			BaseCurrency:   "USDT",
			InitialBalance: 10000,
			RiskPercentage: 2,
			TickInterval:   300,
		},
	}
}

func newTestEngine(t *testing.T, st *store.Store, prices PriceSource, signals SignalSource) *Engine {
	t.Helper()
	e, err := NewEngine(zap.NewNop(), testConfig(), st, prices, signals)
	require.NoError(t, err)
	return e
}

func TestExecuteTradeBuyThenSell(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)

	buy, err := e.ExecuteTrade("BTCUSDT", "BUY", 50000, 0.1, 0)
	require.NoError(t, err)
	assert.Equal(t, models.SideBuy, buy.Side)
	assert.Equal(t, 5000.0, buy.Value)
	assert.Equal(t, 5000.0, buy.BalanceAfter)

	status := e.Status()
	assert.Equal(t, 5000.0, status.Balance)
	assert.Equal(t, 0.1, status.Holdings["BTCUSDT"])
	assert.Equal(t, models.ModePaper, status.Mode)

	sell, err := e.ExecuteTrade("BTCUSDT", "SELL", 60000, 0.1, 0)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, sell.Value)
	assert.Equal(t, 11000.0, sell.BalanceAfter)

	status = e.Status()
	assert.Equal(t, 0.0, status.Holdings["BTCUSDT"])
	assert.Len(t, status.TradeHistory, 2)
	assert.Equal(t, 2, status.Performance.TotalTrades)
}

func TestBuyRejectedWhenCostExceedsBalance(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)

	_, err := e.ExecuteTrade("BTCUSDT", "BUY", 50000, 1, 0)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	status := e.Status()
	assert.Equal(t, 10000.0, status.Balance)
	assert.Empty(t, status.TradeHistory)
}

func TestSellRejectedWhenQuantityExceedsHoldings(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)

	_, err := e.ExecuteTrade("BTCUSDT", "SELL", 50000, 0.5, 0)
	require.ErrorIs(t, err, ErrInsufficientHoldings)

	_, err = e.ExecuteTrade("BTCUSDT", "BUY", 50000, 0.1, 0)
	require.NoError(t, err)
	_, err = e.ExecuteTrade("BTCUSDT", "SELL", 50000, 0.2, 0)
	require.ErrorIs(t, err, ErrInsufficientHoldings)
}

func TestDefaultTradeSizing(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)

	// A buy without a quantity uses 5% of the balance.
	buy, err := e.ExecuteTrade("BTCUSDT", "BUY", 50000, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, buy.Value, 1e-9)
	assert.InDelta(t, 0.01, buy.Quantity, 1e-9)

	// A sell without a quantity disposes of half the holdings.
	sell, err := e.ExecuteTrade("BTCUSDT", "SELL", 50000, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, sell.Quantity, 1e-9)
}

func TestExecuteTradeFallsBackToKnownPrice(t *testing.T) {
	e := newTestEngine(t, nil, stubPrices{prices: map[string]float64{"BTCUSDT": 40000}}, nil)

	// No explicit price and nothing cached: the feed supplies one.
	buy, err := e.ExecuteTrade("BTCUSDT", "BUY", 0, 0.01, 0)
	require.NoError(t, err)
	assert.Equal(t, 40000.0, buy.Price)

	// The price is now cached for the next trade.
	sell, err := e.ExecuteTrade("BTCUSDT", "SELL", 0, 0.01, 0)
	require.NoError(t, err)
	assert.Equal(t, 40000.0, sell.Price)
}

func TestSwitchModeRequiresAPIKeys(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)

	err := e.SwitchMode(models.ModeLive)
	require.ErrorIs(t, err, ErrAPIKeysRequired)
	assert.Equal(t, models.ModePaper, e.Status().Mode)

	require.NoError(t, e.SetAPIKeys("key", "secret"))
	require.NoError(t, e.SwitchMode(models.ModeLive))
	assert.Equal(t, models.ModeLive, e.Status().Mode)

	require.Error(t, e.SwitchMode("margin"))
}

func TestResetRestoresInitialState(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)

	_, err := e.ExecuteTrade("BTCUSDT", "BUY", 50000, 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, e.Reset())

	status := e.Status()
	assert.Equal(t, 10000.0, status.Balance)
	assert.Equal(t, 0.0, status.Holdings["BTCUSDT"])
	assert.Empty(t, status.TradeHistory)
	assert.Len(t, status.EquityHistory, 1)
}

func TestAutoExecuteRespectsConfidenceThreshold(t *testing.T) {
	signals := stubSignals{signals: []Signal{
		{Symbol: "BTCUSDT", Signal: "BUY", Confidence: 0.9, CurrentPrice: 50000},
		{Symbol: "ETHUSDT", Signal: "BUY", Confidence: 0.5, CurrentPrice: 3000},
	}}
	e := newTestEngine(t, nil, stubPrices{prices: map[string]float64{
		"BTCUSDT": 50000,
		"ETHUSDT": 3000,
	}}, signals)

	require.NoError(t, e.ConfigureAutoExecute(true, 0.75, 60))
	e.tick()

	status := e.Status()
	require.Len(t, status.TradeHistory, 1)
	assert.Equal(t, "BTCUSDT", status.TradeHistory[0].Symbol)
	assert.Equal(t, 0.9, status.TradeHistory[0].Confidence)
}

func TestAutoExecuteDisabledExecutesNothing(t *testing.T) {
	signals := stubSignals{signals: []Signal{
		{Symbol: "BTCUSDT", Signal: "BUY", Confidence: 0.99, CurrentPrice: 50000},
	}}
	e := newTestEngine(t, nil, nil, signals)

	e.tick()
	assert.Empty(t, e.Status().TradeHistory)
}

func TestTickRecordsEquityAndCapsHistory(t *testing.T) {
	e := newTestEngine(t, nil, stubPrices{prices: map[string]float64{"BTCUSDT": 50000}}, nil)

	_, err := e.ExecuteTrade("BTCUSDT", "BUY", 50000, 0.1, 0)
	require.NoError(t, err)

	before := len(e.Status().EquityHistory)
	e.tick()
	status := e.Status()
	require.Len(t, status.EquityHistory, before+1)
	// Holdings are valued at the last price, so equity stays level.
	assert.InDelta(t, 10000.0, status.EquityHistory[len(status.EquityHistory)-1].Equity, 1e-6)

	e.mu.Lock()
	e.equity = make([]models.EquityPoint, maxEquityPoints)
	e.mu.Unlock()
	e.tick()
	assert.Len(t, e.Status().EquityHistory, maxEquityPoints)
}

func TestStartAndStopLoop(t *testing.T) {
	e := newTestEngine(t, nil, stubPrices{prices: map[string]float64{"BTCUSDT": 50000}}, nil)

	require.NoError(t, e.Start(10*time.Millisecond))
	assert.True(t, e.Status().IsRunning)
	require.NoError(t, e.Start(10*time.Millisecond)) // idempotent

	assert.Eventually(t, func() bool {
		return len(e.Status().EquityHistory) >= 3
	}, time.Second, 5*time.Millisecond)

	e.Stop()
	assert.False(t, e.Status().IsRunning)
	e.Stop() // idempotent
}

func TestStateSurvivesRestart(t *testing.T) {
	st, err := store.NewStore("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)

	e := newTestEngine(t, st, nil, nil)
	_, err = e.ExecuteTrade("BTCUSDT", "BUY", 50000, 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, e.ConfigureAutoExecute(true, 0.8, 120))

	restored := newTestEngine(t, st, nil, nil)
	status := restored.Status()
	assert.Equal(t, 5000.0, status.Balance)
	assert.Equal(t, 0.1, status.Holdings["BTCUSDT"])
	require.Len(t, status.TradeHistory, 1)
	assert.Equal(t, "BTCUSDT", status.TradeHistory[0].Symbol)

	restored.mu.Lock()
	assert.True(t, restored.autoExecute)
	assert.Equal(t, 0.8, restored.minConfidence)
	assert.Equal(t, 120, restored.autoInterval)
	restored.mu.Unlock()
}

func TestExportWritesResults(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)
	_, err := e.ExecuteTrade("BTCUSDT", "BUY", 50000, 0.1, 0)
	require.NoError(t, err)

	path := t.TempDir() + "/results.json"
	written, err := e.Export(path)
	require.NoError(t, err)
	assert.Equal(t, path, written)
	assert.FileExists(t, path)
}
