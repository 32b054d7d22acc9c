// Package papertrading simulates an exchange account with virtual funds.
// The engine executes trades against real or simulated prices, tracks
// balance, holdings and equity, and persists every mutation so the
// account survives restarts.
package papertrading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"paper-trading-go/internal/config"
	"paper-trading-go/internal/metrics"
	"paper-trading-go/internal/models"
	"paper-trading-go/internal/store"

	"go.uber.org/zap"
)

const (
	// maxEquityPoints bounds the equity history kept in the account state.
	maxEquityPoints = 10000

	// Default sizing for trades without an explicit quantity.
	buyBalanceFraction   = 0.05
	sellHoldingsFraction = 0.5

	defaultMinConfidence = 0.75
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrAPIKeysRequired      = errors.New("API keys not configured")
)

// Engine is the paper-trading account simulator.
type Engine struct {
	logger  *zap.Logger
	cfg     *config.Config
	store   *store.Store
	prices  PriceSource
	signals SignalSource
	now     func() time.Time

	mu         sync.Mutex
	state      *models.AccountState
	mode       string
	running    bool
	balance    float64
	holdings   map[string]float64
	lastPrices map[string]float64
	equity     []models.EquityPoint
	history    []models.TradeHistoryItem

	apiKey    string
	apiSecret string

	autoExecute     bool
	minConfidence   float64
	autoInterval    int
	lastSignalCheck time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine restores the account from the store, or starts a fresh one
// with the configured initial balance when nothing has been saved yet.
func NewEngine(logger *zap.Logger, cfg *config.Config, st *store.Store, prices PriceSource, signals SignalSource) (*Engine, error) {
	e := &Engine{
		logger:        logger,
		cfg:           cfg,
		store:         st,
		prices:        prices,
		signals:       signals,
		now:           time.Now,
		mode:          models.ModePaper,
		minConfidence: defaultMinConfidence,
		autoInterval:  cfg.Trading.TickInterval,
		holdings:      zeroHoldings(cfg.Trading.Symbols),
		lastPrices:    make(map[string]float64),
	}

	if err := e.restore(); err != nil {
		return nil, err
	}

	logger.Info("Paper trading engine initialized",
		zap.String("mode", e.mode),
		zap.Float64("balance", e.balance),
		zap.String("base_currency", cfg.Trading.BaseCurrency))
	return e, nil
}

func (e *Engine) restore() error {
	if e.store == nil {
		e.resetLocked()
		return nil
	}

	state, err := e.store.LoadState()
	if err != nil {
		return err
	}
	if state == nil {
		e.logger.Info("No saved account state found, starting fresh")
		e.resetLocked()
		return e.persistLocked()
	}

	e.state = state
	e.balance = state.Balance
	if state.Mode != "" {
		e.mode = state.Mode
	}
	for symbol, qty := range state.Holdings() {
		e.holdings[symbol] = qty
	}
	e.lastPrices = state.LastPrices()
	if e.lastPrices == nil {
		e.lastPrices = make(map[string]float64)
	}
	e.equity = state.EquityHistory()
	e.apiKey = state.APIKey
	e.apiSecret = state.APISecret
	e.autoExecute = state.AutoExecute
	if state.MinConfidence > 0 {
		e.minConfidence = state.MinConfidence
	}
	if state.AutoInterval > 0 {
		e.autoInterval = state.AutoInterval
	}

	history, err := e.store.ListTrades()
	if err != nil {
		return err
	}
	e.history = history

	e.logger.Info("Restored account state",
		zap.Float64("balance", e.balance),
		zap.Int("trades", len(e.history)))
	return nil
}

// Start launches the trading loop. Starting an already running engine is
// a no-op.
func (e *Engine) Start(interval time.Duration) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Warn("Trading already running")
		return nil
	}
	if interval <= 0 {
		interval = time.Duration(e.cfg.Trading.TickInterval) * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	mode := e.mode
	if err := e.persistLocked(); err != nil {
		e.logger.Error("Failed to persist state", zap.Error(err))
	}
	e.mu.Unlock()

	e.logger.Info("Starting trading loop",
		zap.String("mode", mode),
		zap.Duration("interval", interval),
		zap.Strings("symbols", e.cfg.Trading.Symbols))
	go e.run(ctx, interval)
	return nil
}

func (e *Engine) run(ctx context.Context, interval time.Duration) {
	defer close(e.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// Stop halts the trading loop and saves the final state. Stopping an
// already stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		e.logger.Warn("Trading already stopped")
		return
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	e.running = false
	if err := e.persistLocked(); err != nil {
		e.logger.Error("Failed to persist state", zap.Error(err))
	}
	e.mu.Unlock()
	e.logger.Info("Trading stopped")
}

// Reset returns the account to its initial state and clears the trade
// history.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	if e.store != nil {
		if err := e.store.ClearTrades(); err != nil {
			return err
		}
	}
	e.logger.Info("Account reset", zap.Float64("balance", e.balance))
	return e.persistLocked()
}

func (e *Engine) resetLocked() {
	e.balance = e.cfg.Trading.InitialBalance
	e.holdings = zeroHoldings(e.cfg.Trading.Symbols)
	e.lastPrices = make(map[string]float64)
	e.history = nil
	e.equity = []models.EquityPoint{{
		Timestamp: e.now().UTC().Format(time.RFC3339),
		Equity:    e.balance,
	}}
}

// SwitchMode changes between paper and live trading. Switching to live
// requires API keys; the loop is restarted if it was running.
func (e *Engine) SwitchMode(mode string) error {
	if mode != models.ModePaper && mode != models.ModeLive {
		return fmt.Errorf("invalid mode: %s", mode)
	}

	e.mu.Lock()
	if mode == models.ModeLive && (e.apiKey == "" || e.apiSecret == "") {
		e.mu.Unlock()
		return fmt.Errorf("cannot switch to live mode: %w", ErrAPIKeysRequired)
	}
	wasRunning := e.running
	e.mu.Unlock()

	if wasRunning {
		e.Stop()
	}

	e.mu.Lock()
	e.mode = mode
	err := e.persistLocked()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.logger.Info("Switched trading mode", zap.String("mode", mode))

	if wasRunning {
		return e.Start(0)
	}
	return nil
}

// SetAPIKeys stores exchange credentials for live trading.
func (e *Engine) SetAPIKeys(key, secret string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.apiKey = key
	e.apiSecret = secret
	e.logger.Info("API keys updated")
	return e.persistLocked()
}

// ConfigureAutoExecute controls auto-execution of suggested trades.
func (e *Engine) ConfigureAutoExecute(enabled bool, minConfidence float64, intervalSeconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoExecute = enabled
	if minConfidence > 0 {
		e.minConfidence = minConfidence
	}
	if intervalSeconds > 0 {
		e.autoInterval = intervalSeconds
	}
	if enabled {
		e.logger.Info("Auto-execution of suggested trades enabled",
			zap.Float64("min_confidence", e.minConfidence),
			zap.Int("interval_seconds", e.autoInterval))
	} else {
		e.logger.Info("Auto-execution of suggested trades disabled")
	}
	return e.persistLocked()
}

// ExecuteTrade runs one trade against the simulated account. A zero
// price falls back to the last known market price; a zero quantity is
// sized from the account (5% of balance for buys, half the held
// quantity for sells).
func (e *Engine) ExecuteTrade(symbol, side string, price, quantity, confidence float64) (models.TradeHistoryItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executeLocked(symbol, side, price, quantity, confidence)
}

func (e *Engine) executeLocked(symbol, side string, price, quantity, confidence float64) (models.TradeHistoryItem, error) {
	side = strings.ToUpper(side)
	if side != models.SideBuy && side != models.SideSell {
		return models.TradeHistoryItem{}, fmt.Errorf("invalid side: %s", side)
	}

	if price <= 0 {
		price = e.lastPrices[symbol]
	}
	if price <= 0 && e.prices != nil {
		fetched, err := e.prices.Prices([]string{symbol})
		if err == nil {
			price = fetched[symbol]
			e.lastPrices[symbol] = price
		}
	}
	if price <= 0 {
		return models.TradeHistoryItem{}, fmt.Errorf("no price available for %s", symbol)
	}

	if quantity <= 0 {
		if side == models.SideBuy {
			quantity = e.balance * buyBalanceFraction / price
		} else {
			quantity = e.holdings[symbol] * sellHoldingsFraction
		}
	}
	if quantity <= 0 {
		return models.TradeHistoryItem{}, fmt.Errorf("nothing to %s for %s", strings.ToLower(side), symbol)
	}

	value := quantity * price
	switch side {
	case models.SideBuy:
		if value > e.balance {
			return models.TradeHistoryItem{}, fmt.Errorf("%w: need %.2f %s, have %.2f",
				ErrInsufficientBalance, value, e.cfg.Trading.BaseCurrency, e.balance)
		}
		e.balance -= value
		e.holdings[symbol] += quantity
	case models.SideSell:
		held := e.holdings[symbol]
		if quantity > held+1e-9 {
			return models.TradeHistoryItem{}, fmt.Errorf("%w: selling %.8f %s, holding %.8f",
				ErrInsufficientHoldings, quantity, symbol, held)
		}
		e.balance += value
		remaining := held - quantity
		if remaining < 1e-12 {
			remaining = 0
		}
		e.holdings[symbol] = remaining
	}
	e.lastPrices[symbol] = price

	trade := models.TradeHistoryItem{
		Timestamp:    e.now().UTC().Format(time.RFC3339),
		Symbol:       symbol,
		Side:         side,
		Quantity:     quantity,
		Price:        price,
		Value:        value,
		BalanceAfter: e.balance,
		Type:         e.mode,
		Confidence:   confidence,
	}
	e.history = append(e.history, trade)

	if e.store != nil {
		if err := e.store.AppendTrade(trade); err != nil {
			e.logger.Error("Failed to save trade record", zap.Error(err))
		}
	}
	if err := e.persistLocked(); err != nil {
		e.logger.Error("Failed to persist state", zap.Error(err))
	}

	e.logger.Info("Trade executed",
		zap.String("side", side),
		zap.String("symbol", symbol),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.Float64("balance_after", e.balance))
	return trade, nil
}

// Status reports the current account snapshot with derived performance
// metrics.
func (e *Engine) Status() *models.PaperTradingStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf := metrics.Compute(e.history, e.equity)
	status := &models.PaperTradingStatus{
		IsRunning:      e.running,
		Mode:           e.mode,
		Balance:        e.balance,
		Holdings:       copyFloatMap(e.holdings),
		BaseCurrency:   e.cfg.Trading.BaseCurrency,
		PortfolioValue: e.portfolioValueLocked(),
		Performance:    &perf,
		TradeHistory:   append([]models.TradeHistoryItem(nil), e.history...),
		LastPrices:     copyFloatMap(e.lastPrices),
		EquityHistory:  append([]models.EquityPoint(nil), e.equity...),
		LastUpdated:    e.now().UTC().Format(time.RFC3339),
	}
	return status
}

// Export writes the account results to a JSON file. An empty path picks
// a timestamped filename in the working directory.
func (e *Engine) Export(path string) (string, error) {
	e.mu.Lock()
	perf := metrics.Compute(e.history, e.equity)
	doc := struct {
		Performance   models.PerformanceMetrics `json:"performance"`
		EquityHistory []models.EquityPoint      `json:"equity_history"`
		TradeHistory  []models.TradeHistoryItem `json:"trade_history"`
		FinalBalance  float64                   `json:"final_balance"`
		FinalHoldings map[string]float64        `json:"final_holdings"`
		ExportedAt    string                    `json:"exported_at"`
	}{
		Performance:   perf,
		EquityHistory: append([]models.EquityPoint(nil), e.equity...),
		TradeHistory:  append([]models.TradeHistoryItem(nil), e.history...),
		FinalBalance:  e.balance,
		FinalHoldings: copyFloatMap(e.holdings),
		ExportedAt:    e.now().UTC().Format(time.RFC3339),
	}
	e.mu.Unlock()

	if path == "" {
		path = fmt.Sprintf("trading_results_%s.json", e.now().UTC().Format("20060102_150405"))
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	e.logger.Info("Trading results exported", zap.String("path", path))
	return path, nil
}

// tick runs one trading cycle: refresh prices, record the portfolio
// value and execute pending suggested trades.
func (e *Engine) tick() {
	var prices map[string]float64
	if e.prices != nil {
		fetched, err := e.prices.Prices(e.cfg.Trading.Symbols)
		if err != nil {
			e.logger.Error("Failed to refresh prices", zap.Error(err))
		} else {
			prices = fetched
		}
	}

	e.mu.Lock()
	for symbol, price := range prices {
		e.lastPrices[symbol] = price
	}
	value := e.portfolioValueLocked()
	e.equity = append(e.equity, models.EquityPoint{
		Timestamp: e.now().UTC().Format(time.RFC3339),
		Equity:    value,
	})
	if len(e.equity) > maxEquityPoints {
		e.equity = e.equity[len(e.equity)-maxEquityPoints:]
	}
	e.checkSignalsLocked()
	if err := e.persistLocked(); err != nil {
		e.logger.Error("Failed to persist state", zap.Error(err))
	}
	e.mu.Unlock()

	e.logger.Info("Portfolio value updated",
		zap.Float64("value", value),
		zap.String("base_currency", e.cfg.Trading.BaseCurrency))
}

func (e *Engine) checkSignalsLocked() {
	if !e.autoExecute || e.signals == nil {
		return
	}
	interval := time.Duration(e.autoInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	if e.now().Sub(e.lastSignalCheck) < interval {
		return
	}
	e.lastSignalCheck = e.now()

	signals, err := e.signals.Fetch()
	if err != nil {
		e.logger.Error("Failed to fetch suggested trades", zap.Error(err))
		return
	}
	for _, sig := range signals {
		if sig.Confidence < e.minConfidence {
			e.logger.Info("Skipping suggested trade below confidence threshold",
				zap.String("symbol", sig.Symbol),
				zap.String("signal", sig.Signal),
				zap.Float64("confidence", sig.Confidence),
				zap.Float64("threshold", e.minConfidence))
			continue
		}
		if _, err := e.executeLocked(sig.Symbol, sig.Signal, sig.CurrentPrice, 0, sig.Confidence); err != nil {
			e.logger.Warn("Suggested trade rejected",
				zap.String("symbol", sig.Symbol),
				zap.String("signal", sig.Signal),
				zap.Error(err))
		}
	}
}

func (e *Engine) portfolioValueLocked() float64 {
	total := e.balance
	for symbol, quantity := range e.holdings {
		if quantity <= 0 {
			continue
		}
		if price, ok := e.lastPrices[symbol]; ok {
			total += quantity * price
		}
	}
	return total
}

func (e *Engine) persistLocked() error {
	if e.store == nil {
		return nil
	}
	if e.state == nil {
		e.state = &models.AccountState{}
	}
	e.state.Balance = e.balance
	e.state.Mode = e.mode
	e.state.IsRunning = e.running
	e.state.BaseCurrency = e.cfg.Trading.BaseCurrency
	e.state.SetHoldings(e.holdings)
	e.state.SetLastPrices(e.lastPrices)
	e.state.SetEquityHistory(e.equity)
	e.state.APIKey = e.apiKey
	e.state.APISecret = e.apiSecret
	e.state.AutoExecute = e.autoExecute
	e.state.MinConfidence = e.minConfidence
	e.state.AutoInterval = e.autoInterval
	return e.store.SaveState(e.state)
}

func zeroHoldings(symbols []string) map[string]float64 {
	holdings := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		holdings[symbol] = 0
	}
	return holdings
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
