package metrics

import (
	"math"

	"paper-trading-go/internal/models"
)

// Deriver produces performance metrics and per-entry profit/loss consistent
// with the trade history. It repairs inconsistent snapshots by overwrite,
// never by validation failure.
type Deriver struct{}

// NewDeriver creates a metrics deriver.
func NewDeriver() *Deriver {
	return &Deriver{}
}

// Derive mutates status so that Performance exists and its TotalTrades
// equals the trade-history length, the one invariant the display depends
// on. A missing or inconsistent Performance is recomputed wholesale from
// the trade and equity histories.
func (d *Deriver) Derive(status *models.PaperTradingStatus) {
	n := len(status.TradeHistory)

	if status.Performance == nil || status.Performance.TotalTrades != n {
		perf := Compute(status.TradeHistory, status.EquityHistory)
		status.Performance = &perf
	}
	status.Performance.TotalTrades = n
}

// Compute builds performance metrics from raw histories. Equity-based
// figures (P/L, return, drawdown, sharpe) need at least two equity points;
// with fewer they stay zero.
func Compute(history []models.TradeHistoryItem, equity []models.EquityPoint) models.PerformanceMetrics {
	perf := models.PerformanceMetrics{
		TotalTrades: len(history),
		WinRate:     winRate(history),
	}

	if len(equity) < 2 {
		return perf
	}

	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Equity
	}

	initial := values[0]
	current := values[len(values)-1]
	perf.ProfitLoss = current - initial
	if initial > 0 {
		perf.ReturnPct = perf.ProfitLoss / initial * 100
	}

	maxEquity := values[0]
	minEquity := values[0]
	for _, v := range values {
		if v > maxEquity {
			maxEquity = v
		}
		if v < minEquity {
			minEquity = v
		}
	}
	if maxEquity > 0 {
		perf.MaxDrawdown = (maxEquity - minEquity) / maxEquity * 100
	}

	perf.SharpeRatio = sharpe(values)
	return perf
}

// winRate treats a SELL above the remembered BUY price for the same symbol
// as a win; unmatched SELLs do not count as completed round trips.
func winRate(history []models.TradeHistoryItem) float64 {
	buyPrices := make(map[string]float64)
	wins := 0
	completed := 0

	for _, t := range history {
		switch t.Side {
		case models.SideBuy:
			buyPrices[t.Symbol] = t.Price
		case models.SideSell:
			buyPrice, ok := buyPrices[t.Symbol]
			if !ok {
				continue
			}
			completed++
			if t.Price > buyPrice {
				wins++
			}
			delete(buyPrices, t.Symbol)
		}
	}

	if completed == 0 {
		return 0
	}
	return float64(wins) / float64(completed) * 100
}

// sharpe is the annualized mean/stddev of equity percentage changes.
// Fewer than 30 samples is too noisy to report.
func sharpe(values []float64) float64 {
	if len(values) <= 30 {
		return 0
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std == 0 {
		return 0
	}

	return mean / std * math.Sqrt(365)
}

// WeightedAvgBuyPrice returns the quantity-weighted average price over all
// BUY trades for the symbol. ok is false when no BUY trades exist, so
// callers never divide by zero.
func WeightedAvgBuyPrice(history []models.TradeHistoryItem, symbol string) (avg float64, ok bool) {
	var totalValue, totalQty float64
	for _, t := range history {
		if t.Symbol != symbol || t.Side != models.SideBuy {
			continue
		}
		totalValue += t.Price * t.Quantity
		totalQty += t.Quantity
	}
	if totalQty == 0 {
		return 0, false
	}
	return totalValue / totalQty, true
}

// HoldingGrowth computes unrealized growth for a held symbol against the
// weighted-average cost basis of all its BUY lots.
func HoldingGrowth(status *models.PaperTradingStatus, symbol string) (growth, growthPct float64, ok bool) {
	avg, ok := WeightedAvgBuyPrice(status.TradeHistory, symbol)
	if !ok {
		return 0, 0, false
	}
	lastPrice, ok := status.LastPrices[symbol]
	if !ok {
		return 0, 0, false
	}
	growth = lastPrice - avg
	growthPct = growth / avg * 100
	return growth, growthPct, true
}

// RealizedPnL computes the realized profit for a SELL against the
// weighted-average price of same-symbol BUYs executed strictly earlier.
// ok is false for non-SELL entries and for SELLs with no qualifying BUYs.
func RealizedPnL(history []models.TradeHistoryItem, sell models.TradeHistoryItem) (profit, profitPct float64, ok bool) {
	if sell.Side != models.SideSell {
		return 0, 0, false
	}

	sellTime := sell.Time()
	var totalValue, totalQty float64
	for _, t := range history {
		if t.Symbol != sell.Symbol || t.Side != models.SideBuy {
			continue
		}
		if !t.Time().Before(sellTime) {
			continue
		}
		totalValue += t.Price * t.Quantity
		totalQty += t.Quantity
	}
	if totalQty == 0 {
		return 0, 0, false
	}

	avg := totalValue / totalQty
	profit = (sell.Price - avg) * sell.Quantity
	profitPct = (sell.Price - avg) / avg * 100
	return profit, profitPct, true
}
