package models

// Trading modes accepted by the backend.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// PerformanceMetrics are the derived account statistics displayed alongside
// the trade history. TotalTrades must equal the trade-history length after
// reconciliation; the metrics deriver enforces this by overwrite.
type PerformanceMetrics struct {
	TotalTrades int     `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
	ProfitLoss  float64 `json:"profit_loss"`
	ReturnPct   float64 `json:"return_pct"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// EquityPoint is one sample of total portfolio value over time.
type EquityPoint struct {
	Timestamp string  `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// PaperTradingStatus is the aggregate snapshot of the trading account as
// served by the backend status endpoint. It is fetched fresh on each poll;
// the displayed copy is mutated in place by reconciliation before being
// committed, and is never persisted by the dashboard.
type PaperTradingStatus struct {
	IsRunning      bool                `json:"is_running"`
	Mode           string              `json:"mode"`
	Balance        float64             `json:"balance"`
	Holdings       map[string]float64  `json:"holdings"`
	BaseCurrency   string              `json:"base_currency"`
	PortfolioValue float64             `json:"portfolio_value"`
	Performance    *PerformanceMetrics `json:"performance,omitempty"`
	TradeHistory   []TradeHistoryItem  `json:"trade_history"`
	LastPrices     map[string]float64  `json:"last_prices"`
	EquityHistory  []EquityPoint       `json:"equity_history,omitempty"`
	LastUpdated    string              `json:"last_updated"`
	// Synthetic is set when the trade history shown is a fabricated
	// display fallback rather than real account data.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Clone returns a deep copy of the status so the displayed state can be
// handed out without exposing the pipeline's writable copy.
func (s *PaperTradingStatus) Clone() *PaperTradingStatus {
	if s == nil {
		return nil
	}
	out := *s
	if s.Holdings != nil {
		out.Holdings = make(map[string]float64, len(s.Holdings))
		for k, v := range s.Holdings {
			out.Holdings[k] = v
		}
	}
	if s.LastPrices != nil {
		out.LastPrices = make(map[string]float64, len(s.LastPrices))
		for k, v := range s.LastPrices {
			out.LastPrices[k] = v
		}
	}
	if s.TradeHistory != nil {
		out.TradeHistory = append([]TradeHistoryItem(nil), s.TradeHistory...)
	}
	if s.EquityHistory != nil {
		out.EquityHistory = append([]EquityPoint(nil), s.EquityHistory...)
	}
	if s.Performance != nil {
		perf := *s.Performance
		out.Performance = &perf
	}
	return &out
}
