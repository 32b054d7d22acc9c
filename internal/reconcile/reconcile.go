package reconcile

import (
	"context"

	"paper-trading-go/internal/models"

	"go.uber.org/zap"
)

// Reconciler guarantees the displayed status always has a non-empty,
// consistent trade history and holdings view, even when the authoritative
// source has none. It never returns an error: supplementary-source failures
// are logged and skipped, and synthesis covers the worst case.
type Reconciler struct {
	logger  *zap.Logger
	sources []SnapshotSource
	synth   *Synthesizer
	count   int
}

// NewReconciler creates a reconciler over the ranked supplementary sources.
// count is the number of trades to synthesize when everything is empty;
// zero means the default.
func NewReconciler(logger *zap.Logger, sources []SnapshotSource, synth *Synthesizer, count int) *Reconciler {
	if synth == nil {
		synth = NewSynthesizer()
	}
	if count <= 0 {
		count = DefaultSynthesizeCount
	}
	return &Reconciler{
		logger:  logger,
		sources: sources,
		synth:   synth,
		count:   count,
	}
}

// Reconcile mutates status in place so it always carries a usable trade
// history. The first supplementary source with a non-empty history either
// replaces an empty authoritative history wholesale or is merged into it by
// timestamp de-duplication; if every source comes up empty, a synthetic
// history is fabricated and flagged as such.
func (r *Reconciler) Reconcile(ctx context.Context, status *models.PaperTradingStatus) {
	if status.TradeHistory == nil {
		status.TradeHistory = []models.TradeHistoryItem{}
	}

	for _, source := range r.sources {
		candidate, err := source.Load(ctx)
		if err != nil {
			// Candidate unavailable, try the next one.
			r.logger.Debug("Supplementary snapshot source unavailable",
				zap.String("source", source.Name()), zap.Error(err))
			continue
		}
		if len(candidate) == 0 {
			continue
		}

		if len(status.TradeHistory) == 0 {
			status.TradeHistory = candidate
		} else {
			status.TradeHistory = MergeHistories(status.TradeHistory, candidate)
		}
		r.logger.Info("Backfilled trade history from supplementary source",
			zap.String("source", source.Name()),
			zap.Int("trades", len(status.TradeHistory)))
		break
	}

	if len(status.TradeHistory) > 0 {
		return
	}

	// Display fallback: fabricate a plausible history and derive the
	// dependent views from it so the dashboard stays consistent.
	r.logger.Warn("No trade history available from any source, synthesizing display data",
		zap.Int("count", r.count))
	status.TradeHistory = r.synth.Generate(r.count)
	status.Synthetic = true
	status.Holdings = DeriveHoldings(status.TradeHistory)
	status.LastPrices = DeriveLastPrices(status.TradeHistory)
	if n := len(status.TradeHistory); n > 0 {
		status.Balance = status.TradeHistory[n-1].BalanceAfter
	}
}

// MergeHistories appends to authoritative only those candidate entries whose
// timestamp is not already present, preserving the candidate's relative
// order among the appended entries.
func MergeHistories(authoritative, candidate []models.TradeHistoryItem) []models.TradeHistoryItem {
	seen := make(map[string]struct{}, len(authoritative))
	for _, t := range authoritative {
		seen[t.Timestamp] = struct{}{}
	}

	merged := authoritative
	for _, t := range candidate {
		if _, ok := seen[t.Timestamp]; ok {
			continue
		}
		merged = append(merged, t)
	}
	return merged
}

// DeriveHoldings recomputes per-symbol held quantities from a trade history:
// BUY adds, SELL subtracts with a floor of zero.
func DeriveHoldings(history []models.TradeHistoryItem) map[string]float64 {
	holdings := make(map[string]float64)
	for _, t := range history {
		switch t.Side {
		case models.SideBuy:
			holdings[t.Symbol] += t.Quantity
		case models.SideSell:
			holdings[t.Symbol] -= t.Quantity
			if holdings[t.Symbol] < 0 {
				holdings[t.Symbol] = 0
			}
		}
	}
	return holdings
}

// DeriveLastPrices returns the most recent trade price per symbol, assuming
// history is ordered oldest first.
func DeriveLastPrices(history []models.TradeHistoryItem) map[string]float64 {
	prices := make(map[string]float64)
	for _, t := range history {
		prices[t.Symbol] = t.Price
	}
	return prices
}
