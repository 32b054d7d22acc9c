package models

import "time"

// Trade sides and execution kinds.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	TradeTypeMarket = "market"
)

// TradeHistoryItem is a single executed trade as reported by the backend.
// Items are immutable once recorded; ordering by Timestamp defines the trade
// sequence, and equality for de-duplication is by exact timestamp match.
type TradeHistoryItem struct {
	Timestamp    string  `json:"timestamp"` // ISO-8601
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"` // BUY or SELL
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Value        float64 `json:"value"`
	BalanceAfter float64 `json:"balance_after"`
	Type         string  `json:"type"`
	Confidence   float64 `json:"confidence,omitempty"`
	// Synthetic marks fabricated display-fallback trades so they can never
	// be mistaken for authoritative history.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Time parses the item's timestamp. The zero time is returned for
// malformed values so callers can sort without a second error path.
func (t TradeHistoryItem) Time() time.Time {
	ts, err := time.Parse(time.RFC3339, t.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Before reports whether t was executed strictly earlier than other.
func (t TradeHistoryItem) Before(other TradeHistoryItem) bool {
	return t.Time().Before(other.Time())
}
