package models

import "gorm.io/gorm"

// TradeRecord is a persisted trade row. The engine appends one per
// execution; the status endpoint reads them back ordered by timestamp.
type TradeRecord struct {
	gorm.Model
	Symbol       string  `json:"symbol" gorm:"index"`
	Side         string  `json:"side"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Value        float64 `json:"value"`
	BalanceAfter float64 `json:"balance_after"`
	Type         string  `json:"type"`
	Confidence   float64 `json:"confidence"`
	Timestamp    string  `json:"timestamp" gorm:"index"`
}

// Item converts the row to its wire representation.
func (r TradeRecord) Item() TradeHistoryItem {
	return TradeHistoryItem{
		Timestamp:    r.Timestamp,
		Symbol:       r.Symbol,
		Side:         r.Side,
		Quantity:     r.Quantity,
		Price:        r.Price,
		Value:        r.Value,
		BalanceAfter: r.BalanceAfter,
		Type:         r.Type,
		Confidence:   r.Confidence,
	}
}

// AccountState is the single-row snapshot of the paper account. Holdings,
// last prices and equity history are stored as JSON blobs since they are
// only ever read back whole.
type AccountState struct {
	gorm.Model
	Balance       float64 `json:"balance"`
	Mode          string  `json:"mode"`
	IsRunning     bool    `json:"is_running"`
	BaseCurrency  string  `json:"base_currency"`
	HoldingsJSON  string  `json:"-"`
	PricesJSON    string  `json:"-"`
	EquityJSON    string  `json:"-"`
	APIKey        string  `json:"-"`
	APISecret     string  `json:"-"`
	AutoExecute   bool    `json:"auto_execute"`
	MinConfidence float64 `json:"min_confidence"`
	AutoInterval  int     `json:"auto_interval"`
}

// ExchangeConfig is a user-scoped exchange API configuration row, the
// backing store for the settings panels. Secrets are write-only: the JSON
// form never carries them back out.
type ExchangeConfig struct {
	gorm.Model
	UserID   string `json:"user_id" gorm:"index"`
	Exchange string `json:"exchange"`
	Label    string `json:"label"`
	APIKey   string `json:"api_key"`
	Secret   string `json:"-"`
	Testnet  bool   `json:"testnet"`
}
