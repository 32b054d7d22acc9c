package models

import "encoding/json"

// Holdings decodes the JSON holdings blob. A missing blob is an empty map.
func (s *AccountState) Holdings() map[string]float64 {
	return decodeFloatMap(s.HoldingsJSON)
}

// SetHoldings encodes holdings into the state row.
func (s *AccountState) SetHoldings(h map[string]float64) {
	s.HoldingsJSON = encodeJSON(h)
}

// LastPrices decodes the JSON last-prices blob.
func (s *AccountState) LastPrices() map[string]float64 {
	return decodeFloatMap(s.PricesJSON)
}

// SetLastPrices encodes last prices into the state row.
func (s *AccountState) SetLastPrices(p map[string]float64) {
	s.PricesJSON = encodeJSON(p)
}

// EquityHistory decodes the JSON equity-history blob.
func (s *AccountState) EquityHistory() []EquityPoint {
	if s.EquityJSON == "" {
		return nil
	}
	var points []EquityPoint
	if err := json.Unmarshal([]byte(s.EquityJSON), &points); err != nil {
		return nil
	}
	return points
}

// SetEquityHistory encodes the equity history into the state row.
func (s *AccountState) SetEquityHistory(points []EquityPoint) {
	s.EquityJSON = encodeJSON(points)
}

func decodeFloatMap(blob string) map[string]float64 {
	out := make(map[string]float64)
	if blob == "" {
		return out
	}
	if err := json.Unmarshal([]byte(blob), &out); err != nil {
		return make(map[string]float64)
	}
	return out
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
