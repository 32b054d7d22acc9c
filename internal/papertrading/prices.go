package papertrading

import (
	"math/rand"
	"sync"
	"time"
)

// PriceSource supplies current market prices for a set of symbols.
type PriceSource interface {
	Prices(symbols []string) (map[string]float64, error)
}

// fallbackPrice is used for symbols without a seeded starting price.
const fallbackPrice = 100.0

var startingPrices = map[string]float64{
	"BTCUSDT":  52768.34,
	"ETHUSDT":  3164.56,
	"SOLUSDT":  148.92,
	"ADAUSDT":  0.52,
	"DOGEUSDT": 0.15,
	"BNBUSDT":  610.23,
}

// SimulatedPrices is a random-walk price feed for running the engine
// without an exchange connection. Each call nudges every requested
// symbol by up to one percent in either direction.
type SimulatedPrices struct {
	mu      sync.Mutex
	rng     *rand.Rand
	current map[string]float64
}

var _ PriceSource = (*SimulatedPrices)(nil)

// NewSimulatedPrices returns a feed seeded from the current time.
func NewSimulatedPrices() *SimulatedPrices {
	return NewSeededSimulatedPrices(time.Now().UnixNano())
}

// NewSeededSimulatedPrices returns a feed with a fixed seed so the walk
// is reproducible.
func NewSeededSimulatedPrices(seed int64) *SimulatedPrices {
	return &SimulatedPrices{
		rng:     rand.New(rand.NewSource(seed)),
		current: make(map[string]float64),
	}
}

// Prices returns the next step of the walk for each requested symbol.
func (s *SimulatedPrices) Prices(symbols []string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		price, ok := s.current[symbol]
		if !ok {
			price, ok = startingPrices[symbol]
			if !ok {
				price = fallbackPrice
			}
		}
		price *= 1 + (s.rng.Float64()*0.02 - 0.01)
		s.current[symbol] = price
		out[symbol] = price
	}
	return out, nil
}
