package papertrading

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Signal is one suggested trade published by the prediction service.
type Signal struct {
	Symbol       string  `json:"symbol"`
	Signal       string  `json:"signal"`
	Confidence   float64 `json:"confidence"`
	CurrentPrice float64 `json:"currentPrice"`
}

// SignalSource supplies suggested trades for auto-execution.
type SignalSource interface {
	Fetch() ([]Signal, error)
}

// FileSignalSource reads suggested trades from a JSON status file that
// the prediction service rewrites periodically.
type FileSignalSource struct {
	path string
}

var _ SignalSource = (*FileSignalSource)(nil)

// NewFileSignalSource creates a source reading from the given path.
func NewFileSignalSource(path string) *FileSignalSource {
	return &FileSignalSource{path: path}
}

type signalDocument struct {
	Signals []Signal `json:"signals"`
}

// Fetch returns the actionable signals from the status file. A missing
// file is not an error, just no signals yet.
func (f *FileSignalSource) Fetch() ([]Signal, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read signals file %s: %w", f.path, err)
	}

	var doc signalDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse signals file %s: %w", f.path, err)
	}

	out := make([]Signal, 0, len(doc.Signals))
	for _, sig := range doc.Signals {
		// Symbols may arrive as "BTC/USDT"; the engine uses "BTCUSDT".
		sig.Symbol = strings.ReplaceAll(sig.Symbol, "/", "")
		sig.Signal = strings.ToUpper(sig.Signal)
		if sig.Signal != "BUY" && sig.Signal != "SELL" {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}
