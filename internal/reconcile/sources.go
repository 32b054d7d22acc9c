package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"paper-trading-go/internal/models"

	"github.com/go-resty/resty/v2"
)

// SnapshotSource is one candidate location for a supplementary trade-history
// snapshot. Sources are tried in order; a failing source is skipped, never
// surfaced as an error.
type SnapshotSource interface {
	// Name identifies the source in logs.
	Name() string

	// Load returns the trade history found at the source. An empty slice
	// means the source responded but held no trades.
	Load(ctx context.Context) ([]models.TradeHistoryItem, error)
}

// snapshotDocument is the shape of a supplementary snapshot file.
type snapshotDocument struct {
	TradeHistory []models.TradeHistoryItem `json:"trade_history"`
}

// FileSource reads a snapshot document from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource creates a snapshot source for a local JSON file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Load(_ context.Context) ([]models.TradeHistoryItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed snapshot %s: %w", s.path, err)
	}
	return doc.TradeHistory, nil
}

// HTTPSource fetches a snapshot document over HTTP.
type HTTPSource struct {
	client *resty.Client
	url    string
}

// NewHTTPSource creates a snapshot source for a remote JSON document.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		client: resty.New().SetTimeout(5 * time.Second),
		url:    url,
	}
}

func (s *HTTPSource) Name() string { return s.url }

func (s *HTTPSource) Load(ctx context.Context) ([]models.TradeHistoryItem, error) {
	var doc snapshotDocument
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&doc).
		Get(s.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("snapshot fetch %s: %s", s.url, resp.Status())
	}
	return doc.TradeHistory, nil
}

// SourcesFromPaths builds the ranked source chain from the configured
// candidate paths. Entries with an http(s) scheme become HTTP sources,
// everything else is treated as a local file.
func SourcesFromPaths(paths []string) []SnapshotSource {
	sources := make([]SnapshotSource, 0, len(paths))
	for _, p := range paths {
		if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
			sources = append(sources, NewHTTPSource(p))
		} else {
			sources = append(sources, NewFileSource(p))
		}
	}
	return sources
}
