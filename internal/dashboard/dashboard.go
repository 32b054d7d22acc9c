package dashboard

import (
	"context"
	"sync"
	"time"

	"paper-trading-go/internal/backend"
	"paper-trading-go/internal/metrics"
	"paper-trading-go/internal/models"
	"paper-trading-go/internal/reconcile"

	"go.uber.org/zap"
)

// defaultErrorTTL is how long a user-visible error message stays up before
// it clears itself.
const defaultErrorTTL = 5 * time.Second

// Dashboard is the polling view-model over the paper-trading backend. It is
// the single writer of the displayed status: every update flows through the
// fetch -> reconcile -> derive pipeline, and commands re-trigger that
// pipeline instead of mutating the status directly.
type Dashboard struct {
	logger     *zap.Logger
	client     backend.ClientInterface
	reconciler *reconcile.Reconciler
	deriver    *metrics.Deriver
	interval   time.Duration
	errorTTL   time.Duration

	refresh chan struct{}

	mu           sync.RWMutex
	status       *models.PaperTradingStatus
	errMsg       string
	errGen       int
	nextSeq      uint64
	committedSeq uint64
}

// New creates a dashboard polling at the given interval.
func New(logger *zap.Logger, client backend.ClientInterface, reconciler *reconcile.Reconciler, interval time.Duration) *Dashboard {
	return &Dashboard{
		logger:     logger,
		client:     client,
		reconciler: reconciler,
		deriver:    metrics.NewDeriver(),
		interval:   interval,
		errorTTL:   defaultErrorTTL,
		refresh:    make(chan struct{}, 1),
	}
}

// Run polls the backend until the context is cancelled. An out-of-band
// Refresh signal triggers an immediate extra cycle.
func (d *Dashboard) Run(ctx context.Context) {
	d.logger.Info("Starting dashboard poll loop", zap.Duration("interval", d.interval))

	// Prime the display before the first tick.
	d.refreshOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Stopping dashboard poll loop")
			return
		case <-ticker.C:
			d.refreshOnce(ctx)
		case <-d.refresh:
			d.refreshOnce(ctx)
		}
	}
}

// Refresh requests an out-of-band fetch cycle. It never blocks; a refresh
// already pending is enough.
func (d *Dashboard) Refresh() {
	select {
	case d.refresh <- struct{}{}:
	default:
	}
}

// Dispatch sends a command to the backend and, once the command's own
// request has completed, re-fetches the status so the display reflects its
// effect. The returned error is also surfaced as the user-visible message.
func (d *Dashboard) Dispatch(ctx context.Context, command string, params map[string]any) error {
	if err := d.client.SendCommand(ctx, command, params); err != nil {
		d.setError(err.Error())
		return err
	}
	d.refreshOnce(ctx)
	return nil
}

// Status returns a copy of the displayed status and the current
// user-visible error message, if any.
func (d *Dashboard) Status() (*models.PaperTradingStatus, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status.Clone(), d.errMsg
}

// refreshOnce runs one fetch -> reconcile -> derive cycle. The sequence
// number taken before the fetch guards the commit: an in-flight response
// superseded by a newer completed cycle is dropped rather than allowed to
// overwrite fresher state.
func (d *Dashboard) refreshOnce(ctx context.Context) {
	seq := d.takeSeq()

	status, err := d.client.FetchStatus(ctx)
	if err != nil {
		// Primary data unusable: keep the prior display, surface the
		// message.
		d.logger.Warn("Status fetch failed", zap.Error(err))
		d.setError(err.Error())
		return
	}

	d.reconciler.Reconcile(ctx, status)
	d.deriver.Derive(status)

	if !d.commit(seq, status) {
		d.logger.Debug("Dropped stale fetch result", zap.Uint64("seq", seq))
	}
}

func (d *Dashboard) takeSeq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSeq++
	return d.nextSeq
}

// commit installs the fetched status unless a newer cycle already landed.
func (d *Dashboard) commit(seq uint64, status *models.PaperTradingStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq <= d.committedSeq {
		return false
	}
	d.committedSeq = seq
	d.status = status
	return true
}

// setError installs a user-visible message that clears itself after the
// error TTL unless a newer message replaced it first.
func (d *Dashboard) setError(msg string) {
	d.mu.Lock()
	d.errMsg = msg
	d.errGen++
	gen := d.errGen
	d.mu.Unlock()

	time.AfterFunc(d.errorTTL, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.errGen == gen {
			d.errMsg = ""
		}
	})
}
