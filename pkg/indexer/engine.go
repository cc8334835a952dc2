// Package indexer replicates the ledger's append-only event log into the
// off-chain projection. The contract is "never silently lose or duplicate
// a record": cursors advance only after a fully persisted page, and every
// write is an idempotent upsert keyed by the on-chain object id, so
// at-least-once redelivery and concurrent instances both converge.
package indexer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hatchmark/hatchmark/internal/metrics"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultPageSize     = 100
)

// Engine polls each event type on its own loop. Loops are independent: a
// hard RPC failure pauses only its own type until the next tick, and no
// cross-type ordering is assumed.
type Engine struct {
	source   ledger.EventSource
	store    projection.Store
	logger   *zap.Logger
	interval time.Duration
	pageSize int

	now func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures the engine.
type Option func(*Engine)

// WithPollInterval overrides the poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithPageSize overrides the bounded page size.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithClock overrides the synced_at timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new indexer engine
func NewEngine(source ledger.EventSource, store projection.Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		store:    store,
		logger:   logger,
		interval: defaultPollInterval,
		pageSize: defaultPageSize,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches one poll loop per event type and returns.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting indexer engine",
		zap.Duration("interval", e.interval),
		zap.Int("page_size", e.pageSize))

	for _, typ := range ledger.EventTypes() {
		typ := typ
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.pollLoop(ctx, typ)
		}()
	}
}

// Stop stops all poll loops and waits for them to drain.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	e.logger.Info("Indexer engine stopped")
}

func (e *Engine) pollLoop(ctx context.Context, typ ledger.EventType) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("Started event poll loop", zap.String("event_type", string(typ)))

	// First poll immediately instead of waiting one interval.
	e.pollType(ctx, typ)

	for {
		select {
		case <-ticker.C:
			e.pollType(ctx, typ)
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollType drains the stream for one event type, page by page, until no
// more events are available or an error holds the cursor back.
func (e *Engine) pollType(ctx context.Context, typ ledger.EventType) {
	start := time.Now()
	defer func() {
		metrics.PollDuration.WithLabelValues(string(typ)).Observe(time.Since(start).Seconds())
	}()

	for {
		more, err := e.pollPage(ctx, typ)
		if err != nil {
			// Hold the cursor; the same page is retried next tick.
			e.logger.Error("Poll cycle failed",
				zap.String("event_type", string(typ)),
				zap.Error(err))
			return
		}
		if !more {
			return
		}
	}
}

// PollOnce processes a single page for one event type. Exposed for tests
// and for one-shot catch-up runs.
func (e *Engine) PollOnce(ctx context.Context, typ ledger.EventType) error {
	_, err := e.pollPage(ctx, typ)
	return err
}

func (e *Engine) pollPage(ctx context.Context, typ ledger.EventType) (more bool, err error) {
	cursor, err := e.store.GetCursor(ctx, typ)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues(string(typ), "cursor_load").Inc()
		return false, err
	}

	page, err := e.source.QueryEvents(ctx, typ, cursor, e.pageSize)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues(string(typ), "query").Inc()
		return false, err
	}
	if len(page.Events) == 0 {
		return false, nil
	}

	for _, ev := range page.Events {
		if err := e.apply(ctx, ev); err != nil {
			metrics.IndexerErrors.WithLabelValues(string(typ), "persist").Inc()
			return false, err
		}
	}

	// The page is fully persisted; only now may the cursor move.
	if err := e.store.SetCursor(ctx, typ, page.NextCursor); err != nil {
		metrics.IndexerErrors.WithLabelValues(string(typ), "cursor_store").Inc()
		return false, err
	}

	e.logger.Debug("Indexed event page",
		zap.String("event_type", string(typ)),
		zap.Int("events", len(page.Events)),
		zap.String("cursor", page.NextCursor))

	return page.HasMore, nil
}

// apply maps one event and upserts its record. Malformed events are
// logged and skipped without failing the page: they are deterministic
// garbage and would never become well-formed on retry.
func (e *Engine) apply(ctx context.Context, ev ledger.Event) error {
	syncedAt := e.now().UTC()

	switch ev.Type {
	case ledger.EventRegistration:
		rec, err := mapRegistration(ev, syncedAt)
		if err != nil {
			e.skipMalformed(ev, err)
			return nil
		}
		if err := e.store.UpsertRegistration(ctx, rec); err != nil {
			return err
		}

	case ledger.EventDispute:
		rec, err := mapDispute(ev, syncedAt)
		if err != nil {
			e.skipMalformed(ev, err)
			return nil
		}
		if err := e.store.UpsertDispute(ctx, rec); err != nil {
			return err
		}

	case ledger.EventDisputeResolved:
		disputeID, status, err := resolvedFields(ev)
		if err != nil {
			e.skipMalformed(ev, err)
			return nil
		}
		if err := e.store.SetDisputeStatus(ctx, disputeID, status, ev.TxDigest); err != nil {
			return err
		}

	default:
		e.skipMalformed(ev, nil)
		return nil
	}

	metrics.EventsIndexed.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

func (e *Engine) skipMalformed(ev ledger.Event, err error) {
	metrics.MalformedEvents.WithLabelValues(string(ev.Type)).Inc()
	e.logger.Warn("Skipping malformed event",
		zap.Uint64("seq", ev.Seq),
		zap.String("event_type", string(ev.Type)),
		zap.Error(err))
}
