package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/portpulse/portpulse/internal/breaker"
	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/logging"
	"github.com/portpulse/portpulse/internal/metrics"
)

// pnlDriftTolerance bounds the accepted difference between the aggregate
// unrealized figure and the sum of per-symbol figures, in currency units.
// Violations are logged as warnings, never raised.
const pnlDriftTolerance = 0.05

// Sink receives every emitted event after it has been recorded in the
// buffer. The hub implements it.
type Sink interface {
	Deliver(ev domain.Event)
	ClientCount() int
}

// Config holds the engine tunables that are not per-channel data.
type Config struct {
	// FailureBackoff is the fixed wait after a failed poll before the
	// loop's next attempt.
	FailureBackoff time.Duration
	// SummaryMaxChanges is the delta size past which a summary event is
	// emitted instead of the full payload.
	SummaryMaxChanges int
	// SummaryMaxClients is the connection count past which summaries are
	// preferred over full deltas.
	SummaryMaxClients int
}

// channelState is the snapshot/hash cache for one list channel. It has a
// single logical owner - the poll loop of that channel - so no locking.
type channelState[T record] struct {
	hash     string
	snapshot []T
}

// Engine coordinates the per-channel polling loops and owns the process-wide
// sequence counter.
type Engine struct {
	provider domain.Provider
	breaker  *breaker.Breaker
	buffer   *Buffer
	sink     Sink
	clock    clockwork.Clock
	cfg      Config

	// emitMu serializes sequence claim, buffer append and sink delivery so
	// events reach the buffer and the clients in sequence order even though
	// five poll loops emit concurrently.
	emitMu sync.Mutex
	seq    atomic.Uint64

	positions channelState[domain.Position]
	orders    channelState[domain.Order]
	holdings  channelState[domain.Holding]
	trades    channelState[domain.Trade]
	pnlHash   string

	mu       sync.Mutex
	lastPoll map[domain.Channel]time.Time
}

// New wires an engine instance. Nothing starts until Run.
func New(p domain.Provider, b *breaker.Breaker, buf *Buffer, sink Sink, clock clockwork.Clock, cfg Config) *Engine {
	return &Engine{
		provider: p,
		breaker:  b,
		buffer:   buf,
		sink:     sink,
		clock:    clock,
		cfg:      cfg,
		lastPoll: make(map[domain.Channel]time.Time),
	}
}

// Run starts one poll loop per channel and blocks until ctx is cancelled and
// every loop has exited.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range domain.Channels() {
		g.Go(func() error {
			e.pollLoop(ctx, ch)
			return nil
		})
	}
	return g.Wait()
}

// pollLoop never terminates except on ctx cancellation. A failed poll logs,
// backs off for a fixed interval and tries again.
func (e *Engine) pollLoop(ctx context.Context, ch domain.Channel) {
	spec := ch.Spec()
	log := logging.WithChannel(string(ch))
	log.Info("Poll loop starting", "min_interval", spec.PollMin, "max_interval", spec.PollMax)

	for {
		select {
		case <-ctx.Done():
			log.Debug("Poll loop stopped")
			return
		case <-e.clock.After(jitter(spec.PollMin, spec.PollMax)):
		}

		if err := e.pollOnce(ctx, ch); err != nil {
			if ctx.Err() != nil {
				log.Debug("Poll loop stopped")
				return
			}
			metrics.PollFailuresTotal.WithLabelValues(string(ch)).Inc()
			log.Warn("Poll failed, backing off", "error", err, "backoff", e.cfg.FailureBackoff)

			select {
			case <-ctx.Done():
				log.Debug("Poll loop stopped")
				return
			case <-e.clock.After(e.cfg.FailureBackoff):
			}
		}
	}
}

// jitter draws a uniform duration in [min, max].
func jitter(min, max time.Duration) time.Duration {
	return min + time.Duration(rand.Float64()*float64(max-min))
}

// pollOnce fetches one snapshot through the breaker and runs it through
// change detection and delta computation.
func (e *Engine) pollOnce(ctx context.Context, ch domain.Channel) error {
	start := e.clock.Now()
	defer func() {
		metrics.PollDuration.WithLabelValues(string(ch)).Observe(e.clock.Since(start).Seconds())
	}()

	switch ch {
	case domain.ChannelPositions:
		snap, err := breaker.Do(e.breaker, func() ([]domain.Position, error) {
			return e.provider.FetchPositions(ctx)
		})
		if err != nil {
			return err
		}
		pollList(e, ch, &e.positions, snap, nil)

	case domain.ChannelOrders:
		snap, err := breaker.Do(e.breaker, func() ([]domain.Order, error) {
			return e.provider.FetchOrders(ctx)
		})
		if err != nil {
			return err
		}
		pollList(e, ch, &e.orders, snap, func(c *changesPayload[domain.Order], cur []domain.Order) {
			c.StatusCounts = orderStatusCounts(cur)
		})

	case domain.ChannelHoldings:
		snap, err := breaker.Do(e.breaker, func() ([]domain.Holding, error) {
			return e.provider.FetchHoldings(ctx)
		})
		if err != nil {
			return err
		}
		pollList(e, ch, &e.holdings, snap, nil)

	case domain.ChannelTrades:
		snap, err := breaker.Do(e.breaker, func() ([]domain.Trade, error) {
			return e.provider.FetchTrades(ctx)
		})
		if err != nil {
			return err
		}
		pollList(e, ch, &e.trades, snap, nil)

	case domain.ChannelPnL:
		snap, err := breaker.Do(e.breaker, func() (domain.PnL, error) {
			return e.provider.FetchPnL(ctx)
		})
		if err != nil {
			return err
		}
		e.pollPnL(snap)
	}

	e.markPolled(ch)
	return nil
}

// pollList is the shared pipeline for all list-valued channels: detect change
// by content hash, diff by identity, emit a delta or a summary.
func pollList[T record](e *Engine, ch domain.Channel, st *channelState[T], cur []T, decorate func(*changesPayload[T], []T)) {
	hash := snapshotHash(cur)
	if hash == st.hash {
		metrics.UnchangedPollsTotal.WithLabelValues(string(ch)).Inc()
		return
	}

	old := st.snapshot
	st.hash = hash
	st.snapshot = cur

	delta := Diff(old, cur)
	if delta.Empty() {
		return
	}

	if delta.Size() > e.cfg.SummaryMaxChanges || e.sink.ClientCount() > e.cfg.SummaryMaxClients {
		e.emitSummary(ch, hash, summaryCounts{
			Records: len(cur),
			Upserts: len(delta.Upsert),
			Removes: len(delta.Remove),
		})
		return
	}

	payload := changesPayload[T]{
		Upsert: delta.Upsert,
		Remove: delta.Remove,
	}
	if payload.Upsert == nil {
		payload.Upsert = []T{}
	}
	if payload.Remove == nil {
		payload.Remove = []string{}
	}
	if decorate != nil {
		decorate(&payload, cur)
	}

	emitDeltaFor(e, ch, payload)
}

// pollPnL never diffs: the aggregate is emitted whole, so totals and the
// per-symbol breakdown always come from the same snapshot.
func (e *Engine) pollPnL(snap domain.PnL) {
	hash := snapshotHash(snap)
	if hash == e.pnlHash {
		metrics.UnchangedPollsTotal.WithLabelValues(string(domain.ChannelPnL)).Inc()
		return
	}
	e.pnlHash = hash

	if drift := snap.UnrealizedDrift(); drift > pnlDriftTolerance {
		metrics.PnLDriftWarningsTotal.Inc()
		slog.Warn("P&L aggregate drift beyond tolerance",
			"drift", drift,
			"tolerance", pnlDriftTolerance,
			"totals_unrealized", snap.Totals.Unrealized,
		)
	}

	e.emitPnL(snap)
}

func (e *Engine) markPolled(ch domain.Channel) {
	now := e.clock.Now()
	e.mu.Lock()
	e.lastPoll[ch] = now
	e.mu.Unlock()
}

// Stats is a point-in-time view of the engine for the debug endpoint.
type Stats struct {
	CurrentSeq     uint64                       `json:"currentSeq"`
	BufferedEvents int                          `json:"bufferedEvents"`
	OldestSeq      uint64                       `json:"oldestSeq"`
	LastPollTimes  map[domain.Channel]time.Time `json:"lastPollTimes"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	lastPoll := make(map[domain.Channel]time.Time, len(e.lastPoll))
	for ch, t := range e.lastPoll {
		lastPoll[ch] = t
	}
	e.mu.Unlock()

	return Stats{
		CurrentSeq:     e.seq.Load(),
		BufferedEvents: e.buffer.Len(),
		OldestSeq:      e.buffer.OldestSeq(),
		LastPollTimes:  lastPoll,
	}
}
