package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portpulse/portpulse/internal/breaker"
	"github.com/portpulse/portpulse/internal/domain"
)

// scriptedProvider serves whatever snapshots the test assigns.
type scriptedProvider struct {
	mu        sync.Mutex
	positions []domain.Position
	orders    []domain.Order
	holdings  []domain.Holding
	trades    []domain.Trade
	pnl       domain.PnL
	err       error
}

func (p *scriptedProvider) FetchPositions(context.Context) ([]domain.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions, p.err
}

func (p *scriptedProvider) FetchOrders(context.Context) ([]domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orders, p.err
}

func (p *scriptedProvider) FetchHoldings(context.Context) ([]domain.Holding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings, p.err
}

func (p *scriptedProvider) FetchTrades(context.Context) ([]domain.Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trades, p.err
}

func (p *scriptedProvider) FetchPnL(context.Context) (domain.PnL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pnl, p.err
}

func (p *scriptedProvider) SquareOff(context.Context, string) (domain.SquareOffResult, error) {
	return domain.SquareOffResult{}, nil
}

func (p *scriptedProvider) setPositions(positions []domain.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = positions
}

// captureSink records delivered events.
type captureSink struct {
	mu      sync.Mutex
	events  []domain.Event
	clients int
}

func (s *captureSink) Deliver(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

func (s *captureSink) all() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

func newTestEngine(p domain.Provider, clock clockwork.Clock, cfg Config) (*Engine, *captureSink) {
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = time.Millisecond
	}
	if cfg.SummaryMaxChanges == 0 {
		cfg.SummaryMaxChanges = 100
	}
	if cfg.SummaryMaxClients == 0 {
		cfg.SummaryMaxClients = 100
	}
	sink := &captureSink{}
	brk := breaker.New(5, time.Second)
	eng := New(p, brk, NewBuffer(100), sink, clock, cfg)
	return eng, sink
}

func TestPollOnce_FirstSnapshotEmitsFullDelta(t *testing.T) {
	p := &scriptedProvider{positions: []domain.Position{pos("p1", 3510), pos("p2", 3520)}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "positions.delta", events[0].Type)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, 1, eng.buffer.Len())

	var msg struct {
		Changes struct {
			Upsert []domain.Position `json:"upsert"`
			Remove []string          `json:"remove"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(events[0].Payload, &msg))
	assert.Len(t, msg.Changes.Upsert, 2)
	assert.Empty(t, msg.Changes.Remove)
}

func TestPollOnce_UnchangedSnapshotEmitsNothing(t *testing.T) {
	p := &scriptedProvider{positions: []domain.Position{pos("p1", 3510)}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))
	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))

	assert.Len(t, sink.all(), 1)
}

func TestPollOnce_ChangeEmitsMinimalDelta(t *testing.T) {
	p := &scriptedProvider{positions: []domain.Position{pos("p1", 3510), pos("p2", 3520)}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))

	// p1 changes, p2 disappears.
	p.setPositions([]domain.Position{pos("p1", 3555)})
	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))

	events := sink.all()
	require.Len(t, events, 2)

	var msg struct {
		Seq     uint64 `json:"seq"`
		Changes struct {
			Upsert []domain.Position `json:"upsert"`
			Remove []string          `json:"remove"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(events[1].Payload, &msg))
	assert.Equal(t, uint64(2), msg.Seq)
	require.Len(t, msg.Changes.Upsert, 1)
	assert.Equal(t, "p1", msg.Changes.Upsert[0].ID)
	assert.Equal(t, []string{"p2"}, msg.Changes.Remove)
}

func TestPollOnce_SummaryPastChangeBound(t *testing.T) {
	p := &scriptedProvider{positions: []domain.Position{pos("p1", 3510), pos("p2", 3520)}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{SummaryMaxChanges: 1})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "positions.summary", events[0].Type)

	var msg struct {
		SnapshotHash string `json:"snapshotHash"`
		Counts       struct {
			Records int `json:"records"`
			Upserts int `json:"upserts"`
			Removes int `json:"removes"`
		} `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(events[0].Payload, &msg))
	assert.NotEmpty(t, msg.SnapshotHash)
	assert.Equal(t, 2, msg.Counts.Records)
	assert.Equal(t, 2, msg.Counts.Upserts)
}

func TestPollOnce_SummaryPastClientBound(t *testing.T) {
	p := &scriptedProvider{positions: []domain.Position{pos("p1", 3510)}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{SummaryMaxClients: 10})
	sink.clients = 11

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "positions.summary", events[0].Type)
}

func TestPollOnce_OrderDeltaCarriesStatusCounts(t *testing.T) {
	p := &scriptedProvider{orders: []domain.Order{
		{OrderID: "o1", Status: domain.OrderStatusFilled},
		{OrderID: "o2", Status: domain.OrderStatusPending},
		{OrderID: "o3", Status: domain.OrderStatusPending},
	}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelOrders))

	events := sink.all()
	require.Len(t, events, 1)

	var msg struct {
		Changes struct {
			StatusCounts map[string]int `json:"statusCounts"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(events[0].Payload, &msg))
	assert.Equal(t, map[string]int{"FILLED": 1, "PENDING": 2}, msg.Changes.StatusCounts)
}

func TestPollOnce_PnLUpdate(t *testing.T) {
	p := &scriptedProvider{pnl: domain.PnL{
		Totals: domain.PnLTotals{Unrealized: 1250.5, Day: 1250.5, Currency: "INR"},
		PerSymbol: []domain.PnLSymbol{
			{Symbol: "TCS", Side: domain.SideLong, Qty: 100, Unrealized: 1250.5},
		},
	}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPnL))
	// Unchanged aggregate is suppressed.
	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPnL))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "pnl.update", events[0].Type)

	var msg struct {
		Totals    domain.PnLTotals   `json:"totals"`
		PerSymbol []domain.PnLSymbol `json:"perSymbol"`
	}
	require.NoError(t, json.Unmarshal(events[0].Payload, &msg))
	assert.Equal(t, 1250.5, msg.Totals.Unrealized)
	require.Len(t, msg.PerSymbol, 1)
}

func TestPollOnce_EmptyPnLSerializesEmptyBreakdown(t *testing.T) {
	p := &scriptedProvider{pnl: domain.PnL{Totals: domain.PnLTotals{Currency: "INR"}}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPnL))

	events := sink.all()
	require.Len(t, events, 1)

	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(events[0].Payload, &msg))
	assert.Equal(t, "[]", string(msg["perSymbol"]))
}

func TestPollOnce_DriftingPnLStillEmitted(t *testing.T) {
	// Totals disagree with the per-symbol sum well past tolerance.
	p := &scriptedProvider{pnl: domain.PnL{
		Totals: domain.PnLTotals{Unrealized: 100, Currency: "INR"},
		PerSymbol: []domain.PnLSymbol{
			{Symbol: "TCS", Unrealized: 50},
		},
	}}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPnL))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "pnl.update", events[0].Type)
}

func TestPollOnce_ProviderErrorReturned(t *testing.T) {
	p := &scriptedProvider{err: context.DeadlineExceeded}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	err := eng.pollOnce(context.Background(), domain.ChannelPositions)
	require.Error(t, err)
	assert.Empty(t, sink.all())
}

func TestSequenceNumbersAreGlobalAndMonotonic(t *testing.T) {
	p := &scriptedProvider{
		positions: []domain.Position{pos("p1", 3510)},
		orders:    []domain.Order{{OrderID: "o1", Status: domain.OrderStatusFilled}},
		pnl:       domain.PnL{Totals: domain.PnLTotals{Unrealized: 10, Currency: "INR"}},
	}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))
	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelOrders))
	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPnL))

	events := sink.all()
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestConcurrentEmitsKeepBufferAndDeliveryOrdered(t *testing.T) {
	p := &scriptedProvider{}
	eng, sink := newTestEngine(p, clockwork.NewRealClock(), Config{})

	const goroutines = 4
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if g%2 == 0 {
					emitDeltaFor(eng, domain.ChannelPositions, changesPayload[domain.Position]{
						Upsert: []domain.Position{pos("p1", float64(i))},
						Remove: []string{},
					})
				} else {
					eng.emitPnL(domain.PnL{Totals: domain.PnLTotals{Unrealized: float64(i), Currency: "INR"}})
				}
			}
		}(g)
	}
	wg.Wait()

	// Delivery order must follow sequence order with no gaps, even with
	// several loops emitting at once.
	events := sink.all()
	require.Len(t, events, goroutines*perGoroutine)
	for i := 1; i < len(events); i++ {
		require.Equal(t, events[i-1].Seq+1, events[i].Seq)
	}

	// Each payload carries the sequence number it was delivered under.
	for _, ev := range events {
		var msg struct {
			Seq uint64 `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(ev.Payload, &msg))
		require.Equal(t, ev.Seq, msg.Seq)
	}

	// The retained window stays a contiguous suffix and the high-water mark
	// never regresses below the last emitted sequence.
	assert.Equal(t, uint64(goroutines*perGoroutine), eng.buffer.MaxSeq())
	replay, ok := eng.buffer.Since(eng.buffer.OldestSeq() - 1)
	require.True(t, ok)
	require.Len(t, replay, eng.buffer.Len())
	for i := 1; i < len(replay); i++ {
		require.Equal(t, replay[i-1].Seq+1, replay[i].Seq)
	}
}

func TestRun_PollsEveryChannelOnSchedule(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &scriptedProvider{
		positions: []domain.Position{pos("p1", 3510)},
		pnl:       domain.PnL{Totals: domain.PnLTotals{Unrealized: 10, Currency: "INR"}},
	}
	eng, sink := newTestEngine(p, clock, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- eng.Run(ctx) }()

	// One waiter per channel loop.
	clock.BlockUntil(5)
	clock.Advance(2 * time.Second)

	// Positions and pnl poll within two seconds; the slower channels have
	// nothing to report anyway.
	require.Eventually(t, func() bool {
		return len(sink.all()) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-runDone)
}

func TestStats_ReflectsEmittedEvents(t *testing.T) {
	p := &scriptedProvider{positions: []domain.Position{pos("p1", 3510)}}
	eng, _ := newTestEngine(p, clockwork.NewRealClock(), Config{})

	require.NoError(t, eng.pollOnce(context.Background(), domain.ChannelPositions))

	stats := eng.Stats()
	assert.Equal(t, uint64(1), stats.CurrentSeq)
	assert.Equal(t, 1, stats.BufferedEvents)
	assert.Contains(t, stats.LastPollTimes, domain.ChannelPositions)
}
