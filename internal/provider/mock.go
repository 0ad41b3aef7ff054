package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/portpulse/portpulse/internal/domain"
)

var mockSymbols = []string{
	"RELIANCE", "TCS", "HDFC", "INFY", "ICICIBANK",
	"HINDUNILVR", "ITC", "SBIN", "BHARTIARTL", "KOTAKBANK",
}

// Mock is a simulated provider. It seeds realistic holdings, positions,
// orders and trades at construction and walks last-traded prices on a fixed
// interval, so the engine sees organic change without a live broker.
//
// All snapshot methods return deep copies: callers own what they fetch.
type Mock struct {
	clock          clockwork.Clock
	updateInterval time.Duration

	mu        sync.Mutex
	ltp       map[string]float64
	holdings  []domain.Holding
	positions []domain.Position
	orders    []domain.Order
	trades    []domain.Trade
	orderSeq  int
	tradeSeq  int
}

// NewMock seeds the simulated portfolio.
func NewMock(clock clockwork.Clock, updateInterval time.Duration) *Mock {
	m := &Mock{
		clock:          clock,
		updateInterval: updateInterval,
		ltp:            make(map[string]float64),
	}
	m.seed()
	return m
}

func (m *Mock) seed() {
	now := m.clock.Now()

	for i, symbol := range mockSymbols {
		qty := 100 + rand.IntN(4900)
		avgPrice := round2(100 + rand.Float64()*1900)
		ltp := round2(avgPrice * (0.8 + rand.Float64()*0.4))
		value := round2(float64(qty) * ltp)

		m.holdings = append(m.holdings, domain.Holding{
			ISIN:      fmt.Sprintf("INE000%06dA", i),
			Symbol:    symbol,
			Qty:       qty,
			AvgPrice:  avgPrice,
			LTP:       ltp,
			Value:     value,
			DayChange: round2(value * (rand.Float64()*0.1 - 0.05)),
		})
		m.ltp[symbol] = ltp
	}

	for i, symbol := range mockSymbols[:5] {
		side := domain.SideLong
		if i%2 == 1 {
			side = domain.SideShort
		}
		pos := domain.Position{
			ID:       fmt.Sprintf("pos_%03d", i+1),
			Symbol:   symbol,
			Side:     side,
			Qty:      100 + rand.IntN(1900),
			AvgPrice: round2(100 + rand.Float64()*1900),
			LTP:      m.ltp[symbol],
		}
		pos.Unrealized = unrealized(pos)
		m.positions = append(m.positions, pos)
	}

	orderTypes := []domain.OrderType{domain.OrderTypeMarket, domain.OrderTypeLimit, domain.OrderTypeStop, domain.OrderTypeStopLimit}
	orderStatuses := []domain.OrderStatus{
		domain.OrderStatusPending, domain.OrderStatusPartiallyFilled, domain.OrderStatusFilled,
		domain.OrderStatusCancelled, domain.OrderStatusRejected,
	}
	for i := 0; i < 10; i++ {
		side := domain.SideLong
		if i%2 == 1 {
			side = domain.SideShort
		}
		qty := 100 + rand.IntN(900)
		m.orders = append(m.orders, domain.Order{
			OrderID:   fmt.Sprintf("ord_%06d", i+1),
			Symbol:    mockSymbols[rand.IntN(len(mockSymbols))],
			Side:      side,
			Type:      orderTypes[rand.IntN(len(orderTypes))],
			Price:     round2(100 + rand.Float64()*1900),
			Qty:       qty,
			FilledQty: rand.IntN(qty + 1),
			Status:    orderStatuses[rand.IntN(len(orderStatuses))],
			PlacedAt:  now.Add(-time.Duration(1+rand.IntN(24)) * time.Hour),
		})
	}
	m.orderSeq = len(m.orders)

	for i := 0; i < 20; i++ {
		side := domain.SideLong
		if i%2 == 1 {
			side = domain.SideShort
		}
		m.trades = append(m.trades, domain.Trade{
			TradeID: fmt.Sprintf("trd_%06d", i+1),
			OrderID: fmt.Sprintf("ord_%06d", (i%10)+1),
			Symbol:  mockSymbols[rand.IntN(len(mockSymbols))],
			Side:    side,
			Price:   round2(100 + rand.Float64()*1900),
			Qty:     100 + rand.IntN(900),
			Time:    now.Add(-time.Duration(1+rand.IntN(7)) * 24 * time.Hour),
		})
	}
	m.tradeSeq = len(m.trades)
}

// Run walks prices until ctx is cancelled.
func (m *Mock) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.walkPrices()
		}
	}
}

// walkPrices applies a random movement of at most 2% to every symbol and
// recomputes the dependent holding and position figures.
func (m *Mock) walkPrices() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for symbol, ltp := range m.ltp {
		changePct := rand.Float64()*0.04 - 0.02
		m.ltp[symbol] = round2(ltp * (1 + changePct))
	}

	for i := range m.holdings {
		h := &m.holdings[i]
		newLTP := m.ltp[h.Symbol]
		oldValue := h.Value
		h.LTP = newLTP
		h.Value = round2(float64(h.Qty) * newLTP)
		h.DayChange = round2(h.Value - oldValue)
	}

	for i := range m.positions {
		p := &m.positions[i]
		p.LTP = m.ltp[p.Symbol]
		p.Unrealized = unrealized(*p)
	}
}

func (m *Mock) FetchPositions(_ context.Context) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

func (m *Mock) FetchOrders(_ context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, len(m.orders))
	copy(out, m.orders)
	return out, nil
}

func (m *Mock) FetchHoldings(_ context.Context) ([]domain.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Holding, len(m.holdings))
	copy(out, m.holdings)
	return out, nil
}

func (m *Mock) FetchTrades(_ context.Context) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Trade, len(m.trades))
	copy(out, m.trades)
	return out, nil
}

// FetchPnL derives the aggregate from the current positions, so totals and
// the per-symbol breakdown always come from the same snapshot.
func (m *Mock) FetchPnL(_ context.Context) (domain.PnL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	pnl := domain.PnL{
		Totals: domain.PnLTotals{
			Currency: "INR",
		},
		PerSymbol:  make([]domain.PnLSymbol, 0, len(m.positions)),
		UpdatedAt:  now,
		TradingDay: now.Format("2006-01-02"),
	}

	for _, p := range m.positions {
		pnl.Totals.Unrealized += p.Unrealized
		pnl.PerSymbol = append(pnl.PerSymbol, domain.PnLSymbol{
			Symbol:     p.Symbol,
			Side:       p.Side,
			Qty:        p.Qty,
			Avg:        p.AvgPrice,
			LTP:        p.LTP,
			Unrealized: p.Unrealized,
		})
	}
	pnl.Totals.Day = pnl.Totals.Realized + pnl.Totals.Unrealized

	return pnl, nil
}

// SquareOff removes the position and records the exit order and fill.
func (m *Mock) SquareOff(_ context.Context, positionID string) (domain.SquareOffResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, p := range m.positions {
		if p.ID == positionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.SquareOffResult{}, fmt.Errorf("%w: %s", domain.ErrPositionNotOpen, positionID)
	}

	pos := m.positions[idx]
	m.positions = append(m.positions[:idx], m.positions[idx+1:]...)

	exitSide := domain.SideShort
	if pos.Side == domain.SideShort {
		exitSide = domain.SideLong
	}

	m.orderSeq++
	order := domain.Order{
		OrderID:   fmt.Sprintf("ord_%06d", m.orderSeq),
		Symbol:    pos.Symbol,
		Side:      exitSide,
		Type:      domain.OrderTypeMarket,
		Price:     pos.LTP,
		Qty:       pos.Qty,
		FilledQty: pos.Qty,
		Status:    domain.OrderStatusFilled,
		PlacedAt:  m.clock.Now(),
	}
	m.orders = append(m.orders, order)

	m.tradeSeq++
	m.trades = append(m.trades, domain.Trade{
		TradeID: fmt.Sprintf("trd_%06d", m.tradeSeq),
		OrderID: order.OrderID,
		Symbol:  pos.Symbol,
		Side:    exitSide,
		Price:   pos.LTP,
		Qty:     pos.Qty,
		Time:    m.clock.Now(),
	})

	slog.Info("Squared off position", "position_id", positionID, "symbol", pos.Symbol, "qty", pos.Qty)

	return domain.SquareOffResult{
		OrderID: order.OrderID,
		Symbol:  pos.Symbol,
		Qty:     pos.Qty,
		Status:  order.Status,
	}, nil
}

func unrealized(p domain.Position) float64 {
	if p.Side == domain.SideLong {
		return round2((p.LTP - p.AvgPrice) * float64(p.Qty))
	}
	return round2((p.AvgPrice - p.LTP) * float64(p.Qty))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
