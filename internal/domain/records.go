package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Keyed is implemented by every diffable record type. Key returns the
// channel-specific identity used to partition deltas into upsert/remove.
type Keyed interface {
	Key() string
}

// Position is one open intraday position. Identity: ID.
type Position struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Qty        int     `json:"qty"`
	AvgPrice   float64 `json:"avg_price"`
	LTP        float64 `json:"ltp"`
	Unrealized float64 `json:"unrealized"`
}

func (p Position) Key() string { return p.ID }

// Order is one broker order. Identity: OrderID.
type Order struct {
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Side      Side        `json:"side"`
	Type      OrderType   `json:"type"`
	Price     float64     `json:"price"`
	Qty       int         `json:"qty"`
	FilledQty int         `json:"filled_qty"`
	Status    OrderStatus `json:"status"`
	PlacedAt  time.Time   `json:"placed_at"`
}

func (o Order) Key() string { return o.OrderID }

// Holding is one demat holding. Identity: ISIN.
type Holding struct {
	ISIN      string  `json:"isin"`
	Symbol    string  `json:"symbol"`
	Qty       int     `json:"qty"`
	AvgPrice  float64 `json:"avg_price"`
	LTP       float64 `json:"ltp"`
	Value     float64 `json:"value"`
	DayChange float64 `json:"day_change"`
}

func (h Holding) Key() string { return h.ISIN }

// Trade is one executed fill. Identity: TradeID.
type Trade struct {
	TradeID string    `json:"trade_id"`
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    Side      `json:"side"`
	Price   float64   `json:"price"`
	Qty     int       `json:"qty"`
	Time    time.Time `json:"time"`
}

func (t Trade) Key() string { return t.TradeID }
