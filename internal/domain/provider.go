package domain

import "context"

// SquareOffResult reports the exit order created by a square-off request.
type SquareOffResult struct {
	OrderID string      `json:"order_id"`
	Symbol  string      `json:"symbol"`
	Qty     int         `json:"qty"`
	Status  OrderStatus `json:"status"`
}

// Provider returns the current full snapshot of each channel. Implementations
// must not retry internally: retry, backoff and failure isolation belong to
// the polling scheduler and the circuit breaker.
//
// Snapshots are owned by the caller and must not be mutated by the provider
// after return.
type Provider interface {
	FetchPositions(ctx context.Context) ([]Position, error)
	FetchOrders(ctx context.Context) ([]Order, error)
	FetchHoldings(ctx context.Context) ([]Holding, error)
	FetchTrades(ctx context.Context) ([]Trade, error)
	FetchPnL(ctx context.Context) (PnL, error)

	// SquareOff closes an open position at market. Just another provider
	// call as far as the engine is concerned.
	SquareOff(ctx context.Context, positionID string) (SquareOffResult, error)
}
