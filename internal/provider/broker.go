package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/errors"
)

const brokerRequestTimeout = 10 * time.Second

// Broker fetches snapshots from the broker REST API. Every failure maps to a
// generic upstream error; the client never retries on its own.
type Broker struct {
	baseURL     string
	clientID    string
	accessToken string
	httpClient  *http.Client
}

// NewBroker creates a broker provider for the given API endpoint.
func NewBroker(baseURL, clientID, accessToken string) *Broker {
	return &Broker{
		baseURL:     baseURL,
		clientID:    clientID,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: brokerRequestTimeout},
	}
}

func (b *Broker) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	return getJSON[[]domain.Position](ctx, b, "/positions", nil)
}

func (b *Broker) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	return getJSON[[]domain.Order](ctx, b, "/orders", nil)
}

func (b *Broker) FetchHoldings(ctx context.Context) ([]domain.Holding, error) {
	return getJSON[[]domain.Holding](ctx, b, "/holdings", nil)
}

func (b *Broker) FetchTrades(ctx context.Context) ([]domain.Trade, error) {
	return getJSON[[]domain.Trade](ctx, b, "/trades", nil)
}

func (b *Broker) FetchPnL(ctx context.Context) (domain.PnL, error) {
	return getJSON[domain.PnL](ctx, b, "/pnl", nil)
}

func (b *Broker) SquareOff(ctx context.Context, positionID string) (domain.SquareOffResult, error) {
	path := "/positions/" + url.PathEscape(positionID) + "/squareoff"
	return postJSON[domain.SquareOffResult](ctx, b, path)
}

func getJSON[T any](ctx context.Context, b *Broker, path string, query url.Values) (T, error) {
	return roundTrip[T](ctx, b, http.MethodGet, path, query)
}

func postJSON[T any](ctx context.Context, b *Broker, path string) (T, error) {
	return roundTrip[T](ctx, b, http.MethodPost, path, nil)
}

func roundTrip[T any](ctx context.Context, b *Broker, method, path string, query url.Values) (T, error) {
	var zero T

	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return zero, errors.UpstreamError("building broker request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Id", b.clientID)
	req.Header.Set("Access-Token", b.accessToken)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return zero, errors.Wrap(errors.CodeUpstreamTimeout, "broker request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return zero, errors.New(errors.CodeUpstreamUnauthorized, "broker rejected credentials")
	case resp.StatusCode == http.StatusTooManyRequests:
		return zero, errors.New(errors.CodeUpstreamRateLimit, "broker rate limit exceeded")
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return zero, errors.UpstreamError(fmt.Sprintf("broker returned %d: %s", resp.StatusCode, body), nil)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, errors.UpstreamError("decoding broker response", err)
	}
	return out, nil
}
