package live

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/logging"
	"github.com/portpulse/portpulse/internal/metrics"
)

const commandTimeout = 5 * time.Second

// History is the resume window the hub replays from. The engine's event
// buffer implements it.
type History interface {
	Since(lastSeq uint64) ([]domain.Event, bool)
	MaxSeq() uint64
}

// Options configures per-connection behaviour.
type Options struct {
	SendBuffer   int
	PingInterval time.Duration
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	MessageRate  float64
	MessageBurst int
	StopTimeout  time.Duration
}

// hubCmd is the command interface for the hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	client *Client
}

type unregisterCmd struct {
	baseHubCmd
	client *Client
}

type inboundCmd struct {
	baseHubCmd
	client *Client
	data   []byte
}

type rateLimitedCmd struct {
	baseHubCmd
	client *Client
}

type deliverCmd struct {
	baseHubCmd
	event domain.Event
}

type statsCmd struct {
	baseHubCmd
	reply chan Stats
}

type stopCmd struct {
	baseHubCmd
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Connected        int    `json:"connected"`
	TotalConnections uint64 `json:"totalConnections"`
	PeakConnections  int    `json:"peakConnections"`
}

// Hub is the connection registry and broadcaster. A single goroutine owns
// all registry state and processes commands; there are no locks.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[*Client]struct{}
	history History
	clock   clockwork.Clock
	opts    Options
	done    chan struct{}

	count atomic.Int64 // read without the actor for backpressure decisions
	total uint64
	peak  int
}

// NewHub creates and starts the hub actor.
func NewHub(history History, clock clockwork.Clock, opts Options) *Hub {
	if opts.StopTimeout == 0 {
		opts.StopTimeout = 10 * time.Second
	}
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[*Client]struct{}),
		history: history,
		clock:   clock,
		opts:    opts,
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

// Register creates a client for an upgraded connection and adds it to the
// registry. The hello message is emitted as the connection enters OPEN.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := newClient(conn, h.clock, h.opts)
	h.cmdCh <- registerCmd{client: c}
	return c
}

// Unregister removes a client; the connection state becomes CLOSED.
func (h *Hub) Unregister(c *Client) {
	h.cmdCh <- unregisterCmd{client: c}
}

// Inbound hands a raw inbound message to the protocol state machine.
func (h *Hub) Inbound(c *Client, data []byte) {
	h.cmdCh <- inboundCmd{client: c, data: data}
}

// RateLimited reports an inbound message dropped by the per-connection rate
// limit. The client gets a typed error reply; the message itself is discarded.
func (h *Hub) RateLimited(c *Client) {
	h.cmdCh <- rateLimitedCmd{client: c}
}

// Deliver fans an event out to every live, subscribed connection.
// Implements engine.Sink.
func (h *Hub) Deliver(ev domain.Event) {
	h.cmdCh <- deliverCmd{event: ev}
}

// ClientCount returns the number of live connections. Implements
// engine.Sink; read lock-free because backpressure only needs an estimate.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Stats returns registry statistics, or zero stats on timeout.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	h.cmdCh <- statsCmd{reply: reply}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case s := <-reply:
		return s
	case <-timer.Chan():
		slog.Warn("Hub stats timed out", "timeout", commandTimeout)
		return Stats{}
	}
}

// Stop closes every connection and shuts the actor down. Blocks until the
// hub goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(h.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", h.opts.StopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c.client)
		case unregisterCmd:
			h.removeClient(c.client, false)
		case inboundCmd:
			h.handleInbound(c.client, c.data)
		case rateLimitedCmd:
			if c.client.state == stateOpen {
				h.sendError(c.client, errCodeRateLimited, "inbound message rate limit exceeded")
			}
		case deliverCmd:
			h.handleDeliver(c.event)
		case statsCmd:
			c.reply <- Stats{
				Connected:        len(h.clients),
				TotalConnections: h.total,
				PeakConnections:  h.peak,
			}
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = struct{}{}
	c.state = stateOpen
	h.total++
	if len(h.clients) > h.peak {
		h.peak = len(h.clients)
	}
	h.count.Store(int64(len(h.clients)))
	metrics.ConnectedClients.Set(float64(len(h.clients)))

	h.enqueue(c, marshalMessage(helloMessage{
		Type:       "hello",
		Protocol:   protocolVersion,
		ServerTime: h.clock.Now().UTC(),
		Channels:   channelNames(),
	}))

	logging.WithClient(c.id.String()).Info("Client connected", "total_clients", len(h.clients))
}

// removeClient tears a connection down. Idempotent: CLOSED is terminal and a
// second removal is a no-op.
func (h *Hub) removeClient(c *Client, graceful bool) {
	if _, exists := h.clients[c]; !exists {
		return
	}
	delete(h.clients, c)
	c.state = stateClosed
	h.count.Store(int64(len(h.clients)))
	metrics.ConnectedClients.Set(float64(len(h.clients)))

	if graceful {
		c.stopGraceful("server shutting down")
	} else {
		c.stop()
	}

	logging.WithClient(c.id.String()).Info("Client disconnected", "remaining_clients", len(h.clients))
}

// handleDeliver fans one event out. A connection whose send queue is full is
// evicted; delivery to the remaining connections continues.
func (h *Hub) handleDeliver(ev domain.Event) {
	var slow []*Client
	for c := range h.clients {
		if c.state != stateOpen {
			continue
		}
		if _, subscribed := c.subs[ev.Channel]; !subscribed {
			continue
		}
		select {
		case c.send <- ev.Payload:
			c.lastSeq = ev.Seq
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		logging.WithClient(c.id.String()).Warn("Disconnecting slow client", "seq", ev.Seq)
		metrics.SlowClientsEvictedTotal.Inc()
		h.removeClient(c, false)
	}
}

// enqueue attempts a non-blocking send to the client's write pump. A full
// queue evicts the client and reports false.
func (h *Hub) enqueue(c *Client, data []byte) bool {
	if data == nil {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		logging.WithClient(c.id.String()).Warn("Disconnecting slow client")
		metrics.SlowClientsEvictedTotal.Inc()
		h.removeClient(c, false)
		return false
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "clients", len(h.clients))
	for c := range h.clients {
		h.removeClient(c, true)
	}
}
