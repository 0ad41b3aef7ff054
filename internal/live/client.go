package live

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/metrics"
)

type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed // terminal
)

// Client is one live connection. The hub goroutine owns state, subs and
// lastSeq; the embedded write pump owns the websocket writes.
type Client struct {
	id    uuid.UUID
	conn  *websocket.Conn
	clock clockwork.Clock
	opts  Options

	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	limiter      *rate.Limiter
	lastActivity atomic.Int64 // unix nanos of last inbound activity

	// Hub-goroutine-owned connection state.
	state   connState
	subs    map[domain.Channel]struct{}
	lastSeq uint64
}

func newClient(conn *websocket.Conn, clock clockwork.Clock, opts Options) *Client {
	c := &Client{
		id:      uuid.New(),
		conn:    conn,
		clock:   clock,
		opts:    opts,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.MessageRate), opts.MessageBurst),
		state:   stateConnecting,
		subs:    make(map[domain.Channel]struct{}, len(domain.Channels())),
	}

	// Default subscription: all channels.
	for _, ch := range domain.Channels() {
		c.subs[ch] = struct{}{}
	}

	c.Touch()
	conn.SetPongHandler(func(string) error {
		c.Touch()
		return nil
	})

	c.wg.Add(1)
	go c.run()
	return c
}

// ID returns the connection identifier used in logs and trace IDs.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Touch records inbound activity and extends the read deadline. Called from
// the read pump on every message and from the pong handler.
func (c *Client) Touch() {
	now := c.clock.Now()
	c.lastActivity.Store(now.UnixNano())
	_ = c.conn.SetReadDeadline(now.Add(c.opts.IdleTimeout))
}

// Allow reports whether another inbound message fits the rate limit.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

func (c *Client) idleFor() time.Duration {
	last := time.Unix(0, c.lastActivity.Load())
	return c.clock.Now().Sub(last)
}

// run is the write pump: it serializes all websocket writes, sends protocol
// pings, and disconnects connections without inbound activity.
func (c *Client) run() {
	ticker := c.clock.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.updateWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Unblock the read pump so the hub learns of the death.
				_ = c.conn.Close()
				return
			}
			metrics.MessagesSentTotal.Inc()

		case <-ticker.Chan():
			if c.idleFor() >= c.opts.IdleTimeout {
				metrics.IdleDisconnectsTotal.Inc()
				_ = c.conn.Close()
				return
			}
			c.updateWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) updateWriteDeadline() {
	_ = c.conn.SetWriteDeadline(c.clock.Now().Add(c.opts.WriteTimeout))
}

// stop tears the connection down without a close frame.
func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	c.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing. The write
// pump is stopped first so the close frame is never written concurrently.
func (c *Client) stopGraceful(reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		c.updateWriteDeadline()
		_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.conn.Close()
	})
}
