package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/metrics"
)

const protocolVersion = "v1"

// Protocol error codes. Protocol errors are answered per connection and never
// close it.
const (
	errCodeMalformed      = "malformed_message"
	errCodeUnknownType    = "unknown_type"
	errCodeUnknownChannel = "unknown_channel"
	errCodeInvalidResume  = "invalid_resume"
	errCodeRateLimited    = "rate_limited"
)

type inboundMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	LastSeq  *uint64  `json:"lastSeq"`
}

type helloMessage struct {
	Type       string    `json:"type"`
	Protocol   string    `json:"protocol"`
	ServerTime time.Time `json:"serverTime"`
	Channels   []string  `json:"channels"`
}

type pongMessage struct {
	Type       string    `json:"type"`
	ServerTime time.Time `json:"serverTime"`
}

type subscriptionAck struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

type resumeAckMessage struct {
	Type         string `json:"type"`
	LastSeq      uint64 `json:"lastSeq"`
	MissedEvents int    `json:"missedEvents"`
}

type resumeNackMessage struct {
	Type    string `json:"type"`
	LastSeq uint64 `json:"lastSeq"`
	Message string `json:"message"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId"`
}

func marshalMessage(msg any) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal protocol message", "error", err)
		return nil
	}
	return data
}

// handleInbound runs the per-connection message state machine. Only OPEN
// connections are served; CLOSED is terminal.
func (h *Hub) handleInbound(c *Client, data []byte) {
	if c.state != stateOpen {
		return
	}
	c.Touch()

	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(c, errCodeMalformed, "payload is not a valid JSON object")
		return
	}

	switch msg.Type {
	case "ping":
		h.enqueue(c, marshalMessage(pongMessage{
			Type:       "pong",
			ServerTime: h.clock.Now().UTC(),
		}))

	case "subscribe":
		h.handleSubscribe(c, msg.Channels, true)

	case "unsubscribe":
		h.handleSubscribe(c, msg.Channels, false)

	case "resume":
		h.handleResume(c, msg)

	default:
		h.sendError(c, errCodeUnknownType, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (h *Hub) handleSubscribe(c *Client, names []string, add bool) {
	if len(names) == 0 {
		h.sendError(c, errCodeMalformed, "channels is required")
		return
	}

	channels, rejected := domain.ParseChannels(names)
	if rejected > 0 {
		h.sendError(c, errCodeUnknownChannel, "one or more channel names are unknown")
	}
	if len(channels) == 0 {
		return
	}

	ackType := "subscribe.ack"
	for _, ch := range channels {
		if add {
			c.subs[ch] = struct{}{}
		} else {
			delete(c.subs, ch)
		}
	}
	if !add {
		ackType = "unsubscribe.ack"
	}

	h.enqueue(c, marshalMessage(subscriptionAck{
		Type:     ackType,
		Channels: subscribedChannels(c),
	}))
	slog.Debug("Subscription changed", "client_id", c.id.String(), "subscribed", subscribedChannels(c))
}

// handleResume replays buffered events past lastSeq, in sequence order,
// filtered to the requested (or subscribed) channels. If the buffer no
// longer retains that range the client is told to discard local state and
// refetch full snapshots; a partial replay is never sent.
func (h *Hub) handleResume(c *Client, msg inboundMessage) {
	if msg.LastSeq == nil {
		h.sendError(c, errCodeInvalidResume, "lastSeq is required")
		return
	}
	lastSeq := *msg.LastSeq

	wanted := c.subs
	if len(msg.Channels) > 0 {
		channels, rejected := domain.ParseChannels(msg.Channels)
		if rejected > 0 || len(channels) == 0 {
			h.sendError(c, errCodeUnknownChannel, "one or more channel names are unknown")
			return
		}
		wanted = make(map[domain.Channel]struct{}, len(channels))
		for _, ch := range channels {
			wanted[ch] = struct{}{}
		}
	}

	events, ok := h.history.Since(lastSeq)
	if !ok {
		metrics.ResumeRequestsTotal.WithLabelValues("nack").Inc()
		h.enqueue(c, marshalMessage(resumeNackMessage{
			Type:    "resume.nack",
			LastSeq: lastSeq,
			Message: "events since lastSeq are no longer retained; discard local state and fetch fresh snapshots",
		}))
		slog.Info("Resume rejected", "client_id", c.id.String(), "last_seq", lastSeq)
		return
	}

	replay := events[:0:0]
	for _, ev := range events {
		if _, subscribed := wanted[ev.Channel]; subscribed {
			replay = append(replay, ev)
		}
	}

	metrics.ResumeRequestsTotal.WithLabelValues("ack").Inc()
	h.enqueue(c, marshalMessage(resumeAckMessage{
		Type:         "resume.ack",
		LastSeq:      lastSeq,
		MissedEvents: len(replay),
	}))

	c.lastSeq = lastSeq
	for _, ev := range replay {
		if !h.enqueue(c, ev.Payload) {
			return // evicted as slow mid-replay
		}
		c.lastSeq = ev.Seq
	}

	slog.Info("Resume served", "client_id", c.id.String(), "last_seq", lastSeq, "replayed", len(replay))
}

func (h *Hub) sendError(c *Client, code, message string) {
	metrics.ProtocolErrorsTotal.WithLabelValues(code).Inc()
	h.enqueue(c, marshalMessage(errorMessage{
		Type:    "error",
		Code:    code,
		Message: message,
		TraceID: uuid.NewString(),
	}))
}

func subscribedChannels(c *Client) []string {
	out := make([]string, 0, len(c.subs))
	for _, ch := range domain.Channels() {
		if _, ok := c.subs[ch]; ok {
			out = append(out, string(ch))
		}
	}
	return out
}

func channelNames() []string {
	all := domain.Channels()
	out := make([]string, len(all))
	for i, ch := range all {
		out[i] = string(ch)
	}
	return out
}
