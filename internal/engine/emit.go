package engine

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/metrics"
)

// changesPayload is the wire "changes" object of a delta event.
type changesPayload[T record] struct {
	Upsert       []T                        `json:"upsert"`
	Remove       []string                   `json:"remove"`
	StatusCounts map[domain.OrderStatus]int `json:"statusCounts,omitempty"`
}

type deltaMessage[T record] struct {
	Type       string            `json:"type"`
	Seq        uint64            `json:"seq"`
	ServerTime time.Time         `json:"serverTime"`
	Changes    changesPayload[T] `json:"changes"`
}

type summaryCounts struct {
	Records int `json:"records"`
	Upserts int `json:"upserts"`
	Removes int `json:"removes"`
}

type summaryMessage struct {
	Type         string        `json:"type"`
	Seq          uint64        `json:"seq"`
	ServerTime   time.Time     `json:"serverTime"`
	SnapshotHash string        `json:"snapshotHash"`
	Counts       summaryCounts `json:"counts"`
}

type pnlMessage struct {
	Type       string             `json:"type"`
	Seq        uint64             `json:"seq"`
	ServerTime time.Time          `json:"serverTime"`
	Totals     domain.PnLTotals   `json:"totals"`
	PerSymbol  []domain.PnLSymbol `json:"perSymbol"`
}

func emitDeltaFor[T record](e *Engine, ch domain.Channel, changes changesPayload[T]) {
	eventType := string(ch) + ".delta"
	seq := e.publish(ch, eventType, func(seq uint64) any {
		return deltaMessage[T]{
			Type:       eventType,
			Seq:        seq,
			ServerTime: e.clock.Now().UTC(),
			Changes:    changes,
		}
	})
	slog.Debug("Emitted delta",
		"channel", string(ch),
		"seq", seq,
		"upserts", len(changes.Upsert),
		"removes", len(changes.Remove),
	)
}

func (e *Engine) emitSummary(ch domain.Channel, snapshotHash string, counts summaryCounts) {
	eventType := string(ch) + ".summary"
	seq := e.publish(ch, eventType, func(seq uint64) any {
		return summaryMessage{
			Type:         eventType,
			Seq:          seq,
			ServerTime:   e.clock.Now().UTC(),
			SnapshotHash: snapshotHash,
			Counts:       counts,
		}
	})
	slog.Debug("Emitted summary", "channel", string(ch), "seq", seq, "records", counts.Records)
}

func (e *Engine) emitPnL(snap domain.PnL) {
	perSymbol := snap.PerSymbol
	if perSymbol == nil {
		perSymbol = []domain.PnLSymbol{}
	}
	seq := e.publish(domain.ChannelPnL, "pnl.update", func(seq uint64) any {
		return pnlMessage{
			Type:       "pnl.update",
			Seq:        seq,
			ServerTime: e.clock.Now().UTC(),
			Totals:     snap.Totals,
			PerSymbol:  perSymbol,
		}
	})
	slog.Debug("Emitted pnl update", "seq", seq, "unrealized", snap.Totals.Unrealized)
}

// publish claims the next sequence number, marshals the wire message built
// around it, records the event in the buffer and hands it to the sink, all
// inside one critical section shared by every channel loop. Claim, append and
// delivery therefore happen in the same order for every event: the buffer
// stays a contiguous, sequence-ordered suffix and no connection can observe
// seq n+1 before seq n. Buffer append happens before delivery so a resuming
// client can never miss an event that a live client has seen.
func (e *Engine) publish(ch domain.Channel, eventType string, build func(seq uint64) any) uint64 {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	seq := e.seq.Add(1)
	payload, err := json.Marshal(build(seq))
	if err != nil {
		slog.Error("Failed to marshal event", "channel", string(ch), "seq", seq, "error", err)
		return seq
	}

	ev := domain.Event{
		Seq:     seq,
		Channel: ch,
		Type:    eventType,
		Payload: payload,
	}
	e.buffer.Append(ev)
	e.sink.Deliver(ev)
	metrics.EventsEmittedTotal.WithLabelValues(string(ch), eventType).Inc()
	return seq
}
