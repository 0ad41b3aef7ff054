package domain

import "time"

// Channel is one named category of portfolio data. The set is closed: every
// switch over Channel is expected to be exhaustive.
type Channel string

const (
	ChannelPositions Channel = "positions"
	ChannelOrders    Channel = "orders"
	ChannelHoldings  Channel = "holdings"
	ChannelTrades    Channel = "trades"
	ChannelPnL       Channel = "pnl"
)

// Channels lists every channel in stable order.
func Channels() []Channel {
	return []Channel{ChannelPositions, ChannelOrders, ChannelHoldings, ChannelTrades, ChannelPnL}
}

// ChannelSpec carries the per-channel polling cadence and shape. Cadences are
// intentionally different per channel so poll loops never synchronize.
type ChannelSpec struct {
	PollMin   time.Duration
	PollMax   time.Duration
	Aggregate bool // single aggregate payload instead of a diffable record list
}

// Spec returns the channel's configuration as data.
func (c Channel) Spec() ChannelSpec {
	switch c {
	case ChannelPositions:
		return ChannelSpec{PollMin: 1 * time.Second, PollMax: 2 * time.Second}
	case ChannelOrders:
		return ChannelSpec{PollMin: 2 * time.Second, PollMax: 3 * time.Second}
	case ChannelHoldings:
		return ChannelSpec{PollMin: 20 * time.Second, PollMax: 30 * time.Second}
	case ChannelTrades:
		return ChannelSpec{PollMin: 30 * time.Second, PollMax: 60 * time.Second}
	case ChannelPnL:
		return ChannelSpec{PollMin: 1 * time.Second, PollMax: 2 * time.Second, Aggregate: true}
	}
	return ChannelSpec{}
}

// ParseChannel maps a wire string to a Channel.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelPositions, ChannelOrders, ChannelHoldings, ChannelTrades, ChannelPnL:
		return Channel(s), true
	}
	return "", false
}

// ParseChannels converts a wire channel list, dropping unknown names.
// The second return value reports how many names were rejected.
func ParseChannels(names []string) ([]Channel, int) {
	channels := make([]Channel, 0, len(names))
	rejected := 0
	for _, name := range names {
		ch, ok := ParseChannel(name)
		if !ok {
			rejected++
			continue
		}
		channels = append(channels, ch)
	}
	return channels, rejected
}
