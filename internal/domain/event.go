package domain

// Event is one emitted change or summary event. Payload holds the fully
// marshaled wire message (including seq and serverTime) so the buffer and the
// hub never re-serialize; Seq and Channel are duplicated out of the payload
// for filtering and replay.
type Event struct {
	Seq     uint64
	Channel Channel
	Type    string
	Payload []byte
}
