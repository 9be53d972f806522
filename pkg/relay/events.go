package relay

import (
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ActivityEvent is the normalized payload emitted for every relayed
// timeline message.
type ActivityEvent struct {
	// Actor is the derived actor ID of the sender.
	Actor  string
	Object ActivityObject
	// Target is the room the message was observed in.
	Target string
}

type ActivityObject struct {
	ID      string
	Content string
}

// MessageRecord is the raw message bookkeeping entry kept in the
// adapter's recent-message ring and emitted on the message stream.
type MessageRecord struct {
	EventID   id.EventID
	RoomID    id.RoomID
	Sender    id.UserID
	ActorID   string
	Body      string
	Timestamp time.Time
	Backfill  bool
}

// WarningEvent names a timeline event type the relay observed but does
// not handle. Unhandled types are surfaced, never dropped silently.
type WarningEvent struct {
	Type   event.Type
	RoomID id.RoomID
	Reason string
}

// ErrorEvent surfaces a failed operation on the error stream, including
// failures that were swallowed by best-effort flows.
type ErrorEvent struct {
	Op  string
	Err error
}

// ReadyEvent is emitted exactly once, after sync reaches the prepared
// state and the coordinator room join has succeeded.
type ReadyEvent struct {
	Handle      string
	Coordinator string
}

// Inbound queue entries. The mautrix callbacks translate into these typed
// events, which the dispatch loop consumes one at a time.
type inboundEvent interface {
	inboundEvent()
}

type syncStatusEvent struct {
	Status string
	Err    error
}

type timelineEvent struct {
	Evt      *event.Event
	Backfill bool
}

type membershipEvent struct {
	Evt *event.Event
}

func (syncStatusEvent) inboundEvent() {}
func (timelineEvent) inboundEvent()   {}
func (membershipEvent) inboundEvent() {}
