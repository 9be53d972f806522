package relay

import (
	"sync"

	"maunium.net/go/mautrix/id"
)

// EventIndex maps event IDs to the room they were seen in. It is
// maintained incrementally as timeline events arrive, so React and Redact
// resolve their target in constant time and a miss is an explicit result
// instead of a scan over every known timeline.
type EventIndex struct {
	mu    sync.RWMutex
	rooms map[id.EventID]id.RoomID
}

func NewEventIndex() *EventIndex {
	return &EventIndex{rooms: make(map[id.EventID]id.RoomID)}
}

func (idx *EventIndex) Record(eventID id.EventID, roomID id.RoomID) {
	if eventID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rooms[eventID] = roomID
}

func (idx *EventIndex) Lookup(eventID id.EventID) (id.RoomID, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	roomID, ok := idx.rooms[eventID]
	return roomID, ok
}

func (idx *EventIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rooms)
}
