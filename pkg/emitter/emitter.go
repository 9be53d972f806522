// Package emitter implements the relay's local event stream: a small
// synchronous emitter with named events and ordered handler delivery.
package emitter

import (
	"sync"
)

// Name identifies one of the relay's local event streams.
type Name string

const (
	Log      Name = "log"
	Error    Name = "error"
	Message  Name = "message"
	Warning  Name = "warning"
	Activity Name = "activity"
	Ready    Name = "ready"
	Prepared Name = "prepared"
)

// Handler receives the payload published under a single event name.
type Handler func(payload any)

// Emitter dispatches payloads to handlers registered per event name.
// Handlers for a name run synchronously in registration order, one at a
// time; emitting a name with no handlers is a no-op.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
}

func New() *Emitter {
	return &Emitter{handlers: make(map[Name][]Handler)}
}

// On registers fn for name. Registration order is delivery order.
func (e *Emitter) On(name Name, fn Handler) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = append(e.handlers[name], fn)
}

// Emit delivers payload to every handler registered for name.
func (e *Emitter) Emit(name Name, payload any) {
	e.mu.RLock()
	handlers := e.handlers[name]
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(payload)
	}
}
