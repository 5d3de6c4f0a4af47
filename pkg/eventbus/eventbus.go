// Package eventbus implements the engine's Identifier & Event Bus (§4.1 of
// the engine spec): RFC-4122 v4 identifiers for every emitted event, and a
// named-event multicast with synchronous, registration-ordered dispatch.
//
// The engine is single-threaded cooperative (§5): listeners run on the
// caller's goroutine, in the order they were registered, before DispatchEvent
// returns. This is a deliberate divergence from an async fan-out observer
// (the teacher's pkg/observer.Manager.Notify spawns one goroutine per
// observer); the spec requires ordering guarantees ("begin precedes
// beginedge precedes ...") that only hold if dispatch is synchronous.
package eventbus

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Name identifies one of the engine's documented lifecycle events.
type Name string

// The event set from §4.1.
const (
	Begin          Name = "begin"
	End            Name = "end"
	BeginEdge      Name = "beginedge"
	EndEdge        Name = "endedge"
	BeginConnector Name = "beginconnector"
	EndConnector   Name = "endconnector"
	Set            Name = "set"
	AfterSet       Name = "afterSet"
	Load           Name = "load"
	Warning        Name = "warning"
	Error          Name = "error"
)

// Listener receives a dispatched Event.
type Listener func(Event)

// Event is the payload delivered to listeners. ID and Time are populated by
// the Bus for every dispatch; the remaining fields are event-specific and
// left zero-valued when not applicable to Name.
type Event struct {
	ID   string
	Name Name

	URL      string
	VectorID string
	GraphID  string
	Field    string
	Value    interface{}

	// Duration is populated on end/endedge/endconnector.
	Duration interface{}

	// Connector carries *types.Connector on beginconnector/endconnector;
	// kept as interface{} so eventbus has no dependency on pkg/types.
	Connector interface{}

	// VectorInterface is the effective node/handler receiver, for set/afterSet.
	VectorInterface interface{}
	Return          interface{}
	Err             error

	Message string

	// SetValue, when non-nil, lets a "load" listener satisfy the load
	// without a network fetch (§4.2 step 1).
	SetValue func(artifact interface{})

	// SetContext, when non-nil, lets a "set" listener rebind the handler's
	// `this` context before the handler body runs (§4.1 "set" row).
	SetContext func(ctx interface{})
}

// Bus is the engine's event multicast. The zero value is not usable; use New.
type Bus struct {
	mu        sync.Mutex
	listeners map[Name][]Listener
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{listeners: make(map[Name][]Listener)}
}

// AddEventListener registers fn to be invoked whenever an event named name
// is dispatched. Unknown event names are accepted silently (§4.1).
func (b *Bus) AddEventListener(name Name, fn Listener) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], fn)
}

// RemoveEventListener removes a previously added listener, matched by
// function identity (two Listener values referring to the same underlying
// function, the way == would behave in a host language with function
// reference equality). Removing a listener that was never added, or
// removing from an unknown event name, is a silent no-op (§8 "Listener
// management").
func (b *Bus) RemoveEventListener(name Name, fn Listener) {
	if fn == nil {
		return
	}
	target := reflect.ValueOf(fn).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()
	list, ok := b.listeners[name]
	if !ok {
		return
	}
	for i, l := range list {
		if l == nil {
			continue
		}
		if reflect.ValueOf(l).Pointer() == target {
			b.listeners[name] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// DispatchEvent invokes every listener registered for name, synchronously,
// in registration order, on the caller's goroutine. Each call gets a fresh
// v4 UUID id.
func (b *Bus) DispatchEvent(name Name, ev Event) {
	ev.ID = uuid.NewString()
	ev.Name = name

	b.mu.Lock()
	listeners := make([]Listener, len(b.listeners[name]))
	copy(listeners, b.listeners[name])
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// HasListeners reports whether any listener is registered for name.
func (b *Bus) HasListeners(name Name) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[name]) > 0
}
