package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a session event.
type EventType string

const (
	// Board events
	EventTokenPlaced  EventType = "TOKEN_PLACED"
	EventTokenRemoved EventType = "TOKEN_REMOVED"
	EventTokenMoved   EventType = "TOKEN_MOVED"
	EventCellToggled  EventType = "CELL_TOGGLED"
	EventBoardResized EventType = "BOARD_RESIZED"

	// Sheet events
	EventItemEquipped   EventType = "ITEM_EQUIPPED"
	EventItemUnequipped EventType = "ITEM_UNEQUIPPED"
	EventItemConsumed   EventType = "ITEM_CONSUMED"
	EventEffectApplied  EventType = "EFFECT_APPLIED"
	EventEffectExpired  EventType = "EFFECT_EXPIRED"

	// Request events
	EventRequestQueued   EventType = "REQUEST_QUEUED"
	EventRequestExecuted EventType = "REQUEST_EXECUTED"
	EventRequestDropped  EventType = "REQUEST_DROPPED"
	EventRequestFailed   EventType = "REQUEST_FAILED"
	EventRequestsOrdered EventType = "REQUESTS_ORDERED"

	// Session events
	EventRoundAdvanced   EventType = "ROUND_ADVANCED"
	EventSessionReset    EventType = "SESSION_RESET"
	EventSessionImported EventType = "SESSION_IMPORTED"
)

// Event is published on the session bus after a change has been applied.
type Event struct {
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Key       string            `json:"key,omitempty"`
	Amount    int               `json:"amount,omitempty"`
	Row       int               `json:"row"`
	Col       int               `json:"col"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners must not publish or subscribe from inside the callback.
func (bus *EventBus) Publish(event Event) {
	if bus == nil {
		return
	}
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, tokenID string) Event {
	return Event{
		Type:      eventType,
		TokenID:   tokenID,
		Timestamp: time.Now(),
	}
}

// NewCellEvent creates an event anchored at a grid coordinate.
func NewCellEvent(eventType EventType, tokenID string, row, col int) Event {
	evt := NewEvent(eventType, tokenID)
	evt.Row = row
	evt.Col = col
	return evt
}

// NewRequestEvent creates an event describing a request.
func NewRequestEvent(eventType EventType, req Request) Event {
	evt := NewEvent(eventType, req.Caster.String())
	evt.RequestID = req.ID
	evt.Key = req.Subtype()
	evt.Metadata = map[string]string{"action": req.Kind.String()}
	if req.TargetCell != nil {
		evt.Row = req.TargetCell.Row
		evt.Col = req.TargetCell.Col
	}
	return evt
}
