package events

import (
	"context"
	"sync"
	"time"
)

// Type tags a notification delivered over the channel.
type Type string

const (
	TypePatientUpdate       Type = "patient_update"
	TypeQueueUpdate         Type = "queue_update"
	TypeStatsUpdate         Type = "stats_update"
	TypeQuestionnaireUpdate Type = "questionnaire_update"
	TypeNewOrder            Type = "new_order"
)

// KnownTypes lists every notification type the console reacts to.
var KnownTypes = []Type{
	TypePatientUpdate,
	TypeQueueUpdate,
	TypeStatsUpdate,
	TypeQuestionnaireUpdate,
	TypeNewOrder,
}

// Known reports whether t is a recognized notification type.
func Known(t Type) bool {
	for _, k := range KnownTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Notification is a change signal from the HIS. It is a hint to refetch the
// affected snapshot, never a source of truth: it may be dropped, duplicated
// or delivered out of order, and consumers must tolerate all three.
type Notification struct {
	Type    Type           `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

// QueueType returns data.queue_type for queue_update notifications
// ("imaging" or "clinic"); empty when absent.
func (n Notification) QueueType() string {
	if n.Data == nil {
		return ""
	}
	qt, _ := n.Data["queue_type"].(string)
	return qt
}

// Handler consumes one notification. Handlers must be fast; slow work
// belongs behind the refresh scheduler.
type Handler func(ctx context.Context, n Notification)

// State is the channel connection state.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	// StateDegraded means the stream cannot be established and the
	// service is running on periodic polling only. This is an explicit,
	// observable condition, not a silent one.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "connecting"
	}
}

// Source is the consumer-facing side of the event channel.
type Source interface {
	Subscribe(t Type, h Handler)
	OnStateChange(f func(State))
	State() State
}

// dispatcher holds typed subscriptions and state hooks; it is embedded by
// the concrete channel implementation.
type dispatcher struct {
	mu         sync.RWMutex
	handlers   map[Type][]Handler
	stateHooks []func(State)
	state      State
}

func newDispatcher() dispatcher {
	return dispatcher{handlers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for one notification type.
func (d *dispatcher) Subscribe(t Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// OnStateChange registers a hook invoked on every connection state change.
func (d *dispatcher) OnStateChange(f func(State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHooks = append(d.stateHooks, f)
}

// State returns the current connection state.
func (d *dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *dispatcher) setState(s State) {
	d.mu.Lock()
	if d.state == s {
		d.mu.Unlock()
		return
	}
	d.state = s
	hooks := make([]func(State), len(d.stateHooks))
	copy(hooks, d.stateHooks)
	d.mu.Unlock()

	for _, hook := range hooks {
		hook(s)
	}
}

// dispatch fans a notification out to its type's handlers. Unknown types
// are dropped; the channel does not interpret payloads beyond the tag.
func (d *dispatcher) dispatch(ctx context.Context, n Notification) {
	if !Known(n.Type) {
		return
	}
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers[n.Type]))
	copy(handlers, d.handlers[n.Type])
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, n)
	}
}

// nextBackoff doubles the reconnect delay up to the cap.
func nextBackoff(current, max time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}
