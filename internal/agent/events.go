// Package agent implements the step-wise control loop driving model and
// tool interaction, sub-agent delegation and progress tracking.
package agent

import (
	"sync"
	"time"

	"raven/internal/logging"
	"raven/internal/tools"
)

// EventKind discriminates loop events.
type EventKind string

const (
	EventText       EventKind = "text"
	EventReasoning  EventKind = "reasoning"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventRunDone    EventKind = "run_done"
)

// Event is one item in the ordered stream a renderer consumes. Fields are
// populated per kind: Text for text/reasoning deltas, the Tool* fields for
// tool events, Result for tool results and run completion.
type Event struct {
	Kind       EventKind
	Time       time.Time
	Text       string
	ToolCallID string
	ToolName   string
	Args       map[string]any
	Result     *tools.ToolResult
	SessionID  string
}

// Bus fans events out to subscribers. Publishing never blocks the loop: a
// subscriber that falls behind loses events rather than stalling the agent.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel function. The channel
// is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 256)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logging.Debug("event dropped, slow subscriber", "kind", ev.Kind)
		}
	}
}
