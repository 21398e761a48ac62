// Package history journals launcher lifecycle events to external stores.
package history

import (
	"context"
	"fmt"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart       EventType = "start"
	EventStartFailed EventType = "start_failed"
	EventReady       EventType = "ready"
	EventUnready     EventType = "unready"
	EventStop        EventType = "stop"
)

// Record is the server snapshot attached to an event.
type Record struct {
	Name    string `json:"name"`
	PID     int    `json:"pid"`
	WorkDir string `json:"work_dir"`
	State   string `json:"state"`
	Detail  string `json:"detail,omitempty"` // shutdown reason, terminate strategy or probe timing
	Error   string `json:"error,omitempty"`
}

// Key identifies one server run.
func (r Record) Key() string { return fmt.Sprintf("%s:%d", r.Name, r.PID) }

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
