package lifecycle

import "github.com/kelindar/event"

// TypeStateChanged identifies StateChanged on an event dispatcher.
const TypeStateChanged uint32 = iota + 1

// StateChanged is published after every state transition.
type StateChanged struct {
	Name string
	From State
	To   State
}

func (StateChanged) Type() uint32 { return TypeStateChanged }

// WithDispatcher publishes state changes on d instead of a private
// dispatcher, so other components can share it.
func WithDispatcher(d *event.Dispatcher) Option {
	return func(c *Coordinator) {
		if d != nil {
			c.events = d
		}
	}
}

// OnStateChange calls fn for every later transition. Calls for one
// subscriber are made in order on a separate goroutine. The returned func
// unsubscribes.
func (c *Coordinator) OnStateChange(fn func(StateChanged)) func() {
	return event.Subscribe(c.events, fn)
}

func (c *Coordinator) publish(from, to State) {
	if from == to {
		return
	}
	event.Publish(c.events, StateChanged{Name: c.name, From: from, To: to})
}
