package lifecycle

// Tray menu item identifiers.
const (
	MenuShow = "show"
	MenuQuit = "quit"
)

type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
)

type ButtonState int

const (
	ButtonUp ButtonState = iota
	ButtonDown
)

// EventKind names a host event.
type EventKind string

const (
	EventMenuSelected    EventKind = "menu_selected"
	EventTrayClick       EventKind = "tray_click"
	EventCloseRequested  EventKind = "close_requested"
	EventWindowDestroyed EventKind = "window_destroyed"
	EventQuit            EventKind = "quit"
	EventShow            EventKind = "show"
)

// Event is a window or tray event delivered by the host.
type Event struct {
	Kind        EventKind
	MenuID      string
	Button      MouseButton
	ButtonState ButtonState
	// PreventClose cancels a pending close. Set by hosts for
	// EventCloseRequested; may be nil.
	PreventClose func()
}
