package lifecycle

// State is a lifecycle phase of the launcher.
type State int

const (
	NotStarted State = iota
	Starting
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == Stopped }
