package lifecycle

// Window is the main application window as seen by the coordinator.
type Window interface {
	Show() error
	Unminimize() error
	SetFocus() error
	Hide() error
}

// Host is the GUI environment the launcher runs in.
type Host interface {
	// MainWindow returns the primary window, if it exists.
	MainWindow() (Window, bool)
	// Exit terminates the application with code.
	Exit(code int)
}

type nopHost struct{}

func (nopHost) MainWindow() (Window, bool) { return nil, false }
func (nopHost) Exit(int)                   {}
