package client

import "time"

// ServerStatus describes the supervised server process.
type ServerStatus struct {
	PID        int       `json:"pid"`
	WorkDir    string    `json:"work_dir"`
	Liveness   string    `json:"liveness"`
	StartedAt  time.Time `json:"started_at"`
	Attached   bool      `json:"attached"`
	DetectedBy string    `json:"detected_by"`
	ExitErr    string    `json:"exit_error,omitempty"`
}

// Status is the launcher state reported by GET /status.
type Status struct {
	State    string        `json:"state"`
	Strategy string        `json:"strategy"`
	Server   *ServerStatus `json:"server,omitempty"`
}

// Ack is the reply to show, hide and quit.
type Ack struct {
	OK    bool   `json:"ok"`
	State string `json:"state"`
}

type errorResp struct {
	Error string `json:"error"`
}
