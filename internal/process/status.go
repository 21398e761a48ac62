package process

import "time"

// Status is a point-in-time view of a supervised process.
type Status struct {
	PID        int       `json:"pid"`
	WorkDir    string    `json:"work_dir"`
	Liveness   Liveness  `json:"liveness"`
	StartedAt  time.Time `json:"started_at"`
	Attached   bool      `json:"attached"`
	DetectedBy string    `json:"detected_by"`
	ExitErr    string    `json:"exit_error,omitempty"`
}
