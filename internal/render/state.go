package render

import "time"

// State is a render pipeline state
type State int

const (
	Idle State = iota
	ServerStarting
	AwaitingReady
	Rendering
	Capturing
	TearingDown
	Succeeded
	Failed
)

var stateNames = map[State]string{
	Idle:           "idle",
	ServerStarting: "server_starting",
	AwaitingReady:  "awaiting_ready",
	Rendering:      "rendering",
	Capturing:      "capturing",
	TearingDown:    "tearing_down",
	Succeeded:      "succeeded",
	Failed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Transition is one recorded state change
type Transition struct {
	From State
	To   State
	At   time.Time
}
