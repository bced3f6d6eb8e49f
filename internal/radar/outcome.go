package radar

import (
	"errors"
	"time"

	"github.com/yegors/radar-pi/internal/adsb"
	"github.com/yegors/radar-pi/internal/display"
	"github.com/yegors/radar-pi/internal/render"
)

// Process exit codes
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitUsage         = 2
	ExitServerStartup = 3
	ExitRenderTimeout = 4
	ExitCapture       = 5
)

// Status is the overall result of a run
type Status int

const (
	// StatusSucceeded means the image shows live data, including "no aircraft"
	StatusSucceeded Status = iota
	// StatusDegraded means the feed failed and the image shows the error
	// placeholder
	StatusDegraded
	// StatusFailed means no image was produced
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports one run
type Outcome struct {
	RunID     string
	Status    Status
	Record    display.Record
	Selection adsb.Selection
	// Fetched is the number of usable records the feed returned
	Fetched  int
	FetchErr error
	Render   *render.Result
	// Err is the render failure when Status is StatusFailed
	Err      error
	Duration time.Duration
}

// ExitCode maps the outcome to the process exit code
func (o Outcome) ExitCode() int {
	if o.Status != StatusFailed {
		return ExitOK
	}
	return ExitCodeFor(o.Err)
}

// ExitCodeFor maps a render failure to its exit code
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, render.ErrServerStartupTimeout):
		return ExitServerStartup
	case errors.Is(err, render.ErrRenderTimeout):
		return ExitRenderTimeout
	case errors.Is(err, render.ErrCapture):
		return ExitCapture
	default:
		return ExitFailure
	}
}
