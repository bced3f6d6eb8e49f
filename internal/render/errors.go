package render

import (
	"errors"
	"fmt"
)

// Failure classes. A failed run returns an *Error that matches exactly one of
// these with errors.Is.
var (
	ErrServerStartupTimeout = errors.New("render server startup failed")
	ErrRenderTimeout        = errors.New("page render timed out")
	ErrCapture              = errors.New("screenshot capture failed")
	ErrUpstream             = errors.New("render pipeline failed")
)

// ErrPortInUse is wrapped by startup failures caused by an occupied port
var ErrPortInUse = errors.New("port already in use")

// FailureKind classifies a pipeline failure
type FailureKind int

const (
	KindStartup FailureKind = iota
	KindRender
	KindCapture
	KindUpstream
)

func (k FailureKind) sentinel() error {
	switch k {
	case KindStartup:
		return ErrServerStartupTimeout
	case KindRender:
		return ErrRenderTimeout
	case KindCapture:
		return ErrCapture
	default:
		return ErrUpstream
	}
}

func (k FailureKind) String() string {
	return k.sentinel().Error()
}

// Error is a failed pipeline run
type Error struct {
	Kind  FailureKind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failure class
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// TeardownWarning is a cleanup problem. It is reported but never changes the
// outcome of a run.
type TeardownWarning struct {
	Resource string
	Err      error
}

func (w TeardownWarning) Error() string {
	return fmt.Sprintf("teardown %s: %v", w.Resource, w.Err)
}

func (w TeardownWarning) Unwrap() error {
	return w.Err
}
