package errs

import "errors"

var (
	ErrBrowserLaunch       = errors.New("browser launch failed")
	ErrNavigationTimeout   = errors.New("navigation timed out")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrExtractionCancelled = errors.New("extraction cancelled")
	ErrSessionNotStarted   = errors.New("session not started")
	ErrTransport           = errors.New("transport error")
	ErrInvalidTransition   = errors.New("invalid session state transition")
	ErrStepBudgetExceeded  = errors.New("step budget exceeded")
)
