package dap

import "errors"

var (
	// ErrClosed is reported when the client or transport was closed deliberately.
	ErrClosed = errors.New("dap client closed")

	// ErrNotRunning is logged when an execution-control request is rejected
	// because the session is not in the running state.
	ErrNotRunning = errors.New("session is not running")

	// ErrAlreadyStarted is logged when Start is called twice.
	ErrAlreadyStarted = errors.New("session already started")
)
