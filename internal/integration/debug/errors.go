package debug

import "errors"

var (
	// ErrNoPersistPath is returned by Registry.Save and Registry.Load when no
	// file was configured.
	ErrNoPersistPath = errors.New("breakpoint persist path not set")

	// ErrUnsupportedVersion is returned when a breakpoint file was written by
	// a newer format.
	ErrUnsupportedVersion = errors.New("unsupported breakpoint file version")
)
