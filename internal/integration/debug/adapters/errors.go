package adapters

import "errors"

var (
	// ErrUnknownTool is returned when a tool name is not in the catalog.
	ErrUnknownTool = errors.New("unknown debug adapter tool")

	// ErrUnknownConfiguration is returned when a tool has no configuration
	// of the requested name.
	ErrUnknownConfiguration = errors.New("unknown debug configuration")

	// ErrBinaryNotFound is returned when neither the command nor its
	// fallback can be located.
	ErrBinaryNotFound = errors.New("debug adapter binary not found")

	// ErrAdapterExited is returned when a socket adapter exits before it
	// can be reached.
	ErrAdapterExited = errors.New("debug adapter exited")

	// ErrUnsupportedFormat is returned for catalog files of unknown type.
	ErrUnsupportedFormat = errors.New("unsupported catalog format")

	// ErrInvalidLaunchFile is returned for a workspace launch file that is
	// not a JSON object with a configurations list.
	ErrInvalidLaunchFile = errors.New("invalid launch file")
)
