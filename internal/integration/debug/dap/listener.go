package dap

// Listener receives everything a Client learns from its adapter.
//
// Callbacks run on the client's dispatch goroutine, one at a time and in the
// order messages arrived. They may issue further client requests but must
// not block waiting for their results.
//
// Implementations handle every method; there is no no-op base type.
type Listener interface {
	// StateChanged reports a client state transition.
	StateChanged(sessionID string, state State)

	// Initialized reports the adapter's initialized event. Breakpoints
	// should be sent now, followed by ConfigurationDone.
	Initialized()

	CapabilitiesReceived(caps Capabilities)

	// DebuggeeRunning reports that configurationDone was acknowledged.
	DebuggeeRunning()
	DebuggeeTerminated()
	DebuggeeExited(exitCode int)
	DebuggeeStopped(event StoppedEvent)
	DebuggeeContinued(event ContinuedEvent)

	OutputProduced(output Output)
	DebuggingProcess(process ProcessEvent)

	// ErrorResponse reports a request the adapter answered with success=false.
	// The session state is unchanged.
	ErrorResponse(sessionID, command, summary string, message *ErrorMessage)

	ThreadChanged(event ThreadEvent)
	ModuleChanged(event ModuleEvent)

	// ServerDisconnected reports loss of the transport.
	ServerDisconnected()

	BreakpointChanged(event BreakpointEvent)

	// BreakpointsSet delivers a setBreakpoints response. echoed is in the
	// same order as requested.
	BreakpointsSet(source Source, requested []SourceBreakpoint, echoed []Breakpoint)

	// ExpressionEvaluated delivers an evaluate response issued without a
	// callback. result is nil when the evaluation failed.
	ExpressionEvaluated(expression string, result *EvaluateInfo)

	GotoTargets(source Source, targets []GotoTarget)
	Threads(threads []Thread)

	// StackTrace, Scopes and Variables carry the generation the request was
	// issued under. Compare it with Client.Generation to detect stale data.
	StackTrace(gen Generation, threadID int, trace StackTraceInfo)
	Scopes(gen Generation, frameID int, scopes []Scope)
	Variables(gen Generation, reference int, vars []Variable)

	Modules(modules []Module, total int)
}

// VariablesCallback receives a one-off variables response. vars is nil when
// the request failed. It is called exactly once and not broadcast.
type VariablesCallback func(gen Generation, reference int, vars []Variable)

// EvaluateCallback receives a one-off evaluate response. result is nil when
// the request failed. It is called exactly once and not broadcast.
type EvaluateCallback func(expression string, result *EvaluateInfo)
