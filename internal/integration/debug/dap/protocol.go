package dap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message types.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// ProtocolMessage is the base for all DAP messages.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`
}

// Request represents a DAP request.
type Request struct {
	ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response represents a DAP response.
type Response struct {
	ProtocolMessage
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Event represents a DAP event.
type Event struct {
	ProtocolMessage
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// ErrorResponseBody is the body of a failed response.
type ErrorResponseBody struct {
	Error *ErrorMessage `json:"error,omitempty"`
}

// ErrorMessage is the structured error an adapter attaches to a failed response.
type ErrorMessage struct {
	ID            int               `json:"id"`
	Format        string            `json:"format"`
	Variables     map[string]string `json:"variables,omitempty"`
	SendTelemetry bool              `json:"sendTelemetry,omitempty"`
	ShowUser      bool              `json:"showUser,omitempty"`
	URL           string            `json:"url,omitempty"`
	URLLabel      string            `json:"urlLabel,omitempty"`
}

// Text expands the {name} placeholders of Format with Variables.
// Unknown placeholders are left untouched.
func (m *ErrorMessage) Text() string {
	if m == nil {
		return ""
	}
	if len(m.Variables) == 0 {
		return m.Format
	}
	pairs := make([]string, 0, len(m.Variables)*2)
	for k, v := range m.Variables {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(m.Format)
}

// ExceptionBreakpointsFilter describes an exception filter offered by the adapter.
type ExceptionBreakpointsFilter struct {
	Filter               string `json:"filter"`
	Label                string `json:"label"`
	Description          string `json:"description,omitempty"`
	Default              bool   `json:"default,omitempty"`
	SupportsCondition    bool   `json:"supportsCondition,omitempty"`
	ConditionDescription string `json:"conditionDescription,omitempty"`
}

// Capabilities describes what features the debug adapter supports.
type Capabilities struct {
	SupportsConfigurationDoneRequest      bool                         `json:"supportsConfigurationDoneRequest,omitempty"`
	SupportsFunctionBreakpoints           bool                         `json:"supportsFunctionBreakpoints,omitempty"`
	SupportsConditionalBreakpoints        bool                         `json:"supportsConditionalBreakpoints,omitempty"`
	SupportsHitConditionalBreakpoints     bool                         `json:"supportsHitConditionalBreakpoints,omitempty"`
	SupportsEvaluateForHovers             bool                         `json:"supportsEvaluateForHovers,omitempty"`
	ExceptionBreakpointFilters            []ExceptionBreakpointsFilter `json:"exceptionBreakpointFilters,omitempty"`
	SupportsStepBack                      bool                         `json:"supportsStepBack,omitempty"`
	SupportsSetVariable                   bool                         `json:"supportsSetVariable,omitempty"`
	SupportsRestartFrame                  bool                         `json:"supportsRestartFrame,omitempty"`
	SupportsGotoTargetsRequest            bool                         `json:"supportsGotoTargetsRequest,omitempty"`
	SupportsStepInTargetsRequest          bool                         `json:"supportsStepInTargetsRequest,omitempty"`
	SupportsCompletionsRequest            bool                         `json:"supportsCompletionsRequest,omitempty"`
	SupportsModulesRequest                bool                         `json:"supportsModulesRequest,omitempty"`
	SupportsRestartRequest                bool                         `json:"supportsRestartRequest,omitempty"`
	SupportsExceptionInfoRequest          bool                         `json:"supportsExceptionInfoRequest,omitempty"`
	SupportTerminateDebuggee              bool                         `json:"supportTerminateDebuggee,omitempty"`
	SupportsDelayedStackTraceLoading      bool                         `json:"supportsDelayedStackTraceLoading,omitempty"`
	SupportsLoadedSourcesRequest          bool                         `json:"supportsLoadedSourcesRequest,omitempty"`
	SupportsLogPoints                     bool                         `json:"supportsLogPoints,omitempty"`
	SupportsTerminateThreadsRequest       bool                         `json:"supportsTerminateThreadsRequest,omitempty"`
	SupportsSetExpression                 bool                         `json:"supportsSetExpression,omitempty"`
	SupportsTerminateRequest              bool                         `json:"supportsTerminateRequest,omitempty"`
	SupportsCancelRequest                 bool                         `json:"supportsCancelRequest,omitempty"`
	SupportsBreakpointLocationsRequest    bool                         `json:"supportsBreakpointLocationsRequest,omitempty"`
	SupportsClipboardContext              bool                         `json:"supportsClipboardContext,omitempty"`
	SupportsSteppingGranularity           bool                         `json:"supportsSteppingGranularity,omitempty"`
	SupportsSingleThreadExecutionRequests bool                         `json:"supportsSingleThreadExecutionRequests,omitempty"`
}

// InitializeRequestArguments are the arguments for the initialize request.
type InitializeRequestArguments struct {
	ClientID                     string `json:"clientID,omitempty"`
	ClientName                   string `json:"clientName,omitempty"`
	AdapterID                    string `json:"adapterID"`
	Locale                       string `json:"locale,omitempty"`
	LinesStartAt1                bool   `json:"linesStartAt1"`
	ColumnsStartAt1              bool   `json:"columnsStartAt1"`
	PathFormat                   string `json:"pathFormat,omitempty"`
	SupportsVariableType         bool   `json:"supportsVariableType,omitempty"`
	SupportsVariablePaging       bool   `json:"supportsVariablePaging,omitempty"`
	SupportsRunInTerminalRequest bool   `json:"supportsRunInTerminalRequest,omitempty"`
	SupportsMemoryReferences     bool   `json:"supportsMemoryReferences,omitempty"`
	SupportsProgressReporting    bool   `json:"supportsProgressReporting,omitempty"`
}

// Source is a source file known to the adapter.
type Source struct {
	Name             string          `json:"name,omitempty"`
	Path             string          `json:"path,omitempty"`
	SourceReference  int             `json:"sourceReference,omitempty"`
	PresentationHint string          `json:"presentationHint,omitempty"`
	Origin           string          `json:"origin,omitempty"`
	AdapterData      json.RawMessage `json:"adapterData,omitempty"`
}

// SourceBreakpoint is a breakpoint as the editor requests it.
// Columns start at 1, so a zero Column means "unset", as does an empty string.
// The type is comparable; two breakpoints are the same breakpoint when == holds.
type SourceBreakpoint struct {
	Line         int    `json:"line"`
	Column       int    `json:"column,omitempty"`
	Condition    string `json:"condition,omitempty"`
	HitCondition string `json:"hitCondition,omitempty"`
	LogMessage   string `json:"logMessage,omitempty"`
}

// Equal reports structural equality.
func (b SourceBreakpoint) Equal(o SourceBreakpoint) bool {
	return b == o
}

// SourceBreakpointStateful is the editor's local view of a breakpoint.
// Enabled is not part of its identity.
type SourceBreakpointStateful struct {
	SourceBreakpoint
	Enabled bool `json:"enabled"`
}

// NewSourceBreakpoint returns an enabled breakpoint at line.
func NewSourceBreakpoint(line int) SourceBreakpointStateful {
	return SourceBreakpointStateful{SourceBreakpoint: SourceBreakpoint{Line: line}, Enabled: true}
}

// Equal reports whether both refer to the same breakpoint, ignoring Enabled.
func (b SourceBreakpointStateful) Equal(o SourceBreakpointStateful) bool {
	return b.SourceBreakpoint == o.SourceBreakpoint
}

// Breakpoint is the adapter's authoritative placement of a breakpoint.
type Breakpoint struct {
	ID        int     `json:"id,omitempty"`
	Verified  bool    `json:"verified"`
	Message   string  `json:"message,omitempty"`
	Source    *Source `json:"source,omitempty"`
	Line      *int    `json:"line,omitempty"`
	Column    *int    `json:"column,omitempty"`
	EndLine   *int    `json:"endLine,omitempty"`
	EndColumn *int    `json:"endColumn,omitempty"`
}

// LineOr returns the echoed line, or fallback when the adapter omitted it.
func (b Breakpoint) LineOr(fallback int) int {
	if b.Line == nil {
		return fallback
	}
	return *b.Line
}

// Thread represents a thread.
type Thread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StackFrame represents a stack frame. Its ID is only valid until the next resume.
type StackFrame struct {
	ID                          int     `json:"id"`
	Name                        string  `json:"name"`
	Source                      *Source `json:"source,omitempty"`
	Line                        int     `json:"line"`
	Column                      int     `json:"column"`
	EndLine                     int     `json:"endLine,omitempty"`
	EndColumn                   int     `json:"endColumn,omitempty"`
	CanRestart                  bool    `json:"canRestart,omitempty"`
	InstructionPointerReference string  `json:"instructionPointerReference,omitempty"`
	PresentationHint            string  `json:"presentationHint,omitempty"`
}

// StackTraceInfo is the result of a stackTrace request.
type StackTraceInfo struct {
	StackFrames []StackFrame `json:"stackFrames"`
	TotalFrames int          `json:"totalFrames,omitempty"`
}

// Scope is a named root of variables for one stack frame.
type Scope struct {
	Name               string  `json:"name"`
	PresentationHint   string  `json:"presentationHint,omitempty"`
	VariablesReference int     `json:"variablesReference"`
	NamedVariables     int     `json:"namedVariables,omitempty"`
	IndexedVariables   int     `json:"indexedVariables,omitempty"`
	Expensive          bool    `json:"expensive"`
	Source             *Source `json:"source,omitempty"`
	Line               int     `json:"line,omitempty"`
}

// Variable represents a variable or field. VariablesReference 0 means a leaf.
type Variable struct {
	Name               string                    `json:"name"`
	Value              string                    `json:"value"`
	Type               string                    `json:"type,omitempty"`
	PresentationHint   *VariablePresentationHint `json:"presentationHint,omitempty"`
	EvaluateName       string                    `json:"evaluateName,omitempty"`
	VariablesReference int                       `json:"variablesReference"`
	NamedVariables     int                       `json:"namedVariables,omitempty"`
	IndexedVariables   int                       `json:"indexedVariables,omitempty"`
	MemoryReference    string                    `json:"memoryReference,omitempty"`
}

// VariablePresentationHint provides rendering hints for variables.
type VariablePresentationHint struct {
	Kind       string   `json:"kind,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Lazy       bool     `json:"lazy,omitempty"`
}

// VariablesFilter restricts which children a variables request returns.
type VariablesFilter int

const (
	FilterBoth VariablesFilter = iota
	FilterIndexed
	FilterNamed
)

func (f VariablesFilter) String() string {
	switch f {
	case FilterIndexed:
		return "indexed"
	case FilterNamed:
		return "named"
	default:
		return ""
	}
}

// EvaluateInfo is the result of an evaluate request.
type EvaluateInfo struct {
	Result             string                    `json:"result"`
	Type               string                    `json:"type,omitempty"`
	PresentationHint   *VariablePresentationHint `json:"presentationHint,omitempty"`
	VariablesReference int                       `json:"variablesReference"`
	NamedVariables     int                       `json:"namedVariables,omitempty"`
	IndexedVariables   int                       `json:"indexedVariables,omitempty"`
	MemoryReference    string                    `json:"memoryReference,omitempty"`
}

// AsVariable presents an evaluation result as a variable named after its expression.
func (e EvaluateInfo) AsVariable(expression string) Variable {
	return Variable{
		Name:               expression,
		Value:              e.Result,
		Type:               e.Type,
		PresentationHint:   e.PresentationHint,
		EvaluateName:       expression,
		VariablesReference: e.VariablesReference,
		NamedVariables:     e.NamedVariables,
		IndexedVariables:   e.IndexedVariables,
		MemoryReference:    e.MemoryReference,
	}
}

// GotoTarget is a location execution can jump to.
type GotoTarget struct {
	ID                          int    `json:"id"`
	Label                       string `json:"label"`
	Line                        int    `json:"line"`
	Column                      int    `json:"column,omitempty"`
	EndLine                     int    `json:"endLine,omitempty"`
	EndColumn                   int    `json:"endColumn,omitempty"`
	InstructionPointerReference string `json:"instructionPointerReference,omitempty"`
}

// Module represents a module (library/dll).
type Module struct {
	ID             json.RawMessage `json:"id"` // number or string
	Name           string          `json:"name"`
	Path           string          `json:"path,omitempty"`
	IsOptimized    bool            `json:"isOptimized,omitempty"`
	IsUserCode     bool            `json:"isUserCode,omitempty"`
	Version        string          `json:"version,omitempty"`
	SymbolStatus   string          `json:"symbolStatus,omitempty"`
	SymbolFilePath string          `json:"symbolFilePath,omitempty"`
}

// Key returns the module id as a string regardless of its JSON type.
func (m Module) Key() string {
	var s string
	if err := json.Unmarshal(m.ID, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(m.ID))
}

// Event bodies

// StoppedEvent is the body of the stopped event.
type StoppedEvent struct {
	Reason            string `json:"reason"`
	Description       string `json:"description,omitempty"`
	ThreadID          *int   `json:"threadId,omitempty"`
	PreserveFocusHint bool   `json:"preserveFocusHint,omitempty"`
	Text              string `json:"text,omitempty"`
	AllThreadsStopped bool   `json:"allThreadsStopped,omitempty"`
	HitBreakpointIDs  []int  `json:"hitBreakpointIds,omitempty"`
}

// ContinuedEvent is the body of the continued event.
type ContinuedEvent struct {
	ThreadID            int  `json:"threadId"`
	AllThreadsContinued bool `json:"allThreadsContinued,omitempty"`
}

// ExitedEvent is the body of the exited event.
type ExitedEvent struct {
	ExitCode int `json:"exitCode"`
}

// ThreadEvent is the body of the thread event.
type ThreadEvent struct {
	Reason   string `json:"reason"` // "started", "exited"
	ThreadID int    `json:"threadId"`
}

// Output is the body of the output event.
type Output struct {
	Category string          `json:"category,omitempty"` // "console", "important", "stdout", "stderr", "telemetry"
	Output   string          `json:"output"`
	Group    string          `json:"group,omitempty"`
	Source   *Source         `json:"source,omitempty"`
	Line     int             `json:"line,omitempty"`
	Column   int             `json:"column,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// BreakpointEvent is the body of the breakpoint event.
type BreakpointEvent struct {
	Reason     string     `json:"reason"` // "changed", "new", "removed"
	Breakpoint Breakpoint `json:"breakpoint"`
}

// ModuleEvent is the body of the module event.
type ModuleEvent struct {
	Reason string `json:"reason"` // "new", "changed", "removed"
	Module Module `json:"module"`
}

// ProcessEvent is the body of the process event.
type ProcessEvent struct {
	Name            string `json:"name"`
	SystemProcessID int    `json:"systemProcessId,omitempty"`
	IsLocalProcess  bool   `json:"isLocalProcess,omitempty"`
	StartMethod     string `json:"startMethod,omitempty"` // "launch", "attach", "attachForSuspendedLaunch"
	PointerSize     int    `json:"pointerSize,omitempty"`
}

// CapabilitiesEvent is the body of the capabilities event.
type CapabilitiesEvent struct {
	Capabilities Capabilities `json:"capabilities"`
}

// Request arguments and response bodies

// SetBreakpointsArguments are the arguments for setBreakpoints.
type SetBreakpointsArguments struct {
	Source         Source             `json:"source"`
	Breakpoints    []SourceBreakpoint `json:"breakpoints"`
	SourceModified bool               `json:"sourceModified"`
}

// SetBreakpointsResponseBody is the response body for setBreakpoints.
type SetBreakpointsResponseBody struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

// ContinueArguments are the arguments for continue.
type ContinueArguments struct {
	ThreadID     int  `json:"threadId"`
	SingleThread bool `json:"singleThread,omitempty"`
}

// ContinueResponseBody is the response body for continue.
type ContinueResponseBody struct {
	AllThreadsContinued *bool `json:"allThreadsContinued,omitempty"`
}

// StepArguments are the arguments for next, stepIn and stepOut.
type StepArguments struct {
	ThreadID     int    `json:"threadId"`
	SingleThread bool   `json:"singleThread,omitempty"`
	Granularity  string `json:"granularity,omitempty"`
}

// PauseArguments are the arguments for pause.
type PauseArguments struct {
	ThreadID int `json:"threadId"`
}

// GotoArguments are the arguments for goto.
type GotoArguments struct {
	ThreadID int `json:"threadId"`
	TargetID int `json:"targetId"`
}

// GotoTargetsArguments are the arguments for gotoTargets.
type GotoTargetsArguments struct {
	Source Source `json:"source"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// GotoTargetsResponseBody is the response body for gotoTargets.
type GotoTargetsResponseBody struct {
	Targets []GotoTarget `json:"targets"`
}

// StackTraceArguments are the arguments for stackTrace.
type StackTraceArguments struct {
	ThreadID   int `json:"threadId"`
	StartFrame int `json:"startFrame,omitempty"`
	Levels     int `json:"levels,omitempty"`
}

// ScopesArguments are the arguments for scopes.
type ScopesArguments struct {
	FrameID int `json:"frameId"`
}

// ScopesResponseBody is the response body for scopes.
type ScopesResponseBody struct {
	Scopes []Scope `json:"scopes"`
}

// VariablesArguments are the arguments for variables.
type VariablesArguments struct {
	VariablesReference int    `json:"variablesReference"`
	Filter             string `json:"filter,omitempty"`
	Start              int    `json:"start,omitempty"`
	Count              int    `json:"count,omitempty"`
}

// VariablesResponseBody is the response body for variables.
type VariablesResponseBody struct {
	Variables []Variable `json:"variables"`
}

// EvaluateArguments are the arguments for evaluate.
type EvaluateArguments struct {
	Expression string `json:"expression"`
	FrameID    *int   `json:"frameId,omitempty"`
	Context    string `json:"context,omitempty"` // "watch", "repl", "hover", "clipboard"
}

// ThreadsResponseBody is the response body for threads.
type ThreadsResponseBody struct {
	Threads []Thread `json:"threads"`
}

// ModulesArguments are the arguments for modules.
type ModulesArguments struct {
	StartModule int `json:"startModule,omitempty"`
	ModuleCount int `json:"moduleCount,omitempty"`
}

// ModulesResponseBody is the response body for modules.
type ModulesResponseBody struct {
	Modules      []Module `json:"modules"`
	TotalModules int      `json:"totalModules,omitempty"`
}

// DisconnectArguments are the arguments for disconnect.
type DisconnectArguments struct {
	Restart           bool `json:"restart,omitempty"`
	TerminateDebuggee bool `json:"terminateDebuggee"`
}

// TerminateArguments are the arguments for terminate.
type TerminateArguments struct {
	Restart bool `json:"restart,omitempty"`
}

func (s Source) String() string {
	if s.Path != "" {
		return s.Path
	}
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("<source %d>", s.SourceReference)
}
