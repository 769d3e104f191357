package dap

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu        sync.Mutex
	sendQueue []*Message
	recvChan  chan *Message
	closed    bool
	sendErr   error
	onSend    func(*Message)
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		recvChan: make(chan *Message, 64),
	}
}

func (t *mockTransport) Send(msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return io.ErrClosedPipe
	}
	if t.sendErr != nil {
		return t.sendErr
	}

	t.sendQueue = append(t.sendQueue, msg)
	if t.onSend != nil {
		t.onSend(msg)
	}
	return nil
}

func (t *mockTransport) Receive() (*Message, error) {
	msg, ok := <-t.recvChan
	if !ok {
		return nil, io.EOF
	}
	return msg, nil
}

func (t *mockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.recvChan)
	}
	return nil
}

func (t *mockTransport) queueResponse(resp *Message) {
	t.recvChan <- resp
}

func (t *mockTransport) getSentMessages() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Message{}, t.sendQueue...)
}

type adapterEvent struct {
	name string
	body any
}

// fakeAdapter answers requests sent through a mockTransport.
type fakeAdapter struct {
	mt *mockTransport

	mu       sync.Mutex
	seq      int
	bodies   map[string]any
	failures map[string]string
	hold     map[string]bool
	held     []Request
	after    map[string][]adapterEvent
}

func newFakeAdapter() *fakeAdapter {
	a := &fakeAdapter{
		mt:       newMockTransport(),
		bodies:   make(map[string]any),
		failures: make(map[string]string),
		hold:     make(map[string]bool),
		after: map[string][]adapterEvent{
			"launch": {{name: "initialized"}},
		},
	}
	a.mt.onSend = a.handle
	return a
}

func (a *fakeAdapter) handle(msg *Message) {
	var req Request
	if err := json.Unmarshal(msg.Content, &req); err != nil || req.Type != TypeRequest {
		return
	}

	a.mu.Lock()
	if a.hold[req.Command] {
		a.held = append(a.held, req)
		a.mu.Unlock()
		return
	}
	body := a.bodies[req.Command]
	failure, failed := a.failures[req.Command]
	after := a.after[req.Command]
	a.mu.Unlock()

	if failed {
		a.reply(req, false, failure, map[string]any{
			"error": map[string]any{"id": 7, "format": "{what} went wrong", "variables": map[string]string{"what": req.Command}},
		})
	} else {
		a.reply(req, true, "", body)
	}
	for _, e := range after {
		a.emit(e.name, e.body)
	}
}

func (a *fakeAdapter) nextSeq() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

func (a *fakeAdapter) reply(req Request, success bool, message string, body any) {
	var raw json.RawMessage
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	a.push(Response{
		ProtocolMessage: ProtocolMessage{Seq: a.nextSeq(), Type: TypeResponse},
		RequestSeq:      req.Seq,
		Success:         success,
		Command:         req.Command,
		Message:         message,
		Body:            raw,
	})
}

func (a *fakeAdapter) emit(name string, body any) {
	var raw json.RawMessage
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	a.push(Event{
		ProtocolMessage: ProtocolMessage{Seq: a.nextSeq(), Type: TypeEvent},
		Event:           name,
		Body:            raw,
	})
}

func (a *fakeAdapter) push(v any) {
	msg, err := NewMessage(v)
	if err != nil {
		panic(err)
	}
	a.mt.queueResponse(msg)
}

func (a *fakeAdapter) setBody(command string, body any) {
	a.mu.Lock()
	a.bodies[command] = body
	a.mu.Unlock()
}

func (a *fakeAdapter) setFailure(command, message string) {
	a.mu.Lock()
	a.failures[command] = message
	a.mu.Unlock()
}

func (a *fakeAdapter) setHold(command string) {
	a.mu.Lock()
	a.hold[command] = true
	a.mu.Unlock()
}

// release answers every held request for command with body.
func (a *fakeAdapter) release(command string, body any) {
	a.mu.Lock()
	var keep, answer []Request
	for _, req := range a.held {
		if req.Command == command {
			answer = append(answer, req)
		} else {
			keep = append(keep, req)
		}
	}
	a.held = keep
	a.mu.Unlock()

	for _, req := range answer {
		a.reply(req, true, "", body)
	}
}

func (a *fakeAdapter) sent(command string) []Request {
	var out []Request
	for _, msg := range a.mt.getSentMessages() {
		var req Request
		if err := json.Unmarshal(msg.Content, &req); err == nil && req.Type == TypeRequest && req.Command == command {
			out = append(out, req)
		}
	}
	return out
}

func (a *fakeAdapter) commands() []string {
	var out []string
	for _, msg := range a.mt.getSentMessages() {
		var req Request
		if err := json.Unmarshal(msg.Content, &req); err == nil && req.Type == TypeRequest {
			out = append(out, req.Command)
		}
	}
	return out
}

type recordedError struct {
	command string
	summary string
	detail  *ErrorMessage
}

type recordedStack struct {
	gen      Generation
	threadID int
	trace    StackTraceInfo
}

type recordedVariables struct {
	gen       Generation
	reference int
	vars      []Variable
}

type recordedBreakpoints struct {
	source    Source
	requested []SourceBreakpoint
	echoed    []Breakpoint
}

type recordedEval struct {
	expression string
	result     *EvaluateInfo
}

// recorder is a Listener that records every call.
type recorder struct {
	events chan string

	mu          sync.Mutex
	states      []State
	caps        []Capabilities
	stopped     []StoppedEvent
	continued   []ContinuedEvent
	exitCodes   []int
	outputs     []Output
	errors      []recordedError
	threads     [][]Thread
	stacks      []recordedStack
	scopes      [][]Scope
	variables   []recordedVariables
	bpSets      []recordedBreakpoints
	evaluated   []recordedEval
	gotoTargets [][]GotoTarget
	modules     []ModuleEvent
	moduleLists [][]Module
	processes   []ProcessEvent
	threadEvts  []ThreadEvent
	bpEvents    []BreakpointEvent
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 1024)}
}

func (r *recorder) record(name string, fn func()) {
	r.mu.Lock()
	if fn != nil {
		fn()
	}
	r.mu.Unlock()
	r.events <- name
}

func (r *recorder) wait(t *testing.T, name string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.events:
			if got == name {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
		}
	}
}

func (r *recorder) StateChanged(_ string, state State) {
	r.record("StateChanged:"+state.String(), func() { r.states = append(r.states, state) })
}
func (r *recorder) Initialized() { r.record("Initialized", nil) }
func (r *recorder) CapabilitiesReceived(caps Capabilities) {
	r.record("CapabilitiesReceived", func() { r.caps = append(r.caps, caps) })
}
func (r *recorder) DebuggeeRunning()    { r.record("DebuggeeRunning", nil) }
func (r *recorder) DebuggeeTerminated() { r.record("DebuggeeTerminated", nil) }
func (r *recorder) DebuggeeExited(code int) {
	r.record("DebuggeeExited", func() { r.exitCodes = append(r.exitCodes, code) })
}
func (r *recorder) DebuggeeStopped(ev StoppedEvent) {
	r.record("DebuggeeStopped", func() { r.stopped = append(r.stopped, ev) })
}
func (r *recorder) DebuggeeContinued(ev ContinuedEvent) {
	r.record("DebuggeeContinued", func() { r.continued = append(r.continued, ev) })
}
func (r *recorder) OutputProduced(o Output) {
	r.record("OutputProduced", func() { r.outputs = append(r.outputs, o) })
}
func (r *recorder) DebuggingProcess(p ProcessEvent) {
	r.record("DebuggingProcess", func() { r.processes = append(r.processes, p) })
}
func (r *recorder) ErrorResponse(_ string, command, summary string, detail *ErrorMessage) {
	r.record("ErrorResponse", func() {
		r.errors = append(r.errors, recordedError{command: command, summary: summary, detail: detail})
	})
}
func (r *recorder) ThreadChanged(ev ThreadEvent) {
	r.record("ThreadChanged", func() { r.threadEvts = append(r.threadEvts, ev) })
}
func (r *recorder) ModuleChanged(ev ModuleEvent) {
	r.record("ModuleChanged", func() { r.modules = append(r.modules, ev) })
}
func (r *recorder) ServerDisconnected() { r.record("ServerDisconnected", nil) }
func (r *recorder) BreakpointChanged(ev BreakpointEvent) {
	r.record("BreakpointChanged", func() { r.bpEvents = append(r.bpEvents, ev) })
}
func (r *recorder) BreakpointsSet(source Source, requested []SourceBreakpoint, echoed []Breakpoint) {
	r.record("BreakpointsSet", func() {
		r.bpSets = append(r.bpSets, recordedBreakpoints{source: source, requested: requested, echoed: echoed})
	})
}
func (r *recorder) ExpressionEvaluated(expression string, result *EvaluateInfo) {
	r.record("ExpressionEvaluated", func() {
		r.evaluated = append(r.evaluated, recordedEval{expression: expression, result: result})
	})
}
func (r *recorder) GotoTargets(_ Source, targets []GotoTarget) {
	r.record("GotoTargets", func() { r.gotoTargets = append(r.gotoTargets, targets) })
}
func (r *recorder) Threads(threads []Thread) {
	r.record("Threads", func() { r.threads = append(r.threads, threads) })
}
func (r *recorder) StackTrace(gen Generation, threadID int, trace StackTraceInfo) {
	r.record("StackTrace", func() {
		r.stacks = append(r.stacks, recordedStack{gen: gen, threadID: threadID, trace: trace})
	})
}
func (r *recorder) Scopes(_ Generation, _ int, scopes []Scope) {
	r.record("Scopes", func() { r.scopes = append(r.scopes, scopes) })
}
func (r *recorder) Variables(gen Generation, reference int, vars []Variable) {
	r.record("Variables", func() {
		r.variables = append(r.variables, recordedVariables{gen: gen, reference: reference, vars: vars})
	})
}
func (r *recorder) Modules(modules []Module, _ int) {
	r.record("Modules", func() { r.moduleLists = append(r.moduleLists, modules) })
}

func (r *recorder) snapshot(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

var _ Listener = (*recorder)(nil)

func newTestClient(t *testing.T, a *fakeAdapter) (*Client, *recorder) {
	t.Helper()
	c := NewClient(a.mt, Config{
		AdapterID: "go",
		Arguments: json.RawMessage(`{"program":"main.go","stopOnEntry":false}`),
	})
	rec := newRecorder()
	c.AddListener(rec)
	t.Cleanup(func() { c.Close() })
	return c, rec
}

// startRunning drives a client through the handshake into Running.
func startRunning(t *testing.T, a *fakeAdapter) (*Client, *recorder) {
	t.Helper()
	c, rec := newTestClient(t, a)
	require.True(t, c.Start())
	rec.wait(t, "Initialized")
	require.True(t, c.ConfigurationDone())
	rec.wait(t, "DebuggeeRunning")
	require.Equal(t, StateRunning, c.State())
	return c, rec
}

func TestClientHandshake(t *testing.T) {
	a := newFakeAdapter()
	a.setBody("initialize", Capabilities{SupportsConfigurationDoneRequest: true, SupportsEvaluateForHovers: true})

	c, rec := newTestClient(t, a)
	assert.False(t, c.Started())
	assert.NotEmpty(t, c.SessionID())

	require.True(t, c.Start())
	rec.wait(t, "CapabilitiesReceived")
	rec.wait(t, "Initialized")

	assert.Equal(t, StateInitialized, c.State())
	assert.True(t, c.Started())
	assert.True(t, c.Capabilities().SupportsEvaluateForHovers)

	require.True(t, c.ConfigurationDone())
	assert.Equal(t, StateRunning, c.State())
	rec.wait(t, "DebuggeeRunning")

	assert.Equal(t, []string{"initialize", "launch", "configurationDone"}, a.commands())

	launch := a.sent("launch")
	require.Len(t, launch, 1)
	assert.JSONEq(t, `{"program":"main.go","stopOnEntry":false}`, string(launch[0].Arguments))

	var initArgs InitializeRequestArguments
	require.NoError(t, json.Unmarshal(a.sent("initialize")[0].Arguments, &initArgs))
	assert.Equal(t, "go", initArgs.AdapterID)
	assert.Equal(t, "keystorm", initArgs.ClientID)
	assert.True(t, initArgs.LinesStartAt1)

	rec.snapshot(func() {
		assert.Equal(t, []State{StateInitializing, StateInitialized, StateRunning}, rec.states)
	})
}

func TestClientStartTwice(t *testing.T) {
	a := newFakeAdapter()
	c, rec := newTestClient(t, a)

	require.True(t, c.Start())
	rec.wait(t, "Initialized")
	assert.False(t, c.Start())
	assert.Len(t, a.sent("initialize"), 1)
}

func TestClientSequenceNumbers(t *testing.T) {
	a := newFakeAdapter()
	c, _ := startRunning(t, a)

	c.Threads()
	c.Threads()

	seen := make(map[int]bool)
	last := 0
	for _, msg := range a.mt.getSentMessages() {
		var req Request
		require.NoError(t, json.Unmarshal(msg.Content, &req))
		assert.False(t, seen[req.Seq], "duplicate seq %d", req.Seq)
		assert.Greater(t, req.Seq, last)
		seen[req.Seq] = true
		last = req.Seq
	}
}

func TestClientRejectsMisuse(t *testing.T) {
	a := newFakeAdapter()
	c, rec := newTestClient(t, a)

	// Nothing is allowed before Start.
	assert.False(t, c.Resume(1, false))
	assert.False(t, c.StackTrace(1, 0, 0))
	assert.False(t, c.ConfigurationDone())
	assert.Empty(t, a.commands())

	require.True(t, c.Start())
	rec.wait(t, "Initialized")
	before := len(a.commands())

	// Execution control waits for configurationDone.
	assert.False(t, c.Resume(1, false))
	assert.False(t, c.Pause(1))
	assert.False(t, c.StepOver(1, false))
	assert.False(t, c.StepInto(1, false))
	assert.False(t, c.StepOut(1, false))
	assert.False(t, c.GoTo(1, 3))
	assert.Len(t, a.commands(), before)

	require.True(t, c.ConfigurationDone())
	assert.True(t, c.Pause(1))

	require.True(t, c.Disconnect(true, false))
	assert.Equal(t, StateTerminated, c.State())
	sent := len(a.commands())
	assert.False(t, c.Resume(1, false))
	assert.False(t, c.StepOver(1, false))
	assert.False(t, c.Threads())
	assert.False(t, c.Disconnect(true, false))
	assert.Len(t, a.commands(), sent)
}

func TestClientSecondConfigurationDoneIsSent(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)
	a.setFailure("configurationDone", "configurationDone already sent")

	require.True(t, c.ConfigurationDone())
	rec.wait(t, "ErrorResponse")

	assert.Len(t, a.sent("configurationDone"), 2)
	assert.Equal(t, StateRunning, c.State())
}

func TestClientErrorResponse(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	a.setFailure("stackTrace", "")
	require.True(t, c.StackTrace(1, 0, 0))
	rec.wait(t, "ErrorResponse")

	rec.snapshot(func() {
		require.Len(t, rec.errors, 1)
		assert.Equal(t, "stackTrace", rec.errors[0].command)
		// With no message the summary comes from the formatted error body.
		assert.Equal(t, "stackTrace went wrong", rec.errors[0].summary)
		require.NotNil(t, rec.errors[0].detail)
		assert.Equal(t, 7, rec.errors[0].detail.ID)
		assert.Empty(t, rec.stacks)
	})
	assert.Equal(t, StateRunning, c.State())
}

func TestClientMalformedResponseIsReported(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	a.setBody("threads", map[string]any{"threads": "not-a-list"})
	require.True(t, c.Threads())
	rec.wait(t, "ErrorResponse")

	rec.snapshot(func() {
		assert.Empty(t, rec.threads)
		assert.Equal(t, "threads", rec.errors[0].command)
	})
}

func TestClientStackTraceScopesVariables(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	a.setBody("stackTrace", StackTraceInfo{StackFrames: []StackFrame{{ID: 7, Name: "main", Line: 42}}, TotalFrames: 1})
	a.setBody("scopes", ScopesResponseBody{Scopes: []Scope{{Name: "Locals", VariablesReference: 10}}})
	a.setBody("variables", VariablesResponseBody{Variables: []Variable{{Name: "x", Value: "1"}}})

	require.True(t, c.StackTrace(1, 0, 20))
	rec.wait(t, "StackTrace")
	require.True(t, c.Scopes(7))
	rec.wait(t, "Scopes")
	require.True(t, c.Variables(10, FilterNamed, 0, 0, nil))
	rec.wait(t, "Variables")

	var args StackTraceArguments
	require.NoError(t, json.Unmarshal(a.sent("stackTrace")[0].Arguments, &args))
	assert.Equal(t, StackTraceArguments{ThreadID: 1, Levels: 20}, args)

	var vargs VariablesArguments
	require.NoError(t, json.Unmarshal(a.sent("variables")[0].Arguments, &vargs))
	assert.Equal(t, "named", vargs.Filter)

	rec.snapshot(func() {
		require.Len(t, rec.stacks, 1)
		assert.Equal(t, 1, rec.stacks[0].threadID)
		assert.Equal(t, 7, rec.stacks[0].trace.StackFrames[0].ID)
		assert.Equal(t, "Locals", rec.scopes[0][0].Name)
		assert.Equal(t, 10, rec.variables[0].reference)
		assert.Equal(t, "x", rec.variables[0].vars[0].Name)
	})
}

func TestClientStaleResponseCarriesOldGeneration(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	a.setHold("variables")
	require.True(t, c.Variables(99, FilterBoth, 0, 0, nil))
	issued := c.Generation()

	a.emit("continued", ContinuedEvent{ThreadID: 1})
	rec.wait(t, "DebuggeeContinued")
	assert.Greater(t, c.Generation(), issued)

	a.release("variables", VariablesResponseBody{Variables: []Variable{{Name: "stale", Value: "0"}}})
	rec.wait(t, "Variables")

	rec.snapshot(func() {
		require.Len(t, rec.variables, 1)
		assert.Equal(t, issued, rec.variables[0].gen)
		assert.Less(t, rec.variables[0].gen, c.Generation())
	})
}

func TestClientResume(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)
	a.setBody("continue", map[string]any{"allThreadsContinued": false})

	gen := c.Generation()
	require.True(t, c.Resume(3, true))
	assert.Equal(t, gen+1, c.Generation())
	rec.wait(t, "DebuggeeContinued")

	var args ContinueArguments
	require.NoError(t, json.Unmarshal(a.sent("continue")[0].Arguments, &args))
	assert.Equal(t, ContinueArguments{ThreadID: 3, SingleThread: true}, args)

	rec.snapshot(func() {
		assert.Equal(t, []ContinuedEvent{{ThreadID: 3, AllThreadsContinued: false}}, rec.continued)
	})

	require.True(t, c.StepOver(3, false))
	require.True(t, c.StepInto(3, false))
	require.True(t, c.StepOut(3, false))
	require.True(t, c.GoTo(3, 11))
	assert.Equal(t, gen+5, c.Generation())
	assert.Len(t, a.sent("next"), 1)
	assert.Len(t, a.sent("stepIn"), 1)
	assert.Len(t, a.sent("stepOut"), 1)
	assert.Len(t, a.sent("goto"), 1)
}

func TestClientResumeResponseAfterNewerStop(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)
	a.setHold("continue")

	require.True(t, c.Resume(1, false))
	threadID := 1
	a.emit("stopped", StoppedEvent{Reason: "breakpoint", ThreadID: &threadID})
	rec.wait(t, "DebuggeeStopped")

	a.release("continue", ContinueResponseBody{})
	a.emit("output", Output{Category: "console", Output: "after"})
	rec.wait(t, "OutputProduced")

	rec.snapshot(func() {
		assert.Empty(t, rec.continued, "a resume answered after a newer stop must not report continued")
		assert.Len(t, rec.stopped, 1)
	})

	// Without an intervening stop the response still reports continued.
	require.True(t, c.Resume(1, false))
	a.release("continue", ContinueResponseBody{})
	rec.wait(t, "DebuggeeContinued")
}

func TestClientVariablesCallback(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)
	a.setBody("variables", VariablesResponseBody{Variables: []Variable{{Name: "field", Value: "2"}}})

	got := make(chan []Variable, 2)
	require.True(t, c.Variables(5, FilterBoth, 0, 0, func(_ Generation, ref int, vars []Variable) {
		assert.Equal(t, 5, ref)
		got <- vars
	}))

	select {
	case vars := <-got:
		require.Len(t, vars, 1)
		assert.Equal(t, "field", vars[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called")
	}

	// A failing one-shot request still calls back, with nil.
	a.setFailure("variables", "gone")
	require.True(t, c.Variables(6, FilterBoth, 0, 0, func(_ Generation, _ int, vars []Variable) {
		got <- vars
	}))
	select {
	case vars := <-got:
		assert.Nil(t, vars)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called on failure")
	}

	rec.wait(t, "ErrorResponse")
	rec.snapshot(func() {
		assert.Empty(t, rec.variables, "callback results must not be broadcast")
	})
	assert.Empty(t, got)
}

func TestClientEvaluate(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)
	a.setBody("evaluate", EvaluateInfo{Result: "42", Type: "int"})

	require.True(t, c.Watch("answer", 7))
	rec.wait(t, "ExpressionEvaluated")

	var args EvaluateArguments
	require.NoError(t, json.Unmarshal(a.sent("evaluate")[0].Arguments, &args))
	assert.Equal(t, "watch", args.Context)
	require.NotNil(t, args.FrameID)
	assert.Equal(t, 7, *args.FrameID)

	result := make(chan *EvaluateInfo, 1)
	require.True(t, c.Evaluate("hover", ContextHover, NoFrame, func(_ string, info *EvaluateInfo) {
		result <- info
	}))
	select {
	case info := <-result:
		require.NotNil(t, info)
		assert.Equal(t, "42", info.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called")
	}
	args = EvaluateArguments{}
	require.NoError(t, json.Unmarshal(a.sent("evaluate")[1].Arguments, &args))
	assert.Nil(t, args.FrameID)

	a.setFailure("evaluate", "name 'nope' is not defined")
	require.True(t, c.Watch("nope", NoFrame))
	rec.wait(t, "ExpressionEvaluated")

	rec.snapshot(func() {
		require.Len(t, rec.evaluated, 2)
		assert.Equal(t, "answer", rec.evaluated[0].expression)
		assert.Equal(t, "42", rec.evaluated[0].result.Result)
		assert.Equal(t, "nope", rec.evaluated[1].expression)
		assert.Nil(t, rec.evaluated[1].result)
	})
}

func TestClientSetBreakpoints(t *testing.T) {
	a := newFakeAdapter()
	c, rec := newTestClient(t, a)
	require.True(t, c.Start())
	rec.wait(t, "Initialized")

	line := 11
	a.setBody("setBreakpoints", SetBreakpointsResponseBody{Breakpoints: []Breakpoint{
		{ID: 1, Verified: true, Line: &line},
		{ID: 2, Verified: false, Message: "no code"},
	}})

	src := Source{Path: "/src/a.py"}
	requested := []SourceBreakpoint{{Line: 10}, {Line: 20, Condition: "x > 1"}}
	require.True(t, c.SetBreakpoints(src, requested, false))
	rec.wait(t, "BreakpointsSet")

	var args SetBreakpointsArguments
	require.NoError(t, json.Unmarshal(a.sent("setBreakpoints")[0].Arguments, &args))
	assert.Equal(t, "/src/a.py", args.Source.Path)
	assert.Equal(t, requested, args.Breakpoints)
	assert.False(t, args.SourceModified)

	rec.snapshot(func() {
		require.Len(t, rec.bpSets, 1)
		set := rec.bpSets[0]
		assert.Equal(t, requested, set.requested)
		require.Len(t, set.echoed, 2)
		assert.Equal(t, 11, set.echoed[0].LineOr(10))
		assert.Equal(t, 20, set.echoed[1].LineOr(20))
	})
}

func TestClientSetBreakpointsEmptySendsEmptyList(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	require.True(t, c.SetBreakpoints(Source{Path: "/a.go"}, nil, false))
	rec.wait(t, "BreakpointsSet")

	assert.JSONEq(t, `{"source":{"path":"/a.go"},"breakpoints":[],"sourceModified":false}`,
		string(a.sent("setBreakpoints")[0].Arguments))
}

func TestClientEvents(t *testing.T) {
	a := newFakeAdapter()
	_, rec := startRunning(t, a)

	a.emit("output", Output{Category: "stdout", Output: "hello\n"})
	a.emit("thread", ThreadEvent{Reason: "started", ThreadID: 2})
	a.emit("module", map[string]any{"reason": "new", "module": map[string]any{"id": 3, "name": "libc"}})
	a.emit("process", ProcessEvent{Name: "app", SystemProcessID: 1234})
	a.emit("breakpoint", map[string]any{"reason": "changed", "breakpoint": map[string]any{"id": 1, "verified": true}})
	a.emit("stopped", map[string]any{"reason": "breakpoint", "threadId": 2, "hitBreakpointIds": []int{1}})
	a.emit("progressStart", map[string]any{"progressId": "x", "title": "loading"})
	a.emit("exited", ExitedEvent{ExitCode: 3})
	a.emit("terminated", nil)

	rec.wait(t, "DebuggeeTerminated")

	rec.snapshot(func() {
		assert.Equal(t, "hello\n", rec.outputs[0].Output)
		assert.Equal(t, 2, rec.threadEvts[0].ThreadID)
		assert.Equal(t, "3", rec.modules[0].Module.Key())
		assert.Equal(t, 1234, rec.processes[0].SystemProcessID)
		assert.True(t, rec.bpEvents[0].Breakpoint.Verified)
		require.Len(t, rec.stopped, 1)
		require.NotNil(t, rec.stopped[0].ThreadID)
		assert.Equal(t, 2, *rec.stopped[0].ThreadID)
		assert.Equal(t, []int{1}, rec.stopped[0].HitBreakpointIDs)
		assert.Equal(t, []int{3}, rec.exitCodes)
	})
}

func TestClientStoppedWithoutThread(t *testing.T) {
	a := newFakeAdapter()
	_, rec := startRunning(t, a)

	a.emit("stopped", map[string]any{"reason": "pause"})
	rec.wait(t, "DebuggeeStopped")

	rec.snapshot(func() {
		assert.Nil(t, rec.stopped[0].ThreadID)
	})
}

func TestClientDisconnectIgnoresLateResponses(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	a.setHold("stackTrace")
	require.True(t, c.StackTrace(1, 0, 0))
	require.True(t, c.Disconnect(true, false))
	rec.wait(t, "StateChanged:terminated")

	a.release("stackTrace", StackTraceInfo{StackFrames: []StackFrame{{ID: 1}}})
	a.emit("stopped", map[string]any{"reason": "step", "threadId": 1})
	a.emit("terminated", nil)
	rec.wait(t, "DebuggeeTerminated")

	rec.snapshot(func() {
		assert.Empty(t, rec.stacks)
		assert.Empty(t, rec.stopped)
	})

	var args DisconnectArguments
	require.NoError(t, json.Unmarshal(a.sent("disconnect")[0].Arguments, &args))
	assert.True(t, args.TerminateDebuggee)
}

func TestClientTerminate(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	require.True(t, c.Terminate(false))
	assert.Equal(t, StateTerminated, c.State())
	assert.False(t, c.Started())
	rec.wait(t, "StateChanged:terminated")
	assert.Len(t, a.sent("terminate"), 1)
}

func TestClientServerDisconnected(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	a.setHold("variables")
	got := make(chan []Variable, 1)
	require.True(t, c.Variables(4, FilterBoth, 0, 0, func(_ Generation, _ int, vars []Variable) { got <- vars }))

	// Adapter goes away underneath the client.
	a.mt.Close()
	rec.wait(t, "ServerDisconnected")
	rec.wait(t, "StateChanged:failed")

	assert.Equal(t, StateFailed, c.State())
	assert.False(t, c.Connected())
	select {
	case vars := <-got:
		assert.Nil(t, vars)
	case <-time.After(2 * time.Second):
		t.Fatal("orphaned callback not called")
	}
}

func TestClientSendFailure(t *testing.T) {
	a := newFakeAdapter()
	a.mt.sendErr = io.ErrClosedPipe
	c, _ := newTestClient(t, a)

	assert.False(t, c.Start())
	assert.Equal(t, StateFailed, c.State())
}

func TestClientRefusesReverseRequests(t *testing.T) {
	a := newFakeAdapter()
	_, rec := startRunning(t, a)

	a.push(Request{ProtocolMessage: ProtocolMessage{Seq: 500, Type: TypeRequest}, Command: "runInTerminal"})
	a.emit("output", Output{Output: "marker"})
	rec.wait(t, "OutputProduced")

	var found bool
	for _, msg := range a.mt.getSentMessages() {
		var resp Response
		require.NoError(t, json.Unmarshal(msg.Content, &resp))
		if resp.Type == TypeResponse && resp.RequestSeq == 500 {
			found = true
			assert.False(t, resp.Success)
			assert.Equal(t, "runInTerminal", resp.Command)
		}
	}
	assert.True(t, found, "reverse request was not answered")
}

func TestClientThreadsGotoTargetsModules(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)
	a.setBody("threads", ThreadsResponseBody{Threads: []Thread{{ID: 1, Name: "main"}, {ID: 2, Name: "worker"}}})
	a.setBody("gotoTargets", GotoTargetsResponseBody{Targets: []GotoTarget{{ID: 9, Label: "line 12", Line: 12}}})
	a.setBody("modules", map[string]any{"modules": []map[string]any{{"id": "m1", "name": "app"}}, "totalModules": 1})

	require.True(t, c.Threads())
	rec.wait(t, "Threads")
	require.True(t, c.GotoTargets(Source{Path: "/a.go"}, 12, 0))
	rec.wait(t, "GotoTargets")
	require.True(t, c.Modules(0, 0))
	rec.wait(t, "Modules")

	rec.snapshot(func() {
		assert.Len(t, rec.threads[0], 2)
		assert.Equal(t, 9, rec.gotoTargets[0][0].ID)
		assert.Equal(t, "m1", rec.moduleLists[0][0].Key())
	})
}

func TestClientRemoveListener(t *testing.T) {
	a := newFakeAdapter()
	c, rec := startRunning(t, a)

	other := newRecorder()
	c.AddListener(other)
	c.RemoveListener(rec)

	a.emit("output", Output{Output: "only other"})
	other.wait(t, "OutputProduced")

	rec.snapshot(func() {
		assert.Empty(t, rec.outputs)
	})
}
