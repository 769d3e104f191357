package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/smallnest/chanx"
)

// NoFrame is passed as a frame id when an evaluation has no frame context.
const NoFrame = -1

// Evaluate contexts.
const (
	ContextWatch     = "watch"
	ContextRepl      = "repl"
	ContextHover     = "hover"
	ContextClipboard = "clipboard"
)

// Config configures a Client.
type Config struct {
	// AdapterID is the adapter type, e.g. "go" or "python".
	AdapterID string

	ClientID   string
	ClientName string
	Locale     string

	// Request is "launch" or "attach". Defaults to "launch".
	Request string

	// Arguments is sent verbatim as the launch or attach body.
	Arguments json.RawMessage

	Log logr.Logger
}

// inbound is one item on the dispatch queue: a message read from the
// transport, a transport error, or a deferred listener notification.
type inbound struct {
	msg    *Message
	err    error
	notify func()
}

// pendingRequest tracks a request awaiting its response.
type pendingRequest struct {
	command    string
	generation Generation

	// onSuccess decodes and delivers a successful response. A returned error
	// is reported like a failed response.
	onSuccess func(gen Generation, body json.RawMessage) error

	// onFailure runs after a failed, malformed, dropped or orphaned response.
	onFailure func()

	// lifecycle responses are delivered even after the session ended.
	lifecycle bool
}

// Client drives a debug session against one adapter.
//
// Every request method is fire-and-forget: it returns whether the request was
// accepted for sending, and results arrive later through Listeners or a
// one-shot callback. All listener calls happen on a single dispatch goroutine.
type Client struct {
	transport Transport
	cfg       Config
	log       logr.Logger
	sessionID string

	seq        atomic.Int64
	generation atomic.Uint64
	// stops counts dispatched stopped events.
	stops atomic.Uint64

	pending   map[int]*pendingRequest
	pendingMu sync.Mutex

	listeners  []Listener
	listenerMu sync.RWMutex

	state   State
	caps    Capabilities
	stateMu sync.RWMutex

	ctx       context.Context
	cancel    context.CancelFunc
	queue     *chanx.UnboundedChan[inbound]
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
}

// NewClient creates a client on transport and starts its receive and
// dispatch goroutines. Nothing is sent until Start.
func NewClient(transport Transport, cfg Config) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "keystorm"
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "Keystorm"
	}
	if cfg.Request == "" {
		cfg.Request = "launch"
	}
	log := cfg.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport: transport,
		cfg:       cfg,
		sessionID: uuid.NewString(),
		pending:   make(map[int]*pendingRequest),
		ctx:       ctx,
		cancel:    cancel,
		queue:     chanx.NewUnboundedChan[inbound](ctx, 16),
		done:      make(chan struct{}),
	}
	c.log = log.WithValues("session", c.sessionID, "adapter", cfg.AdapterID)

	go c.receiveLoop()
	go c.dispatchLoop()
	return c
}

// AddListener subscribes l to session events.
func (c *Client) AddListener(l Listener) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenerMu.Unlock()
}

// RemoveListener unsubscribes l.
func (c *Client) RemoveListener(l Listener) {
	c.listenerMu.Lock()
	c.listeners = slices.DeleteFunc(c.listeners, func(x Listener) bool { return x == l })
	c.listenerMu.Unlock()
}

// SessionID returns the id generated for this session.
func (c *Client) SessionID() string {
	return c.sessionID
}

// State returns the current session state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Capabilities returns the adapter capabilities received so far.
func (c *Client) Capabilities() Capabilities {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.caps
}

// Generation returns the current resume generation.
func (c *Client) Generation() Generation {
	return Generation(c.generation.Load())
}

// Started reports whether Start was called and the session has not ended.
func (c *Client) Started() bool {
	s := c.State()
	return s != StateNone && !s.Terminal()
}

// Connected reports whether the transport is still usable.
func (c *Client) Connected() bool {
	return !c.closing.Load() && c.State() != StateFailed
}

// Done is closed once the dispatch goroutine has exited after Close.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops dispatching and closes the transport. Pending requests are
// abandoned.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.cancel()
		err = c.transport.Close()
	})
	return err
}

// Start sends initialize. Once the adapter answers, its capabilities are
// recorded and the configured launch or attach request follows.
func (c *Client) Start() bool {
	if !c.setState(StateInitializing) {
		c.log.Info("Start rejected", "state", c.State().String(), "reason", ErrAlreadyStarted.Error())
		return false
	}

	args := InitializeRequestArguments{
		ClientID:               c.cfg.ClientID,
		ClientName:             c.cfg.ClientName,
		AdapterID:              c.cfg.AdapterID,
		Locale:                 c.cfg.Locale,
		LinesStartAt1:          true,
		ColumnsStartAt1:        true,
		PathFormat:             "path",
		SupportsVariableType:   true,
		SupportsVariablePaging: true,
	}

	sent := c.send("initialize", args, &pendingRequest{
		lifecycle: true,
		onSuccess: func(_ Generation, body json.RawMessage) error {
			caps, err := decodeBody[Capabilities](body)
			if err != nil {
				return err
			}
			c.stateMu.Lock()
			c.caps = caps
			c.stateMu.Unlock()

			c.notify(func(l Listener) { l.CapabilitiesReceived(caps) })
			c.launch()
			return nil
		},
	})
	if !sent {
		c.setState(StateFailed)
	}
	return sent
}

func (c *Client) launch() {
	args := c.cfg.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	c.send(c.cfg.Request, args, &pendingRequest{lifecycle: true})
}

// ConfigurationDone tells the adapter configuration is complete and moves the
// session to Running. A repeated call is still sent; the adapter reports the
// protocol error through ErrorResponse.
func (c *Client) ConfigurationDone() bool {
	switch c.State() {
	case StateInitialized:
		c.setState(StateRunning)
	case StateRunning:
	default:
		c.log.V(1).Info("Rejected request", "command", "configurationDone", "state", c.State().String())
		return false
	}

	return c.send("configurationDone", nil, &pendingRequest{
		onSuccess: func(Generation, json.RawMessage) error {
			c.notify(func(l Listener) { l.DebuggeeRunning() })
			return nil
		},
	})
}

// Execution control

// Resume continues threadID, or every thread unless singleThread is set.
func (c *Client) Resume(threadID int, singleThread bool) bool {
	if !c.canControl("continue") {
		return false
	}
	c.bumpGeneration()
	stops := c.stops.Load()

	return c.send("continue", ContinueArguments{ThreadID: threadID, SingleThread: singleThread}, &pendingRequest{
		onSuccess: func(_ Generation, body json.RawMessage) error {
			resp, err := decodeBody[ContinueResponseBody](body)
			if err != nil {
				return err
			}
			// The debuggee already stopped again; this response is history.
			if c.stops.Load() != stops {
				c.log.V(1).Info("Dropping continued for a superseded resume", "threadId", threadID)
				return nil
			}
			// An absent allThreadsContinued means true.
			all := resp.AllThreadsContinued == nil || *resp.AllThreadsContinued
			ev := ContinuedEvent{ThreadID: threadID, AllThreadsContinued: all}
			c.notify(func(l Listener) { l.DebuggeeContinued(ev) })
			return nil
		},
	})
}

// Pause interrupts threadID.
func (c *Client) Pause(threadID int) bool {
	if !c.canControl("pause") {
		return false
	}
	return c.send("pause", PauseArguments{ThreadID: threadID}, nil)
}

// StepOver executes one step of threadID, stepping over calls.
func (c *Client) StepOver(threadID int, singleThread bool) bool {
	return c.step("next", threadID, singleThread)
}

// StepInto executes one step of threadID, entering calls.
func (c *Client) StepInto(threadID int, singleThread bool) bool {
	return c.step("stepIn", threadID, singleThread)
}

// StepOut runs threadID until the current function returns.
func (c *Client) StepOut(threadID int, singleThread bool) bool {
	return c.step("stepOut", threadID, singleThread)
}

func (c *Client) step(command string, threadID int, singleThread bool) bool {
	if !c.canControl(command) {
		return false
	}
	c.bumpGeneration()
	return c.send(command, StepArguments{ThreadID: threadID, SingleThread: singleThread}, nil)
}

// GoTo moves execution of threadID to a target obtained from GotoTargets.
func (c *Client) GoTo(threadID, targetID int) bool {
	if !c.canControl("goto") {
		return false
	}
	c.bumpGeneration()
	return c.send("goto", GotoArguments{ThreadID: threadID, TargetID: targetID}, nil)
}

// Introspection

// Threads requests the thread list.
func (c *Client) Threads() bool {
	if !c.canQuery("threads") {
		return false
	}
	return c.send("threads", nil, &pendingRequest{
		onSuccess: func(_ Generation, body json.RawMessage) error {
			resp, err := decodeBody[ThreadsResponseBody](body)
			if err != nil {
				return err
			}
			c.notify(func(l Listener) { l.Threads(resp.Threads) })
			return nil
		},
	})
}

// StackTrace requests frames of threadID. levels 0 means all frames.
func (c *Client) StackTrace(threadID, startFrame, levels int) bool {
	if !c.canQuery("stackTrace") {
		return false
	}
	args := StackTraceArguments{ThreadID: threadID, StartFrame: startFrame, Levels: levels}
	return c.send("stackTrace", args, &pendingRequest{
		onSuccess: func(gen Generation, body json.RawMessage) error {
			info, err := decodeBody[StackTraceInfo](body)
			if err != nil {
				return err
			}
			c.notify(func(l Listener) { l.StackTrace(gen, threadID, info) })
			return nil
		},
	})
}

// Scopes requests the scopes of frameID.
func (c *Client) Scopes(frameID int) bool {
	if !c.canQuery("scopes") {
		return false
	}
	return c.send("scopes", ScopesArguments{FrameID: frameID}, &pendingRequest{
		onSuccess: func(gen Generation, body json.RawMessage) error {
			resp, err := decodeBody[ScopesResponseBody](body)
			if err != nil {
				return err
			}
			c.notify(func(l Listener) { l.Scopes(gen, frameID, resp.Scopes) })
			return nil
		},
	})
}

// Variables requests the children of reference. count 0 means all. When cb
// is non-nil the result goes only to cb, which is called exactly once if the
// request was accepted.
func (c *Client) Variables(reference int, filter VariablesFilter, start, count int, cb VariablesCallback) bool {
	if !c.canQuery("variables") {
		return false
	}
	args := VariablesArguments{
		VariablesReference: reference,
		Filter:             filter.String(),
		Start:              start,
		Count:              count,
	}
	p := &pendingRequest{
		onSuccess: func(gen Generation, body json.RawMessage) error {
			resp, err := decodeBody[VariablesResponseBody](body)
			if err != nil {
				return err
			}
			if cb != nil {
				cb(gen, reference, resp.Variables)
				return nil
			}
			c.notify(func(l Listener) { l.Variables(gen, reference, resp.Variables) })
			return nil
		},
	}
	if cb != nil {
		p.onFailure = func() { cb(p.generation, reference, nil) }
	}
	return c.send("variables", args, p)
}

// Mutation

// SetBreakpoints replaces every breakpoint of source with breakpoints.
func (c *Client) SetBreakpoints(source Source, breakpoints []SourceBreakpoint, sourceModified bool) bool {
	if !c.canQuery("setBreakpoints") {
		return false
	}
	requested := slices.Clone(breakpoints)
	if requested == nil {
		requested = []SourceBreakpoint{}
	}
	args := SetBreakpointsArguments{Source: source, Breakpoints: requested, SourceModified: sourceModified}
	return c.send("setBreakpoints", args, &pendingRequest{
		onSuccess: func(_ Generation, body json.RawMessage) error {
			resp, err := decodeBody[SetBreakpointsResponseBody](body)
			if err != nil {
				return err
			}
			if len(resp.Breakpoints) != len(requested) {
				c.log.Info("Adapter echoed a different number of breakpoints",
					"source", source.String(), "requested", len(requested), "echoed", len(resp.Breakpoints))
			}
			c.notify(func(l Listener) { l.BreakpointsSet(source, requested, resp.Breakpoints) })
			return nil
		},
	})
}

// Evaluate evaluates expression in the given context. frameID may be NoFrame.
// When cb is non-nil the result goes only to cb, which is called exactly once
// if the request was accepted.
func (c *Client) Evaluate(expression, evalContext string, frameID int, cb EvaluateCallback) bool {
	if !c.canQuery("evaluate") {
		return false
	}
	args := EvaluateArguments{Expression: expression, Context: evalContext}
	if frameID != NoFrame {
		args.FrameID = &frameID
	}
	p := &pendingRequest{
		onSuccess: func(_ Generation, body json.RawMessage) error {
			info, err := decodeBody[EvaluateInfo](body)
			if err != nil {
				return err
			}
			if cb != nil {
				cb(expression, &info)
				return nil
			}
			c.notify(func(l Listener) { l.ExpressionEvaluated(expression, &info) })
			return nil
		},
		onFailure: func() {
			if cb != nil {
				cb(expression, nil)
				return
			}
			c.notify(func(l Listener) { l.ExpressionEvaluated(expression, nil) })
		},
	}
	return c.send("evaluate", args, p)
}

// Watch evaluates expression in the watch context and broadcasts the result.
func (c *Client) Watch(expression string, frameID int) bool {
	return c.Evaluate(expression, ContextWatch, frameID, nil)
}

// GotoTargets asks where execution may jump to in source at line.
// column 0 means unspecified.
func (c *Client) GotoTargets(source Source, line, column int) bool {
	if !c.canQuery("gotoTargets") {
		return false
	}
	args := GotoTargetsArguments{Source: source, Line: line, Column: column}
	return c.send("gotoTargets", args, &pendingRequest{
		onSuccess: func(_ Generation, body json.RawMessage) error {
			resp, err := decodeBody[GotoTargetsResponseBody](body)
			if err != nil {
				return err
			}
			c.notify(func(l Listener) { l.GotoTargets(source, resp.Targets) })
			return nil
		},
	})
}

// Modules requests loaded modules. count 0 means all.
func (c *Client) Modules(start, count int) bool {
	if !c.canQuery("modules") {
		return false
	}
	return c.send("modules", ModulesArguments{StartModule: start, ModuleCount: count}, &pendingRequest{
		onSuccess: func(_ Generation, body json.RawMessage) error {
			resp, err := decodeBody[ModulesResponseBody](body)
			if err != nil {
				return err
			}
			c.notify(func(l Listener) { l.Modules(resp.Modules, resp.TotalModules) })
			return nil
		},
	})
}

// Termination

// Terminate asks the adapter to end the debuggee gracefully. The session
// leaves Running immediately.
func (c *Client) Terminate(restart bool) bool {
	if !c.Started() {
		return false
	}
	if !c.send("terminate", TerminateArguments{Restart: restart}, &pendingRequest{lifecycle: true}) {
		return false
	}
	c.setState(StateTerminated)
	return true
}

// Disconnect ends the session. The session leaves Running immediately.
func (c *Client) Disconnect(terminateDebuggee, restart bool) bool {
	if !c.Started() {
		return false
	}
	args := DisconnectArguments{Restart: restart, TerminateDebuggee: terminateDebuggee}
	if !c.send("disconnect", args, &pendingRequest{lifecycle: true}) {
		return false
	}
	c.setState(StateTerminated)
	return true
}

// internals

func (c *Client) canControl(command string) bool {
	if s := c.State(); s != StateRunning {
		c.log.V(1).Info("Rejected request", "command", command, "state", s.String(), "reason", ErrNotRunning.Error())
		return false
	}
	return true
}

func (c *Client) canQuery(command string) bool {
	switch s := c.State(); s {
	case StateInitialized, StateRunning:
		return true
	default:
		c.log.V(1).Info("Rejected request", "command", command, "state", s.String())
		return false
	}
}

func (c *Client) bumpGeneration() {
	c.generation.Add(1)
}

func (c *Client) send(command string, args any, p *pendingRequest) bool {
	if c.closing.Load() {
		return false
	}

	var raw json.RawMessage
	if args != nil {
		var err error
		raw, err = json.Marshal(args)
		if err != nil {
			c.log.Error(err, "Could not marshal request arguments", "command", command)
			return false
		}
	}

	seq := int(c.seq.Add(1))
	msg, err := NewMessage(Request{
		ProtocolMessage: ProtocolMessage{Seq: seq, Type: TypeRequest},
		Command:         command,
		Arguments:       raw,
	})
	if err != nil {
		c.log.Error(err, "Could not marshal request", "command", command)
		return false
	}

	if p == nil {
		p = &pendingRequest{}
	}
	p.command = command
	p.generation = c.Generation()

	c.pendingMu.Lock()
	c.pending[seq] = p
	c.pendingMu.Unlock()

	if err := c.transport.Send(msg); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		c.log.Error(err, "Could not send request", "command", command, "seq", seq)
		return false
	}

	c.log.V(1).Info("Sent request", "command", command, "seq", seq)
	return true
}

// setState transitions the session and queues the StateChanged notification
// behind whatever is already waiting for dispatch.
func (c *Client) setState(next State) bool {
	return c.transition(next, false)
}

// setStateNow transitions and notifies inline. Only for the dispatch goroutine.
func (c *Client) setStateNow(next State) bool {
	return c.transition(next, true)
}

func (c *Client) transition(next State, inline bool) bool {
	c.stateMu.Lock()
	prev := c.state
	if !prev.canTransition(next) {
		c.stateMu.Unlock()
		return false
	}
	c.state = next
	c.stateMu.Unlock()

	c.log.Info("Session state changed", "from", prev.String(), "to", next.String())

	fire := func() {
		c.notify(func(l Listener) { l.StateChanged(c.sessionID, next) })
	}
	if inline {
		fire()
	} else {
		c.enqueue(inbound{notify: fire})
	}
	return true
}

func (c *Client) notify(fn func(Listener)) {
	c.listenerMu.RLock()
	listeners := slices.Clone(c.listeners)
	c.listenerMu.RUnlock()

	for _, l := range listeners {
		fn(l)
	}
}

func (c *Client) enqueue(item inbound) {
	select {
	case c.queue.In <- item:
	case <-c.ctx.Done():
	}
}

func (c *Client) receiveLoop() {
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			if !c.closing.Load() {
				c.enqueue(inbound{err: err})
			}
			return
		}
		c.enqueue(inbound{msg: msg})
	}
}

func (c *Client) dispatchLoop() {
	defer close(c.done)
	for item := range c.queue.Out {
		switch {
		case item.notify != nil:
			item.notify()
		case item.err != nil:
			c.handleTransportError(item.err)
		case item.msg != nil:
			c.handleMessage(item.msg)
		}
	}
}

func (c *Client) handleTransportError(err error) {
	c.log.Error(err, "Debug adapter connection lost")

	c.pendingMu.Lock()
	orphaned := c.pending
	c.pending = make(map[int]*pendingRequest)
	c.pendingMu.Unlock()

	for _, p := range orphaned {
		if p.onFailure != nil {
			p.onFailure()
		}
	}

	c.notify(func(l Listener) { l.ServerDisconnected() })
	c.setStateNow(StateFailed)
}

func (c *Client) handleMessage(msg *Message) {
	var base ProtocolMessage
	if err := json.Unmarshal(msg.Content, &base); err != nil {
		c.log.Error(err, "Dropping malformed message")
		return
	}

	switch base.Type {
	case TypeResponse:
		c.handleResponse(msg.Content)
	case TypeEvent:
		c.handleEvent(msg.Content)
	case TypeRequest:
		c.handleReverseRequest(msg.Content)
	default:
		c.log.V(1).Info("Dropping message of unknown type", "type", base.Type)
	}
}

func (c *Client) handleResponse(content []byte) {
	var resp Response
	if err := json.Unmarshal(content, &resp); err != nil {
		c.log.Error(err, "Dropping malformed response")
		return
	}

	c.pendingMu.Lock()
	p, ok := c.pending[resp.RequestSeq]
	if ok {
		delete(c.pending, resp.RequestSeq)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.log.V(1).Info("Dropping response to unknown request", "request_seq", resp.RequestSeq, "command", resp.Command)
		return
	}

	c.log.V(1).Info("Received response", "command", p.command, "request_seq", resp.RequestSeq, "success", resp.Success)

	if !p.lifecycle && c.State().Terminal() {
		c.log.V(1).Info("Ignoring response after session end", "command", p.command)
		if p.onFailure != nil {
			p.onFailure()
		}
		return
	}

	if !resp.Success {
		body, _ := decodeBody[ErrorResponseBody](resp.Body)
		summary := resp.Message
		if summary == "" {
			summary = body.Error.Text()
		}
		c.reportFailure(p, summary, body.Error)
		return
	}

	if p.onSuccess == nil {
		return
	}
	if err := p.onSuccess(p.generation, resp.Body); err != nil {
		c.log.Error(err, "Malformed response body", "command", p.command)
		c.reportFailure(p, fmt.Sprintf("malformed %s response", p.command), nil)
	}
}

func (c *Client) reportFailure(p *pendingRequest, summary string, detail *ErrorMessage) {
	c.log.Info("Request failed", "command", p.command, "summary", summary)
	c.notify(func(l Listener) { l.ErrorResponse(c.sessionID, p.command, summary, detail) })
	if p.onFailure != nil {
		p.onFailure()
	}
}

func (c *Client) handleEvent(content []byte) {
	var evt Event
	if err := json.Unmarshal(content, &evt); err != nil {
		c.log.Error(err, "Dropping malformed event")
		return
	}

	c.log.V(1).Info("Received event", "event", evt.Event)

	if c.State().Terminal() {
		switch evt.Event {
		case "exited", "terminated", "output":
		default:
			c.log.V(1).Info("Ignoring event after session end", "event", evt.Event)
			return
		}
	}

	switch evt.Event {
	case "initialized":
		c.setStateNow(StateInitialized)
		c.notify(func(l Listener) { l.Initialized() })
	case "stopped":
		if body, ok := decodeEvent[StoppedEvent](c, evt); ok {
			c.stops.Add(1)
			c.notify(func(l Listener) { l.DebuggeeStopped(body) })
		}
	case "continued":
		if body, ok := decodeEvent[ContinuedEvent](c, evt); ok {
			c.bumpGeneration()
			c.notify(func(l Listener) { l.DebuggeeContinued(body) })
		}
	case "exited":
		if body, ok := decodeEvent[ExitedEvent](c, evt); ok {
			c.notify(func(l Listener) { l.DebuggeeExited(body.ExitCode) })
			c.setStateNow(StateTerminated)
		}
	case "terminated":
		c.setStateNow(StateTerminated)
		c.notify(func(l Listener) { l.DebuggeeTerminated() })
	case "thread":
		if body, ok := decodeEvent[ThreadEvent](c, evt); ok {
			c.notify(func(l Listener) { l.ThreadChanged(body) })
		}
	case "output":
		if body, ok := decodeEvent[Output](c, evt); ok {
			c.notify(func(l Listener) { l.OutputProduced(body) })
		}
	case "breakpoint":
		if body, ok := decodeEvent[BreakpointEvent](c, evt); ok {
			c.notify(func(l Listener) { l.BreakpointChanged(body) })
		}
	case "module":
		if body, ok := decodeEvent[ModuleEvent](c, evt); ok {
			c.notify(func(l Listener) { l.ModuleChanged(body) })
		}
	case "process":
		if body, ok := decodeEvent[ProcessEvent](c, evt); ok {
			c.notify(func(l Listener) { l.DebuggingProcess(body) })
		}
	case "capabilities":
		if body, ok := decodeEvent[CapabilitiesEvent](c, evt); ok {
			caps := body.Capabilities
			c.stateMu.Lock()
			c.caps = caps
			c.stateMu.Unlock()
			c.notify(func(l Listener) { l.CapabilitiesReceived(caps) })
		}
	default:
		c.log.V(1).Info("Ignoring unsupported event", "event", evt.Event)
	}
}

func decodeEvent[T any](c *Client, evt Event) (T, bool) {
	v, err := decodeBody[T](evt.Body)
	if err != nil {
		c.log.Error(err, "Dropping malformed event body", "event", evt.Event)
		return v, false
	}
	return v, true
}

// handleReverseRequest answers adapter-initiated requests such as
// runInTerminal, none of which are supported.
func (c *Client) handleReverseRequest(content []byte) {
	var req Request
	if err := json.Unmarshal(content, &req); err != nil {
		c.log.Error(err, "Dropping malformed reverse request")
		return
	}
	c.log.Info("Refusing unsupported reverse request", "command", req.Command)

	msg, err := NewMessage(Response{
		ProtocolMessage: ProtocolMessage{Seq: int(c.seq.Add(1)), Type: TypeResponse},
		RequestSeq:      req.Seq,
		Success:         false,
		Command:         req.Command,
		Message:         "not supported",
	})
	if err != nil {
		return
	}
	if err := c.transport.Send(msg); err != nil {
		c.log.Error(err, "Could not answer reverse request", "command", req.Command)
	}
}

func decodeBody[T any](body json.RawMessage) (T, error) {
	var v T
	if len(body) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, err
	}
	return v, nil
}
