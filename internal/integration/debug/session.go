package debug

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
	"github.com/dshills/keystorm-debug/internal/integration/debug/models"
)

// OutputSink receives debuggee output.
type OutputSink interface {
	Write(output dap.Output)
}

// LogOutput writes debuggee output through a logger.
type LogOutput struct {
	Log logr.Logger
}

// Write logs one output event.
func (o LogOutput) Write(output dap.Output) {
	if output.Category == "telemetry" {
		return
	}
	o.Log.Info(strings.TrimRight(output.Output, "\r\n"), "category", output.Category)
}

// Position is where execution is stopped. Paths are local.
type Position struct {
	Reason     string
	ThreadID   int
	FrameID    int
	FrameIndex int
	Frame      dap.StackFrame
	Path       string
	Line       int
}

// SessionConfig configures a SessionListener.
type SessionConfig struct {
	// Registry supplies breakpoints. A private registry is created when nil.
	Registry *Registry

	PathMap PathMap

	// Output receives debuggee output. Defaults to the logger.
	Output OutputSink

	// StackLevels limits the frames fetched per stop; 0 fetches all.
	StackLevels int

	Log logr.Logger
}

type breakpointKey struct {
	path string
	bp   dap.SourceBreakpoint
}

// SessionListener follows a Client and keeps the thread, stack and variable
// models in step with where the debuggee is stopped. On every stop it
// fetches the stack of the current thread, selects the top frame and loads
// its scopes and variables, restoring whatever the user had expanded there
// before.
//
// Responses issued before the last resumption are discarded by comparing
// their generation with the client's.
type SessionListener struct {
	client   *dap.Client
	registry *Registry
	paths    PathMap
	output   OutputSink
	levels   int
	log      logr.Logger

	threads   *models.ThreadsModel
	stack     *models.StackModel
	variables *models.VariablesHolder
	watches   *Watches

	mu              sync.Mutex
	state           dap.State
	caps            dap.Capabilities
	lastStop        *dap.StoppedEvent
	stopped         bool
	currentThreadID int
	currentFrameID  int
	position        *Position
	unstableFrameID bool
	paging          bool

	// resolution of the current stop
	resolving   bool
	epoch       int
	outstanding int
	restore     [][]string
	fetched     map[int]bool

	refreshBreakpoints bool
	pendingFiles       map[string]struct{}
	breakpointIDs      map[int]breakpointKey

	modules     []dap.Module
	gotoTargets []dap.GotoTarget
	exitCode    *int
	process     *dap.ProcessEvent

	readyMu   sync.Mutex
	readyNext int
	onReady   map[int]func(Position)

	ended     chan struct{}
	endOnce   sync.Once
	unwatchBP func()
}

// NewSessionListener attaches a listener to client.
func NewSessionListener(client *dap.Client, cfg SessionConfig) *SessionListener {
	log := cfg.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	output := cfg.Output
	if output == nil {
		output = LogOutput{Log: log.WithName("debuggee")}
	}

	s := &SessionListener{
		client:        client,
		registry:      registry,
		paths:         cfg.PathMap,
		output:        output,
		levels:        cfg.StackLevels,
		log:           log.WithValues("session", client.SessionID()),
		threads:       models.NewThreadsModel(),
		stack:         models.NewStackModel(),
		variables:     models.NewVariablesHolder(),
		watches:       NewWatches(),
		fetched:       make(map[int]bool),
		pendingFiles:  make(map[string]struct{}),
		breakpointIDs: make(map[int]breakpointKey),
		onReady:       make(map[int]func(Position)),
		ended:         make(chan struct{}),
	}
	s.unwatchBP = registry.OnChange(s.breakpointsChanged)
	client.AddListener(s)
	return s
}

// Close detaches the listener from its client and registry.
func (s *SessionListener) Close() {
	s.unwatchBP()
	s.client.RemoveListener(s)
}

// Client returns the client the listener follows.
func (s *SessionListener) Client() *dap.Client { return s.client }

// Registry returns the breakpoint registry kept in sync with the adapter.
func (s *SessionListener) Registry() *Registry { return s.registry }

// ThreadsModel returns the thread list.
func (s *SessionListener) ThreadsModel() *models.ThreadsModel { return s.threads }

// StackModel returns the call stack of the current thread.
func (s *SessionListener) StackModel() *models.StackModel { return s.stack }

// VariablesHolder returns the scopes and variables of the current frame.
func (s *SessionListener) VariablesHolder() *models.VariablesHolder { return s.variables }

// WatchList returns the watch expressions and their values.
func (s *SessionListener) WatchList() *Watches { return s.watches }

// Ended is closed when the session reaches a terminal state.
func (s *SessionListener) Ended() <-chan struct{} {
	return s.ended
}

// State returns the last state reported by the client.
func (s *SessionListener) State() dap.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capabilities returns the adapter's capabilities.
func (s *SessionListener) Capabilities() dap.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Stopped reports whether the debuggee is currently stopped.
func (s *SessionListener) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// CurrentThreadID returns the thread of the last stop.
func (s *SessionListener) CurrentThreadID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentThreadID
}

// CurrentFrameID returns the selected frame, 0 when none.
func (s *SessionListener) CurrentFrameID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFrameID
}

// Position returns the selected stop position.
func (s *SessionListener) Position() (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil {
		return Position{}, false
	}
	return *s.position, true
}

// LastStop returns the most recent stopped event.
func (s *SessionListener) LastStop() (dap.StoppedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastStop == nil {
		return dap.StoppedEvent{}, false
	}
	return *s.lastStop, true
}

// ExitCode returns the debuggee's exit code once it exited.
func (s *SessionListener) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

// Process returns the process event of the debuggee.
func (s *SessionListener) Process() (dap.ProcessEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process == nil {
		return dap.ProcessEvent{}, false
	}
	return *s.process, true
}

// ModuleList returns the known modules.
func (s *SessionListener) ModuleList() []dap.Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.modules)
}

// GotoTargetsResult returns the targets of the last GotoTargets request.
func (s *SessionListener) GotoTargetsResult() []dap.GotoTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.gotoTargets)
}

// OnPositionReady registers fn to be called once the stack, scopes and
// top-level variables of a stop have arrived. It returns a function
// unregistering fn.
func (s *SessionListener) OnPositionReady(fn func(Position)) func() {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	id := s.readyNext
	s.readyNext++
	s.onReady[id] = fn
	return func() {
		s.readyMu.Lock()
		delete(s.onReady, id)
		s.readyMu.Unlock()
	}
}

// User actions

// Resume continues every thread.
func (s *SessionListener) Resume() bool {
	return s.client.Resume(s.CurrentThreadID(), false)
}

// Pause interrupts the current thread.
func (s *SessionListener) Pause() bool {
	return s.client.Pause(s.CurrentThreadID())
}

// StepOver steps the current thread over one line.
func (s *SessionListener) StepOver() bool {
	return s.client.StepOver(s.CurrentThreadID(), false)
}

// StepInto steps the current thread into a call.
func (s *SessionListener) StepInto() bool {
	return s.client.StepInto(s.CurrentThreadID(), false)
}

// StepOut runs the current thread until its frame returns.
func (s *SessionListener) StepOut() bool {
	return s.client.StepOut(s.CurrentThreadID(), false)
}

// SelectThread makes threadID current and loads its stack.
func (s *SessionListener) SelectThread(threadID int) bool {
	s.mu.Lock()
	if !s.stopped {
		s.mu.Unlock()
		return false
	}
	s.currentThreadID = threadID
	s.beginResolve()
	s.mu.Unlock()

	s.threads.SetCurrent(threadID)
	if !s.client.StackTrace(threadID, 0, s.levels) {
		s.finishResolve()
		return false
	}
	return true
}

// SelectFrame makes frameID current and loads its scopes.
func (s *SessionListener) SelectFrame(frameID int) bool {
	for i, f := range s.stack.Frames() {
		if f.ID == frameID {
			s.mu.Lock()
			s.beginResolve()
			s.mu.Unlock()
			return s.selectFrame(f, i)
		}
	}
	return false
}

// LoadMoreFrames fetches the next page of the current stack.
func (s *SessionListener) LoadMoreFrames() bool {
	if !s.stack.HasMore() {
		return false
	}
	s.mu.Lock()
	s.paging = true
	s.mu.Unlock()
	return s.client.StackTrace(s.stack.ThreadID(), s.stack.Len(), s.levels)
}

// Expand fetches the children of variable row index and remembers the
// expansion for this location.
func (s *SessionListener) Expand(index int) bool {
	node, ok := s.variables.Node(index)
	if !ok || !node.Expandable() {
		return false
	}
	s.variables.MarkExpanded(index, false)
	return s.client.Variables(node.Reference(), dap.FilterBoth, 0, 0, nil)
}

// Collapse forgets the expansion of variable row index.
func (s *SessionListener) Collapse(index int) {
	s.variables.MarkCollapsed(index, false)
}

// ExpandWatch fetches the children of watch row index.
func (s *SessionListener) ExpandWatch(index int) bool {
	holder := s.watches.Holder()
	node, ok := holder.Node(index)
	if !ok || !node.Expandable() {
		return false
	}
	holder.MarkExpanded(index, true)
	return s.client.Variables(node.Reference(), dap.FilterBoth, 0, 0, func(gen dap.Generation, ref int, vars []dap.Variable) {
		if vars == nil || s.stale(gen, "variables") {
			return
		}
		holder.AddVariables(ref, vars)
	})
}

// AddWatch watches expression, evaluating it at once when stopped.
func (s *SessionListener) AddWatch(expression string) bool {
	if !s.watches.Add(expression) {
		return false
	}
	s.mu.Lock()
	stopped, frameID := s.stopped, s.currentFrameID
	s.mu.Unlock()
	if stopped {
		s.evaluateWatch(expression, frameID, s.client.Generation())
	}
	return true
}

// RemoveWatch stops watching expression.
func (s *SessionListener) RemoveWatch(expression string) bool {
	return s.watches.Remove(expression)
}

// EvaluateHover evaluates expression in the current frame for a tooltip.
// cb is called once; ok is false when evaluation failed.
func (s *SessionListener) EvaluateHover(expression string, cb func(v dap.Variable, ok bool)) bool {
	frameID := s.CurrentFrameID()
	if frameID == 0 {
		frameID = dap.NoFrame
	}
	return s.client.Evaluate(expression, dap.ContextHover, frameID, func(expr string, result *dap.EvaluateInfo) {
		if result == nil {
			cb(dap.Variable{Name: expr}, false)
			return
		}
		cb(result.AsVariable(expr), true)
	})
}

// RequestGotoTargets asks where execution could jump to on line of path.
func (s *SessionListener) RequestGotoTargets(path string, line int) bool {
	return s.client.GotoTargets(s.remoteSource(path), line, 0)
}

// LoadModules requests the module list.
func (s *SessionListener) LoadModules() bool {
	return s.client.Modules(0, 0)
}

// Breakpoint synchronization

func (s *SessionListener) remoteSource(path string) dap.Source {
	return dap.Source{Name: filepath.Base(path), Path: s.paths.ToRemote(path)}
}

func (s *SessionListener) sendBreakpoints(path string) bool {
	return s.client.SetBreakpoints(s.remoteSource(path), s.registry.Enabled(path), false)
}

func (s *SessionListener) syncAllBreakpoints() {
	for _, path := range s.registry.Files() {
		s.sendBreakpoints(path)
	}
}

// breakpointsChanged runs on whichever goroutine changed the registry.
// While the debuggee runs the change is queued and the debuggee paused; the
// resulting stop sends the queued files and resumes.
func (s *SessionListener) breakpointsChanged(path string) {
	switch s.client.State() {
	case dap.StateInitialized:
		s.sendBreakpoints(path)
	case dap.StateRunning:
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			s.sendBreakpoints(path)
			return
		}
		s.pendingFiles[path] = struct{}{}
		pause := !s.refreshBreakpoints
		s.refreshBreakpoints = true
		thread := s.currentThreadID
		s.mu.Unlock()

		if pause && !s.client.Pause(thread) {
			for _, p := range s.takePending() {
				s.sendBreakpoints(p)
			}
		}
	}
}

func (s *SessionListener) takePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]string, 0, len(s.pendingFiles))
	for p := range s.pendingFiles {
		files = append(files, p)
	}
	sort.Strings(files)
	s.pendingFiles = make(map[string]struct{})
	s.refreshBreakpoints = false
	return files
}

// Stop resolution. Callers of beginResolve hold s.mu.

func (s *SessionListener) beginResolve() {
	s.resolving = true
	s.epoch++
	s.outstanding = 0
	s.restore = nil
	s.fetched = make(map[int]bool)
}

func (s *SessionListener) finishResolve() {
	s.mu.Lock()
	if !s.resolving {
		s.mu.Unlock()
		return
	}
	s.resolving = false
	pos := Position{ThreadID: s.currentThreadID}
	if s.position != nil {
		pos = *s.position
	}
	s.mu.Unlock()

	s.readyMu.Lock()
	ids := make([]int, 0, len(s.onReady))
	for id := range s.onReady {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Position), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.onReady[id])
	}
	s.readyMu.Unlock()

	for _, fn := range fns {
		fn(pos)
	}
}

func (s *SessionListener) stale(gen dap.Generation, command string) bool {
	if current := s.client.Generation(); gen < current {
		s.log.V(1).Info("Dropping stale response", "command", command, "generation", gen, "current", current)
		return true
	}
	return false
}

func (s *SessionListener) selectFrame(frame dap.StackFrame, index int) bool {
	path := ""
	if frame.Source != nil {
		path = frame.Source.Path
	}
	loc := models.Location{File: path, Line: frame.Line, FrameIndex: index}

	s.mu.Lock()
	s.currentFrameID = frame.ID
	reason := ""
	if s.lastStop != nil {
		reason = s.lastStop.Reason
	}
	s.position = &Position{
		Reason:     reason,
		ThreadID:   s.currentThreadID,
		FrameID:    frame.ID,
		FrameIndex: index,
		Frame:      frame,
		Path:       path,
		Line:       frame.Line,
	}
	unstable := s.unstableFrameID
	s.unstableFrameID = false
	s.mu.Unlock()

	s.stack.SetCurrent(frame.ID)
	s.variables.Clear(false)
	restore := s.variables.ExpandedPaths(loc, false, unstable)

	s.mu.Lock()
	s.restore = restore
	s.mu.Unlock()

	s.evaluateWatches(frame.ID)

	if !s.client.Scopes(frame.ID) {
		s.finishResolve()
		return false
	}
	return true
}

func (s *SessionListener) evaluateWatches(frameID int) {
	gen := s.client.Generation()
	for _, expr := range s.watches.Expressions() {
		s.evaluateWatch(expr, frameID, gen)
	}
}

func (s *SessionListener) evaluateWatch(expression string, frameID int, gen dap.Generation) {
	accepted := s.client.Evaluate(expression, dap.ContextWatch, frameID, func(expr string, result *dap.EvaluateInfo) {
		if s.stale(gen, "evaluate") {
			return
		}
		s.watches.SetResult(expr, result)
	})
	if !accepted {
		s.watches.SetResult(expression, nil)
	}
}

// fetch requests the children of ref for the stop being resolved.
func (s *SessionListener) fetch(ref int) {
	s.mu.Lock()
	if s.fetched[ref] {
		s.mu.Unlock()
		return
	}
	s.fetched[ref] = true
	s.outstanding++
	epoch := s.epoch
	s.mu.Unlock()

	ok := s.client.Variables(ref, dap.FilterBoth, 0, 0, func(gen dap.Generation, ref int, vars []dap.Variable) {
		if vars != nil {
			s.applyVariables(gen, ref, vars)
		}
		s.fetchDone(epoch)
	})
	if !ok {
		s.fetchDone(epoch)
	}
}

func (s *SessionListener) fetchDone(epoch int) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.outstanding--
	s.mu.Unlock()

	s.restoreExpanded()

	s.mu.Lock()
	done := s.outstanding == 0
	s.mu.Unlock()
	if done {
		s.finishResolve()
	}
}

// restoreExpanded fetches remembered expansions whose node now exists.
func (s *SessionListener) restoreExpanded() {
	s.mu.Lock()
	restore := s.restore
	s.mu.Unlock()

	for _, path := range restore {
		i, ok := s.variables.Find(path)
		if !ok {
			continue
		}
		if node, ok := s.variables.Node(i); ok && node.Expandable() {
			s.fetch(node.Reference())
		}
	}
}

func (s *SessionListener) applyVariables(gen dap.Generation, ref int, vars []dap.Variable) bool {
	if s.stale(gen, "variables") {
		return false
	}
	s.variables.AddVariables(ref, vars)
	return true
}

func (s *SessionListener) teardown() {
	s.registry.ResetVerification()
	s.threads.Clear()
	s.stack.Clear()
	s.variables.Clear(true)
	s.watches.Reset()

	s.mu.Lock()
	s.stopped = false
	s.resolving = false
	s.epoch++
	s.position = nil
	s.currentFrameID = 0
	s.refreshBreakpoints = false
	s.pendingFiles = make(map[string]struct{})
	s.breakpointIDs = make(map[int]breakpointKey)
	s.mu.Unlock()

	s.endOnce.Do(func() { close(s.ended) })
}

// dap.Listener

func (s *SessionListener) StateChanged(_ string, state dap.State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if state.Terminal() {
		s.teardown()
	}
}

func (s *SessionListener) Initialized() {
	s.syncAllBreakpoints()
	s.client.ConfigurationDone()
}

func (s *SessionListener) CapabilitiesReceived(caps dap.Capabilities) {
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()
}

func (s *SessionListener) DebuggeeRunning() {
	s.log.V(1).Info("Debuggee running")
}

func (s *SessionListener) DebuggeeTerminated() {
	s.log.Info("Debuggee terminated")
}

func (s *SessionListener) DebuggeeExited(exitCode int) {
	s.mu.Lock()
	s.exitCode = &exitCode
	s.mu.Unlock()
	s.log.Info("Debuggee exited", "code", exitCode)
}

func (s *SessionListener) DebuggeeStopped(event dap.StoppedEvent) {
	s.mu.Lock()
	s.lastStop = &event
	if event.ThreadID != nil {
		s.currentThreadID = *event.ThreadID
	}
	thread := s.currentThreadID
	s.stopped = true
	refresh := s.refreshBreakpoints
	if !refresh {
		s.position = nil
		s.beginResolve()
	}
	s.mu.Unlock()

	if refresh {
		for _, path := range s.takePending() {
			s.sendBreakpoints(path)
		}
		s.client.Resume(thread, false)
		return
	}

	s.log.V(1).Info("Debuggee stopped", "reason", event.Reason, "thread", thread)
	s.threads.SetCurrent(thread)
	s.client.Threads()
	if !s.client.StackTrace(thread, 0, s.levels) {
		s.finishResolve()
	}
}

func (s *SessionListener) DebuggeeContinued(event dap.ContinuedEvent) {
	s.mu.Lock()
	s.stopped = false
	s.unstableFrameID = true
	s.resolving = false
	s.epoch++
	s.position = nil
	s.currentFrameID = 0
	s.mu.Unlock()

	s.log.V(1).Info("Debuggee continued", "thread", event.ThreadID, "all", event.AllThreadsContinued)
	s.stack.Clear()
	s.variables.Clear(false)
}

func (s *SessionListener) OutputProduced(output dap.Output) {
	s.output.Write(output)
}

func (s *SessionListener) DebuggingProcess(process dap.ProcessEvent) {
	s.mu.Lock()
	s.process = &process
	s.mu.Unlock()
}

func (s *SessionListener) ErrorResponse(_ string, command, summary string, _ *dap.ErrorMessage) {
	s.log.Info("Adapter rejected request", "command", command, "summary", summary)
	switch command {
	case "stackTrace", "scopes":
		s.finishResolve()
	}
}

func (s *SessionListener) ThreadChanged(event dap.ThreadEvent) {
	switch event.Reason {
	case "started":
		if s.threads.IndexOf(event.ThreadID) < 0 {
			s.threads.Upsert(dap.Thread{ID: event.ThreadID, Name: fmt.Sprintf("Thread %d", event.ThreadID)})
		}
	case "exited":
		s.threads.Remove(event.ThreadID)
	}
}

func (s *SessionListener) ModuleChanged(event dap.ModuleEvent) {
	key := event.Module.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.modules, func(m dap.Module) bool { return m.Key() == key })
	switch {
	case event.Reason == "removed":
		if i >= 0 {
			s.modules = slices.Delete(s.modules, i, i+1)
		}
	case i >= 0:
		s.modules[i] = event.Module
	default:
		s.modules = append(s.modules, event.Module)
	}
}

func (s *SessionListener) ServerDisconnected() {
	s.log.Info("Debug adapter disconnected")
}

func (s *SessionListener) BreakpointChanged(event dap.BreakpointEvent) {
	if event.Reason == "removed" {
		return
	}
	s.mu.Lock()
	key, ok := s.breakpointIDs[event.Breakpoint.ID]
	s.mu.Unlock()
	if ok && event.Breakpoint.ID != 0 {
		s.registry.MarkVerified(key.path, key.bp, event.Breakpoint)
	}
}

func (s *SessionListener) BreakpointsSet(source dap.Source, requested []dap.SourceBreakpoint, echoed []dap.Breakpoint) {
	path := s.paths.ToLocal(source.Path)
	s.registry.ApplyVerified(path, requested, echoed)

	s.mu.Lock()
	for i := range min(len(requested), len(echoed)) {
		if id := echoed[i].ID; id != 0 {
			s.breakpointIDs[id] = breakpointKey{path: path, bp: requested[i]}
		}
	}
	s.mu.Unlock()
}

func (s *SessionListener) ExpressionEvaluated(expression string, result *dap.EvaluateInfo) {
	if result == nil {
		s.log.V(1).Info("Evaluation failed", "expression", expression)
		return
	}
	s.log.V(1).Info("Evaluated", "expression", expression, "result", result.Result)
}

func (s *SessionListener) GotoTargets(_ dap.Source, targets []dap.GotoTarget) {
	s.mu.Lock()
	s.gotoTargets = slices.Clone(targets)
	s.mu.Unlock()
}

func (s *SessionListener) Threads(threads []dap.Thread) {
	s.threads.SetThreads(threads)
	s.threads.SetCurrent(s.CurrentThreadID())
}

func (s *SessionListener) StackTrace(gen dap.Generation, threadID int, trace dap.StackTraceInfo) {
	if s.stale(gen, "stackTrace") {
		return
	}

	frames := make([]dap.StackFrame, len(trace.StackFrames))
	for i, f := range trace.StackFrames {
		if f.Source != nil {
			src := *f.Source
			src.Path = s.paths.ToLocal(src.Path)
			f.Source = &src
		}
		frames[i] = f
	}

	s.mu.Lock()
	paging := s.paging
	s.paging = false
	selecting := s.resolving && threadID == s.currentThreadID
	s.mu.Unlock()

	if paging {
		s.stack.AppendFrames(threadID, frames)
		return
	}

	s.stack.SetStack(threadID, frames, trace.TotalFrames)
	if !selecting {
		return
	}
	if len(frames) == 0 {
		s.finishResolve()
		return
	}
	s.selectFrame(frames[0], 0)
}

func (s *SessionListener) Scopes(gen dap.Generation, frameID int, scopes []dap.Scope) {
	if s.stale(gen, "scopes") {
		return
	}
	s.mu.Lock()
	current := s.currentFrameID
	s.mu.Unlock()
	if frameID != current {
		return
	}

	vars := make([]dap.Variable, 0, len(scopes))
	for _, sc := range scopes {
		vars = append(vars, dap.Variable{
			Name:               sc.Name,
			VariablesReference: sc.VariablesReference,
			NamedVariables:     sc.NamedVariables,
			IndexedVariables:   sc.IndexedVariables,
		})
	}
	s.variables.Clear(false)
	s.variables.AddVariables(0, vars)

	pending := false
	for _, sc := range scopes {
		if sc.Expensive || sc.VariablesReference <= 0 {
			continue
		}
		s.fetch(sc.VariablesReference)
		pending = true
	}
	if !pending {
		s.finishResolve()
	}
}

func (s *SessionListener) Variables(gen dap.Generation, reference int, vars []dap.Variable) {
	s.applyVariables(gen, reference, vars)
}

func (s *SessionListener) Modules(modules []dap.Module, _ int) {
	s.mu.Lock()
	s.modules = slices.Clone(modules)
	s.mu.Unlock()
}
