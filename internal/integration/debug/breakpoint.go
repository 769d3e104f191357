package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
	"github.com/dshills/keystorm-debug/internal/integration/debug/models"
)

// ChangeFunc is called after the breakpoints of path changed.
type ChangeFunc func(path string)

// Registry holds the breakpoints of every file, keyed by absolute path. It
// outlives debug sessions: sessions read it to synchronize the adapter and
// write verification results back.
//
// Each file holds a set; adding a breakpoint structurally equal to an
// existing one is a no-op. Every change is mirrored into Model.
type Registry struct {
	mu          sync.RWMutex
	byPath      map[string][]dap.SourceBreakpointStateful
	persistPath string

	model *models.BreakpointsModel

	changeMu sync.Mutex
	nextID   int
	onChange map[int]ChangeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byPath:   make(map[string][]dap.SourceBreakpointStateful),
		model:    models.NewBreakpointsModel(),
		onChange: make(map[int]ChangeFunc),
	}
}

// Model returns the flat table view of the registry.
func (r *Registry) Model() *models.BreakpointsModel {
	return r.model
}

// SetPersistPath sets the file used by Save and Load.
func (r *Registry) SetPersistPath(path string) {
	r.mu.Lock()
	r.persistPath = path
	r.mu.Unlock()
}

// OnChange registers fn and returns a function unregistering it.
func (r *Registry) OnChange(fn ChangeFunc) func() {
	r.changeMu.Lock()
	defer r.changeMu.Unlock()
	id := r.nextID
	r.nextID++
	r.onChange[id] = fn
	return func() {
		r.changeMu.Lock()
		delete(r.onChange, id)
		r.changeMu.Unlock()
	}
}

func (r *Registry) changed(path string) {
	r.changeMu.Lock()
	ids := make([]int, 0, len(r.onChange))
	for id := range r.onChange {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]ChangeFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.onChange[id])
	}
	r.changeMu.Unlock()

	for _, fn := range fns {
		fn(path)
	}
}

func indexOfLine(bps []dap.SourceBreakpointStateful, line int) int {
	return slices.IndexFunc(bps, func(bp dap.SourceBreakpointStateful) bool { return bp.Line == line })
}

func indexOf(bps []dap.SourceBreakpointStateful, bp dap.SourceBreakpoint) int {
	return slices.IndexFunc(bps, func(b dap.SourceBreakpointStateful) bool { return b.SourceBreakpoint.Equal(bp) })
}

// mutate runs fn under the write lock, so the registry and its model change
// together. Model observers and change subscribers run after the lock is
// released. fn reports whether path changed.
func (r *Registry) mutate(path string, fn func() bool) bool {
	changed := false
	r.model.Batch(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		changed = fn()
	})
	if changed {
		r.changed(path)
	}
	return changed
}

// Add inserts bp into the set of path. It returns false if an equal
// breakpoint already exists.
func (r *Registry) Add(path string, bp dap.SourceBreakpointStateful) bool {
	return r.mutate(path, func() bool { return r.addLocked(path, bp) })
}

func (r *Registry) addLocked(path string, bp dap.SourceBreakpointStateful) bool {
	if indexOf(r.byPath[path], bp.SourceBreakpoint) >= 0 {
		return false
	}
	r.byPath[path] = append(r.byPath[path], bp)
	r.model.Insert(path, bp)
	return true
}

// Toggle removes the breakpoints on line, or adds a plain enabled breakpoint
// there if none exists. It reports whether a breakpoint was added.
func (r *Registry) Toggle(path string, line int) bool {
	added := false
	r.mutate(path, func() bool {
		if r.removeLocked(path, line) {
			return true
		}
		added = r.addLocked(path, dap.NewSourceBreakpoint(line))
		return added
	})
	return added
}

// Remove deletes every breakpoint of path on line.
func (r *Registry) Remove(path string, line int) bool {
	return r.mutate(path, func() bool { return r.removeLocked(path, line) })
}

func (r *Registry) removeLocked(path string, line int) bool {
	var removed []dap.SourceBreakpoint
	kept := r.byPath[path][:0]
	for _, bp := range r.byPath[path] {
		if bp.Line == line {
			removed = append(removed, bp.SourceBreakpoint)
		} else {
			kept = append(kept, bp)
		}
	}
	if len(removed) == 0 {
		return false
	}
	r.store(path, kept)
	for _, bp := range removed {
		r.model.Erase(path, bp)
	}
	return true
}

// RemoveBreakpoint deletes the breakpoint of path equal to bp.
func (r *Registry) RemoveBreakpoint(path string, bp dap.SourceBreakpoint) bool {
	return r.mutate(path, func() bool {
		bps := r.byPath[path]
		i := indexOf(bps, bp)
		if i < 0 {
			return false
		}
		r.store(path, slices.Delete(bps, i, i+1))
		r.model.Erase(path, bp)
		return true
	})
}

// ClearFile deletes every breakpoint of path and returns how many there were.
func (r *Registry) ClearFile(path string) int {
	n := 0
	r.mutate(path, func() bool {
		n = len(r.byPath[path])
		if n == 0 {
			return false
		}
		delete(r.byPath, path)
		r.model.ErasePath(path)
		return true
	})
	return n
}

// store must be called with r.mu held.
func (r *Registry) store(path string, bps []dap.SourceBreakpointStateful) {
	if len(bps) == 0 {
		delete(r.byPath, path)
		return
	}
	r.byPath[path] = bps
}

// SetEnabled enables or disables the breakpoints of path on line.
func (r *Registry) SetEnabled(path string, line int, enabled bool) bool {
	return r.mutate(path, func() bool { return r.setEnabledLocked(path, line, enabled) })
}

func (r *Registry) setEnabledLocked(path string, line int, enabled bool) bool {
	touched := false
	for i := range r.byPath[path] {
		bp := &r.byPath[path][i]
		if bp.Line == line && bp.Enabled != enabled {
			bp.Enabled = enabled
			r.model.Enable(path, bp.SourceBreakpoint, enabled)
			touched = true
		}
	}
	return touched
}

// ToggleEnabled flips the enabled flag of the first breakpoint on line.
func (r *Registry) ToggleEnabled(path string, line int) bool {
	return r.mutate(path, func() bool {
		i := indexOfLine(r.byPath[path], line)
		if i < 0 {
			return false
		}
		return r.setEnabledLocked(path, line, !r.byPath[path][i].Enabled)
	})
}

// SetCondition changes the condition of the breakpoint on line. A change
// that would duplicate another breakpoint is refused.
func (r *Registry) SetCondition(path string, line int, condition string) bool {
	return r.modify(path, line, func(bp *dap.SourceBreakpoint) { bp.Condition = condition })
}

// SetHitCondition changes the hit condition of the breakpoint on line.
func (r *Registry) SetHitCondition(path string, line int, hitCondition string) bool {
	return r.modify(path, line, func(bp *dap.SourceBreakpoint) { bp.HitCondition = hitCondition })
}

// SetLogMessage turns the breakpoint on line into a logpoint, or back into
// a breakpoint when message is empty.
func (r *Registry) SetLogMessage(path string, line int, message string) bool {
	return r.modify(path, line, func(bp *dap.SourceBreakpoint) { bp.LogMessage = message })
}

func (r *Registry) modify(path string, line int, fn func(*dap.SourceBreakpoint)) bool {
	return r.mutate(path, func() bool {
		bps := r.byPath[path]
		i := indexOfLine(bps, line)
		if i < 0 {
			return false
		}
		from := bps[i].SourceBreakpoint
		to := from
		fn(&to)
		if to == from || indexOf(bps, to) >= 0 {
			return false
		}
		bps[i].SourceBreakpoint = to
		r.model.Move(path, from, to)
		return true
	})
}

// MoveLines shifts the breakpoints of path after delta lines were inserted
// (delta > 0) or removed (delta < 0) at fromLine. Breakpoints inside a
// removed range move to fromLine; duplicates that result are merged.
func (r *Registry) MoveLines(path string, fromLine, delta int) int {
	if delta == 0 {
		return 0
	}

	n := 0
	r.mutate(path, func() bool {
		type move struct{ from, to dap.SourceBreakpoint }
		var moves []move
		var dropped []dap.SourceBreakpoint

		var out []dap.SourceBreakpointStateful
		for _, bp := range r.byPath[path] {
			next := bp
			switch {
			case bp.Line < fromLine:
			case delta < 0 && bp.Line < fromLine-delta:
				next.Line = fromLine
			default:
				next.Line = bp.Line + delta
			}
			if indexOf(out, next.SourceBreakpoint) >= 0 {
				dropped = append(dropped, bp.SourceBreakpoint)
				continue
			}
			out = append(out, next)
			if next.Line != bp.Line {
				moves = append(moves, move{bp.SourceBreakpoint, next.SourceBreakpoint})
			}
		}
		if len(moves) == 0 && len(dropped) == 0 {
			return false
		}
		r.store(path, out)

		for _, bp := range dropped {
			r.model.Erase(path, bp)
		}
		// Apply in the direction of travel so each target row is already free.
		slices.SortFunc(moves, func(a, b move) int {
			if delta > 0 {
				return b.from.Line - a.from.Line
			}
			return a.from.Line - b.from.Line
		})
		for _, m := range moves {
			r.model.Move(path, m.from, m.to)
		}
		n = len(moves) + len(dropped)
		return true
	})
	return n
}

// Has reports whether path has a breakpoint on line.
func (r *Registry) Has(path string, line int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return indexOfLine(r.byPath[path], line) >= 0
}

// Get returns the first breakpoint of path on line.
func (r *Registry) Get(path string, line int) (dap.SourceBreakpointStateful, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := indexOfLine(r.byPath[path], line)
	if i < 0 {
		return dap.SourceBreakpointStateful{}, false
	}
	return r.byPath[path][i], true
}

// ForFile returns a copy of the breakpoints of path.
func (r *Registry) ForFile(path string) []dap.SourceBreakpointStateful {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byPath[path])
}

// Enabled returns the enabled breakpoints of path as they are sent to an adapter.
func (r *Registry) Enabled(path string) []dap.SourceBreakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dap.SourceBreakpoint, 0, len(r.byPath[path]))
	for _, bp := range r.byPath[path] {
		if bp.Enabled {
			out = append(out, bp.SourceBreakpoint)
		}
	}
	return out
}

// Files returns the paths that have breakpoints, sorted.
func (r *Registry) Files() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.byPath))
	for path := range r.byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of breakpoints across all files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, bps := range r.byPath {
		n += len(bps)
	}
	return n
}

// ApplyVerified records an adapter's answer to setBreakpoints for path.
// echoed is matched to requested by position. Breakpoints themselves are
// unchanged; only their verification state in the model is updated.
func (r *Registry) ApplyVerified(path string, requested []dap.SourceBreakpoint, echoed []dap.Breakpoint) int {
	n := min(len(requested), len(echoed))
	applied := 0
	for i := range n {
		if r.MarkVerified(path, requested[i], echoed[i]) {
			applied++
		}
	}
	return applied
}

// MarkVerified records the adapter's placement of one breakpoint. A missing
// echoed line means the requested line was kept.
func (r *Registry) MarkVerified(path string, bp dap.SourceBreakpoint, echo dap.Breakpoint) bool {
	known := false
	r.model.Batch(func() {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if known = indexOf(r.byPath[path], bp) >= 0; known {
			r.model.SetVerified(path, bp, echo.Verified, echo.LineOr(bp.Line), echo.Message)
		}
	})
	return known
}

// ResetVerification marks every breakpoint unverified, e.g. when a session ends.
func (r *Registry) ResetVerification() {
	r.model.ResetVerification()
}

// persistedBreakpoint is the on-disk form of one breakpoint.
type persistedBreakpoint struct {
	Path         string `json:"path"`
	Line         int    `json:"line"`
	Column       int    `json:"column,omitempty"`
	Condition    string `json:"condition,omitempty"`
	HitCondition string `json:"hitCondition,omitempty"`
	LogMessage   string `json:"logMessage,omitempty"`
	Enabled      bool   `json:"enabled"`
}

// persistedBreakpoints is the format for persisted breakpoints.
type persistedBreakpoints struct {
	Version     int                   `json:"version"`
	Breakpoints []persistedBreakpoint `json:"breakpoints"`
}

const persistVersion = 1

// Save persists breakpoints to disk.
func (r *Registry) Save() error {
	r.mu.RLock()
	path := r.persistPath
	data := persistedBreakpoints{Version: persistVersion}
	files := make([]string, 0, len(r.byPath))
	for file := range r.byPath {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		for _, bp := range r.byPath[file] {
			data.Breakpoints = append(data.Breakpoints, persistedBreakpoint{
				Path:         file,
				Line:         bp.Line,
				Column:       bp.Column,
				Condition:    bp.Condition,
				HitCondition: bp.HitCondition,
				LogMessage:   bp.LogMessage,
				Enabled:      bp.Enabled,
			})
		}
	}
	r.mu.RUnlock()

	if path == "" {
		return ErrNoPersistPath
	}

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal breakpoints: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// Load replaces the registry contents with the persisted breakpoints. A
// missing file leaves the registry unchanged.
func (r *Registry) Load() error {
	r.mu.RLock()
	path := r.persistPath
	r.mu.RUnlock()

	if path == "" {
		return ErrNoPersistPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No persisted breakpoints
		}
		return fmt.Errorf("read file: %w", err)
	}

	var data persistedBreakpoints
	if err := json.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("unmarshal breakpoints: %w", err)
	}
	if data.Version > persistVersion {
		return fmt.Errorf("%s: %w %d", path, ErrUnsupportedVersion, data.Version)
	}

	for _, file := range r.Files() {
		r.ClearFile(file)
	}
	for _, p := range data.Breakpoints {
		if p.Path == "" || p.Line <= 0 {
			continue
		}
		r.Add(p.Path, dap.SourceBreakpointStateful{
			SourceBreakpoint: dap.SourceBreakpoint{
				Line:         p.Line,
				Column:       p.Column,
				Condition:    p.Condition,
				HitCondition: p.HitCondition,
				LogMessage:   p.LogMessage,
			},
			Enabled: p.Enabled,
		})
	}

	return nil
}
