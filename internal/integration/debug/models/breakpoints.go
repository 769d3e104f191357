package models

import (
	"sync"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
)

// BreakpointRow is one row of the breakpoint table.
type BreakpointRow struct {
	Path       string
	Breakpoint dap.SourceBreakpointStateful

	// Verified is set once the adapter confirmed the placement.
	Verified bool
	// ActualLine is where the adapter placed the breakpoint; 0 until known.
	ActualLine int
	// Message is the adapter's explanation, usually for unverified rows.
	Message string
}

// BreakpointsModel is a flat table of breakpoints across all files.
// Row order is insertion order.
type BreakpointsModel struct {
	mu   sync.RWMutex
	rows []BreakpointRow
	obs  observers

	// batching > 0 defers notifications; pending holds the widest flag.
	batching int
	pending  *UpdateFlag
}

// NewBreakpointsModel returns an empty table.
func NewBreakpointsModel() *BreakpointsModel {
	return &BreakpointsModel{}
}

// OnInvalidate registers fn and returns a function unregistering it.
func (m *BreakpointsModel) OnInvalidate(fn InvalidateFunc) func() {
	return m.obs.subscribe(fn)
}

// Batch runs fn with notifications deferred. Observers fire once after fn
// returns, with the widest flag of the changes made meanwhile. fn may call
// the model's mutating methods; it runs without the model lock.
func (m *BreakpointsModel) Batch(fn func()) {
	m.mu.Lock()
	m.batching++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.batching--
		var flag *UpdateFlag
		if m.batching == 0 {
			flag, m.pending = m.pending, nil
		}
		m.mu.Unlock()
		if flag != nil {
			m.obs.fire(*flag)
		}
	}()
	fn()
}

// notify fires flag, or records it while a batch is open.
func (m *BreakpointsModel) notify(flag UpdateFlag) {
	m.mu.Lock()
	if m.batching > 0 {
		if m.pending == nil || flag > *m.pending {
			m.pending = &flag
		}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.obs.fire(flag)
}

func (m *BreakpointsModel) indexOf(path string, bp dap.SourceBreakpoint) int {
	for i, row := range m.rows {
		if row.Path == path && row.Breakpoint.SourceBreakpoint == bp {
			return i
		}
	}
	return -1
}

// Insert adds bp for path. It returns false if an equal breakpoint exists.
func (m *BreakpointsModel) Insert(path string, bp dap.SourceBreakpointStateful) bool {
	m.mu.Lock()
	if m.indexOf(path, bp.SourceBreakpoint) >= 0 {
		m.mu.Unlock()
		return false
	}
	m.rows = append(m.rows, BreakpointRow{Path: path, Breakpoint: bp})
	m.mu.Unlock()

	m.notify(UpdateRowCount)
	return true
}

// Erase removes bp from path.
func (m *BreakpointsModel) Erase(path string, bp dap.SourceBreakpoint) bool {
	m.mu.Lock()
	i := m.indexOf(path, bp)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	m.mu.Unlock()

	m.notify(UpdateRowCount)
	return true
}

// ErasePath removes every breakpoint of path and returns how many were removed.
func (m *BreakpointsModel) ErasePath(path string) int {
	m.mu.Lock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.Path != path {
			kept = append(kept, row)
		}
	}
	removed := len(m.rows) - len(kept)
	m.rows = kept
	m.mu.Unlock()

	if removed > 0 {
		m.notify(UpdateRowCount)
	}
	return removed
}

// Enable sets the enabled flag of bp.
func (m *BreakpointsModel) Enable(path string, bp dap.SourceBreakpoint, enabled bool) bool {
	return m.update(path, bp, func(row *BreakpointRow) bool {
		if row.Breakpoint.Enabled == enabled {
			return false
		}
		row.Breakpoint.Enabled = enabled
		return true
	})
}

// SetVerified records the adapter's placement of bp.
func (m *BreakpointsModel) SetVerified(path string, bp dap.SourceBreakpoint, verified bool, actualLine int, message string) bool {
	return m.update(path, bp, func(row *BreakpointRow) bool {
		if row.Verified == verified && row.ActualLine == actualLine && row.Message == message {
			return false
		}
		row.Verified = verified
		row.ActualLine = actualLine
		row.Message = message
		return true
	})
}

// Move replaces from with to in place, keeping the row position. The
// verification state is reset because the adapter has not seen the new line.
func (m *BreakpointsModel) Move(path string, from, to dap.SourceBreakpoint) bool {
	return m.update(path, from, func(row *BreakpointRow) bool {
		row.Breakpoint.SourceBreakpoint = to
		row.Verified = false
		row.ActualLine = 0
		row.Message = ""
		return true
	})
}

// ResetVerification marks every row unverified, e.g. when a session ends.
func (m *BreakpointsModel) ResetVerification() {
	m.mu.Lock()
	changed := false
	for i := range m.rows {
		if m.rows[i].Verified || m.rows[i].ActualLine != 0 || m.rows[i].Message != "" {
			m.rows[i].Verified = false
			m.rows[i].ActualLine = 0
			m.rows[i].Message = ""
			changed = true
		}
	}
	m.mu.Unlock()

	if changed {
		m.notify(UpdateValues)
	}
}

func (m *BreakpointsModel) update(path string, bp dap.SourceBreakpoint, fn func(*BreakpointRow) bool) bool {
	m.mu.Lock()
	i := m.indexOf(path, bp)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	changed := fn(&m.rows[i])
	m.mu.Unlock()

	if changed {
		m.notify(UpdateValues)
	}
	return changed
}

// Len returns the number of rows.
func (m *BreakpointsModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Row returns row i.
func (m *BreakpointsModel) Row(i int) (BreakpointRow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.rows) {
		return BreakpointRow{}, false
	}
	return m.rows[i], true
}

// Find returns the row for bp in path.
func (m *BreakpointsModel) Find(path string, bp dap.SourceBreakpoint) (BreakpointRow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(path, bp)
	if i < 0 {
		return BreakpointRow{}, false
	}
	return m.rows[i], true
}

// Rows returns a copy of all rows.
func (m *BreakpointsModel) Rows() []BreakpointRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BreakpointRow, len(m.rows))
	copy(out, m.rows)
	return out
}
