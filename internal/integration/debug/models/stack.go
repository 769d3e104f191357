package models

import (
	"sync"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
)

// StackModel is the call stack of one thread with the selected frame highlighted.
type StackModel struct {
	mu       sync.RWMutex
	threadID int
	frames   []dap.StackFrame
	total    int
	current  int
	obs      observers
}

// NewStackModel returns an empty stack.
func NewStackModel() *StackModel {
	return &StackModel{}
}

// OnInvalidate registers fn and returns a function unregistering it.
func (m *StackModel) OnInvalidate(fn InvalidateFunc) func() {
	return m.obs.subscribe(fn)
}

// SetStack replaces the frames with those of threadID.
func (m *StackModel) SetStack(threadID int, frames []dap.StackFrame, total int) {
	m.mu.Lock()
	flag := UpdateValues
	if len(frames) != len(m.frames) || threadID != m.threadID {
		flag = UpdateRowCount
	}
	m.threadID = threadID
	m.frames = append([]dap.StackFrame(nil), frames...)
	m.total = max(total, len(frames))
	m.mu.Unlock()

	m.obs.fire(flag)
}

// AppendFrames adds a later page of frames for the same thread.
func (m *StackModel) AppendFrames(threadID int, frames []dap.StackFrame) bool {
	if len(frames) == 0 {
		return false
	}
	m.mu.Lock()
	if threadID != m.threadID {
		m.mu.Unlock()
		return false
	}
	m.frames = append(m.frames, frames...)
	m.total = max(m.total, len(m.frames))
	m.mu.Unlock()

	m.obs.fire(UpdateRowCount)
	return true
}

// SetCurrent highlights frameID.
func (m *StackModel) SetCurrent(frameID int) {
	m.mu.Lock()
	if m.current == frameID {
		m.mu.Unlock()
		return
	}
	m.current = frameID
	m.mu.Unlock()

	m.obs.fire(UpdateValues)
}

// Current returns the highlighted frame id.
func (m *StackModel) Current() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CurrentFrame returns the highlighted frame and its row.
func (m *StackModel) CurrentFrame() (dap.StackFrame, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, f := range m.frames {
		if f.ID == m.current {
			return f, i, true
		}
	}
	return dap.StackFrame{}, -1, false
}

// Clear empties the stack.
func (m *StackModel) Clear() {
	m.mu.Lock()
	if m.frames == nil && m.current == 0 {
		m.mu.Unlock()
		return
	}
	m.frames = nil
	m.total = 0
	m.current = 0
	m.mu.Unlock()

	m.obs.fire(UpdateRowCount)
}

// ThreadID returns the thread the frames belong to.
func (m *StackModel) ThreadID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.threadID
}

// Total returns the adapter-reported number of frames.
func (m *StackModel) Total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// HasMore reports whether more frames can be fetched.
func (m *StackModel) HasMore() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames) < m.total
}

// Len returns the number of loaded frames.
func (m *StackModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

// Frame returns row i.
func (m *StackModel) Frame(i int) (dap.StackFrame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.frames) {
		return dap.StackFrame{}, false
	}
	return m.frames[i], true
}

// Frames returns a copy of the loaded frames.
func (m *StackModel) Frames() []dap.StackFrame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dap.StackFrame(nil), m.frames...)
}
