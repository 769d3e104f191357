package models

import (
	"sync"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
)

// ThreadsModel lists the debuggee's threads and highlights the current one.
type ThreadsModel struct {
	mu      sync.RWMutex
	threads []dap.Thread
	current int
	obs     observers
}

// NewThreadsModel returns an empty thread list.
func NewThreadsModel() *ThreadsModel {
	return &ThreadsModel{}
}

// OnInvalidate registers fn and returns a function unregistering it.
func (m *ThreadsModel) OnInvalidate(fn InvalidateFunc) func() {
	return m.obs.subscribe(fn)
}

// SetThreads replaces the list.
func (m *ThreadsModel) SetThreads(threads []dap.Thread) {
	m.mu.Lock()
	flag := UpdateValues
	if len(threads) != len(m.threads) {
		flag = UpdateRowCount
	}
	m.threads = append([]dap.Thread(nil), threads...)
	m.mu.Unlock()

	m.obs.fire(flag)
}

// Upsert adds thread or renames an existing one with the same id.
func (m *ThreadsModel) Upsert(thread dap.Thread) {
	m.mu.Lock()
	flag := UpdateRowCount
	if i := m.indexOf(thread.ID); i >= 0 {
		if m.threads[i] == thread {
			m.mu.Unlock()
			return
		}
		m.threads[i] = thread
		flag = UpdateValues
	} else {
		m.threads = append(m.threads, thread)
	}
	m.mu.Unlock()

	m.obs.fire(flag)
}

// Remove drops the thread with id.
func (m *ThreadsModel) Remove(id int) bool {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.threads = append(m.threads[:i], m.threads[i+1:]...)
	m.mu.Unlock()

	m.obs.fire(UpdateRowCount)
	return true
}

// SetCurrent changes the highlighted thread.
func (m *ThreadsModel) SetCurrent(id int) {
	m.mu.Lock()
	if m.current == id {
		m.mu.Unlock()
		return
	}
	m.current = id
	m.mu.Unlock()

	m.obs.fire(UpdateValues)
}

// Current returns the highlighted thread id, 0 if none.
func (m *ThreadsModel) Current() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Clear empties the list and the highlight.
func (m *ThreadsModel) Clear() {
	m.mu.Lock()
	m.threads = nil
	m.current = 0
	m.mu.Unlock()

	m.obs.fire(UpdateRowCount)
}

func (m *ThreadsModel) indexOf(id int) int {
	for i, t := range m.threads {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// IndexOf returns the row of thread id, or -1.
func (m *ThreadsModel) IndexOf(id int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexOf(id)
}

// Len returns the number of threads.
func (m *ThreadsModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.threads)
}

// Thread returns row i.
func (m *ThreadsModel) Thread(i int) (dap.Thread, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.threads) {
		return dap.Thread{}, false
	}
	return m.threads[i], true
}

// Threads returns a copy of the list.
func (m *ThreadsModel) Threads() []dap.Thread {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dap.Thread(nil), m.threads...)
}
