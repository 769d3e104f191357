package models

import (
	"sort"
	"sync"
)

// UpdateFlag describes the extent of a model change.
type UpdateFlag int

const (
	// UpdateValues means rows kept their positions; only their contents
	// or the highlight changed.
	UpdateValues UpdateFlag = iota
	// UpdateRowCount means rows were inserted or removed.
	UpdateRowCount
)

// String returns the flag name.
func (f UpdateFlag) String() string {
	if f == UpdateRowCount {
		return "row-count"
	}
	return "values"
}

// InvalidateFunc is called after a model changed.
type InvalidateFunc func(flag UpdateFlag)

type observers struct {
	mu   sync.Mutex
	next int
	fns  map[int]InvalidateFunc
}

// subscribe registers fn and returns a function removing it.
func (o *observers) subscribe(fn InvalidateFunc) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]InvalidateFunc)
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.fns, id)
		o.mu.Unlock()
	}
}

// fire must be called without the model lock held.
func (o *observers) fire(flag UpdateFlag) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]InvalidateFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(flag)
	}
}
