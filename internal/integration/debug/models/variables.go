package models

import (
	"slices"
	"sync"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
)

// RootIndex is the arena index of the invisible root node.
const RootIndex = 0

const noParent = -1

// VariableNode is one node of the variable tree. Parent and Children are
// arena indices; the parent owns its children.
type VariableNode struct {
	Var      dap.Variable
	Parent   int
	Children []int
}

// Reference returns the node's variablesReference.
func (n VariableNode) Reference() int {
	return n.Var.VariablesReference
}

// Expandable reports whether the adapter can list children for the node.
func (n VariableNode) Expandable() bool {
	return n.Var.VariablesReference > 0
}

// VariablesHolder owns a variable tree stored as an arena of nodes plus a
// single secondary index from variablesReference to node.
//
// Children are matched by name, not by reference, because leaves have no
// reference and references change between stops. Refreshing a parent
// overwrites existing children in place so row identity survives.
type VariablesHolder struct {
	mu       sync.RWMutex
	nodes    []VariableNode
	refs     map[int]int
	live     int
	expanded *expandedStates
	obs      observers
}

// NewVariablesHolder returns a holder with an empty root.
func NewVariablesHolder() *VariablesHolder {
	h := &VariablesHolder{
		refs:     make(map[int]int),
		expanded: newExpandedStates(),
	}
	h.reset()
	return h
}

func (h *VariablesHolder) reset() {
	h.nodes = []VariableNode{{Var: dap.Variable{Name: "Root"}, Parent: noParent}}
	clear(h.refs)
	h.live = 0
}

// OnInvalidate registers fn and returns a function unregistering it.
func (h *VariablesHolder) OnInvalidate(fn InvalidateFunc) func() {
	return h.obs.subscribe(fn)
}

// AddVariables merges vars under the node registered for parentRef, or
// under the root when parentRef is 0. Unknown references are ignored.
// It reports whether rows were added.
func (h *VariablesHolder) AddVariables(parentRef int, vars []dap.Variable) bool {
	h.mu.Lock()
	parent, ok := h.resolve(parentRef)
	if !ok {
		h.mu.Unlock()
		return false
	}

	added := false
	for _, v := range vars {
		if v.Name == "" {
			continue
		}
		if i := h.childByName(parent, v.Name); i >= 0 {
			h.setVar(i, v)
			continue
		}
		h.appendChild(parent, v)
		added = true
	}
	h.mu.Unlock()

	if added {
		h.obs.fire(UpdateRowCount)
	} else {
		h.obs.fire(UpdateValues)
	}
	return added
}

// UpsertRootChild replaces the root child named v.Name in place, or appends
// it. A replaced child loses its subtree, which belonged to the old value.
func (h *VariablesHolder) UpsertRootChild(v dap.Variable) {
	h.mu.Lock()
	flag := UpdateValues
	if i := h.childByName(RootIndex, v.Name); i >= 0 {
		if len(h.nodes[i].Children) > 0 {
			h.dropChildren(i)
			flag = UpdateRowCount
		}
		h.setVar(i, v)
	} else {
		h.appendChild(RootIndex, v)
		flag = UpdateRowCount
	}
	h.mu.Unlock()

	h.obs.fire(flag)
}

// RemoveRootChild removes the root child called name together with its subtree.
func (h *VariablesHolder) RemoveRootChild(name string) bool {
	h.mu.Lock()
	i := h.childByName(RootIndex, name)
	if i < 0 {
		h.mu.Unlock()
		return false
	}
	h.dropChildren(i)
	h.unregister(i)
	h.nodes[i].Parent = noParent
	h.live--
	root := &h.nodes[RootIndex]
	root.Children = slices.DeleteFunc(root.Children, func(c int) bool { return c == i })
	h.mu.Unlock()

	h.obs.fire(UpdateRowCount)
	return true
}

// Clear drops every node below the root together with their references.
// With all set it also forgets the remembered expansions.
func (h *VariablesHolder) Clear(all bool) {
	h.mu.Lock()
	h.reset()
	if all {
		h.expanded = newExpandedStates()
	}
	h.mu.Unlock()

	h.obs.fire(UpdateRowCount)
}

// NodeByReference returns the node registered for ref and its index.
func (h *VariablesHolder) NodeByReference(ref int) (VariableNode, int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, ok := h.refs[ref]
	if !ok {
		return VariableNode{}, -1, false
	}
	return h.copyNode(i), i, true
}

// Node returns the node at index i.
func (h *VariablesHolder) Node(i int) (VariableNode, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= len(h.nodes) {
		return VariableNode{}, false
	}
	return h.copyNode(i), true
}

// Children returns the child indices of node i.
func (h *VariablesHolder) Children(i int) []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= len(h.nodes) {
		return nil
	}
	return slices.Clone(h.nodes[i].Children)
}

// RootChildren returns the top-level variables in row order.
func (h *VariablesHolder) RootChildren() []dap.Variable {
	h.mu.RLock()
	defer h.mu.RUnlock()
	root := h.nodes[RootIndex]
	out := make([]dap.Variable, 0, len(root.Children))
	for _, c := range root.Children {
		out = append(out, h.nodes[c].Var)
	}
	return out
}

// Len returns the number of nodes reachable below the root. Detached
// arena slots are not counted.
func (h *VariablesHolder) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live
}

// ReferenceCount returns the size of the reference index.
func (h *VariablesHolder) ReferenceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.refs)
}

// Path returns the names from the root down to node i.
func (h *VariablesHolder) Path(i int) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path(i)
}

func (h *VariablesHolder) path(i int) []string {
	var out []string
	for i > RootIndex && i < len(h.nodes) {
		out = append(out, h.nodes[i].Var.Name)
		i = h.nodes[i].Parent
	}
	slices.Reverse(out)
	return out
}

// Find returns the index of the node reached by following path from the root.
func (h *VariablesHolder) Find(path []string) (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i := RootIndex
	for _, name := range path {
		i = h.childByName(i, name)
		if i < 0 {
			return -1, false
		}
	}
	return i, true
}

// Walk visits the tree depth-first in row order. Returning false from fn
// skips the node's children.
func (h *VariablesHolder) Walk(fn func(index, depth int, node VariableNode) bool) {
	h.mu.RLock()
	type item struct{ index, depth int }
	var order []item
	var visit func(i, depth int)
	visit = func(i, depth int) {
		for _, c := range h.nodes[i].Children {
			order = append(order, item{c, depth})
			visit(c, depth+1)
		}
	}
	visit(RootIndex, 0)
	nodes := make([]VariableNode, len(order))
	for k, it := range order {
		nodes[k] = h.copyNode(it.index)
	}
	h.mu.RUnlock()

	skipBelow := -1
	for k, it := range order {
		if skipBelow >= 0 {
			if it.depth > skipBelow {
				continue
			}
			skipBelow = -1
		}
		if !fn(it.index, it.depth, nodes[k]) {
			skipBelow = it.depth
		}
	}
}

// Expanded state

// SetLocation records where execution stopped without restoring anything.
func (h *VariablesHolder) SetLocation(loc Location) {
	h.mu.Lock()
	h.expanded.current = &loc
	h.mu.Unlock()
}

// MarkExpanded remembers that node i is expanded at the current location,
// or for every location when unique is set.
func (h *VariablesHolder) MarkExpanded(i int, unique bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i <= RootIndex || i >= len(h.nodes) {
		return
	}
	h.expanded.add(h.path(i), unique)
}

// MarkCollapsed forgets the expansion of node i.
func (h *VariablesHolder) MarkCollapsed(i int, unique bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i <= RootIndex || i >= len(h.nodes) {
		return
	}
	h.expanded.remove(h.path(i), unique)
}

// ExpandedPaths makes loc current and returns the paths that were expanded
// there, or at the nearest remembered location in the same file.
func (h *VariablesHolder) ExpandedPaths(loc Location, unique, unstableFrameID bool) [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expanded.current = &loc
	return h.expanded.lookup(loc, unique, unstableFrameID)
}

// arena helpers; callers hold h.mu.

func (h *VariablesHolder) resolve(ref int) (int, bool) {
	if ref == 0 {
		return RootIndex, true
	}
	i, ok := h.refs[ref]
	return i, ok
}

func (h *VariablesHolder) childByName(parent int, name string) int {
	for _, c := range h.nodes[parent].Children {
		if h.nodes[c].Var.Name == name {
			return c
		}
	}
	return -1
}

func (h *VariablesHolder) appendChild(parent int, v dap.Variable) int {
	i := len(h.nodes)
	h.nodes = append(h.nodes, VariableNode{Var: v, Parent: parent})
	h.nodes[parent].Children = append(h.nodes[parent].Children, i)
	h.live++
	if v.VariablesReference > 0 {
		h.refs[v.VariablesReference] = i
	}
	return i
}

func (h *VariablesHolder) setVar(i int, v dap.Variable) {
	if old := h.nodes[i].Var.VariablesReference; old != v.VariablesReference {
		h.unregister(i)
	}
	h.nodes[i].Var = v
	if v.VariablesReference > 0 {
		h.refs[v.VariablesReference] = i
	}
}

func (h *VariablesHolder) unregister(i int) {
	ref := h.nodes[i].Var.VariablesReference
	if ref > 0 && h.refs[ref] == i {
		delete(h.refs, ref)
	}
}

// dropChildren detaches the subtree below i. The detached slots stay in the
// arena until the next Clear but are no longer reachable or referenced.
func (h *VariablesHolder) dropChildren(i int) {
	for _, c := range h.nodes[i].Children {
		h.dropChildren(c)
		h.unregister(c)
		h.nodes[c].Parent = noParent
		h.live--
	}
	h.nodes[i].Children = nil
}

func (h *VariablesHolder) copyNode(i int) VariableNode {
	n := h.nodes[i]
	n.Children = slices.Clone(n.Children)
	return n
}
