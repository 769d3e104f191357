package models

import (
	"math"
	"slices"
	"strings"
)

// Location identifies a stop position for remembering expanded variables.
type Location struct {
	File       string
	Line       int
	FrameIndex int
}

// maxLineDistance bounds how far a remembered location may be from the
// current one and still be reused.
const maxLineDistance = 1000

const pathSep = "\x00"

type pathSet map[string]struct{}

// expandedStates remembers expanded variable paths per stop location, plus
// a location-independent set used by watches.
type expandedStates struct {
	current    *Location
	byLocation map[Location]pathSet
	unique     pathSet
}

func newExpandedStates() *expandedStates {
	return &expandedStates{
		byLocation: make(map[Location]pathSet),
		unique:     make(pathSet),
	}
}

func (e *expandedStates) add(path []string, unique bool) {
	set := e.target(unique, true)
	if set == nil {
		return
	}
	set[strings.Join(path, pathSep)] = struct{}{}
}

// remove forgets path and everything below it.
func (e *expandedStates) remove(path []string, unique bool) {
	set := e.target(unique, false)
	if set == nil {
		return
	}
	key := strings.Join(path, pathSep)
	for k := range set {
		if k == key || strings.HasPrefix(k, key+pathSep) {
			delete(set, k)
		}
	}
}

func (e *expandedStates) target(unique, create bool) pathSet {
	if unique {
		return e.unique
	}
	if e.current == nil {
		return nil
	}
	set, ok := e.byLocation[*e.current]
	if !ok && create {
		set = make(pathSet)
		e.byLocation[*e.current] = set
	}
	return set
}

func (e *expandedStates) lookup(loc Location, unique, unstableFrameID bool) [][]string {
	if unique {
		return e.unique.paths()
	}
	if set, ok := e.byLocation[loc]; ok {
		return set.paths()
	}

	best, bestDist := pathSet(nil), math.MaxInt
	for l, set := range e.byLocation {
		if l.File != loc.File {
			continue
		}
		dist := abs(l.Line - loc.Line)
		if !unstableFrameID && l.FrameIndex != loc.FrameIndex {
			dist = math.MaxInt / 2
		}
		if dist < bestDist {
			best, bestDist = set, dist
		}
	}
	if best == nil || bestDist >= maxLineDistance {
		return nil
	}
	return best.paths()
}

// paths returns the set shallowest first so parents are expanded before
// their children.
func (s pathSet) paths() [][]string {
	out := make([][]string, 0, len(s))
	for k := range s {
		out = append(out, strings.Split(k, pathSep))
	}
	slices.SortFunc(out, func(a, b []string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return slices.Compare(a, b)
	})
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
