package debug

import "strings"

// PathMap translates between paths on this machine and paths as the
// debuggee sees them, for remote debugging. The zero value is the identity.
type PathMap struct {
	LocalRoot  string
	RemoteRoot string
}

// Enabled reports whether both roots are set.
func (m PathMap) Enabled() bool {
	return m.LocalRoot != "" && m.RemoteRoot != ""
}

// ToRemote converts a local path for use in a request.
func (m PathMap) ToRemote(path string) string {
	if !m.Enabled() {
		return path
	}
	return replacePrefix(path, m.LocalRoot, m.RemoteRoot)
}

// ToLocal converts a path reported by the adapter for display.
func (m PathMap) ToLocal(path string) string {
	if !m.Enabled() {
		return path
	}
	return replacePrefix(path, m.RemoteRoot, m.LocalRoot)
}

// replacePrefix swaps the root from for to. from only matches whole path
// elements, so /home/u/proj does not claim /home/u/project2.
func replacePrefix(path, from, to string) string {
	from, to = trimSeparator(from), trimSeparator(to)
	rest, ok := strings.CutPrefix(path, from)
	if !ok || (rest != "" && !isSeparator(rest[0]) && !isSeparator(from[len(from)-1])) {
		return path
	}
	switch {
	case rest == "":
	case isSeparator(rest[0]) && isSeparator(to[len(to)-1]):
		rest = rest[1:]
	case !isSeparator(rest[0]) && !isSeparator(to[len(to)-1]):
		// from is a filesystem root ending in its separator.
		rest = from[len(from)-1:] + rest
	}
	return to + rest
}

// Remote paths may come from another OS, so both separators count.
func isSeparator(c byte) bool {
	return c == '/' || c == '\\'
}

func trimSeparator(p string) string {
	for len(p) > 1 && isSeparator(p[len(p)-1]) {
		p = p[:len(p)-1]
	}
	return p
}
