// Package flatten turns a single hierarchical document into rows without a
// schema. It finds the document's repeating unit, expands nested
// repetitions into a Cartesian row set and names columns so that rows from
// many documents can share one header.
package flatten

import (
	"maps"
	"strconv"
	"strings"
)

// PathKey identifies a position in the hierarchy by the tags from a
// traversal root down to a node. It names a position, not an instance:
// every <b> under <a> shares the key a.b.
type PathKey []string

// Child returns p extended by tag. The result never shares backing storage with p.
func (p PathKey) Child(tag string) PathKey {
	out := make(PathKey, len(p)+1)
	copy(out, p)
	out[len(p)] = tag
	return out
}

// Leaf returns the last tag, or "" for an empty key.
func (p PathKey) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Dotted renders the key as parent.child.leaf.
func (p PathKey) Dotted() string {
	return strings.Join(p, ".")
}

func (p PathKey) String() string { return p.Dotted() }

// key is the map identity of p. Every tag is length-prefixed, so distinct
// keys never collide whatever bytes the tags contain; JSON keys may hold any
// character, separators included.
func (p PathKey) key() string {
	var b strings.Builder
	for _, tag := range p {
		b.WriteString(strconv.Itoa(len(tag)))
		b.WriteByte(':')
		b.WriteString(tag)
	}
	return b.String()
}

// Selection pins one child index per resolved repeating group, keyed by the
// group's PathKey (parent path plus the repeated tag). A group missing from
// the selection is unresolved and is skipped by the leaf collector.
//
// Selections are treated as immutable once built; With copies.
type Selection map[string]int

// Index returns the chosen index for group.
func (s Selection) Index(group PathKey) (int, bool) {
	i, ok := s[group.key()]
	return i, ok
}

// Has reports whether group is resolved.
func (s Selection) Has(group PathKey) bool {
	_, ok := s[group.key()]
	return ok
}

// With returns a copy of s with group pinned to idx.
func (s Selection) With(group PathKey, idx int) Selection {
	out := make(Selection, len(s)+1)
	maps.Copy(out, s)
	out[group.key()] = idx
	return out
}
