package flatten

import "github.com/agentic-research/xml2csv/internal/tree"

// Flattener holds the expansion policy. The zero value implements the
// default policy.
type Flattener struct {
	// DescendSelected makes group discovery continue into the selected child
	// of an already resolved repeating group. Without it, repetition nested
	// inside repetition is never resolved and its leaves are skipped.
	DescendSelected bool
}

// NextUnresolved finds the next repeating group under n that sel does not
// resolve. A node's own groups come first, left to right; then the search
// descends into singleton children (and, with DescendSelected, into selected
// children of resolved groups) in first-seen tag order. prefix is the path of n.
func (f Flattener) NextUnresolved(n *tree.Node, sel Selection, prefix PathKey) (PathKey, []*tree.Node, bool) {
	groups := n.Groups()
	for _, g := range groups {
		if !g.Repeats() {
			continue
		}
		key := prefix.Child(g.Tag)
		if !sel.Has(key) {
			return key, g.Nodes, true
		}
	}

	for _, g := range groups {
		next := f.descendInto(g, sel, prefix)
		if next == nil {
			continue
		}
		if key, nodes, ok := f.NextUnresolved(next, sel, prefix.Child(g.Tag)); ok {
			return key, nodes, true
		}
	}
	return nil, nil, false
}

func (f Flattener) descendInto(g tree.Group, sel Selection, prefix PathKey) *tree.Node {
	if !g.Repeats() {
		return g.Nodes[0]
	}
	if !f.DescendSelected {
		return nil
	}
	i, ok := sel.Index(prefix.Child(g.Tag))
	if !ok || i < 0 || i >= len(g.Nodes) {
		return nil
	}
	return g.Nodes[i]
}
