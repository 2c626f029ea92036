package flatten

import (
	"iter"
	"strings"

	"github.com/agentic-research/xml2csv/internal/tree"
)

// CollectLeaves yields every scalar leaf under n as (path, trimmed text).
// Singleton children are always followed; a repeating group contributes only
// its selected child, and nothing at all when sel does not resolve it.
// path is the PathKey of n; nil means {n.Tag}.
//
// The sequence is a pure function of its arguments and may be ranged over
// any number of times. Text on nodes that also have children is ignored.
func CollectLeaves(n *tree.Node, sel Selection, path PathKey) iter.Seq2[PathKey, string] {
	if path == nil {
		path = PathKey{n.Tag}
	}
	return func(yield func(PathKey, string) bool) {
		collect(n, sel, path, yield)
	}
}

func collect(n *tree.Node, sel Selection, path PathKey, yield func(PathKey, string) bool) bool {
	if n.IsLeaf() {
		return yield(path, strings.TrimSpace(n.Text))
	}
	for _, g := range n.Groups() {
		next := path.Child(g.Tag)
		child := g.Nodes[0]
		if g.Repeats() {
			i, ok := sel.Index(next)
			if !ok || i < 0 || i >= len(g.Nodes) {
				continue
			}
			child = g.Nodes[i]
		}
		if !collect(child, sel, next, yield) {
			return false
		}
	}
	return true
}
