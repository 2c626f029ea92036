package flatten

import "github.com/agentic-research/xml2csv/internal/tree"

// Expand returns one Selection per output row of elem: the Cartesian product
// of every nested repeating group reachable from it. An element without
// nested repetition yields a single empty Selection.
//
// The pending selections form a stack. Each group pushes its indices in
// ascending order and the last one pushed is extended first, so the highest
// index of every group comes out first.
func (f Flattener) Expand(elem *tree.Node) []Selection {
	root := PathKey{elem.Tag}
	pending := []Selection{{}}
	var done []Selection

	for len(pending) > 0 {
		sel := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		group, children, ok := f.NextUnresolved(elem, sel, root)
		if !ok {
			done = append(done, sel)
			continue
		}
		for i := range children {
			pending = append(pending, sel.With(group, i))
		}
	}
	return done
}

// Expand uses the default policy.
func Expand(elem *tree.Node) []Selection {
	return Flattener{}.Expand(elem)
}
