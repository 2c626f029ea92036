package flatten

import "github.com/agentic-research/xml2csv/internal/tree"

// Location describes where a document's rows come from.
type Location struct {
	// Parent is the row parent, or nil when the whole document is one row.
	Parent *tree.Node
	// Tag is the row tag; the root's tag when Parent is nil.
	Tag string
	// Elements are the row elements in document order.
	Elements []*tree.Node
}

// Implicit reports whether the document had no repetition and is treated as
// a single row.
func (l Location) Implicit() bool {
	return l.Parent == nil
}

// Locate finds the shallowest repetition: the first node in breadth-first
// order with a repeated child tag is the row parent, and the first such tag
// among its children is the row tag. Without any repetition the root is the
// only row element.
func Locate(root *tree.Node) Location {
	if root == nil {
		return Location{}
	}
	queue := []*tree.Node{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		if g, ok := parent.FirstRepeating(); ok {
			return Location{Parent: parent, Tag: g.Tag, Elements: g.Nodes}
		}
		queue = append(queue, parent.Children...)
	}
	return Location{Tag: root.Tag, Elements: []*tree.Node{root}}
}
