// Package tree is the read-only document model the flattener walks: an
// ordered, labeled tree whose nodes carry either text or children.
package tree

// Node is one element of a parsed document. Nodes are never mutated after
// the parser returns them.
type Node struct {
	Tag      string
	Text     string // raw character data; only meaningful on leaves
	Children []*Node
}

// Group is the run of direct children that share a tag, in document order.
type Group struct {
	Tag   string
	Nodes []*Node
}

// Repeats reports whether the group is a repeating group (two or more siblings).
func (g Group) Repeats() bool {
	return len(g.Nodes) > 1
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Groups returns the node's children grouped by tag. Groups are ordered by
// the first appearance of their tag among the children.
func (n *Node) Groups() []Group {
	if len(n.Children) == 0 {
		return nil
	}
	index := make(map[string]int, len(n.Children))
	var groups []Group
	for _, c := range n.Children {
		i, ok := index[c.Tag]
		if !ok {
			i = len(groups)
			index[c.Tag] = i
			groups = append(groups, Group{Tag: c.Tag})
		}
		groups[i].Nodes = append(groups[i].Nodes, c)
	}
	return groups
}

// FirstRepeating returns the first repeating child group, in first-seen tag order.
func (n *Node) FirstRepeating() (Group, bool) {
	for _, g := range n.Groups() {
		if g.Repeats() {
			return g, true
		}
	}
	return Group{}, false
}

// Elem builds a node with children. Handy for tests and synthetic documents.
func Elem(tag string, children ...*Node) *Node {
	return &Node{Tag: tag, Children: children}
}

// Leaf builds a text node.
func Leaf(tag, text string) *Node {
	return &Node{Tag: tag, Text: text}
}
