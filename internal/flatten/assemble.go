package flatten

import (
	"maps"

	"github.com/agentic-research/xml2csv/api"
	"github.com/agentic-research/xml2csv/internal/tree"
)

type leafValue struct {
	path PathKey
	text string
}

// Convert flattens doc into rows, binding any new columns in h. Calling it
// once per document against the same Header merges the documents under one
// consistent header; documents must then be converted one at a time, in order.
//
// An empty leaf leaves its cell unset. It claims a column only when its leaf
// tag is still free.
func (f Flattener) Convert(doc *tree.Node, h *Header) []api.Row {
	if doc == nil {
		return nil
	}
	loc := Locate(doc)
	container := containerValues(loc)

	var rows []api.Row
	for _, elem := range loc.Elements {
		rows = append(rows, f.rowsFor(elem, container, h)...)
	}
	return rows
}

// Merge converts docs in order against one shared Header.
func (f Flattener) Merge(docs []*tree.Node, h *Header) []api.Row {
	var rows []api.Row
	for _, doc := range docs {
		rows = append(rows, f.Convert(doc, h)...)
	}
	return rows
}

func (f Flattener) rowsFor(elem *tree.Node, container []leafValue, h *Header) []api.Row {
	// Container columns are named before anything under the row element so
	// they lead the header.
	base := api.Row{}
	for _, v := range container {
		if v.text == "" {
			h.reserve(v.path)
			continue
		}
		base[h.Name(v.path)] = v.text
	}

	sels := f.Expand(elem)
	rows := make([]api.Row, 0, len(sels))
	root := PathKey{elem.Tag}
	for _, sel := range sels {
		row := maps.Clone(base)
		for path, text := range CollectLeaves(elem, sel, root) {
			if text == "" {
				h.reserve(path)
				continue
			}
			row[h.Name(path)] = text
		}
		rows = append(rows, row)
	}
	return rows
}

// containerValues collects the row parent's scalar leaves outside the row
// tag subtree. The empty selection skips every repeating group under the
// parent, so nested repetition never changes them.
func containerValues(loc Location) []leafValue {
	if loc.Parent == nil {
		return nil
	}
	var out []leafValue
	for path, text := range CollectLeaves(loc.Parent, Selection{}, PathKey{loc.Parent.Tag}) {
		if len(path) >= 2 && path[1] == loc.Tag {
			continue
		}
		out = append(out, leafValue{path: path, text: text})
	}
	return out
}

// Convert uses the default policy.
func Convert(doc *tree.Node, h *Header) []api.Row {
	return Flattener{}.Convert(doc, h)
}

// Merge uses the default policy.
func Merge(docs []*tree.Node, h *Header) []api.Row {
	return Flattener{}.Merge(docs, h)
}

// Table pairs h's current columns with rows.
func Table(h *Header, rows []api.Row) *api.Table {
	return &api.Table{Header: h.Columns(), Rows: rows}
}

// Summary describes how a document flattens.
type Summary struct {
	// Parent is the row parent's tag, empty when the document is one row.
	Parent   string   `json:"parent"`
	RowTag   string   `json:"row_tag"`
	Elements int      `json:"elements"`
	Rows     int      `json:"rows"`
	Columns  []string `json:"columns"`
}

// Summarize converts doc against a fresh Header and reports the shape of
// the result.
func (f Flattener) Summarize(doc *tree.Node) Summary {
	loc := Locate(doc)
	h := NewHeader()
	rows := f.Convert(doc, h)
	s := Summary{
		RowTag:   loc.Tag,
		Elements: len(loc.Elements),
		Rows:     len(rows),
		Columns:  h.Columns(),
	}
	if loc.Parent != nil {
		s.Parent = loc.Parent.Tag
	}
	return s
}
