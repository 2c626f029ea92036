package flatten

import "fmt"

// Header is the column state for one output target. It only grows: columns
// keep their position and their PathKey binding for the Header's lifetime.
// Share one Header across documents to merge them; a Header must not be
// used from more than one goroutine.
//
// The zero value is ready to use.
type Header struct {
	columns []string
	paths   map[string]PathKey // column -> path it was bound for
	names   map[string]string  // path key -> column
}

// NewHeader returns an empty Header.
func NewHeader() *Header {
	return &Header{}
}

// Name returns the column for path, binding a new one on first use.
//
// A new path gets its leaf tag if that column is free, else its dotted path,
// else the dotted path with the smallest free suffix _2, _3, ...
func (h *Header) Name(path PathKey) string {
	if name, ok := h.names[path.key()]; ok {
		return name
	}

	if leaf := path.Leaf(); h.free(leaf) {
		return h.bind(leaf, path)
	}
	dotted := path.Dotted()
	if h.free(dotted) {
		return h.bind(dotted, path)
	}
	for i := 2; ; i++ {
		alt := fmt.Sprintf("%s_%d", dotted, i)
		if h.free(alt) {
			return h.bind(alt, path)
		}
	}
}

// reserve binds path to its leaf tag when that column is still free. Empty
// values go through here: they never claim a dotted or suffixed column, so a
// collision never leaves a column that is blank in every row.
func (h *Header) reserve(path PathKey) {
	if _, ok := h.names[path.key()]; ok {
		return
	}
	if leaf := path.Leaf(); h.free(leaf) {
		h.bind(leaf, path)
	}
}

// Lookup returns the column already bound to path.
func (h *Header) Lookup(path PathKey) (string, bool) {
	name, ok := h.names[path.key()]
	return name, ok
}

// Path returns the PathKey a column was bound for.
func (h *Header) Path(column string) (PathKey, bool) {
	p, ok := h.paths[column]
	return p, ok
}

// Columns returns the column names in first-seen order.
func (h *Header) Columns() []string {
	out := make([]string, len(h.columns))
	copy(out, h.columns)
	return out
}

// Len is the number of columns.
func (h *Header) Len() int {
	return len(h.columns)
}

func (h *Header) free(name string) bool {
	_, taken := h.paths[name]
	return !taken
}

func (h *Header) bind(name string, path PathKey) string {
	if h.paths == nil {
		h.paths = make(map[string]PathKey)
		h.names = make(map[string]string)
	}
	h.paths[name] = path
	h.names[path.key()] = name
	h.columns = append(h.columns, name)
	return name
}
