// Package stats profiles flattened tables column by column.
package stats

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/xml2csv/api"
)

// Column summarizes one header column.
type Column struct {
	Name        string
	Filled      int     // rows with a non-empty value
	Cardinality int     // distinct non-empty values
	FillRatio   float64 // Filled / total rows; 0 for an empty table
}

// Profile is a column-major view of a table: for every column, the bitmap
// of row indices that carry a value.
type Profile struct {
	RowCount int
	Columns  []Column
	filled   []*roaring.Bitmap
	index    map[string]int
}

// Build scans t once and returns its profile.
func Build(t *api.Table) *Profile {
	p := &Profile{
		RowCount: len(t.Rows),
		Columns:  make([]Column, len(t.Header)),
		filled:   make([]*roaring.Bitmap, len(t.Header)),
		index:    make(map[string]int, len(t.Header)),
	}
	distinct := make([]map[string]struct{}, len(t.Header))
	for j, name := range t.Header {
		p.Columns[j].Name = name
		p.filled[j] = roaring.New()
		p.index[name] = j
		distinct[j] = make(map[string]struct{})
	}

	for i := range t.Rows {
		for j, name := range t.Header {
			v := t.Cell(i, name)
			if v == "" {
				continue
			}
			p.filled[j].Add(uint32(i))
			distinct[j][v] = struct{}{}
		}
	}

	for j := range p.Columns {
		p.Columns[j].Filled = int(p.filled[j].GetCardinality())
		p.Columns[j].Cardinality = len(distinct[j])
		if p.RowCount > 0 {
			p.Columns[j].FillRatio = float64(p.Columns[j].Filled) / float64(p.RowCount)
		}
	}
	return p
}

// Rows returns the bitmap of rows that have a value in column name.
// The bitmap is a copy.
func (p *Profile) Rows(name string) *roaring.Bitmap {
	j, ok := p.index[name]
	if !ok {
		return roaring.New()
	}
	return p.filled[j].Clone()
}

// CoFilled counts rows where every named column has a value.
func (p *Profile) CoFilled(names ...string) int {
	if len(names) == 0 {
		return p.RowCount
	}
	var acc *roaring.Bitmap
	for _, name := range names {
		j, ok := p.index[name]
		if !ok {
			return 0
		}
		if acc == nil {
			acc = p.filled[j].Clone()
		} else {
			acc.And(p.filled[j])
		}
	}
	return int(acc.GetCardinality())
}

// Empty lists columns with no value in any row, in header order.
func (p *Profile) Empty() []string {
	var out []string
	for j, c := range p.Columns {
		if p.filled[j].IsEmpty() {
			out = append(out, c.Name)
		}
	}
	return out
}

// Prune returns a table without the columns that are empty in every row.
// Rows are shared with t.
func Prune(t *api.Table) *api.Table {
	p := Build(t)
	if len(p.Empty()) == 0 {
		return t
	}
	header := make([]string, 0, len(t.Header))
	for j, name := range t.Header {
		if !p.filled[j].IsEmpty() {
			header = append(header, name)
		}
	}
	return &api.Table{Header: header, Rows: t.Rows}
}
