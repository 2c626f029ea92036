package api

// Row is one flattened output record, keyed by column name.
// Columns missing from a Row are rendered as empty strings.
type Row map[string]string

// Table is the unit handed to a sink: an ordered header and the rows
// that were produced against it.
type Table struct {
	// Header lists column names in first-seen order.
	Header []string `json:"header"`
	// Rows in the order they were produced.
	Rows []Row `json:"rows"`
}

// Cell returns the value of column col in row i, or "" when unset.
func (t *Table) Cell(i int, col string) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][col]
}

// Records renders every row as a slice aligned with Header.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make([]string, len(t.Header))
		for j, col := range t.Header {
			rec[j] = row[col]
		}
		out[i] = rec
	}
	return out
}
