package sink

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/xml2csv/api"
)

// JSONLines writes one JSON object per row with keys in header order.
// Every header column is present; unset cells are "".
type JSONLines struct {
	W        io.Writer
	Encoding string
}

// Write implements Writer.
func (s *JSONLines) Write(t *api.Table) error {
	out, flush, err := encodeWriter(s.W, s.Encoding)
	if err != nil {
		return err
	}

	// Keys are quoted once; they repeat on every line.
	keys := make([]string, len(t.Header))
	for i, col := range t.Header {
		keys[i] = oj.JSON(col)
	}

	bw := bufio.NewWriter(out)
	for _, rec := range t.Records() {
		_ = bw.WriteByte('{')
		for i, val := range rec {
			if i > 0 {
				_ = bw.WriteByte(',')
			}
			_, _ = bw.WriteString(keys[i])
			_ = bw.WriteByte(':')
			_, _ = bw.WriteString(oj.JSON(val))
		}
		if _, err := bw.WriteString("}\n"); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return flush()
}

var _ Writer = (*JSONLines)(nil)
