package sink

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/agentic-research/xml2csv/api"
)

// CSV writes a header line followed by one record per row.
type CSV struct {
	W         io.Writer
	Delimiter rune   // defaults to ','
	Encoding  string // output text encoding; defaults to UTF-8
}

// Write implements Writer.
func (s *CSV) Write(t *api.Table) error {
	out, flush, err := encodeWriter(s.W, s.Encoding)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(out)
	if s.Delimiter != 0 {
		cw.Comma = s.Delimiter
	}
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return flush()
}

var _ Writer = (*CSV)(nil)
