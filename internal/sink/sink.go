// Package sink writes flattened tables to their destination formats.
package sink

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/agentic-research/xml2csv/api"
)

// Output formats.
const (
	FormatCSV    = "csv"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
)

// Formats lists every known format.
var Formats = []string{FormatCSV, FormatJSONL, FormatSQLite}

// Writer persists a complete table. Every column in the header is emitted
// for every row; unset cells are written as empty strings.
type Writer interface {
	Write(t *api.Table) error
}

// Ext returns the file extension for a format, including the dot.
func Ext(format string) (string, error) {
	switch format {
	case FormatCSV:
		return ".csv", nil
	case FormatJSONL:
		return ".jsonl", nil
	case FormatSQLite:
		return ".db", nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// IsStream reports whether format writes to an io.Writer (as opposed to a
// database path).
func IsStream(format string) bool {
	return format == FormatCSV || format == FormatJSONL
}

// encodeWriter wraps w so text is transcoded from UTF-8 into the named
// encoding. The returned closer flushes the transcoder and must be called
// after the last write; it does not close w.
func encodeWriter(w io.Writer, encoding string) (io.Writer, func() error, error) {
	if encoding == "" || isUTF8(encoding) {
		return w, func() error { return nil }, nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, nil, fmt.Errorf("output encoding %q: %w", encoding, err)
	}
	tw := enc.NewEncoder().Writer(w)
	flush := func() error {
		if c, ok := tw.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	return tw, flush, nil
}

func isUTF8(name string) bool {
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
