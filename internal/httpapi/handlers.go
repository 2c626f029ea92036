package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/agentic-research/xml2csv/internal/config"
	"github.com/agentic-research/xml2csv/internal/flatten"
	"github.com/agentic-research/xml2csv/internal/sink"
	"github.com/agentic-research/xml2csv/internal/stats"
	"github.com/agentic-research/xml2csv/internal/tree"
)

// handleConvert flattens the posted document and streams the table back.
//
// Query parameters: type (xml|json, else taken from Content-Type),
// format (csv|jsonl), delimiter, prune (true drops always-empty columns).
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format := q.Get("format")
	if format == "" {
		format = s.cfg.Format
	}
	if !sink.IsStream(format) {
		jsonError(w, fmt.Sprintf("format must be %s or %s", sink.FormatCSV, sink.FormatJSONL), http.StatusBadRequest)
		return
	}
	delimiter := s.cfg.Delimiter
	if d := q.Get("delimiter"); d != "" {
		var err error
		if delimiter, err = config.ParseDelimiter(d); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	h := flatten.NewHeader()
	t := flatten.Table(h, s.flattener().Convert(doc, h))
	if s.cfg.PruneEmpty || q.Get("prune") == "true" {
		t = stats.Prune(t)
	}

	var out sink.Writer
	switch format {
	case sink.FormatJSONL:
		w.Header().Set("Content-Type", "application/x-ndjson")
		out = &sink.JSONLines{W: w, Encoding: s.cfg.Encoding}
	default:
		w.Header().Set("Content-Type", "text/csv; charset="+s.cfg.Encoding)
		out = &sink.CSV{W: w, Delimiter: delimiter, Encoding: s.cfg.Encoding}
	}
	w.Header().Set("X-Row-Count", strconv.Itoa(len(t.Rows)))
	if err := out.Write(t); err != nil {
		// Headers are already sent.
		s.log.Error("write response", "error", err)
	}
}

// handleLocate reports where the posted document's rows come from.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.flattener().Summarize(doc))
}

// readDocument parses the request body. On failure it has already written
// the error response.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (*tree.Node, bool) {
	kind := r.URL.Query().Get("type")
	if kind == "" && strings.Contains(r.Header.Get("Content-Type"), "json") {
		kind = "json"
	}
	p, err := tree.ForKind(kind)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
		return nil, false
	}

	doc, err := p.Parse(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, fmt.Sprintf("document exceeds max size (%d bytes)", MaxBodyBytes), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return doc, true
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
