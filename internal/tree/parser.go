package tree

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned by ForFile for extensions no parser handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ParseError reports a document that could not be turned into a tree.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return "parse: " + e.Err.Error()
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser converts raw document bytes into a tree.
type Parser interface {
	Parse(r io.Reader) (*Node, error)
}

// SupportedExtensions lists file extensions with a registered parser.
var SupportedExtensions = map[string]bool{
	".xml":  true,
	".json": true,
}

// ForFile returns the parser for a filename, chosen by extension.
func ForFile(name string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml":
		return &XMLParser{}, nil
	case ".json":
		return &JSONParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ForKind returns the parser for a bare format name such as "xml" or "json".
// An empty kind means XML.
func ForKind(kind string) (Parser, error) {
	if kind == "" {
		kind = "xml"
	}
	return ForFile("document." + strings.TrimPrefix(kind, "."))
}

// IsSupported reports whether ForFile would accept name.
func IsSupported(name string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Parse picks a parser for name and parses r with it. Failures carry name
// as the ParseError source.
func Parse(name string, r io.Reader) (*Node, error) {
	p, err := ForFile(name)
	if err != nil {
		return nil, err
	}
	root, err := p.Parse(r)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Source == "" {
			pe.Source = name
		}
		return nil, err
	}
	return root, nil
}
