package tree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"unicode"

	"golang.org/x/text/encoding/htmlindex"
)

// XMLParser builds a tree from XML. Only element structure and character
// data are kept: attributes, namespaces, comments and processing
// instructions are dropped.
type XMLParser struct{}

// Parse implements Parser.
func (p *XMLParser) Parse(r io.Reader) (*Node, error) {
	root, err := parseXML(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return root, nil
}

func parseXML(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	var stack []*Node
	var root *Node
	rootClosed := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, fmt.Errorf("unexpected element <%s> after document end", t.Name.Local)
			}
			elem := &Node{Tag: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, elem)
			} else {
				root = elem
			}
			stack = append(stack, elem)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					rootClosed = true
				}
			}

		case xml.CharData:
			if len(stack) == 0 {
				if !isBlank(string(t)) {
					return nil, errors.New("unexpected character data outside root element")
				}
				continue
			}
			stack[len(stack)-1].Text += string(t)
		}
	}

	if root == nil {
		return nil, io.ErrUnexpectedEOF
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].Tag)
	}
	return root, nil
}

// charsetReader honors the encoding named in the XML declaration.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func isBlank(data string) bool {
	for _, r := range data {
		if r == '\uFEFF' {
			continue
		}
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
