package tree

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/ohler55/ojg/oj"
)

const (
	defaultJSONRoot = "root"
	jsonItemTag     = "item"
)

// JSONParser maps a JSON document onto the tree model:
//   - an object becomes a node whose children are its members, in sorted key order
//   - an array member becomes one child per element, all tagged with the member key,
//     so arrays of two or more elements form repeating groups
//   - scalars become leaves; null becomes an empty leaf
//
// Arrays that are not object members (the root, or arrays nested directly in
// arrays) tag their elements "item".
type JSONParser struct {
	// RootTag names the document root. Defaults to "root".
	RootTag string
}

// Parse implements Parser.
func (p *JSONParser) Parse(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	v, err := oj.Parse(data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	tag := p.RootTag
	if tag == "" {
		tag = defaultJSONRoot
	}

	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, &ParseError{Err: errors.New("document root must be an object or an array")}
	}
	return jsonNode(tag, v), nil
}

func jsonNode(tag string, v any) *Node {
	n := &Node{Tag: tag}
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.Children = append(n.Children, jsonMembers(k, val[k])...)
		}
	case []any:
		for _, elem := range val {
			n.Children = append(n.Children, jsonNode(jsonItemTag, elem))
		}
	default:
		n.Text = jsonScalar(val)
	}
	return n
}

// jsonMembers expands one object member into child nodes: one per element
// for arrays, one otherwise.
func jsonMembers(key string, v any) []*Node {
	arr, ok := v.([]any)
	if !ok {
		return []*Node{jsonNode(key, v)}
	}
	out := make([]*Node, 0, len(arr))
	for _, elem := range arr {
		out = append(out, jsonNode(key, elem))
	}
	return out
}

func jsonScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
