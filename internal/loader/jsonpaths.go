package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// step is one segment of a JSONPath: an object key or an array index.
type step struct {
	key   string
	index int
	isIdx bool
}

// Path is a parsed JSONPath expression of the restricted form Redshift
// accepts in a jsonpaths file: a root followed by dot or bracket steps.
type Path struct {
	raw   string
	steps []step
}

func (p Path) String() string { return p.raw }

// ParseJSONPaths reads a jsonpaths document ({"jsonpaths": ["$.a", ...]}).
func ParseJSONPaths(r io.Reader) ([]Path, error) {
	var doc struct {
		JSONPaths []string `json:"jsonpaths"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("jsonpaths: %w", err)
	}
	if len(doc.JSONPaths) == 0 {
		return nil, fmt.Errorf("jsonpaths: no paths")
	}
	out := make([]Path, len(doc.JSONPaths))
	for i, s := range doc.JSONPaths {
		p, err := ParsePath(s)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// ParsePath parses $.a.b, $['a']["b"] and $.a[0] style expressions.
func ParsePath(s string) (Path, error) {
	p := Path{raw: s}
	rest := strings.TrimSpace(s)
	if !strings.HasPrefix(rest, "$") {
		return p, fmt.Errorf("jsonpath %q: must start with $", s)
	}
	rest = rest[1:]
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			if end == 0 {
				return p, fmt.Errorf("jsonpath %q: empty key", s)
			}
			p.steps = append(p.steps, step{key: rest[:end]})
			rest = rest[end:]
		case '[':
			// A quoted key runs to its closing quote and may itself contain ']'.
			if inner := strings.TrimLeft(rest[1:], " "); inner != "" && (inner[0] == '\'' || inner[0] == '"') {
				end := strings.IndexByte(inner[1:], inner[0])
				if end < 0 {
					return p, fmt.Errorf("jsonpath %q: unterminated quote", s)
				}
				after := strings.TrimLeft(inner[end+2:], " ")
				if !strings.HasPrefix(after, "]") {
					return p, fmt.Errorf("jsonpath %q: unterminated bracket", s)
				}
				p.steps = append(p.steps, step{key: inner[1 : end+1]})
				rest = after[1:]
				continue
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return p, fmt.Errorf("jsonpath %q: unterminated bracket", s)
			}
			inner := strings.TrimSpace(rest[1:end])
			rest = rest[end+1:]
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return p, fmt.Errorf("jsonpath %q: bad index %q", s, inner)
			}
			p.steps = append(p.steps, step{index: idx, isIdx: true})
		default:
			return p, fmt.Errorf("jsonpath %q: unexpected %q", s, rest[0])
		}
	}
	if len(p.steps) == 0 {
		return p, fmt.Errorf("jsonpath %q: selects the whole document", s)
	}
	return p, nil
}

// Lookup walks v along p. A missing step yields nil.
func (p Path) Lookup(v any) any {
	for _, st := range p.steps {
		switch node := v.(type) {
		case map[string]any:
			if st.isIdx {
				return nil
			}
			v = node[st.key]
		case []any:
			if !st.isIdx || st.index >= len(node) {
				return nil
			}
			v = node[st.index]
		default:
			return nil
		}
	}
	return v
}
