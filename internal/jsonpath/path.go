package jsonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnsupportedType is returned when a query selects an object, array or null.
var ErrUnsupportedType = errors.New("unsupported json type")

// SyntaxError reports a malformed path query.
type SyntaxError struct {
	Query  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("path %q: %s at offset %d", e.Query, e.Msg, e.Offset)
}

// ParseError reports a response body that is not a JSON document.
type ParseError struct {
	Size int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid json document (%d bytes)", e.Size)
}

// Document is a validated JSON document.
type Document struct {
	raw string
}

// Parse strips a leading byte-order mark and validates body as JSON.
func Parse(body []byte) (Document, error) {
	raw := StripBOM(string(body))
	if !gjson.Valid(raw) {
		return Document{}, &ParseError{Size: len(raw)}
	}
	return Document{raw: raw}, nil
}

// StripBOM removes a UTF-8 byte-order mark from the start of s.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

type segment struct {
	name    string
	index   int
	isIndex bool
}

// Path is a compiled query of the form .member[0]["quoted member"].
type Path struct {
	query    string
	segments []segment
}

// Compile parses a path query. A lone "." selects the whole document.
func Compile(query string) (Path, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Path{}, &SyntaxError{Query: query, Msg: "empty query"}
	}
	if q[0] != '.' && q[0] != '[' {
		return Path{}, &SyntaxError{Query: query, Msg: "query must start with '.' or '['"}
	}

	var segs []segment
	i := 0
	for i < len(q) {
		switch q[i] {
		case '.':
			i++
			start := i
			for i < len(q) && q[i] != '.' && q[i] != '[' {
				i++
			}
			if i == start {
				// ".[0]" and a bare "." address the root.
				if start == 1 && (i == len(q) || q[i] == '[') {
					continue
				}
				return Path{}, &SyntaxError{Query: query, Offset: start, Msg: "empty member name"}
			}
			segs = append(segs, segment{name: q[start:i]})
		case '[':
			seg, next, err := parseBracket(query, q, i)
			if err != nil {
				return Path{}, err
			}
			segs = append(segs, seg)
			i = next
		default:
			return Path{}, &SyntaxError{Query: query, Offset: i, Msg: fmt.Sprintf("unexpected %q", q[i])}
		}
	}
	return Path{query: query, segments: segs}, nil
}

func parseBracket(query, q string, i int) (segment, int, error) {
	i++ // consume '['
	if i >= len(q) {
		return segment{}, 0, &SyntaxError{Query: query, Offset: i, Msg: "unterminated '['"}
	}

	if quote := q[i]; quote == '"' || quote == '\'' {
		i++
		var sb strings.Builder
		for {
			if i >= len(q) {
				return segment{}, 0, &SyntaxError{Query: query, Offset: i, Msg: "unterminated quoted member"}
			}
			ch := q[i]
			if ch == '\\' && i+1 < len(q) {
				sb.WriteByte(q[i+1])
				i += 2
				continue
			}
			if ch == quote {
				i++
				break
			}
			sb.WriteByte(ch)
			i++
		}
		if i >= len(q) || q[i] != ']' {
			return segment{}, 0, &SyntaxError{Query: query, Offset: i, Msg: "expected ']'"}
		}
		return segment{name: sb.String()}, i + 1, nil
	}

	start := i
	for i < len(q) && q[i] >= '0' && q[i] <= '9' {
		i++
	}
	if i == start {
		return segment{}, 0, &SyntaxError{Query: query, Offset: start, Msg: "expected array index or quoted member"}
	}
	if i >= len(q) || q[i] != ']' {
		return segment{}, 0, &SyntaxError{Query: query, Offset: i, Msg: "expected ']'"}
	}
	idx, err := strconv.Atoi(q[start:i])
	if err != nil {
		return segment{}, 0, &SyntaxError{Query: query, Offset: start, Msg: "array index out of range"}
	}
	return segment{index: idx, isIndex: true}, i + 1, nil
}

func (p Path) String() string { return p.query }

// Lookup evaluates the path against doc. found is false when no node matches.
// An index only selects from an array and a member only from an object.
func (p Path) Lookup(doc Document) (Scalar, bool, error) {
	res := gjson.Parse(doc.raw)
	for _, seg := range p.segments {
		if seg.isIndex {
			if !res.IsArray() {
				return Scalar{}, false, nil
			}
			res = res.Get(strconv.Itoa(seg.index))
		} else {
			if !res.IsObject() {
				return Scalar{}, false, nil
			}
			res = res.Get(gjson.Escape(seg.name))
		}
		if !res.Exists() {
			return Scalar{}, false, nil
		}
	}
	if !res.Exists() {
		return Scalar{}, false, nil
	}

	switch res.Type {
	case gjson.True, gjson.False:
		return Bool(res.Bool()), true, nil
	case gjson.Number:
		return numberScalar(res.Raw, res.Num), true, nil
	case gjson.String:
		return String(res.Str), true, nil
	default:
		kind := "null"
		if res.IsObject() {
			kind = "object"
		} else if res.IsArray() {
			kind = "array"
		}
		return Scalar{}, true, fmt.Errorf("%w: %s at %s", ErrUnsupportedType, kind, p.query)
	}
}

// Lookup compiles query and evaluates it against doc.
func Lookup(doc Document, query string) (Scalar, bool, error) {
	p, err := Compile(query)
	if err != nil {
		return Scalar{}, false, err
	}
	return p.Lookup(doc)
}
