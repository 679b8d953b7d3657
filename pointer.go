package jsonpatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentflare-ai/jsonpointer"
)

var (
	errPointerSyntax = errors.New("invalid pointer syntax")
	errIllegalIndex  = errors.New("illegal array index")
	errIndexRange    = errors.New("array index out of bounds")
	errNotFound      = errors.New("path not found")
)

// EscapePathComponent escapes a single reference token for use in a JSON Pointer.
func EscapePathComponent(s string) string {
	if !strings.ContainsAny(s, "/~") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

// UnescapePathComponent reverses EscapePathComponent. "~1" is decoded before
// "~0" so that "~01" yields "~1" and not "/".
func UnescapePathComponent(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

// splitPointer splits a pointer into unescaped reference tokens.
// The root pointer "" yields no tokens. Escapes other than "~0" and "~1"
// are rejected.
func splitPointer(pointer string) ([]string, error) {
	p, err := jsonpointer.New(pointer)
	if err != nil {
		if errors.Is(err, jsonpointer.ErrInvalidSyntax) {
			return nil, fmt.Errorf("%w: %q: %v", errPointerSyntax, pointer, err)
		}
		return nil, err
	}
	if len(p) == 0 {
		return nil, nil
	}
	return []string(p), nil
}

// formatPointer is the inverse of splitPointer.
func formatPointer(tokens []string) string {
	return jsonpointer.Pointer(tokens).String()
}

// arrayIndex converts token into a position in an array of the given length.
// With forAdd the index may equal length and "-" means length.
func arrayIndex(token string, length int, forAdd bool) (int, error) {
	if token == "-" {
		if forAdd {
			return length, nil
		}
		return 0, fmt.Errorf("%w: '-' only addresses the end of an array when adding", errIndexRange)
	}
	idx, err := jsonpointer.ParseArrayIndex(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errIllegalIndex, token)
	}
	limit := uint64(length)
	if !forAdd {
		limit--
	}
	if length == 0 && !forAdd || idx > limit {
		return 0, fmt.Errorf("%w: index %d for array of length %d", errIndexRange, idx, length)
	}
	return int(idx), nil
}

// child returns the value stored under token in container.
func child(container any, token string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[token]
		return v, ok
	case []any:
		i, err := arrayIndex(token, len(c), false)
		if err != nil {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

func lookup(document any, tokens []string) (any, bool) {
	v, err := jsonpointer.Pointer(tokens).Get(document)
	return v, err == nil
}

// GetValueByPointer returns the value at pointer. The boolean is false when
// the pointer is malformed or does not resolve.
func GetValueByPointer(document any, pointer string) (any, bool) {
	v, err := jsonpointer.Get(document, pointer)
	if err != nil {
		return nil, false
	}
	return v, true
}

// existingPath returns the longest prefix of pointer that resolves in document,
// in the pointer's own escaped form. A fully resolvable pointer is returned unchanged.
func existingPath(document any, pointer string) string {
	if pointer == "" || pointer[0] != '/' {
		return ""
	}
	raw := strings.Split(pointer[1:], "/")
	node := document
	for i, t := range raw {
		next, ok := child(node, UnescapePathComponent(t))
		if !ok {
			if i == 0 {
				return ""
			}
			return "/" + strings.Join(raw[:i], "/")
		}
		node = next
	}
	return pointer
}

// edit walks tokens[:len(tokens)-1] from node and hands the container that
// holds the final token to fn. Containers returned by fn are stored back into
// their parents, so array splices propagate toward the root.
func edit(node any, tokens []string, fn func(container any, token string) (any, error)) (any, error) {
	if len(tokens) == 1 {
		return fn(node, tokens[0])
	}
	switch n := node.(type) {
	case map[string]any:
		next, ok := n[tokens[0]]
		if !ok {
			return nil, fmt.Errorf("%w: missing member %q", errNotFound, tokens[0])
		}
		updated, err := edit(next, tokens[1:], fn)
		if err != nil {
			return nil, err
		}
		n[tokens[0]] = updated
		return n, nil
	case []any:
		i, err := arrayIndex(tokens[0], len(n), false)
		if err != nil {
			return nil, err
		}
		updated, err := edit(n[i], tokens[1:], fn)
		if err != nil {
			return nil, err
		}
		n[i] = updated
		return n, nil
	default:
		return nil, fmt.Errorf("%w: cannot traverse %q on %T", errNotFound, tokens[0], node)
	}
}
