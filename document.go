package jsonpatch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// kind tags a document node so containers are classified once per node.
type kind uint8

const (
	kindPrimitive kind = iota
	kindObject
	kindArray
)

func kindOf(v any) kind {
	switch v.(type) {
	case map[string]any:
		return kindObject
	case []any:
		return kindArray
	default:
		return kindPrimitive
	}
}

// isUndefined reports values that have no JSON representation at all.
// They play the part of an absent value inside documents.
func isUndefined(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return true
	}
	return false
}

// containsUndefined walks v looking for a value isUndefined reports.
func containsUndefined(v any) bool {
	if isUndefined(v) {
		return true
	}
	switch n := v.(type) {
	case map[string]any:
		for _, child := range n {
			if containsUndefined(child) {
				return true
			}
		}
	case []any:
		for _, child := range n {
			if containsUndefined(child) {
				return true
			}
		}
	}
	return false
}

// resolveNode returns v in the document model without copying containers.
// Values outside the model are converted through their JSON encoding.
func resolveNode(v any) (any, error) {
	switch v.(type) {
	case nil, map[string]any, []any, string, bool, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v, nil
	}
	if isUndefined(v) {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return out, nil
}

// cloneDocument returns a deep copy of v in the document model.
// Undefined object members are dropped and undefined array elements become null.
func cloneDocument(v any) (any, error) {
	v, err := resolveNode(v)
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, child := range n {
			if isUndefined(child) {
				continue
			}
			c, err := cloneDocument(child)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(n))
		for i, child := range n {
			if isUndefined(child) {
				continue
			}
			c, err := cloneDocument(child)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		if isUndefined(n) {
			return nil, nil
		}
		return n, nil
	}
}

// deepEqual compares two documents structurally. Objects compare
// regardless of key order, arrays by position and length, numbers by value.
func deepEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindObject:
		ma, mb := a.(map[string]any), b.(map[string]any)
		if len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !deepEqual(va, vb) {
				return false
			}
		}
		return true
	case kindArray:
		sa, sb := a.([]any), b.([]any)
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !deepEqual(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return primitiveEqual(a, b)
}

func primitiveEqual(a, b any) bool {
	if eq, ok := integerEqual(a, b); ok {
		return eq
	}
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// integerEqual compares a and b exactly when both hold integers. Integers
// above 2^53 do not survive a float64 conversion.
func integerEqual(a, b any) (equal, ok bool) {
	ia, sa, ok := integer(a)
	if !ok {
		return false, false
	}
	ib, sb, ok := integer(b)
	if !ok {
		return false, false
	}
	switch {
	case sa && sb:
		return int64(ia) == int64(ib), true
	case sa:
		return int64(ia) >= 0 && ia == ib, true
	case sb:
		return int64(ib) >= 0 && ia == ib, true
	}
	return ia == ib, true
}

// integer returns the bits of an integer value and whether they are signed.
func integer(v any) (bits uint64, signed, ok bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), true, true
	case int8:
		return uint64(n), true, true
	case int16:
		return uint64(n), true, true
	case int32:
		return uint64(n), true, true
	case int64:
		return uint64(n), true, true
	case uint:
		return uint64(n), false, true
	case uint8:
		return uint64(n), false, true
	case uint16:
		return uint64(n), false, true
	case uint32:
		return uint64(n), false, true
	case uint64:
		return n, false, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return uint64(i), true, true
		}
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return u, false, true
		}
	}
	return 0, false, false
}
