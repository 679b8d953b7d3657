package jsonpatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Op represents JSON Patch operation types
type Op string

const (
	Add     Op = "add"
	Remove  Op = "remove"
	Replace Op = "replace"
	Move    Op = "move"
	Copy    Op = "copy"
	Test    Op = "test"

	// opGet reads the value at a path. It is only used to build move and copy.
	opGet Op = "_get"
)

func (op Op) valid() bool {
	switch op {
	case Add, Remove, Replace, Move, Copy, Test:
		return true
	}
	return false
}

// needsValue reports whether the operation carries a "value" member.
func (op Op) needsValue() bool {
	return op == Add || op == Replace || op == Test
}

// needsFrom reports whether the operation carries a "from" member.
func (op Op) needsFrom() bool {
	return op == Move || op == Copy
}

// Operation represents a single JSON Patch operation.
//
// An Operation decoded from JSON remembers which members were absent, so
// that {"op":"add","path":"/a","value":null} and {"op":"add","path":"/a"}
// validate differently. Operations built in Go are treated as complete.
type Operation struct {
	Op    Op
	Path  string
	From  string
	Value any

	pathMissing  bool
	fromMissing  bool
	valueMissing bool
}

// Patch represents a collection of JSON Patch operations
type Patch []Operation

type wireOperation struct {
	Op    Op              `json:"op"`
	Path  string          `json:"path"`
	From  *string         `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON writes "from" only for move and copy and always writes "value"
// for add, replace and test, including a null value.
func (o Operation) MarshalJSON() ([]byte, error) {
	w := wireOperation{Op: o.Op, Path: o.Path}
	if o.Op.needsFrom() {
		from := o.From
		w.From = &from
	}
	if o.Op.needsValue() {
		v, err := json.Marshal(o.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value of %s %q: %w", o.Op, o.Path, err)
		}
		w.Value = v
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes one operation. Members of the wrong JSON type are
// reported as a *PatchError; absent members are recorded for the validator.
func (o *Operation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return newPatchError(OperationNotAnObject, "operation is not an object", 0, Operation{}, nil)
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("failed to decode operation: %w", err)
	}

	var op Operation
	if raw, ok := members["op"]; ok {
		if err := decodeString(raw, (*string)(&op.Op)); err != nil {
			return newPatchError(OperationOpInvalid, "operation `op` property is not a string", 0, op, nil)
		}
	}
	if raw, ok := members["path"]; ok {
		if err := decodeString(raw, &op.Path); err != nil {
			return newPatchError(OperationPathInvalid, "operation `path` property is not a string", 0, op, nil)
		}
	} else {
		op.pathMissing = true
	}
	if raw, ok := members["from"]; ok {
		if err := decodeString(raw, &op.From); err != nil {
			return newPatchError(OperationFromRequired, "operation `from` property is not a string", 0, op, nil)
		}
	} else {
		op.fromMissing = true
	}
	if raw, ok := members["value"]; ok {
		if err := json.Unmarshal(raw, &op.Value); err != nil {
			return fmt.Errorf("failed to decode value of %s %q: %w", op.Op, op.Path, err)
		}
	} else {
		op.valueMissing = true
	}

	*o = op
	return nil
}

func decodeString(raw json.RawMessage, dst *string) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errors.New("null is not a string")
	}
	return json.Unmarshal(raw, dst)
}

// DecodePatch decodes a JSON patch document. Structural problems are
// reported as a *PatchError carrying the offending operation's index.
func DecodePatch(data []byte) (Patch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, newPatchError(SequenceNotAnArray, "patch sequence must be an array", -1, Operation{}, nil)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}

	patch := make(Patch, len(elems))
	for i, elem := range elems {
		if err := patch[i].UnmarshalJSON(elem); err != nil {
			if pe, ok := err.(*PatchError); ok {
				pe.Index = i
			}
			return nil, err
		}
	}
	return patch, nil
}
