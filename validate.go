package jsonpatch

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/jsonpointer"
)

// Resolution describes how an operation's path lies inside a document.
type Resolution struct {
	Document any
	// ExistingPath is the longest prefix of the operation's path that
	// resolves in Document. It equals the path when the target exists.
	ExistingPath string
}

// ValidatorFunc checks one operation. index is the operation's position in
// its patch. res is nil when no document is available, in which case only
// the shape of the operation can be checked.
type ValidatorFunc func(op Operation, index int, res *Resolution) error

// ValidateOperation is the default ValidatorFunc. It returns a *PatchError
// for the first violated rule.
func ValidateOperation(op Operation, index int, res *Resolution) error {
	fail := func(name ErrorName, format string, args ...any) error {
		var doc any
		if res != nil {
			doc = res.Document
		}
		return newPatchError(name, fmt.Sprintf(format, args...), index, op, doc)
	}

	switch {
	case !op.Op.valid():
		return fail(OperationOpInvalid, "operation `op` property is not one of operations defined in RFC-6902")
	case op.pathMissing:
		return fail(OperationPathInvalid, "operation `path` property is not a string")
	case op.Path != "" && op.Path[0] != '/':
		return fail(OperationPathInvalid, "operation `path` property must start with \"/\"")
	case !validPointer(op.Path):
		return fail(OperationPathInvalid, "operation `path` property is not a valid JSON Pointer")
	case op.Op.needsFrom() && op.fromMissing:
		return fail(OperationFromRequired, "operation `from` property is not present (applicable in `move` and `copy` operations)")
	case op.Op.needsValue() && op.valueMissing:
		return fail(OperationValueRequired, "operation `value` property is not present (applicable in `add`, `replace` and `test` operations)")
	case op.Op.needsValue() && containsUndefined(op.Value):
		return fail(OperationValueCannotContainUndefined, "operation `value` property contains a value with no JSON representation")
	}
	if res == nil {
		return nil
	}

	tokens, _ := splitPointer(op.Path)
	if name, msg := checkArrayTokens(res.Document, tokens, op.Op == Add || op.Op.needsFrom()); name != "" {
		return fail(name, "%s", msg)
	}

	switch op.Op {
	case Add, Move, Copy:
		depth := strings.Count(op.Path, "/")
		existing := strings.Count(res.ExistingPath, "/")
		if depth != existing && depth != existing+1 {
			return fail(OperationPathCannotAdd, "cannot perform an `add` operation at the desired path")
		}
		if len(tokens) > 0 {
			parent, _ := lookup(res.Document, tokens[:len(tokens)-1])
			switch parent.(type) {
			case map[string]any, []any:
			default:
				return fail(OperationPathCannotAdd, "cannot perform an `add` operation inside a %T", parent)
			}
		}
	case Remove, Replace, Test:
		if op.Path != res.ExistingPath {
			return fail(OperationPathUnresolvable, "cannot perform the operation at a path that does not exist")
		}
	}

	if op.Op.needsFrom() {
		if !validPointer(op.From) || existingPath(res.Document, op.From) != op.From {
			return fail(OperationFromUnresolvable, "cannot perform the operation from a path that does not exist")
		}
	}
	return nil
}

func validPointer(s string) bool {
	_, err := splitPointer(s)
	return err == nil
}

// checkArrayTokens walks tokens through document and reports the first token
// that addresses an array with something other than an index. When adding,
// the final token may be "-" or an index up to the array's length.
func checkArrayTokens(document any, tokens []string, adding bool) (ErrorName, string) {
	node := document
	for i, t := range tokens {
		arr, isArray := node.([]any)
		if isArray && t != "-" {
			idx, err := jsonpointer.ParseArrayIndex(t)
			if err != nil {
				return OperationPathIllegalArrayIndex, fmt.Sprintf("expected an unsigned base-10 integer value, making the new referenced value the array element with the zero-based index, got %q at %s", t, formatPointer(tokens[:i]))
			}
			if adding && i == len(tokens)-1 && idx > uint64(len(arr)) {
				return OperationValueOutOfBounds, fmt.Sprintf("the specified index %d MUST NOT be greater than the number of elements in the array (%d)", idx, len(arr))
			}
		}
		next, ok := child(node, t)
		if !ok {
			return "", ""
		}
		node = next
	}
	return "", ""
}

// Validate checks the shape of every operation in patch and returns the
// first error. A nil validator means ValidateOperation.
func Validate(patch Patch, validator ValidatorFunc) error {
	if validator == nil {
		validator = ValidateOperation
	}
	for i, op := range patch {
		if err := validator(op, i, nil); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDocument checks patch against document by applying it, with
// validation, to a deep copy. document is never modified. The first error
// is returned, including a failed test operation.
func ValidateDocument(patch Patch, document any, validator ValidatorFunc) error {
	if validator == nil {
		validator = ValidateOperation
	}
	doc, err := cloneDocument(document)
	if err != nil {
		return fmt.Errorf("failed to copy document: %w", err)
	}
	_, err = ApplyPatch(doc, patch, WithMutation(), WithValidator(validator))
	return err
}
