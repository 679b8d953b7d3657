package jsonpatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// OperationResult is the outcome of applying one operation.
type OperationResult struct {
	// Removed holds the value displaced by remove, replace or move.
	Removed any
	// Test is set for test operations only.
	Test *bool
	// NewDocument is the document after the operation.
	NewDocument any

	value any // read by _get
}

// PatchResult is the outcome of applying a patch.
type PatchResult struct {
	Results []OperationResult
	// NewDocument is the document after the last applied operation.
	NewDocument any
}

// Option configures ApplyOperation and ApplyPatch.
type Option func(*applyOptions)

type applyOptions struct {
	validator ValidatorFunc
	mutate    bool
}

// WithValidation validates every operation with ValidateOperation before it
// is applied. Failures are reported as *PatchError.
func WithValidation() Option {
	return func(o *applyOptions) { o.validator = ValidateOperation }
}

// WithValidator validates every operation with v before it is applied.
func WithValidator(v ValidatorFunc) Option {
	return func(o *applyOptions) { o.validator = v }
}

// WithMutation edits the document in place instead of a deep copy.
// Nested maps and slices of the input are modified.
func WithMutation() Option {
	return func(o *applyOptions) { o.mutate = true }
}

func newApplyOptions(opts []Option) applyOptions {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Apply applies a series of JSON Patch operations to a document, returning a new
// modified document. The original document is not changed.
func Apply(document any, patch Patch) (any, error) {
	res, err := ApplyPatch(document, patch)
	if err != nil {
		return nil, err
	}
	return res.NewDocument, nil
}

// ApplyInPlace applies a series of JSON Patch operations to a document in-place.
// WARNING: This function modifies the input document.
func ApplyInPlace(document any, patch Patch) (any, error) {
	res, err := ApplyPatch(document, patch, WithMutation())
	if err != nil {
		return nil, err
	}
	return res.NewDocument, nil
}

// ApplyStream applies a series of JSON Patch operations from a reader to a writer.
// The decoded document is private to the call, so it is patched in place.
func ApplyStream(reader io.Reader, writer io.Writer, patch Patch) error {
	var doc any
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}

	modifiedDoc, err := ApplyInPlace(doc, patch)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(writer)
	return encoder.Encode(modifiedDoc)
}

// ApplyPatch applies the operations of patch in order, each one to the
// document produced by the previous one. Unless WithMutation is given the
// document is deep-copied first.
//
// Application stops at the first error. Operations applied before it are not
// rolled back; the partial results are returned with the error. A failed test
// contributes its result (Test set to false) before the error.
func ApplyPatch(document any, patch Patch, opts ...Option) (PatchResult, error) {
	o := newApplyOptions(opts)
	if !o.mutate {
		doc, err := cloneDocument(document)
		if err != nil {
			return PatchResult{}, fmt.Errorf("failed to copy document: %w", err)
		}
		document = doc
	}

	out := PatchResult{
		Results:     make([]OperationResult, 0, len(patch)),
		NewDocument: document,
	}
	for i, op := range patch {
		res, err := applyOperation(out.NewDocument, op, i, o.validator)
		if err != nil {
			if res.Test != nil {
				out.Results = append(out.Results, res)
			}
			return out, err
		}
		out.Results = append(out.Results, res)
		out.NewDocument = res.NewDocument
	}
	return out, nil
}

// ApplyOperation applies a single operation. Unless WithMutation is given the
// document is deep-copied first.
func ApplyOperation(document any, op Operation, opts ...Option) (OperationResult, error) {
	o := newApplyOptions(opts)
	if !o.mutate {
		doc, err := cloneDocument(document)
		if err != nil {
			return OperationResult{}, fmt.Errorf("failed to copy document: %w", err)
		}
		document = doc
	}
	return applyOperation(document, op, 0, o.validator)
}

// ApplyReducer applies op to document in place and returns the resulting
// document, so a patch can be folded over a document one operation at a time.
func ApplyReducer(document any, op Operation) (any, error) {
	res, err := applyOperation(document, op, 0, nil)
	if err != nil {
		return nil, err
	}
	return res.NewDocument, nil
}

func applyOperation(document any, op Operation, index int, validator ValidatorFunc) (OperationResult, error) {
	if validator != nil {
		res := &Resolution{Document: document, ExistingPath: existingPath(document, op.Path)}
		if err := validator(op, index, res); err != nil {
			return OperationResult{NewDocument: document}, err
		}
	}
	a := applier{op: op, label: op.Op, index: index, document: document, validating: validator != nil}
	return a.apply()
}

// applier applies one operation to a document that it may modify.
type applier struct {
	op Operation
	// label names the operation in plain errors; move and copy keep their
	// own name while running their sub-operations.
	label      Op
	index      int
	document   any
	validating bool
}

// fail reports err as a *PatchError when validating and as a plain wrapped
// error otherwise.
func (a *applier) fail(name ErrorName, err error) error {
	if a.validating {
		return newPatchError(name, err.Error(), a.index, a.op, a.document)
	}
	return fmt.Errorf("patch operation %s failed: %w", a.label, err)
}

func (a *applier) resolveError(err error) error {
	switch {
	case errors.Is(err, errPointerSyntax):
		return a.fail(OperationPathInvalid, err)
	case errors.Is(err, errIllegalIndex):
		return a.fail(OperationPathIllegalArrayIndex, err)
	case errors.Is(err, errIndexRange) && a.op.Op == Add:
		return a.fail(OperationValueOutOfBounds, err)
	default:
		return a.fail(OperationPathUnresolvable, err)
	}
}

func (a *applier) testFailed(actual any) error {
	return newPatchError(TestOperationFailed,
		fmt.Sprintf("test failed: expected %v, got %v", a.op.Value, actual),
		a.index, a.op, a.document)
}

func (a *applier) apply() (OperationResult, error) {
	unchanged := OperationResult{NewDocument: a.document}
	if !a.op.Op.valid() && a.op.Op != opGet {
		return unchanged, a.fail(OperationOpInvalid, fmt.Errorf("unsupported patch operation: %s", a.op.Op))
	}
	if a.op.Op == Move || a.op.Op == Copy {
		return a.transfer()
	}

	tokens, err := splitPointer(a.op.Path)
	if err != nil {
		return unchanged, a.resolveError(err)
	}

	var value any
	if a.op.Op.needsValue() {
		if value, err = cloneDocument(a.op.Value); err != nil {
			return unchanged, fmt.Errorf("patch operation %s failed: %w", a.label, err)
		}
	}

	if len(tokens) == 0 {
		return a.applyRoot(value)
	}

	var res OperationResult
	doc, err := edit(a.document, tokens, func(container any, token string) (any, error) {
		return a.applyTo(container, token, value, &res)
	})
	if err != nil {
		return unchanged, a.resolveError(err)
	}
	res.NewDocument = doc
	if res.Test != nil && !*res.Test {
		actual, _ := lookup(doc, tokens)
		return res, a.testFailed(actual)
	}
	return res, nil
}

func (a *applier) applyRoot(value any) (OperationResult, error) {
	res := OperationResult{NewDocument: a.document}
	switch a.op.Op {
	case Add:
		res.NewDocument = value
	case Replace:
		res.Removed = a.document
		res.NewDocument = value
	case Remove:
		res.Removed = a.document
		res.NewDocument = nil
	case Test:
		passed := deepEqual(a.document, value)
		res.Test = &passed
		if !passed {
			return res, a.testFailed(a.document)
		}
	case opGet:
		res.value = a.document
	}
	return res, nil
}

// applyTo performs the operation on the slot token of container and returns
// the container to store back into its parent.
func (a *applier) applyTo(container any, token string, value any, res *OperationResult) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		switch a.op.Op {
		case Add:
			c[token] = value
		case Replace:
			res.Removed = c[token]
			c[token] = value
		case Remove:
			old, ok := c[token]
			if !ok {
				return nil, fmt.Errorf("%w: missing member %q", errNotFound, token)
			}
			delete(c, token)
			res.Removed = old
		case Test:
			actual, ok := c[token]
			passed := ok && deepEqual(actual, value)
			res.Test = &passed
		case opGet:
			v, ok := c[token]
			if !ok {
				return nil, fmt.Errorf("%w: missing member %q", errNotFound, token)
			}
			res.value = v
		}
		return c, nil

	case []any:
		if a.op.Op == Add {
			i, err := arrayIndex(token, len(c), true)
			if err != nil {
				return nil, err
			}
			c = append(c, nil)
			copy(c[i+1:], c[i:])
			c[i] = value
			return c, nil
		}
		i, err := arrayIndex(token, len(c), false)
		if a.op.Op == Test && errors.Is(err, errIndexRange) {
			passed := false
			res.Test = &passed
			return c, nil
		}
		if err != nil {
			return nil, err
		}
		switch a.op.Op {
		case Replace:
			res.Removed = c[i]
			c[i] = value
		case Remove:
			res.Removed = c[i]
			copy(c[i:], c[i+1:])
			c[len(c)-1] = nil
			c = c[:len(c)-1]
		case Test:
			passed := deepEqual(c[i], value)
			res.Test = &passed
		case opGet:
			res.value = c[i]
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%w: cannot address %q inside %T", errNotFound, token, container)
	}
}

// transfer implements move and copy as a read of from followed by a remove
// of from (move only) and an add at path, all on the same document.
func (a *applier) transfer() (OperationResult, error) {
	res := OperationResult{NewDocument: a.document}
	if a.op.Op == Move {
		if tokens, err := splitPointer(a.op.Path); err == nil {
			if prior, ok := lookup(a.document, tokens); ok {
				res.Removed, _ = cloneDocument(prior)
			}
		}
	}

	got, err := a.sub(Operation{Op: opGet, Path: a.op.From}, a.document)
	if err != nil {
		return res, a.fromError(err)
	}
	value := got.value
	doc := a.document

	if a.op.Op == Move {
		removed, err := a.sub(Operation{Op: Remove, Path: a.op.From}, doc)
		if err != nil {
			return res, a.fromError(err)
		}
		doc = removed.NewDocument
	}

	added, err := a.sub(Operation{Op: Add, Path: a.op.Path, Value: value}, doc)
	if err != nil {
		var pe *PatchError
		if errors.As(err, &pe) {
			pe.Operation = a.op
		}
		return res, err
	}
	res.NewDocument = added.NewDocument
	return res, nil
}

func (a *applier) sub(op Operation, doc any) (OperationResult, error) {
	s := applier{op: op, label: a.label, index: a.index, document: doc, validating: a.validating}
	return s.apply()
}

func (a *applier) fromError(err error) error {
	var pe *PatchError
	if errors.As(err, &pe) {
		pe.Operation = a.op
		if pe.Name == OperationPathUnresolvable || pe.Name == OperationPathInvalid || pe.Name == OperationPathIllegalArrayIndex {
			pe.Name = OperationFromUnresolvable
		}
	}
	return err
}
