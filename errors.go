package jsonpatch

import "fmt"

// ErrorName classifies a patch failure. It implements error so that
// errors.Is(err, OperationPathUnresolvable) matches any *PatchError of that kind.
type ErrorName string

func (n ErrorName) Error() string { return string(n) }

const (
	SequenceNotAnArray                   ErrorName = "SEQUENCE_NOT_AN_ARRAY"
	OperationNotAnObject                 ErrorName = "OPERATION_NOT_AN_OBJECT"
	OperationOpInvalid                   ErrorName = "OPERATION_OP_INVALID"
	OperationPathInvalid                 ErrorName = "OPERATION_PATH_INVALID"
	OperationFromRequired                ErrorName = "OPERATION_FROM_REQUIRED"
	OperationValueRequired               ErrorName = "OPERATION_VALUE_REQUIRED"
	OperationValueCannotContainUndefined ErrorName = "OPERATION_VALUE_CANNOT_CONTAIN_UNDEFINED"
	OperationPathCannotAdd               ErrorName = "OPERATION_PATH_CANNOT_ADD"
	OperationPathUnresolvable            ErrorName = "OPERATION_PATH_UNRESOLVABLE"
	OperationFromUnresolvable            ErrorName = "OPERATION_FROM_UNRESOLVABLE"
	OperationPathIllegalArrayIndex       ErrorName = "OPERATION_PATH_ILLEGAL_ARRAY_INDEX"
	OperationValueOutOfBounds            ErrorName = "OPERATION_VALUE_OUT_OF_BOUNDS"
	TestOperationFailed                  ErrorName = "TEST_OPERATION_FAILED"
)

// PatchError is a classified failure of one operation in a patch.
type PatchError struct {
	Name    ErrorName
	Message string
	// Index is the position of the operation in its patch, or -1 when the
	// failure concerns the patch as a whole.
	Index     int
	Operation Operation
	// Document is the document the operation was checked against, if any.
	Document any
}

func (e *PatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s (operation %d: %s %q)", e.Name, e.Message, e.Index, e.Operation.Op, e.Operation.Path)
}

func (e *PatchError) Unwrap() error { return e.Name }

func newPatchError(name ErrorName, message string, index int, op Operation, document any) *PatchError {
	return &PatchError{
		Name:      name,
		Message:   message,
		Index:     index,
		Operation: op,
		Document:  document,
	}
}
