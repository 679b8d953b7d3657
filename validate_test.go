package jsonpatch_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/agentflare-ai/jsonpatch/v2"
)

func errorName(t *testing.T, err error) jsonpatch.ErrorName {
	t.Helper()
	var pe *jsonpatch.PatchError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PatchError, got %T: %v", err, err)
	}
	return pe.Name
}

func TestDecodePatch_Errors(t *testing.T) {
	cases := []struct {
		name  string
		patch string
		want  jsonpatch.ErrorName
		index int
	}{
		{"object instead of array", `{"op":"add","path":"/a","value":1}`, jsonpatch.SequenceNotAnArray, -1},
		{"string instead of array", `"nope"`, jsonpatch.SequenceNotAnArray, -1},
		{"number element", `[1]`, jsonpatch.OperationNotAnObject, 0},
		{"string element", `[{"op":"add","path":"/a","value":1},"x"]`, jsonpatch.OperationNotAnObject, 1},
		{"numeric op", `[{"op":5,"path":"/a"}]`, jsonpatch.OperationOpInvalid, 0},
		{"null op", `[{"op":null,"path":"/a"}]`, jsonpatch.OperationOpInvalid, 0},
		{"numeric path", `[{"op":"remove","path":3}]`, jsonpatch.OperationPathInvalid, 0},
		{"null from", `[{"op":"remove","path":"/a"},{"op":"move","path":"/a","from":null}]`, jsonpatch.OperationFromRequired, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := jsonpatch.DecodePatch([]byte(tc.patch))
			var pe *jsonpatch.PatchError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *PatchError, got %v", err)
			}
			if pe.Name != tc.want || pe.Index != tc.index {
				t.Errorf("got %s at %d, want %s at %d", pe.Name, pe.Index, tc.want, tc.index)
			}
		})
	}
}

func TestDecodePatch_MalformedJSON(t *testing.T) {
	_, err := jsonpatch.DecodePatch([]byte(`[{"op":"add",`))
	if err == nil {
		t.Fatal("expected an error")
	}
	var pe *jsonpatch.PatchError
	if errors.As(err, &pe) {
		t.Errorf("malformed JSON should not be classified, got %s", pe.Name)
	}
}

func TestValidate_Structure(t *testing.T) {
	cases := []struct {
		name  string
		patch string
		want  jsonpatch.ErrorName
	}{
		{"missing op", `[{"path":"/a"}]`, jsonpatch.OperationOpInvalid},
		{"unknown op", `[{"op":"frobnicate","path":"/a"}]`, jsonpatch.OperationOpInvalid},
		{"internal op", `[{"op":"_get","path":"/a"}]`, jsonpatch.OperationOpInvalid},
		{"missing path", `[{"op":"remove"}]`, jsonpatch.OperationPathInvalid},
		{"relative path", `[{"op":"remove","path":"a/b"}]`, jsonpatch.OperationPathInvalid},
		{"unknown escape", `[{"op":"add","path":"/a~2b","value":1}]`, jsonpatch.OperationPathInvalid},
		{"trailing tilde", `[{"op":"add","path":"/a~","value":1}]`, jsonpatch.OperationPathInvalid},
		{"move without from", `[{"op":"move","path":"/a"}]`, jsonpatch.OperationFromRequired},
		{"copy without from", `[{"op":"copy","path":"/a"}]`, jsonpatch.OperationFromRequired},
		{"add without value", `[{"op":"add","path":"/a"}]`, jsonpatch.OperationValueRequired},
		{"replace without value", `[{"op":"replace","path":"/a"}]`, jsonpatch.OperationValueRequired},
		{"test without value", `[{"op":"test","path":"/a"}]`, jsonpatch.OperationValueRequired},
		{"op is checked before path", `[{"op":"nope","path":"a"}]`, jsonpatch.OperationOpInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := jsonpatch.Validate(decodePatch(t, tc.patch), nil)
			if got := errorName(t, err); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	patch := decodePatch(t, `[
		{"op":"add","path":"/a","value":null},
		{"op":"remove","path":"/a"},
		{"op":"replace","path":"","value":{}},
		{"op":"move","from":"","path":"/b"},
		{"op":"copy","from":"/b","path":"/c"},
		{"op":"test","path":"/c","value":[1,"x",false]}
	]`)
	if err := jsonpatch.Validate(patch, nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_UndefinedValue(t *testing.T) {
	patch := jsonpatch.Patch{
		{Op: jsonpatch.Add, Path: "/ok", Value: 1.0},
		{Op: jsonpatch.Add, Path: "/a", Value: map[string]any{"nested": []any{1.0, func() {}}}},
	}
	err := jsonpatch.Validate(patch, nil)
	if got := errorName(t, err); got != jsonpatch.OperationValueCannotContainUndefined {
		t.Fatalf("got %s", got)
	}
	var pe *jsonpatch.PatchError
	errors.As(err, &pe)
	if pe.Index != 1 {
		t.Errorf("Index = %d, want 1", pe.Index)
	}
	if pe.Document != nil {
		t.Errorf("structural validation has no document, got %v", pe.Document)
	}
}

func TestValidateDocument(t *testing.T) {
	doc := map[string]any{
		"arr": []any{1.0, 2.0, 3.0},
		"obj": map[string]any{"k": "v"},
	}
	cases := []struct {
		name string
		op   jsonpatch.Operation
		want jsonpatch.ErrorName
	}{
		{"add below a missing parent", jsonpatch.Operation{Op: jsonpatch.Add, Path: "/x/y/z", Value: 1.0}, jsonpatch.OperationPathCannotAdd},
		{"move below a missing parent", jsonpatch.Operation{Op: jsonpatch.Move, From: "/obj/k", Path: "/x/y"}, jsonpatch.OperationPathCannotAdd},
		{"remove missing member", jsonpatch.Operation{Op: jsonpatch.Remove, Path: "/obj/nope"}, jsonpatch.OperationPathUnresolvable},
		{"replace missing member", jsonpatch.Operation{Op: jsonpatch.Replace, Path: "/nope", Value: 1.0}, jsonpatch.OperationPathUnresolvable},
		{"replace index past the end", jsonpatch.Operation{Op: jsonpatch.Replace, Path: "/arr/3", Value: 1.0}, jsonpatch.OperationPathUnresolvable},
		{"test missing member", jsonpatch.Operation{Op: jsonpatch.Test, Path: "/nope", Value: 1.0}, jsonpatch.OperationPathUnresolvable},
		{"copy from missing member", jsonpatch.Operation{Op: jsonpatch.Copy, From: "/nope", Path: "/b"}, jsonpatch.OperationFromUnresolvable},
		{"move from index past the end", jsonpatch.Operation{Op: jsonpatch.Move, From: "/arr/7", Path: "/b"}, jsonpatch.OperationFromUnresolvable},
		{"non-numeric index", jsonpatch.Operation{Op: jsonpatch.Replace, Path: "/arr/first", Value: 1.0}, jsonpatch.OperationPathIllegalArrayIndex},
		{"dash outside add", jsonpatch.Operation{Op: jsonpatch.Remove, Path: "/arr/-"}, jsonpatch.OperationPathUnresolvable},
		{"add past the end", jsonpatch.Operation{Op: jsonpatch.Add, Path: "/arr/5", Value: 9.0}, jsonpatch.OperationValueOutOfBounds},
		{"add inside a string", jsonpatch.Operation{Op: jsonpatch.Add, Path: "/obj/k/z", Value: 1.0}, jsonpatch.OperationPathCannotAdd},
		{"add inside a number", jsonpatch.Operation{Op: jsonpatch.Add, Path: "/arr/0/x", Value: 1.0}, jsonpatch.OperationPathCannotAdd},
		{"copy into a number", jsonpatch.Operation{Op: jsonpatch.Copy, From: "/obj", Path: "/arr/1/x"}, jsonpatch.OperationPathCannotAdd},
		{"copy from a bad escape", jsonpatch.Operation{Op: jsonpatch.Copy, From: "/obj~9", Path: "/b"}, jsonpatch.OperationFromUnresolvable},
		{"failed test", jsonpatch.Operation{Op: jsonpatch.Test, Path: "/obj/k", Value: "w"}, jsonpatch.TestOperationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := jsonpatch.ValidateDocument(jsonpatch.Patch{tc.op}, doc, nil)
			if got := errorName(t, err); got != tc.want {
				t.Errorf("got %s, want %s (%v)", got, tc.want, err)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("errors.Is(err, %s) = false", tc.want)
			}
		})
	}

	want := map[string]any{
		"arr": []any{1.0, 2.0, 3.0},
		"obj": map[string]any{"k": "v"},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("ValidateDocument modified its input (-want +got):\n%s", diff)
	}
}

func TestValidateDocument_Valid(t *testing.T) {
	doc := map[string]any{"arr": []any{1.0}}
	patch := jsonpatch.Patch{
		{Op: jsonpatch.Add, Path: "/arr/-", Value: 2.0},
		{Op: jsonpatch.Add, Path: "/arr/2", Value: 3.0},
		{Op: jsonpatch.Test, Path: "/arr", Value: []any{1, 2, 3}},
		{Op: jsonpatch.Copy, From: "/arr", Path: "/copy"},
		{Op: jsonpatch.Remove, Path: "/arr/0"},
	}
	if err := jsonpatch.ValidateDocument(patch, doc, nil); err != nil {
		t.Fatalf("ValidateDocument: %v", err)
	}
	if len(doc["arr"].([]any)) != 1 {
		t.Errorf("input modified: %v", doc)
	}
}

func TestValidateDocument_ReportsIndexAndOperation(t *testing.T) {
	doc := map[string]any{"a": 1.0}
	patch := jsonpatch.Patch{
		{Op: jsonpatch.Remove, Path: "/a"},
		{Op: jsonpatch.Remove, Path: "/a"},
	}
	err := jsonpatch.ValidateDocument(patch, doc, nil)
	var pe *jsonpatch.PatchError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PatchError, got %v", err)
	}
	if pe.Index != 1 || pe.Operation.Op != jsonpatch.Remove || pe.Operation.Path != "/a" {
		t.Errorf("got index %d operation %v", pe.Index, pe.Operation)
	}
	if diff := cmp.Diff(map[string]any{}, pe.Document); diff != "" {
		t.Errorf("Document (-want +got):\n%s", diff)
	}
	for _, part := range []string{string(jsonpatch.OperationPathUnresolvable), "operation 1", `remove "/a"`} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("error %q does not contain %q", err, part)
		}
	}
}

func TestWithValidator_Custom(t *testing.T) {
	type call struct {
		index    int
		existing string
	}
	var calls []call
	readOnly := func(op jsonpatch.Operation, index int, res *jsonpatch.Resolution) error {
		calls = append(calls, call{index, res.ExistingPath})
		if strings.HasPrefix(op.Path, "/locked") {
			return errors.New("locked subtree")
		}
		return jsonpatch.ValidateOperation(op, index, res)
	}

	doc := map[string]any{"a": map[string]any{}, "locked": 1.0}
	patch := jsonpatch.Patch{
		{Op: jsonpatch.Add, Path: "/a/b/c", Value: 1.0},
	}
	_, err := jsonpatch.ApplyPatch(doc, patch, jsonpatch.WithValidator(readOnly))
	if got := errorName(t, err); got != jsonpatch.OperationPathCannotAdd {
		t.Errorf("got %s", got)
	}

	_, err = jsonpatch.ApplyPatch(doc, jsonpatch.Patch{
		{Op: jsonpatch.Add, Path: "/a/b", Value: 1.0},
		{Op: jsonpatch.Replace, Path: "/locked", Value: 2.0},
	}, jsonpatch.WithValidator(readOnly))
	if err == nil || err.Error() != "locked subtree" {
		t.Errorf("expected the custom error, got %v", err)
	}

	want := []call{{0, "/a"}, {0, "/a"}, {1, "/locked"}}
	if diff := cmp.Diff(want, calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("validator calls (-want +got):\n%s", diff)
	}
}

func TestWithValidator_FromErrorsAreClassified(t *testing.T) {
	permissive := func(jsonpatch.Operation, int, *jsonpatch.Resolution) error { return nil }
	op := jsonpatch.Operation{Op: jsonpatch.Copy, From: "/nope", Path: "/b"}

	_, err := jsonpatch.ApplyOperation(map[string]any{}, op, jsonpatch.WithValidator(permissive))
	var pe *jsonpatch.PatchError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PatchError, got %v", err)
	}
	if pe.Name != jsonpatch.OperationFromUnresolvable {
		t.Errorf("Name = %s, want %s", pe.Name, jsonpatch.OperationFromUnresolvable)
	}
	if pe.Operation.Op != jsonpatch.Copy {
		t.Errorf("Operation = %v, want the copy operation", pe.Operation)
	}
}

func TestPatchError_PatchLevelMessage(t *testing.T) {
	_, err := jsonpatch.DecodePatch([]byte(`{}`))
	if err == nil {
		t.Fatal("expected an error")
	}
	if strings.Contains(err.Error(), "operation -1") {
		t.Errorf("patch-level error mentions an operation: %q", err)
	}
	if !errors.Is(err, jsonpatch.SequenceNotAnArray) {
		t.Errorf("errors.Is(err, %s) = false", jsonpatch.SequenceNotAnArray)
	}
}
