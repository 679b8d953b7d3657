package jsonpatch

import (
	"sort"
	"strconv"
)

// CompareOption configures Compare.
type CompareOption func(*generator)

// Invertible makes Compare precede every replace and remove with a test of
// the value being overwritten, so the patch fails on a document that has
// drifted from the source.
func Invertible() CompareOption {
	return func(g *generator) { g.invertible = true }
}

// Compare returns the patch that turns a into b. Applying it to a deep copy
// of a yields a document equal to b.
//
// Only add, remove and replace operations (and test, with Invertible) are
// produced; moves are expressed as a remove and an add. Within an object,
// members of a are visited in reverse key order and new members of b in key
// order. Within an array, trailing elements are removed from the end first,
// so the indices of earlier operations stay valid.
func Compare(a, b any, opts ...CompareOption) (Patch, error) {
	g := &generator{patch: Patch{}}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.generate(a, b, ""); err != nil {
		return nil, err
	}
	return g.patch, nil
}

type generator struct {
	patch      Patch
	invertible bool
}

func (g *generator) generate(old, cur any, path string) error {
	old, err := resolveNode(old)
	if err != nil {
		return err
	}
	cur, err = resolveNode(cur)
	if err != nil {
		return err
	}

	ko, kc := kindOf(old), kindOf(cur)
	switch {
	case ko == kindObject && kc == kindObject:
		return g.objects(old.(map[string]any), cur.(map[string]any), path)
	case ko == kindArray && kc == kindArray:
		return g.arrays(old.([]any), cur.([]any), path)
	case ko == kindPrimitive && kc == kindPrimitive && primitiveEqual(old, cur):
		return nil
	}
	return g.replace(path, old, cur)
}

func (g *generator) objects(old, cur map[string]any, path string) error {
	oldKeys := sortedKeys(old)
	deleted := false
	for i := len(oldKeys) - 1; i >= 0; i-- {
		key := oldKeys[i]
		p := path + "/" + EscapePathComponent(key)
		if v, ok := cur[key]; ok && !isUndefined(v) {
			if err := g.generate(old[key], v, p); err != nil {
				return err
			}
			continue
		}
		if err := g.remove(p, old[key]); err != nil {
			return err
		}
		deleted = true
	}
	if !deleted && len(cur) == len(old) {
		return nil
	}
	for _, key := range sortedKeys(cur) {
		if _, ok := old[key]; ok || isUndefined(cur[key]) {
			continue
		}
		if err := g.add(path+"/"+EscapePathComponent(key), cur[key]); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) arrays(old, cur []any, path string) error {
	deleted := false
	for i := len(old) - 1; i >= 0; i-- {
		p := path + "/" + strconv.Itoa(i)
		if i < len(cur) {
			if err := g.generate(old[i], cur[i], p); err != nil {
				return err
			}
			continue
		}
		if err := g.remove(p, old[i]); err != nil {
			return err
		}
		deleted = true
	}
	if !deleted && len(cur) == len(old) {
		return nil
	}
	for i := len(old); i < len(cur); i++ {
		if err := g.add(path+"/"+strconv.Itoa(i), cur[i]); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) test(path string, old any) error {
	if !g.invertible {
		return nil
	}
	v, err := cloneDocument(old)
	if err != nil {
		return err
	}
	g.patch = append(g.patch, Operation{Op: Test, Path: path, Value: v})
	return nil
}

func (g *generator) replace(path string, old, cur any) error {
	if err := g.test(path, old); err != nil {
		return err
	}
	v, err := cloneDocument(cur)
	if err != nil {
		return err
	}
	g.patch = append(g.patch, Operation{Op: Replace, Path: path, Value: v})
	return nil
}

func (g *generator) remove(path string, old any) error {
	if err := g.test(path, old); err != nil {
		return err
	}
	g.patch = append(g.patch, Operation{Op: Remove, Path: path})
	return nil
}

func (g *generator) add(path string, cur any) error {
	v, err := cloneDocument(cur)
	if err != nil {
		return err
	}
	g.patch = append(g.patch, Operation{Op: Add, Path: path, Value: v})
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
