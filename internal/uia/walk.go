// Copyright 2025 Joseph Cumines

package uia

import (
	"context"
	"errors"
	"strings"
)

// MaxTreeDepth bounds every recursive descent, guarding against
// pathological or cyclic accessibility trees.
const MaxTreeDepth = 64

// Matches reports whether el satisfies a non-structural selector (one of the
// scalar kinds). Chain and Indexed selectors are structural and are handled
// by the locator; passing one is an error.
func Matches(el Element, sel Selector) (bool, error) {
	switch sel.Kind {
	case SelectorRole:
		role, err := el.Role()
		if err != nil {
			return false, err
		}
		return strings.EqualFold(role, sel.Value), nil
	case SelectorName:
		name, err := el.Name()
		if err != nil {
			return false, err
		}
		return name == sel.Value, nil
	case SelectorRoleAndName:
		role, err := el.Role()
		if err != nil {
			return false, err
		}
		if !strings.EqualFold(role, sel.Value) {
			return false, nil
		}
		name, err := el.Name()
		if err != nil {
			return false, err
		}
		return name == sel.Name, nil
	case SelectorNativeID:
		nativeID, err := el.NativeID()
		if err != nil {
			return false, err
		}
		return nativeID == sel.Value, nil
	default:
		return false, Errorf(KindInvalidArgument, "selector kind %q is not an attribute match", sel.Kind)
	}
}

// FindAll walks depth-first from scope collecting elements matching sel, in
// document order, stopping after limit matches (limit <= 0 means unlimited).
// Detached subtrees are skipped rather than failing the walk; platform API
// failures abort it.
func FindAll(ctx context.Context, scope Element, sel Selector, limit int) ([]Element, error) {
	var out []Element
	err := WalkTree(ctx, scope, func(el Element, depth int) (bool, error) {
		ok, err := Matches(el, sel)
		if err != nil {
			if IsKind(err, KindElementDetached) {
				return false, nil
			}
			return false, err
		}
		if ok {
			out = append(out, el)
			if limit > 0 && len(out) >= limit {
				return false, errWalkDone
			}
		}
		return true, nil
	})
	if err != nil && err != errWalkDone {
		return nil, err
	}
	return out, nil
}

// errWalkDone is a sentinel used to stop WalkTree early.
var errWalkDone = errors.New("walk complete")

// WalkTree visits scope and its descendants depth-first. The visitor returns
// whether to descend into the element's children; returning an error aborts
// the walk and propagates.
func WalkTree(ctx context.Context, scope Element, visit func(el Element, depth int) (bool, error)) error {
	var walk func(el Element, depth int) error
	walk = func(el Element, depth int) error {
		if err := ctx.Err(); err != nil {
			return Errorf(KindTimeout, "tree walk cancelled: %w", err)
		}
		if depth > MaxTreeDepth {
			return nil
		}
		descend, err := visit(el, depth)
		if err != nil {
			return err
		}
		if !descend {
			return nil
		}
		children, err := el.Children()
		if err != nil {
			if IsKind(err, KindElementDetached) {
				return nil
			}
			return err
		}
		for _, c := range children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(scope, 0)
}

// DeepestAt descends from el to the deepest visible descendant whose bounds
// contain the point, returning el itself when no child does.
func DeepestAt(el Element, x, y int) Element {
	current := el
	for depth := 0; depth < MaxTreeDepth; depth++ {
		children, err := current.Children()
		if err != nil {
			return current
		}
		var next Element
		for _, c := range children {
			visible, err := c.Visible()
			if err != nil || !visible {
				continue
			}
			b, err := c.Bounds()
			if err != nil {
				continue
			}
			if b.Contains(x, y) {
				next = c
			}
		}
		if next == nil {
			return current
		}
		current = next
	}
	return current
}
