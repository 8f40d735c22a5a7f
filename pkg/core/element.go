package core

import (
	"fmt"
	"reflect"
)

// Node is anything a component may render: an *Element, a string (text), a
// []Node (an implicit fragment), nil, or a value returned by Suspend or Fail.
// Numbers and fmt.Stringer values render as text.
type Node any

// Props holds the properties of an element.
type Props map[string]any

// Element is an immutable description of one node of the desired UI.
//
// Elements are compared by pointer: rendering the same *Element twice at the
// same position lets the reconciler skip the whole subtree.
type Element struct {
	// Type is a host tag (string), a ComponentFunc, a Component, or one of
	// the built-in types Fragment, SuspenseType, ErrorBoundaryType or a
	// context provider.
	Type     any
	Key      string
	Props    Props
	Children []Node
	Ref      *Ref
}

// Keyed sets the element's key and returns the element.
func (e *Element) Keyed(key string) *Element {
	e.Key = key
	return e
}

// WithRef sets the element's ref and returns the element.
func (e *Element) WithRef(ref *Ref) *Element {
	e.Ref = ref
	return e
}

// ComponentFunc renders props into child nodes.
type ComponentFunc func(c *Ctx, props Props) Node

// Component is a struct-valued component. The struct's fields are its props.
type Component interface {
	Render(c *Ctx) Node
}

// Ref holds a mutable value that survives re-renders. Refs attached to host
// elements receive the host instance after commit.
type Ref struct {
	Current any
}

type builtinType uint8

const (
	// Fragment groups children without a host node of its own.
	Fragment builtinType = iota + 1
	// SuspenseType marks a suspense boundary element.
	SuspenseType
	// ErrorBoundaryType marks an error boundary element.
	ErrorBoundaryType
)

func (t builtinType) String() string {
	switch t {
	case Fragment:
		return "Fragment"
	case SuspenseType:
		return "Suspense"
	case ErrorBoundaryType:
		return "ErrorBoundary"
	default:
		return fmt.Sprintf("builtin(%d)", uint8(t))
	}
}

// H creates a host element.
func H(tag string, props Props, children ...Node) *Element {
	return &Element{Type: tag, Props: props, Children: children}
}

// F creates a function component element.
func F(fn ComponentFunc, props Props, children ...Node) *Element {
	return &Element{Type: fn, Props: props, Children: children}
}

// C creates an element for a struct-valued component.
func C(comp Component) *Element {
	return &Element{Type: comp}
}

// Frag creates a fragment element.
func Frag(children ...Node) *Element {
	return &Element{Type: Fragment, Children: children}
}

// Suspense creates a suspense boundary that shows fallback while any
// descendant is waiting on a pending signal.
func Suspense(fallback Node, children ...Node) *Element {
	return &Element{Type: SuspenseType, Props: Props{propFallback: fallback}, Children: children}
}

// BoundaryProps configures an error boundary.
type BoundaryProps struct {
	// Fallback renders the output shown in place of the failed subtree.
	Fallback func(err error) Node
	// OnError is called after the fallback has been committed.
	OnError func(err error)
}

// ErrorBoundary creates an element that catches render errors thrown by its
// descendants and renders props.Fallback instead.
func ErrorBoundary(props BoundaryProps, children ...Node) *Element {
	return &Element{Type: ErrorBoundaryType, Props: Props{propBoundary: props}, Children: children}
}

const (
	propFallback = "fallback"
	propBoundary = "boundary"
	propValue    = "value"
)

// suspendNode is the explicit "suspended" render result.
type suspendNode struct {
	thenable Thenable
}

// failNode is the explicit "failed" render result.
type failNode struct {
	err error
}

// Suspend is returned by a component that cannot render until t settles.
// The nearest suspense boundary shows its fallback in the meantime.
func Suspend(t Thenable) Node {
	return &suspendNode{thenable: t}
}

// Fail is returned by a component whose render failed. The error is routed
// to the nearest error boundary.
func Fail(err error) Node {
	return &failNode{err: err}
}

// typeName describes an element type for error messages.
func typeName(t any) string {
	switch v := t.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case builtinType:
		return v.String()
	case *contextBase:
		return v.name + ".Provider"
	case ComponentFunc:
		return funcName(v)
	default:
		return reflect.TypeOf(t).String()
	}
}

func funcName(fn ComponentFunc) string {
	if fn == nil {
		return "<nil func>"
	}
	return runtimeFuncName(reflect.ValueOf(fn).Pointer())
}

// sameType reports whether two element types describe the same component.
// Function components match by code pointer, struct components by type.
func sameType(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case builtinType:
		bv, ok := b.(builtinType)
		return ok && av == bv
	case *contextBase:
		bv, ok := b.(*contextBase)
		return ok && av == bv
	case ComponentFunc:
		bv, ok := b.(ComponentFunc)
		if !ok || av == nil || bv == nil {
			return false
		}
		return reflect.ValueOf(av).Pointer() == reflect.ValueOf(bv).Pointer()
	case nil:
		return b == nil
	default:
		return reflect.TypeOf(a) == reflect.TypeOf(b)
	}
}

// textOf converts a text-like node to its string form.
func textOf(n Node) (string, bool) {
	switch v := n.(type) {
	case string:
		return v, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// childrenNode turns an element's child list into the node handed to the
// child reconciler.
func childrenNode(children []Node) Node {
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	default:
		return children
	}
}

// sameNode compares nodes by identity without panicking on slices.
func sameNode(a, b Node) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case *Element:
		bv, ok := b.(*Element)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return false
	}
}
