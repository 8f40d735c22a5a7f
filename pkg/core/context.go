package core

import (
	"fmt"
	"reflect"

	"github.com/go-drift/fiber/pkg/lanes"
)

// contextBase is the untyped identity of a Context. It doubles as the element
// type of the context's providers.
type contextBase struct {
	name         string
	defaultValue any
}

// Context carries a value of type T down the tree without threading it
// through props. Descendants read the nearest provided value with
// UseContext; changing a provider's value re-renders every consumer, even
// below components that otherwise bail out.
//
// Example:
//
//	var Theme = core.NewContext("light")
//
//	func App(c *core.Ctx, _ core.Props) core.Node {
//	    return Theme.Provide("dark", core.F(Toolbar, nil))
//	}
//
//	func Toolbar(c *core.Ctx, _ core.Props) core.Node {
//	    return core.H("div", core.Props{"theme": core.UseContext(c, Theme)})
//	}
type Context[T any] struct {
	base *contextBase
}

// NewContext creates a context whose consumers see defaultValue when no
// provider is above them.
func NewContext[T any](defaultValue T) *Context[T] {
	return &Context[T]{base: &contextBase{
		name:         fmt.Sprintf("Context[%s]", reflect.TypeFor[T]()),
		defaultValue: defaultValue,
	}}
}

// Named sets the name used for the context in error messages.
func (c *Context[T]) Named(name string) *Context[T] {
	c.base.name = name
	return c
}

// Default returns the value seen without a provider.
func (c *Context[T]) Default() T {
	return valueAs[T](c.base.defaultValue)
}

// Provide returns a provider element exposing value to children.
func (c *Context[T]) Provide(value T, children ...Node) *Element {
	return &Element{Type: c.base, Props: Props{propValue: value}, Children: children}
}

// UseContext returns the value of the nearest provider of ctx above the
// rendering component and subscribes the component to its changes.
func UseContext[T any](c *Ctx, ctx *Context[T]) T {
	return valueAs[T](c.readContext(ctx.base))
}

type contextFrame struct {
	ctx     *contextBase
	prev    any
	hadPrev bool
}

// contextStack tracks provided values along the path being rendered. Each
// root owns one, so interleaved renders of different roots do not mix.
type contextStack struct {
	values map[*contextBase]any
	frames []contextFrame
}

func (s *contextStack) reset() {
	s.values = nil
	s.frames = s.frames[:0]
}

func (s *contextStack) push(ctx *contextBase, value any) {
	if s.values == nil {
		s.values = make(map[*contextBase]any)
	}
	prev, had := s.values[ctx]
	s.frames = append(s.frames, contextFrame{ctx: ctx, prev: prev, hadPrev: had})
	s.values[ctx] = value
}

func (s *contextStack) pop(ctx *contextBase) {
	n := len(s.frames)
	if n == 0 || s.frames[n-1].ctx != ctx {
		panic(fmt.Sprintf("core: unbalanced context stack popping %s", ctx.name))
	}
	frame := s.frames[n-1]
	s.frames = s.frames[:n-1]
	if frame.hadPrev {
		s.values[ctx] = frame.prev
	} else {
		delete(s.values, ctx)
	}
}

func (s *contextStack) read(ctx *contextBase) any {
	if v, ok := s.values[ctx]; ok {
		return v
	}
	return ctx.defaultValue
}

func providerValue(f *Fiber) any {
	if el, ok := f.memoizedProps.(*Element); ok {
		return el.Props[propValue]
	}
	return nil
}

// propagateContextChange marks every consumer of ctx below provider with
// renderLanes so that bailouts on the way down still reach them.
func propagateContextChange(provider *Fiber, ctx *contextBase, renderLanes lanes.Lanes) {
	fiber := provider.child
	if fiber != nil {
		fiber.parent = provider
	}
	for fiber != nil {
		var next *Fiber
		switch {
		case fiber.dependencies != nil:
			next = fiber.child
			for _, dep := range fiber.dependencies.contexts {
				if dep != ctx {
					continue
				}
				fiber.lanes |= renderLanes
				if alt := fiber.alternate; alt != nil {
					alt.lanes |= renderLanes
				}
				scheduleWorkOnParentPath(fiber.parent, renderLanes)
				fiber.dependencies.lanes |= renderLanes
				break
			}
		case fiber.tag == ContextProvider && fiber.elementType == provider.elementType:
			// An inner provider of the same context shadows this one.
		default:
			next = fiber.child
		}

		if next != nil {
			next.parent = fiber
		} else {
			next = fiber
			for next != nil {
				if next == provider {
					next = nil
					break
				}
				if sibling := next.sibling; sibling != nil {
					sibling.parent = next.parent
					next = sibling
					break
				}
				next = next.parent
			}
		}
		fiber = next
	}
}

func scheduleWorkOnParentPath(parent *Fiber, renderLanes lanes.Lanes) {
	for node := parent; node != nil; node = node.parent {
		alt := node.alternate
		if node.childLanes.Has(renderLanes) && (alt == nil || alt.childLanes.Has(renderLanes)) {
			return
		}
		node.childLanes |= renderLanes
		if alt != nil {
			alt.childLanes |= renderLanes
		}
	}
}

// valueAs converts a stored value back to T, mapping nil to T's zero value.
func valueAs[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// sameValue reports whether a and b are identical without panicking on
// values whose dynamic type is not comparable; such values never match.
func sameValue(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if !ta.Comparable() {
		return false
	}
	// Structs and arrays may still hold incomparable values in interfaces.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
