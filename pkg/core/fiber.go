package core

import (
	"fmt"
	"strings"

	"github.com/go-drift/fiber/pkg/lanes"
)

// WorkTag identifies the kind of a fiber.
type WorkTag uint8

const (
	HostRoot WorkTag = iota
	HostComponent
	HostText
	FunctionComponent
	FragmentTag
	SuspenseComponent
	OffscreenComponent
	ErrorBoundaryComponent
	ContextProvider
)

func (t WorkTag) String() string {
	switch t {
	case HostRoot:
		return "HostRoot"
	case HostComponent:
		return "HostComponent"
	case HostText:
		return "HostText"
	case FunctionComponent:
		return "FunctionComponent"
	case FragmentTag:
		return "Fragment"
	case SuspenseComponent:
		return "Suspense"
	case OffscreenComponent:
		return "Offscreen"
	case ErrorBoundaryComponent:
		return "ErrorBoundary"
	case ContextProvider:
		return "ContextProvider"
	default:
		return fmt.Sprintf("WorkTag(%d)", t)
	}
}

// Flags records the work a fiber needs during commit.
type Flags uint32

const (
	NoFlags       Flags = 0
	PerformedWork Flags = 1 << iota
	Placement
	Update
	Deletion
	RefFlag
	Passive
	Layout
	Snapshot
	Visibility
	Callback
	DidCapture
	ShouldCapture
	Incomplete

	// effectMask covers the flags that put a fiber on the effect list.
	effectMask = Placement | Update | Deletion | RefFlag | Passive | Layout | Snapshot | Visibility | Callback
)

func (f Flags) String() string {
	if f == NoFlags {
		return "NoFlags"
	}
	names := []struct {
		flag Flags
		name string
	}{
		{PerformedWork, "PerformedWork"},
		{Placement, "Placement"},
		{Update, "Update"},
		{Deletion, "Deletion"},
		{RefFlag, "Ref"},
		{Passive, "Passive"},
		{Layout, "Layout"},
		{Snapshot, "Snapshot"},
		{Visibility, "Visibility"},
		{Callback, "Callback"},
		{DidCapture, "DidCapture"},
		{ShouldCapture, "ShouldCapture"},
		{Incomplete, "Incomplete"},
	}
	var parts []string
	for _, n := range names {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Fiber is the unit of work: one component or host instance at one tree
// position. Each position has up to two fibers, the committed one and the
// work-in-progress one, linked through alternate.
type Fiber struct {
	tag         WorkTag
	key         string
	elementType any
	// stateNode is the host Instance for host fibers, the *Root for
	// HostRoot and the *SuspenseRecord for suspense boundaries.
	stateNode any

	parent  *Fiber
	child   *Fiber
	sibling *Fiber
	index   int

	ref *Ref

	// pendingProps and memoizedProps hold an *Element for element-backed
	// fibers, a string for text and an *offscreenProps for offscreen fibers.
	pendingProps  any
	memoizedProps any
	memoizedState any
	updateQueue   any
	dependencies  *dependencies

	flags      Flags
	lanes      lanes.Lanes
	childLanes lanes.Lanes
	// forceLanes are lanes at which the fiber must re-render even if its
	// props and state are unchanged.
	forceLanes lanes.Lanes

	alternate *Fiber

	firstEffect *Fiber
	lastEffect  *Fiber
	nextEffect  *Fiber
}

// Tag returns the fiber's kind.
func (f *Fiber) Tag() WorkTag { return f.tag }

// Key returns the fiber's key ("" when unkeyed).
func (f *Fiber) Key() string { return f.key }

// Type returns the element type the fiber was created from.
func (f *Fiber) Type() any { return f.elementType }

// Parent returns the parent fiber.
func (f *Fiber) Parent() *Fiber { return f.parent }

// Child returns the first child fiber.
func (f *Fiber) Child() *Fiber { return f.child }

// Sibling returns the next sibling fiber.
func (f *Fiber) Sibling() *Fiber { return f.sibling }

// Index returns the fiber's position among its siblings.
func (f *Fiber) Index() int { return f.index }

// StateNode returns the host instance of host fibers.
func (f *Fiber) StateNode() any { return f.stateNode }

// Lanes returns the lanes of pending work on this fiber.
func (f *Fiber) Lanes() lanes.Lanes { return f.lanes }

// ChildLanes returns the lanes of pending work in the fiber's subtree.
func (f *Fiber) ChildLanes() lanes.Lanes { return f.childLanes }

// Flags returns the fiber's effect flags.
func (f *Fiber) Flags() Flags { return f.flags }

func (f *Fiber) String() string {
	if f.key != "" {
		return fmt.Sprintf("%s(%s key=%q)", f.tag, typeName(f.elementType), f.key)
	}
	return fmt.Sprintf("%s(%s)", f.tag, typeName(f.elementType))
}

// offscreenMode says whether an offscreen subtree is shown.
type offscreenMode uint8

const (
	offscreenVisible offscreenMode = iota
	offscreenHidden
)

type offscreenProps struct {
	mode     offscreenMode
	children Node
}

type dependencies struct {
	lanes    lanes.Lanes
	contexts []*contextBase
}

func newFiber(tag WorkTag, pendingProps any, key string) *Fiber {
	return &Fiber{
		tag:          tag,
		key:          key,
		pendingProps: pendingProps,
	}
}

// createWorkInProgress returns the alternate of current prepared for a new
// render with pendingProps, allocating it on first use.
func createWorkInProgress(current *Fiber, pendingProps any) *Fiber {
	wip := current.alternate
	if wip == nil {
		wip = newFiber(current.tag, pendingProps, current.key)
		wip.elementType = current.elementType
		wip.stateNode = current.stateNode
		wip.alternate = current
		current.alternate = wip
	} else {
		wip.pendingProps = pendingProps
		wip.flags = NoFlags
		wip.nextEffect = nil
		wip.firstEffect = nil
		wip.lastEffect = nil
	}

	wip.lanes = current.lanes
	wip.childLanes = current.childLanes
	wip.forceLanes = current.forceLanes
	wip.child = current.child
	wip.memoizedProps = current.memoizedProps
	wip.memoizedState = current.memoizedState
	wip.updateQueue = current.updateQueue
	wip.dependencies = current.dependencies
	wip.sibling = current.sibling
	wip.index = current.index
	wip.ref = current.ref
	return wip
}

func createFiberFromElement(el *Element, l lanes.Lanes) *Fiber {
	var f *Fiber
	switch t := el.Type.(type) {
	case string:
		f = newFiber(HostComponent, el, el.Key)
	case builtinType:
		switch t {
		case Fragment:
			f = newFiber(FragmentTag, el, el.Key)
		case SuspenseType:
			f = newFiber(SuspenseComponent, el, el.Key)
			f.stateNode = newSuspenseRecord()
		case ErrorBoundaryType:
			f = newFiber(ErrorBoundaryComponent, el, el.Key)
		default:
			panic(fmt.Sprintf("core: unknown builtin element type %v", t))
		}
	case *contextBase:
		f = newFiber(ContextProvider, el, el.Key)
	case ComponentFunc, Component:
		f = newFiber(FunctionComponent, el, el.Key)
	default:
		panic(fmt.Sprintf("core: unsupported element type %T", el.Type))
	}
	f.elementType = el.Type
	f.ref = el.Ref
	f.lanes = l
	return f
}

func createFiberFromText(text string, l lanes.Lanes) *Fiber {
	f := newFiber(HostText, text, "")
	f.lanes = l
	return f
}

func createFiberFromFragment(el *Element, l lanes.Lanes, key string) *Fiber {
	f := newFiber(FragmentTag, el, key)
	f.elementType = Fragment
	f.lanes = l
	return f
}

func createFiberFromOffscreen(props *offscreenProps, l lanes.Lanes) *Fiber {
	f := newFiber(OffscreenComponent, props, "")
	f.lanes = l
	return f
}

// detachFiber drops the links of an unmounted fiber so it can be collected.
// The effect-list link is kept until the commit that deleted it finishes.
func detachFiber(f *Fiber) {
	if alt := f.alternate; alt != nil {
		alt.alternate = nil
		alt.parent = nil
		alt.child = nil
		alt.stateNode = nil
		alt.memoizedState = nil
		alt.updateQueue = nil
		alt.dependencies = nil
	}
	f.alternate = nil
	f.parent = nil
	f.child = nil
	f.stateNode = nil
	f.memoizedState = nil
	f.updateQueue = nil
	f.dependencies = nil
}
