package core

import (
	"fmt"
	"runtime"
	"strings"
)

func runtimeFuncName(pc uintptr) string {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return fmt.Sprintf("func@%#x", pc)
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// FormatTree renders the fiber tree below f, one fiber per line, indented by
// depth. Pending lanes are shown when set.
func FormatTree(f *Fiber) string {
	var b strings.Builder
	formatFiber(&b, f, 0)
	return b.String()
}

func formatFiber(b *strings.Builder, f *Fiber, depth int) {
	for ; f != nil; f = f.sibling {
		b.WriteString(strings.Repeat("  ", depth))
		switch f.tag {
		case HostText:
			fmt.Fprintf(b, "%q", f.memoizedProps)
		case HostRoot:
			b.WriteString("HostRoot")
		case OffscreenComponent:
			mode := "visible"
			if p, ok := f.memoizedProps.(*offscreenProps); ok && p.mode == offscreenHidden {
				mode = "hidden"
			}
			fmt.Fprintf(b, "Offscreen(%s)", mode)
		default:
			b.WriteString(f.String())
		}
		if f.lanes != 0 {
			fmt.Fprintf(b, " lanes=%s", f.lanes)
		}
		if f.childLanes != 0 {
			fmt.Fprintf(b, " childLanes=%s", f.childLanes)
		}
		b.WriteByte('\n')
		formatFiber(b, f.child, depth+1)
	}
}
