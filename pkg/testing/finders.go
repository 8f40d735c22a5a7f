package testing

import (
	"fmt"
	"strings"
)

// Finder locates nodes in the recorded host tree.
type Finder interface {
	// Evaluate returns all matching nodes under root (depth-first pre-order).
	Evaluate(root *Node) []*Node
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	nodes  []*Node
	finder Finder
}

// Find evaluates f against the harness container.
func (h *Harness) Find(f Finder) FinderResult {
	return FinderResult{nodes: f.Evaluate(h.Container), finder: f}
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() *Node {
	if len(r.nodes) == 0 {
		desc := "unknown"
		if r.finder != nil {
			desc = r.finder.Description()
		}
		panic(fmt.Sprintf("Finder found no nodes: %s", desc))
	}
	return r.nodes[0]
}

// FirstOrNil returns the first match, or nil if none.
func (r FinderResult) FirstOrNil() *Node {
	if len(r.nodes) == 0 {
		return nil
	}
	return r.nodes[0]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []*Node {
	return r.nodes
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.nodes)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.nodes) > 0
}

// Visible returns the matches that are not inside a hidden subtree.
func (r FinderResult) Visible() []*Node {
	var out []*Node
	for _, n := range r.nodes {
		if isVisible(n) {
			out = append(out, n)
		}
	}
	return out
}

func isVisible(n *Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Hidden {
			return false
		}
	}
	return true
}

type predicateFinder struct {
	fn   func(*Node) bool
	desc string
}

func (f *predicateFinder) Evaluate(root *Node) []*Node {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByType matches host elements with the given tag.
func ByType(typ string) Finder {
	return &predicateFinder{
		fn:   func(n *Node) bool { return n.Type == typ },
		desc: fmt.Sprintf("ByType(%s)", typ),
	}
}

// ByText matches text nodes with exactly text.
func ByText(text string) Finder {
	return &predicateFinder{
		fn:   func(n *Node) bool { return n.IsText() && n.Text == text },
		desc: fmt.Sprintf("ByText(%q)", text),
	}
}

// ByTextContaining matches text nodes containing substring.
func ByTextContaining(substring string) Finder {
	return &predicateFinder{
		fn:   func(n *Node) bool { return n.IsText() && strings.Contains(n.Text, substring) },
		desc: fmt.Sprintf("ByTextContaining(%q)", substring),
	}
}

// ByProp matches host elements whose prop key equals value.
func ByProp(key string, value any) Finder {
	return &predicateFinder{
		fn: func(n *Node) bool {
			v, ok := n.Props[key]
			return ok && fmt.Sprint(v) == fmt.Sprint(value)
		},
		desc: fmt.Sprintf("ByProp(%s=%v)", key, value),
	}
}

// ByPredicate matches nodes satisfying fn.
func ByPredicate(fn func(*Node) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// descendantFinder finds nodes matching 'matching' that are descendants
// of nodes matching 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root *Node) []*Node {
	var results []*Node
	seen := make(map[*Node]bool)
	for _, ancestor := range f.of.Evaluate(root) {
		for _, child := range ancestor.Children {
			for _, match := range f.matching.Evaluate(child) {
				if !seen[match] {
					seen[match] = true
					results = append(results, match)
				}
			}
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant matches nodes satisfying 'matching' below nodes matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

func collectMatches(root *Node, fn func(*Node) bool) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if fn(n) {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}
