package scenario

import (
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/fiber/pkg/core"
)

// Node is a tree node in a scenario. A scalar in YAML is a text node; a
// mapping sets exactly one of Type, Suspense, Boundary, Resource or Fail.
type Node struct {
	Type     string         `yaml:"type,omitempty"`
	Key      string         `yaml:"key,omitempty"`
	Props    map[string]any `yaml:"props,omitempty"`
	Text     string         `yaml:"text,omitempty"`
	Children []*Node        `yaml:"children,omitempty"`

	Suspense *Fallback `yaml:"suspense,omitempty"`
	Boundary *Fallback `yaml:"boundary,omitempty"`
	// Resource renders the value of a named promise, or Text when set,
	// suspending until the promise settles.
	Resource string `yaml:"resource,omitempty"`
	// Fail renders a component that fails with this message.
	Fail string `yaml:"fail,omitempty"`
}

// Fallback is the content shown by a suspense or error boundary.
type Fallback struct {
	Fallback *Node `yaml:"fallback,omitempty"`
}

// UnmarshalYAML accepts a scalar as a text node.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		n.Text = value.Value
		return nil
	}
	type plain Node
	return value.Decode((*plain)(n))
}

func (n *Node) isText() bool {
	return n.Type == "" && n.Suspense == nil && n.Boundary == nil && n.Resource == "" && n.Fail == ""
}

func (n *Node) validate(path string) error {
	if n == nil {
		return fmt.Errorf("%s: empty node", path)
	}
	forms := 0
	for _, set := range []bool{n.Type != "", n.Suspense != nil, n.Boundary != nil, n.Resource != "", n.Fail != ""} {
		if set {
			forms++
		}
	}
	if forms > 1 {
		return fmt.Errorf("%s: node mixes type, suspense, boundary, resource and fail", path)
	}
	if n.isText() {
		if n.Key != "" || len(n.Props) > 0 || len(n.Children) > 0 {
			return fmt.Errorf("%s: text node %q cannot have key, props or children", path, n.Text)
		}
		return nil
	}
	if (n.Resource != "" || n.Fail != "") && len(n.Children) > 0 {
		return fmt.Errorf("%s: resource and fail nodes cannot have children", path)
	}
	for _, fb := range []*Fallback{n.Suspense, n.Boundary} {
		if fb != nil && fb.Fallback != nil {
			if err := fb.Fallback.validate(path + ".fallback"); err != nil {
				return err
			}
		}
	}
	for i, c := range n.Children {
		if err := c.validate(fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Resources holds the named promises resource nodes wait on. Promises are
// created on first use, so a resource may be settled before it is rendered.
type Resources struct {
	mu       sync.Mutex
	promises map[string]*core.Promise[string]
}

// NewResources returns an empty set of resources.
func NewResources() *Resources {
	return &Resources{promises: make(map[string]*core.Promise[string])}
}

// Promise returns the promise for name.
func (r *Resources) Promise(name string) *core.Promise[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promises[name]
	if !ok {
		p = core.NewPromise[string]()
		r.promises[name] = p
	}
	return p
}

// Resolve fulfills the resource name with value.
func (r *Resources) Resolve(name, value string) error {
	if !r.Promise(name).Resolve(value) {
		return fmt.Errorf("resource %q already settled", name)
	}
	return nil
}

// Reject fails the resource name with message.
func (r *Resources) Reject(name, message string) error {
	if message == "" {
		message = name + " failed"
	}
	if !r.Promise(name).Reject(errors.New(message)) {
		return fmt.Errorf("resource %q already settled", name)
	}
	return nil
}

const (
	propPromise = "promise"
	propText    = "text"
	propMessage = "message"
)

func resourceView(_ *core.Ctx, p core.Props) core.Node {
	v, wait := core.Await(p[propPromise].(*core.Promise[string]))
	if wait != nil {
		return wait
	}
	if text, _ := p[propText].(string); text != "" {
		return text
	}
	return v
}

func failView(_ *core.Ctx, p core.Props) core.Node {
	return core.Fail(errors.New(p[propMessage].(string)))
}

// Element converts n into an element tree whose resource nodes wait on res.
func (n *Node) Element(res *Resources) core.Node {
	if n == nil {
		return nil
	}
	if n.isText() {
		return n.Text
	}
	var el *core.Element
	switch {
	case n.Suspense != nil:
		el = core.Suspense(n.Suspense.Fallback.Element(res), n.children(res)...)
	case n.Boundary != nil:
		fallback := n.Boundary.Fallback
		el = core.ErrorBoundary(core.BoundaryProps{
			Fallback: func(error) core.Node { return fallback.Element(res) },
		}, n.children(res)...)
	case n.Resource != "":
		el = core.F(resourceView, core.Props{propPromise: res.Promise(n.Resource), propText: n.Text})
	case n.Fail != "":
		el = core.F(failView, core.Props{propMessage: n.Fail})
	default:
		var props core.Props
		if len(n.Props) > 0 {
			props = make(core.Props, len(n.Props))
			for k, v := range n.Props {
				props[k] = v
			}
		}
		el = core.H(n.Type, props, n.children(res)...)
	}
	if n.Key != "" {
		el = el.Keyed(n.Key)
	}
	return el
}

func (n *Node) children(res *Resources) []core.Node {
	var out []core.Node
	if n.Text != "" && n.Type != "" {
		out = append(out, n.Text)
	}
	for _, c := range n.Children {
		out = append(out, c.Element(res))
	}
	return out
}
