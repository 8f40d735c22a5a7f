package testing

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"strings"

	"fortio.org/safecast"
	"github.com/cespare/xxhash/v2"

	"github.com/go-drift/fiber/pkg/core"
)

// Op names a host mutation.
type Op string

const (
	OpCreate        Op = "create"
	OpCreateText    Op = "create-text"
	OpAppendInitial Op = "append-initial"
	OpAppend        Op = "append"
	OpInsert        Op = "insert"
	OpRemove        Op = "remove"
	OpUpdate        Op = "update"
	OpUpdateText    Op = "update-text"
	OpHide          Op = "hide"
	OpUnhide        Op = "unhide"
)

// Mutation is one recorded Host call.
type Mutation struct {
	Op     Op     `msgpack:"op" json:"op"`
	Node   int    `msgpack:"node" json:"node"`
	Parent int    `msgpack:"parent,omitempty" json:"parent,omitempty"`
	Before int    `msgpack:"before,omitempty" json:"before,omitempty"`
	Type   string `msgpack:"type,omitempty" json:"type,omitempty"`
	Text   string `msgpack:"text,omitempty" json:"text,omitempty"`
}

func (m Mutation) String() string {
	switch m.Op {
	case OpCreate:
		return fmt.Sprintf("create #%d <%s>", m.Node, m.Type)
	case OpCreateText:
		return fmt.Sprintf("create-text #%d %q", m.Node, m.Text)
	case OpInsert:
		return fmt.Sprintf("insert #%d into #%d before #%d", m.Node, m.Parent, m.Before)
	case OpAppend, OpAppendInitial:
		return fmt.Sprintf("%s #%d to #%d", m.Op, m.Node, m.Parent)
	case OpRemove:
		return fmt.Sprintf("remove #%d from #%d", m.Node, m.Parent)
	case OpUpdateText:
		return fmt.Sprintf("update-text #%d %q", m.Node, m.Text)
	default:
		return fmt.Sprintf("%s #%d", m.Op, m.Node)
	}
}

// Node is an in-memory host node.
type Node struct {
	ID       int
	Type     string
	Text     string
	Props    core.Props
	Hidden   bool
	Parent   *Node
	Children []*Node
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Type == "" }

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node) detach(child *Node) {
	if i := n.indexOf(child); i >= 0 {
		n.Children = append(n.Children[:i], n.Children[i+1:]...)
	}
	child.Parent = nil
}

// TextContent concatenates the text below n, skipping hidden subtrees.
func (n *Node) TextContent() string {
	if n.Hidden {
		return ""
	}
	if n.IsText() {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// RecordingHost is a core.Host that keeps its tree in memory and records
// every call. It panics on calls that would corrupt a real host tree, such
// as removing a node from a parent it is not attached to.
type RecordingHost struct {
	nextID int
	log    []Mutation
}

var _ core.Host = (*RecordingHost)(nil)

// NewRecordingHost returns an empty host.
func NewRecordingHost() *RecordingHost {
	return &RecordingHost{}
}

// NewContainer returns a detached container node to render a root into.
func (h *RecordingHost) NewContainer() *Node {
	h.nextID++
	return &Node{ID: h.nextID, Type: "#root"}
}

// Log returns the mutations recorded since the last ResetLog.
func (h *RecordingHost) Log() []Mutation {
	return slices.Clone(h.log)
}

// ResetLog clears the mutation log.
func (h *RecordingHost) ResetLog() {
	h.log = nil
}

// Count returns how many mutations of kind op are in the log.
func (h *RecordingHost) Count(op Op) int {
	n := 0
	for _, m := range h.log {
		if m.Op == op {
			n++
		}
	}
	return n
}

// Structural returns the mutations that change the mounted tree's shape:
// appends to mounted parents, inserts and removals.
func (h *RecordingHost) Structural() []Mutation {
	var out []Mutation
	for _, m := range h.log {
		switch m.Op {
		case OpAppend, OpInsert, OpRemove:
			out = append(out, m)
		}
	}
	return out
}

func (h *RecordingHost) record(m Mutation) {
	h.log = append(h.log, m)
}

func asNode(i core.Instance) *Node {
	n, ok := i.(*Node)
	if !ok || n == nil {
		panic(fmt.Sprintf("fibertest: %T is not a *testing.Node", i))
	}
	return n
}

// CreateInstance implements core.Host.
func (h *RecordingHost) CreateInstance(typ string, props core.Props) core.Instance {
	h.nextID++
	n := &Node{ID: h.nextID, Type: typ, Props: props}
	h.record(Mutation{Op: OpCreate, Node: n.ID, Type: typ})
	return n
}

// CreateTextInstance implements core.Host.
func (h *RecordingHost) CreateTextInstance(text string) core.Instance {
	h.nextID++
	n := &Node{ID: h.nextID, Text: text}
	h.record(Mutation{Op: OpCreateText, Node: n.ID, Text: text})
	return n
}

// AppendInitialChild implements core.Host.
func (h *RecordingHost) AppendInitialChild(parent, child core.Instance) {
	p, c := asNode(parent), asNode(child)
	if c.Parent != nil {
		panic(fmt.Sprintf("fibertest: initial child #%d already has parent #%d", c.ID, c.Parent.ID))
	}
	p.Children = append(p.Children, c)
	c.Parent = p
	h.record(Mutation{Op: OpAppendInitial, Node: c.ID, Parent: p.ID})
}

// AppendChild implements core.Host. A child already attached somewhere is
// moved.
func (h *RecordingHost) AppendChild(parent, child core.Instance) {
	p, c := asNode(parent), asNode(child)
	if c.Parent != nil {
		c.Parent.detach(c)
	}
	p.Children = append(p.Children, c)
	c.Parent = p
	h.record(Mutation{Op: OpAppend, Node: c.ID, Parent: p.ID})
}

// InsertBefore implements core.Host.
func (h *RecordingHost) InsertBefore(parent, child, before core.Instance) {
	p, c, b := asNode(parent), asNode(child), asNode(before)
	if c == b {
		panic(fmt.Sprintf("fibertest: cannot insert #%d before itself", c.ID))
	}
	if c.Parent != nil {
		c.Parent.detach(c)
	}
	i := p.indexOf(b)
	if i < 0 {
		panic(fmt.Sprintf("fibertest: #%d is not a child of #%d", b.ID, p.ID))
	}
	p.Children = append(p.Children, nil)
	copy(p.Children[i+1:], p.Children[i:])
	p.Children[i] = c
	c.Parent = p
	h.record(Mutation{Op: OpInsert, Node: c.ID, Parent: p.ID, Before: b.ID})
}

// RemoveChild implements core.Host.
func (h *RecordingHost) RemoveChild(parent, child core.Instance) {
	p, c := asNode(parent), asNode(child)
	if c.Parent != p {
		panic(fmt.Sprintf("fibertest: #%d is not a child of #%d", c.ID, p.ID))
	}
	p.detach(c)
	h.record(Mutation{Op: OpRemove, Node: c.ID, Parent: p.ID})
}

// CommitUpdate implements core.Host.
func (h *RecordingHost) CommitUpdate(instance core.Instance, typ string, _, newProps core.Props) {
	n := asNode(instance)
	if n.Type != typ {
		panic(fmt.Sprintf("fibertest: update of #%d as <%s>, but it is <%s>", n.ID, typ, n.Type))
	}
	n.Props = newProps
	h.record(Mutation{Op: OpUpdate, Node: n.ID, Type: typ})
}

// CommitTextUpdate implements core.Host.
func (h *RecordingHost) CommitTextUpdate(instance core.Instance, _, newText string) {
	n := asNode(instance)
	n.Text = newText
	h.record(Mutation{Op: OpUpdateText, Node: n.ID, Text: newText})
}

// HideInstance implements core.Host.
func (h *RecordingHost) HideInstance(instance core.Instance) {
	n := asNode(instance)
	n.Hidden = true
	h.record(Mutation{Op: OpHide, Node: n.ID})
}

// UnhideInstance implements core.Host.
func (h *RecordingHost) UnhideInstance(instance core.Instance) {
	n := asNode(instance)
	n.Hidden = false
	h.record(Mutation{Op: OpUnhide, Node: n.ID})
}

// Render prints the children of container as compact markup. Hidden nodes
// carry a hidden attribute; only scalar props are printed, sorted by name.
func Render(container *Node) string {
	var b strings.Builder
	for _, c := range container.Children {
		renderNode(&b, c)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *Node) {
	if n.IsText() {
		if n.Hidden {
			b.WriteString("[hidden]")
		}
		b.WriteString(n.Text)
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Type)
	for _, k := range sortedKeys(n.Props) {
		switch v := n.Props[k].(type) {
		case string, bool, int, int64, float64:
			fmt.Fprintf(b, " %s=%v", k, v)
		}
	}
	if n.Hidden {
		b.WriteString(" hidden")
	}
	b.WriteByte('>')
	for _, c := range n.Children {
		renderNode(b, c)
	}
	b.WriteString("</")
	b.WriteString(n.Type)
	b.WriteByte('>')
}

func sortedKeys(p core.Props) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Digest hashes the structure, text and visibility of the tree below
// container. Node IDs are not part of the digest, so equal trees built by
// different mutation sequences hash the same.
func Digest(container *Node) (uint64, error) {
	d := xxhash.New()
	if err := digestNode(d, container); err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}

func digestNode(d *xxhash.Digest, n *Node) error {
	var buf [4]byte
	writeString := func(s string) error {
		l, err := safecast.Conv[uint32](len(s))
		if err != nil {
			return fmt.Errorf("digest: %w", err)
		}
		binary.LittleEndian.PutUint32(buf[:], l)
		_, _ = d.Write(buf[:])
		_, _ = d.WriteString(s)
		return nil
	}
	if err := writeString(n.Type); err != nil {
		return err
	}
	if err := writeString(n.Text); err != nil {
		return err
	}
	flag := byte(0)
	if n.Hidden {
		flag = 1
	}
	_, _ = d.Write([]byte{flag})
	count, err := safecast.Conv[uint32](len(n.Children))
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	binary.LittleEndian.PutUint32(buf[:], count)
	_, _ = d.Write(buf[:])
	for _, c := range n.Children {
		if err := digestNode(d, c); err != nil {
			return err
		}
	}
	return nil
}
