/*
Package data implements the hierarchical data tree templates read and write
while rendering.

A tree is made of Nodes addressed by dotted paths ("page.items.0.title").
Children keep their insertion order, which is the order each-loops visit them
in. Besides its string value a node records the escape state of that value,
which the propagating escaping mode reads back when the value is displayed.

A tree is not safe for concurrent mutation; each render owns the tree it is
given.
*/
package data

import (
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/convert"
	"github.com/CTAG07/Quicksilver/pkg/escape"
)

// Node is one element of a data tree.
type Node struct {
	name     string
	value    string
	hasValue bool
	mode     escape.Mode
	parent   *Node
	children []*Node
	index    map[string]*Node
}

// New returns an empty root node.
func New() *Node {
	return &Node{}
}

// NewLeaf returns a detached node holding value. Detached nodes stand in for
// local variables bound to plain values.
func NewLeaf(name, value string) *Node {
	return &Node{name: name, value: value, hasValue: true}
}

// Name returns the last path segment of n.
func (n *Node) Name() string {
	return n.name
}

// Parent returns the parent of n, or nil for a root or detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// Path returns the dotted path of n from its root.
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}
	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Value returns the string value of n, "" if unset.
func (n *Node) Value() string {
	return n.value
}

// HasValue reports whether a value was ever assigned to n.
func (n *Node) HasValue() bool {
	return n.hasValue
}

// IntValue returns the value of n under the template numeric grammar.
func (n *Node) IntValue() int {
	return convert.ToInt(n.value)
}

// BoolValue returns the truth value of n.
func (n *Node) BoolValue() bool {
	return convert.ToBool(n.value)
}

// SetValue assigns the value of n. The stored escape state is reset.
func (n *Node) SetValue(v string) {
	n.value = v
	n.hasValue = true
	n.mode = escape.ModeNone
}

// EscapeMode returns the escape state recorded for the value of n.
func (n *Node) EscapeMode() escape.Mode {
	return n.mode
}

// SetEscapeMode records the escape state of the value of n.
func (n *Node) SetEscapeMode(m escape.Mode) {
	n.mode = m
}

// Children returns the children of n in insertion order. The returned slice
// is a snapshot.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of children of n.
func (n *Node) ChildCount() int {
	return len(n.children)
}

// Child returns the direct child called name, or nil.
func (n *Node) Child(name string) *Node {
	if n.index == nil {
		return nil
	}
	return n.index[name]
}

// FirstChild returns the first child of n, or nil.
func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

// Get resolves path relative to n without creating anything. The empty path
// resolves to n itself. It returns nil when any segment is missing.
func (n *Node) Get(path string) *Node {
	if path == "" {
		return n
	}
	cur := n
	for _, seg := range strings.Split(path, ".") {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Create resolves path relative to n, creating missing nodes on the way.
func (n *Node) Create(path string) *Node {
	if path == "" {
		return n
	}
	cur := n
	for _, seg := range strings.Split(path, ".") {
		next := cur.Child(seg)
		if next == nil {
			next = cur.addChild(seg)
		}
		cur = next
	}
	return cur
}

// Set creates path relative to n and assigns its value.
func (n *Node) Set(path, value string) *Node {
	node := n.Create(path)
	node.SetValue(value)
	return node
}

// GetValue returns the value at path, or def when the node does not exist.
func (n *Node) GetValue(path, def string) string {
	if node := n.Get(path); node != nil {
		return node.value
	}
	return def
}

// Remove deletes the node at path and its subtree. It reports whether a node
// was removed.
func (n *Node) Remove(path string) bool {
	node := n.Get(path)
	if node == nil || node.parent == nil {
		return false
	}
	p := node.parent
	delete(p.index, node.name)
	for i, c := range p.children {
		if c == node {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	node.parent = nil
	return true
}

func (n *Node) addChild(name string) *Node {
	child := &Node{name: name, parent: n}
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	n.index[name] = child
	n.children = append(n.children, child)
	return child
}

// Copy returns a deep copy of the subtree rooted at n, detached from any
// parent.
func (n *Node) Copy() *Node {
	c := &Node{name: n.name, value: n.value, hasValue: n.hasValue, mode: n.mode}
	for _, child := range n.children {
		cc := child.Copy()
		cc.parent = c
		if c.index == nil {
			c.index = make(map[string]*Node)
		}
		c.index[cc.name] = cc
		c.children = append(c.children, cc)
	}
	return c
}

// Walk calls fn for n and every descendant in depth-first order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}
