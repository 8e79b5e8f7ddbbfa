// Package scene implements the orbital scene graph: a tree of transform
// nodes whose world positions are composed from their ancestors at query
// time.
package scene

import (
	"weak"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

// Node is one level of the orbital hierarchy. A parent owns its children;
// orbit state lives in Motion.
type Node struct {
	ID     string
	Name   string
	Kind   model.BodyKind
	Size   float64
	Motion core.MotionModel

	parent   *Node
	children []*Node
	mounted  bool
}

// NewNode returns an unmounted node. A nil motion keeps the node at its
// parent's origin.
func NewNode(id, name string, kind model.BodyKind, size float64, motion core.MotionModel) *Node {
	if motion == nil {
		motion = &core.StaticPlacement{}
	}
	return &Node{ID: id, Name: name, Kind: kind, Size: size, Motion: motion}
}

// Parent returns the node this one is attached to, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the attached children.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Mounted reports whether the node is attached to a live scene.
func (n *Node) Mounted() bool { return n.mounted }

// WorldMatrix composes local transforms from the root down to n.
func (n *Node) WorldMatrix() core.Mat4 {
	m := n.Motion.Local()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Motion.Local().Mul(m)
	}
	return m
}

// WorldPosition returns the node's current world-space position.
func (n *Node) WorldPosition() core.Vec3 {
	return n.WorldMatrix().Position()
}

// Positionable returns a non-owning reference to n for the body registry.
// References to the same node compare equal.
func (n *Node) Positionable() kb.Positionable {
	return nodeRef{ptr: weak.Make(n)}
}

type nodeRef struct {
	ptr weak.Pointer[Node]
}

func (r nodeRef) WorldPosition() (core.Vec3, bool) {
	n := r.ptr.Value()
	if n == nil || !n.mounted {
		return core.Vec3{}, false
	}
	return n.WorldPosition(), true
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

func (n *Node) walkPost(fn func(*Node)) {
	for _, c := range n.children {
		c.walkPost(fn)
	}
	fn(n)
}

func (n *Node) detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}
