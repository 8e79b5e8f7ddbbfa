package scene

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/kb"
)

var (
	// ErrAlreadyMounted is returned when mounting a node that is attached.
	ErrAlreadyMounted = errors.New("scene: node already mounted")
	// ErrParentNotMounted is returned when the mount parent is detached.
	ErrParentNotMounted = errors.New("scene: parent not mounted")
)

// Registrar receives mount and unmount notifications for nodes with ids.
// *kb.Registry satisfies it.
type Registrar interface {
	Register(id string, p kb.Positionable, size float64)
	Unregister(id string)
	Resolve(id string) (kb.Handle, bool)
}

// Scene owns the node tree rooted at an anonymous origin.
type Scene struct {
	root *Node
	reg  Registrar
}

// New returns an empty scene. reg may be nil.
func New(reg Registrar) *Scene {
	root := NewNode("", "", 0, 0, nil)
	root.mounted = true
	return &Scene{root: root, reg: reg}
}

// Root returns the origin node.
func (s *Scene) Root() *Node { return s.root }

// Mount attaches node (and any children it already carries) under parent,
// or under the root when parent is nil. Every node in the subtree with an
// id is registered.
func (s *Scene) Mount(parent, node *Node) error {
	if parent == nil {
		parent = s.root
	}
	if node.mounted || node.parent != nil {
		return fmt.Errorf("%w: %q", ErrAlreadyMounted, node.ID)
	}
	if !parent.mounted {
		return fmt.Errorf("%w: %q", ErrParentNotMounted, parent.ID)
	}

	node.parent = parent
	parent.children = append(parent.children, node)
	node.walk(func(n *Node) {
		n.mounted = true
		if s.reg != nil && n.ID != "" {
			s.reg.Register(n.ID, n.Positionable(), n.Size)
		}
	})
	return nil
}

// Unmount detaches node and its subtree, children first, and unregisters
// any id still pointing at a node of the subtree. Unmounting the root or a
// detached node is a no-op.
func (s *Scene) Unmount(node *Node) {
	if node == s.root || !node.mounted {
		return
	}
	node.walkPost(func(n *Node) {
		n.mounted = false
		if s.reg == nil || n.ID == "" {
			return
		}
		// A later mount may have re-registered the id; leave that one alone.
		if h, ok := s.reg.Resolve(n.ID); ok && h.Positionable == n.Positionable() {
			s.reg.Unregister(n.ID)
		}
	})
	node.detach()
}

// Advance steps every mounted motion by dt, parents before children.
func (s *Scene) Advance(dt float64) {
	s.root.walk(func(n *Node) {
		n.Motion.Advance(dt)
	})
}

// Nodes returns every mounted node except the root in depth-first order.
func (s *Scene) Nodes() []*Node {
	var out []*Node
	s.root.walk(func(n *Node) {
		if n != s.root {
			out = append(out, n)
		}
	})
	return out
}

// Find returns the first mounted node with the given id.
func (s *Scene) Find(id string) *Node {
	if id == "" {
		return nil
	}
	var found *Node
	s.root.walk(func(n *Node) {
		if found == nil && n.ID == id {
			found = n
		}
	})
	return found
}

// OrbitPath samples the orbit of n in world space. It returns nil when
// the node does not ride a ring-shaped orbit.
func (s *Scene) OrbitPath(n *Node, segments int) []core.Vec3 {
	ringed, ok := n.Motion.(core.Ringed)
	if !ok {
		return nil
	}
	pts := ringed.Ring(segments)
	if n.parent == nil {
		return pts
	}
	parentWorld := n.parent.WorldMatrix()
	for i, p := range pts {
		pts[i] = parentWorld.MulPoint(p)
	}
	return pts
}
