// Package station models the hierarchical layout of an aperture-array
// telescope: a tree of stations whose leaves carry the element positions
// used for beamforming. Nodes address their children by index into one flat
// slice, so traversals are explicit loops or recursion over ints and leaf
// detection is a flag, not type dispatch.
//
// The geometry here is host-side input preparation; it stays float64 and
// never crosses into a backend's memory space.
package station

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Node is one station of the hierarchy. Interior nodes only carry
// children; leaves carry element positions, in metres relative to the
// station centre. Measured positions are the layout as built; signal
// positions are the ones the signal path actually uses, which perturbation
// overrides rewrite.
type Node struct {
	Children []int

	MeasuredX, MeasuredY []float64
	SignalX, SignalY     []float64
}

// HasChildren reports whether the node is an interior station.
func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

// NumElements returns the leaf's element count.
func (n *Node) NumElements() int { return len(n.MeasuredX) }

// Model is a station tree. Nodes[Root] is the top-level station.
type Model struct {
	Nodes []Node
	Root  int
}

// NewModel returns a model holding a single empty root station.
func NewModel() *Model {
	return &Model{Nodes: make([]Node, 1)}
}

// AddChild appends node as a child of parent and returns its index.
func (m *Model) AddChild(parent int, node Node) (int, error) {
	if parent < 0 || parent >= len(m.Nodes) {
		return 0, errors.Errorf("parent index %d out of range [0,%d)", parent, len(m.Nodes))
	}
	idx := len(m.Nodes)
	m.Nodes = append(m.Nodes, node)
	m.Nodes[parent].Children = append(m.Nodes[parent].Children, idx)
	return idx, nil
}

// Leaves returns, in depth-first order, the indices of every leaf below
// root (inclusive), using an explicit worklist.
func (m *Model) Leaves(root int) ([]int, error) {
	if root < 0 || root >= len(m.Nodes) {
		return nil, errors.Errorf("node index %d out of range [0,%d)", root, len(m.Nodes))
	}
	var leaves []int
	work := []int{root}
	for len(work) > 0 {
		idx := work[len(work)-1]
		work = work[:len(work)-1]
		node := &m.Nodes[idx]
		if !node.HasChildren() {
			leaves = append(leaves, idx)
			continue
		}
		// Push in reverse so children pop in declaration order.
		for i := len(node.Children) - 1; i >= 0; i-- {
			child := node.Children[i]
			if child < 0 || child >= len(m.Nodes) {
				return nil, errors.Errorf("node %d has child index %d out of range", idx, child)
			}
			work = append(work, child)
		}
	}
	return leaves, nil
}

// OverridePositionErrors descends from Root to every leaf and replaces each
// element's signal-path position with its measured position plus a fresh
// Gaussian error of the given standard deviation per axis, in metres.
func (m *Model) OverridePositionErrors(src rand.Source, stddev float64) error {
	if src == nil {
		return errors.New("nil random source")
	}
	if stddev < 0 {
		return errors.Errorf("negative position error stddev %v", stddev)
	}
	dist := distuv.Normal{Mu: 0, Sigma: stddev, Src: src}
	return m.overrideNode(m.Root, dist)
}

func (m *Model) overrideNode(idx int, dist distuv.Normal) error {
	if idx < 0 || idx >= len(m.Nodes) {
		return errors.Errorf("node index %d out of range [0,%d)", idx, len(m.Nodes))
	}
	node := &m.Nodes[idx]
	if node.HasChildren() {
		// Recurse to the level that owns the element data.
		for _, child := range node.Children {
			if err := m.overrideNode(child, dist); err != nil {
				return err
			}
		}
		return nil
	}
	n := node.NumElements()
	if len(node.MeasuredY) != n || len(node.SignalX) != n || len(node.SignalY) != n {
		return errors.Errorf("node %d element arrays have mismatched lengths", idx)
	}
	for i := 0; i < n; i++ {
		node.SignalX[i] = node.MeasuredX[i] + dist.Rand()
		node.SignalY[i] = node.MeasuredY[i] + dist.Rand()
	}
	return nil
}
