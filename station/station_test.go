package station

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafNode(x, y []float64) Node {
	return Node{
		MeasuredX: x, MeasuredY: y,
		SignalX: append([]float64(nil), x...),
		SignalY: append([]float64(nil), y...),
	}
}

// buildTwoLevel returns a root with two child stations of 3 elements each.
func buildTwoLevel(t *testing.T) *Model {
	m := NewModel()
	_, err := m.AddChild(m.Root, leafNode([]float64{0, 1, 2}, []float64{0, -1, -2}))
	require.NoError(t, err)
	_, err = m.AddChild(m.Root, leafNode([]float64{5, 6, 7}, []float64{5, 4, 3}))
	require.NoError(t, err)
	return m
}

func TestAddChild(t *testing.T) {
	m := NewModel()
	idx, err := m.AddChild(m.Root, Node{})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []int{1}, m.Nodes[m.Root].Children)

	_, err = m.AddChild(42, Node{})
	require.Error(t, err)
}

func TestLeaves(t *testing.T) {
	m := buildTwoLevel(t)
	// Nest a third level under the second child.
	grandparent := m.Nodes[m.Root].Children[1]
	m.Nodes[grandparent].MeasuredX = nil
	m.Nodes[grandparent].MeasuredY = nil
	m.Nodes[grandparent].SignalX = nil
	m.Nodes[grandparent].SignalY = nil
	leaf, err := m.AddChild(grandparent, leafNode([]float64{9}, []float64{9}))
	require.NoError(t, err)

	leaves, err := m.Leaves(m.Root)
	require.NoError(t, err)
	assert.Equal(t, []int{1, leaf}, leaves, "depth first, declaration order")

	_, err = m.Leaves(-1)
	require.Error(t, err)
}

func TestLeavesSingleNode(t *testing.T) {
	m := NewModel()
	leaves, err := m.Leaves(m.Root)
	require.NoError(t, err)
	assert.Equal(t, []int{m.Root}, leaves, "a childless root is its own leaf")
}

func TestOverridePositionErrors(t *testing.T) {
	m := buildTwoLevel(t)
	const stddev = 0.05
	require.NoError(t, m.OverridePositionErrors(rand.NewPCG(7, 7), stddev))

	leaves, err := m.Leaves(m.Root)
	require.NoError(t, err)
	for _, idx := range leaves {
		node := &m.Nodes[idx]
		for i := 0; i < node.NumElements(); i++ {
			assert.NotEqual(t, node.MeasuredX[i], node.SignalX[i],
				"node %d element %d x untouched", idx, i)
			assert.InDelta(t, node.MeasuredX[i], node.SignalX[i], 10*stddev)
			assert.InDelta(t, node.MeasuredY[i], node.SignalY[i], 10*stddev)
		}
	}
}

func TestOverridePositionErrorsDeterministic(t *testing.T) {
	a := buildTwoLevel(t)
	b := buildTwoLevel(t)
	require.NoError(t, a.OverridePositionErrors(rand.NewPCG(3, 9), 0.1))
	require.NoError(t, b.OverridePositionErrors(rand.NewPCG(3, 9), 0.1))
	assert.Equal(t, a.Nodes, b.Nodes, "same seed, same perturbation")

	c := buildTwoLevel(t)
	require.NoError(t, c.OverridePositionErrors(rand.NewPCG(4, 4), 0.1))
	assert.NotEqual(t, a.Nodes, c.Nodes, "different seed, different perturbation")
}

func TestOverridePositionErrorsValidation(t *testing.T) {
	m := buildTwoLevel(t)
	require.Error(t, m.OverridePositionErrors(nil, 0.1))
	require.Error(t, m.OverridePositionErrors(rand.NewPCG(1, 1), -0.1))

	// Mismatched element arrays are reported, not silently skipped.
	m.Nodes[1].SignalY = m.Nodes[1].SignalY[:1]
	require.Error(t, m.OverridePositionErrors(rand.NewPCG(1, 1), 0.1))
}

func TestZeroStddevKeepsMeasuredPositions(t *testing.T) {
	m := buildTwoLevel(t)
	require.NoError(t, m.OverridePositionErrors(rand.NewPCG(1, 2), 0))
	for _, node := range m.Nodes[1:] {
		assert.Equal(t, node.MeasuredX, node.SignalX)
		assert.Equal(t, node.MeasuredY, node.SignalY)
	}
}
