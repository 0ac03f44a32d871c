package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/core/valueobjects"
)

func newNode(title string, root bool) entities.GraphNode {
	return entities.GraphNode{
		ID:         valueobjects.NewNodeID(),
		Title:      title,
		Category:   valueobjects.CategoryConcept,
		Confidence: 0.8,
		IsRoot:     root,
	}
}

func newEdge(src, dst valueobjects.NodeID, rel valueobjects.RelationshipType) entities.GraphEdge {
	return entities.GraphEdge{
		ID:           valueobjects.NewNodeID(),
		SourceID:     src,
		TargetID:     dst,
		Relationship: rel,
		Style:        rel.ConnectionStyle(),
	}
}

func TestGraph_AddNode(t *testing.T) {
	g := NewGraph("s1")
	root := newNode("Root", true)

	require.NoError(t, g.AddNode(root))
	assert.Error(t, g.AddNode(root), "duplicate identifier")
	assert.Error(t, g.AddNode(newNode("Second root", true)))
	assert.Error(t, g.AddNode(entities.GraphNode{Title: "no id"}))

	require.NotNil(t, g.Root())
	assert.Equal(t, root.ID, g.Root().ID)
	assert.True(t, g.HasNode(root.ID))
}

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph("s1")
	a, b := newNode("A", true), newNode("B", false)
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))

	require.NoError(t, g.AddEdge(newEdge(a.ID, b.ID, valueobjects.RelationSupport)))
	assert.Error(t, g.AddEdge(newEdge(a.ID, b.ID, valueobjects.RelationSupport)), "same source, target and type")
	assert.NoError(t, g.AddEdge(newEdge(a.ID, b.ID, valueobjects.RelationContradict)))
	assert.Error(t, g.AddEdge(newEdge(a.ID, a.ID, valueobjects.RelationRelate)))

	external := valueobjects.NewNodeID()
	require.NoError(t, g.AddEdge(newEdge(b.ID, external, valueobjects.RelationRelate)))
	assert.Equal(t, []valueobjects.NodeID{external}, g.ExternalReferences())
	assert.Len(t, g.Edges(), 3)
}

func TestGraph_ReplaceNode(t *testing.T) {
	g := NewGraph("s1")
	root := newNode("Root", true)
	require.NoError(t, g.AddNode(root))

	revised := root
	revised.Citation = "p. 4"
	require.NoError(t, g.ReplaceNode(revised))

	got, ok := g.GetNode(root.ID)
	require.True(t, ok)
	assert.Equal(t, "p. 4", got.Citation)

	revised.IsRoot = false
	assert.Error(t, g.ReplaceNode(revised))
	assert.Error(t, g.ReplaceNode(newNode("missing", false)))
}

func TestGraph_Clusters(t *testing.T) {
	g := NewGraph("s1")
	a, b, c := newNode("A", true), newNode("B", false), newNode("C", false)
	for _, n := range []entities.GraphNode{a, b, c} {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.AddEdge(newEdge(b.ID, a.ID, valueobjects.RelationCause)))

	clusters := g.GetClusters()
	require.Len(t, clusters, 2)
	assert.ElementsMatch(t, []valueobjects.NodeID{a.ID, b.ID}, clusters[0])
	assert.Equal(t, []valueobjects.NodeID{c.ID}, clusters[1])

	meta := g.Metadata()
	assert.Equal(t, 3, meta.NodeCount)
	assert.Equal(t, 1, meta.EdgeCount)
	assert.Equal(t, 2, meta.ClusterCount)
}

func TestGraph_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		g := NewGraph("s1")
		require.NoError(t, g.AddNode(newNode("Root", true)))
		require.NoError(t, g.AddNode(newNode("Child", false)))
		assert.NoError(t, g.Validate())
	})

	t.Run("empty graph", func(t *testing.T) {
		assert.NoError(t, NewGraph("s1").Validate())
	})

	t.Run("no root", func(t *testing.T) {
		g := NewGraph("s1")
		require.NoError(t, g.AddNode(newNode("Child", false)))
		assert.Error(t, g.Validate())
	})

	t.Run("root not first", func(t *testing.T) {
		g := NewGraph("s1")
		require.NoError(t, g.AddNode(newNode("Child", false)))
		require.NoError(t, g.AddNode(newNode("Root", true)))
		assert.Error(t, g.Validate())
	})
}

func TestReconstructGraph(t *testing.T) {
	a, b := newNode("A", true), newNode("B", false)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	g, err := ReconstructGraph("s1", []entities.GraphNode{a, b},
		[]entities.GraphEdge{newEdge(a.ID, b.ID, valueobjects.RelationElaborate)}, created)
	require.NoError(t, err)
	assert.Equal(t, created, g.Metadata().CreatedAt)
	assert.Equal(t, "s1", g.SessionID())

	_, err = ReconstructGraph("s1", []entities.GraphNode{a, a}, nil, created)
	assert.Error(t, err)
}
