// internal/observation/axtree_test.go
package observation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/marking"
)

func TestMergeFrameTreesSplicesChildFrame(t *testing.T) {
	nodesByFrame := map[string][]schemas.AXNode{
		"F1": {
			{ID: "1", Role: "RootWebArea", ChildIDs: []string{"2", "3"}},
			{ID: "2", Role: "button", RoleDescription: marking.MarkedValue("0", "")},
			{ID: "3", Role: "Iframe", HostedFrameID: "F2", RoleDescription: marking.MarkedValue("a", "")},
		},
		"F2": {
			{ID: "1", Role: "RootWebArea", ChildIDs: []string{"2"}},
			{ID: "2", Role: "textbox", RoleDescription: marking.MarkedValue("a-0", "")},
		},
	}

	got := MergeFrameTrees("F1", nodesByFrame)

	want := &schemas.AXTree{Nodes: []schemas.AXNode{
		{ID: "F1:1", Role: "RootWebArea", ChildIDs: []string{"F1:2", "F1:3"}},
		{ID: "F1:2", Role: "button", Bid: "0", ChildIDs: []string{}},
		{ID: "F1:3", Role: "Iframe", Bid: "a", HostedFrameID: "F2", ChildIDs: []string{"F2:1"}},
		{ID: "F2:1", Role: "RootWebArea", ChildIDs: []string{"F2:2"}},
		{ID: "F2:2", Role: "textbox", Bid: "a-0", ChildIDs: []string{}},
	}}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged tree mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeFrameTreesNodeIDsUnique(t *testing.T) {
	// Both frames use the same local node ids; after the merge every id must
	// be unique across the whole tree.
	nodesByFrame := map[string][]schemas.AXNode{
		"main": {
			{ID: "1", ChildIDs: []string{"2"}},
			{ID: "2", HostedFrameID: "inner"},
		},
		"inner": {
			{ID: "1", ChildIDs: []string{"2"}},
			{ID: "2"},
		},
	}

	got := MergeFrameTrees("main", nodesByFrame)
	seen := make(map[string]bool)
	for _, n := range got.Nodes {
		assert.False(t, seen[n.ID], "duplicate node id %q", n.ID)
		seen[n.ID] = true
	}
	assert.Len(t, got.Nodes, 4)
}

func TestMergeFrameTreesMissingChildTolerated(t *testing.T) {
	// The hosted frame has no capturable tree (sandboxed, detached); the
	// hosting node stays a leaf.
	nodesByFrame := map[string][]schemas.AXNode{
		"main": {
			{ID: "1", ChildIDs: []string{"2"}},
			{ID: "2", HostedFrameID: "gone"},
		},
	}

	got := MergeFrameTrees("main", nodesByFrame)
	require.Len(t, got.Nodes, 2)
	assert.Empty(t, got.Nodes[1].ChildIDs)
}

func TestStripBidRestoresOriginalText(t *testing.T) {
	node := schemas.AXNode{
		ID:              "1",
		RoleDescription: marking.MarkedValue("a-7", "fancy button"),
		Description:     marking.MarkedValue("a-7", "tooltip text"),
		Properties: []schemas.AXProperty{
			{Name: "roledescription", Value: marking.MarkedValue("a-7", "fancy button")},
			{Name: "description", Value: marking.MarkedValue("a-7", "tooltip text")},
			{Name: "focusable", Value: "true"},
		},
	}

	stripBid(&node)

	assert.Equal(t, "a-7", node.Bid)
	assert.Equal(t, "fancy button", node.RoleDescription)
	assert.Equal(t, "tooltip text", node.Description)
	require.Len(t, node.Properties, 3)
	assert.Equal(t, "fancy button", node.Properties[0].Value)
	assert.Equal(t, "tooltip text", node.Properties[1].Value)
	assert.Equal(t, "true", node.Properties[2].Value)
}

func TestStripBidDropsEmptiedProperty(t *testing.T) {
	node := schemas.AXNode{
		ID:              "1",
		RoleDescription: marking.MarkedValue("3", ""),
		Properties: []schemas.AXProperty{
			{Name: "roledescription", Value: marking.MarkedValue("3", "")},
			{Name: "focusable", Value: "true"},
		},
	}

	stripBid(&node)

	assert.Equal(t, "3", node.Bid)
	assert.Empty(t, node.RoleDescription)
	// The property existed only to carry the mark; it is gone entirely.
	require.Len(t, node.Properties, 1)
	assert.Equal(t, "focusable", node.Properties[0].Name)
}

func TestStripBidLeavesUnmarkedNodesAlone(t *testing.T) {
	node := schemas.AXNode{
		ID:          "1",
		Description: "plain description",
		Properties:  []schemas.AXProperty{{Name: "description", Value: "plain description"}},
	}

	stripBid(&node)

	assert.Empty(t, node.Bid)
	assert.Equal(t, "plain description", node.Description)
	require.Len(t, node.Properties, 1)
}
