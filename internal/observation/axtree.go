// internal/observation/axtree.go
package observation

import (
	"context"

	"go.uber.org/zap"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/browser"
	"github.com/vexaline/browsebench/internal/marking"
)

// captureAXTree fetches the accessibility node list of every attached frame
// and merges them into one tree.
func (e *Extractor) captureAXTree(ctx context.Context, pg browser.Page) (*schemas.AXTree, error) {
	frames, err := pg.Frames(ctx)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return &schemas.AXTree{}, nil
	}

	nodesByFrame := make(map[string][]schemas.AXNode, len(frames))
	for _, f := range frames {
		nodes, err := pg.AXNodes(ctx, f.FrameID())
		if err != nil {
			// Sandboxed or just-detached frames have no capturable tree;
			// the merge proceeds with what exists.
			e.logger.Debug("Skipping frame without accessibility tree.",
				zap.String("frame_id", f.FrameID()), zap.Error(err))
			continue
		}
		nodesByFrame[f.FrameID()] = nodes
	}

	merged := MergeFrameTrees(frames[0].FrameID(), nodesByFrame)
	return merged, nil
}

// MergeFrameTrees splices per-frame accessibility node lists into one tree.
// For every node hosting a child frame's document, that frame's node list is
// appended and its root becomes a child of the hosting node. Node ids are
// namespaced by frame so they stay unique across the merged tree, and the
// piggybacked bids are parsed out of the text properties, restoring the
// original human-readable values.
func MergeFrameTrees(rootFrameID string, nodesByFrame map[string][]schemas.AXNode) *schemas.AXTree {
	var out []schemas.AXNode
	spliced := make(map[string]bool, len(nodesByFrame))

	var splice func(frameID string)
	splice = func(frameID string) {
		if spliced[frameID] {
			return
		}
		spliced[frameID] = true

		var pending []string
		for _, n := range nodesByFrame[frameID] {
			node := n
			node.ID = scopedID(frameID, n.ID)
			node.ChildIDs = make([]string, 0, len(n.ChildIDs))
			for _, cid := range n.ChildIDs {
				node.ChildIDs = append(node.ChildIDs, scopedID(frameID, cid))
			}

			stripBid(&node)

			if hosted := node.HostedFrameID; hosted != "" && hosted != frameID {
				if childNodes, ok := nodesByFrame[hosted]; ok && len(childNodes) > 0 {
					node.ChildIDs = append(node.ChildIDs, scopedID(hosted, childNodes[0].ID))
					pending = append(pending, hosted)
				}
			}
			out = append(out, node)
		}
		for _, hosted := range pending {
			splice(hosted)
		}
	}
	splice(rootFrameID)

	return &schemas.AXTree{Nodes: out}
}

func scopedID(frameID, nodeID string) string {
	return frameID + ":" + nodeID
}

// stripBid recovers the element identifier smuggled through the ARIA text
// properties and restores their original values. An emptied property is
// dropped entirely.
func stripBid(node *schemas.AXNode) {
	if bid, orig, ok := marking.ParseMarkedValue(node.RoleDescription); ok {
		node.Bid = bid
		node.RoleDescription = orig
	}
	if bid, orig, ok := marking.ParseMarkedValue(node.Description); ok {
		if node.Bid == "" {
			node.Bid = bid
		}
		node.Description = orig
	}

	props := node.Properties[:0]
	for _, p := range node.Properties {
		if p.Name == "roledescription" || p.Name == "description" {
			if bid, orig, ok := marking.ParseMarkedValue(p.Value); ok {
				if node.Bid == "" {
					node.Bid = bid
				}
				if orig == "" {
					continue // property existed only to carry the mark
				}
				p.Value = orig
			}
		}
		props = append(props, p)
	}
	node.Properties = props
}
