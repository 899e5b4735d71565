// api/schemas/observation.go
package schemas

import (
	"context"
	"time"
)

// ChatRole identifies the author of a transcript entry.
type ChatRole string

const (
	RoleAssistant  ChatRole = "assistant"
	RoleUser       ChatRole = "user"
	RoleUserImage  ChatRole = "user_image"
	RoleInfeasible ChatRole = "infeasible"
)

// ChatMessage is one entry of the append-only episode transcript.
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// GoalPart is one structured piece of the task goal. Plain-text goals are
// normalized into a single part of type "text".
type GoalPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AXProperty is a named string property of an accessibility node.
type AXProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AXNode is one node of the merged accessibility tree. Node IDs are unique
// across the whole merged tree (frame-namespaced during the merge).
type AXNode struct {
	ID               string       `json:"nodeId"`
	Role             string       `json:"role,omitempty"`
	Name             string       `json:"name,omitempty"`
	Description      string       `json:"description,omitempty"`
	RoleDescription  string       `json:"roledescription,omitempty"`
	Ignored          bool         `json:"ignored,omitempty"`
	Bid              string       `json:"bid,omitempty"`
	Properties       []AXProperty `json:"properties,omitempty"`
	ChildIDs         []string     `json:"childIds,omitempty"`
	BackendDOMNodeID int64        `json:"backendDOMNodeId,omitempty"`

	// HostedFrameID is set on frame-hosting nodes and names the frame whose
	// document was spliced in below this node.
	HostedFrameID string `json:"hostedFrameId,omitempty"`
}

// AXTree is the merged, cross-frame accessibility tree.
type AXTree struct {
	Nodes []AXNode `json:"nodes"`
}

// PageHandle is the minimal page surface exposed to task collaborators.
// The concrete driver page implements it.
type PageHandle interface {
	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expression string, out any) error
}

// SessionHandle is an opaque reference to the live browsing session.
type SessionHandle interface {
	ID() string
}

// Observation is the immutable snapshot handed to the agent each turn.
// The field set is the agent-facing contract; see the run loop documentation.
type Observation struct {
	GoalText  string        `json:"goal"`
	GoalParts []GoalPart    `json:"goal_object"`
	Chat      []ChatMessage `json:"chat_messages"`

	URL          string   `json:"url"`
	OpenPageURLs []string `json:"open_pages_urls"`
	ActivePage   int      `json:"active_page_index"`

	// Captures. A disabled capture leaves its neutral zero value.
	HTML       string  `json:"dom_snapshot,omitempty"`
	AXTree     *AXTree `json:"axtree,omitempty"`
	Screenshot []byte  `json:"screenshot,omitempty"`

	FocusedBid      string        `json:"focused_element_bid"`
	LastAction      string        `json:"last_action"`
	LastActionError string        `json:"last_action_error"`
	Elapsed         time.Duration `json:"elapsed_time"`

	// Session is the live browsing session backing this observation. It is a
	// handle, not part of the serialized snapshot.
	Session SessionHandle `json:"-"`
}
