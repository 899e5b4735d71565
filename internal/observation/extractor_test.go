// internal/observation/extractor_test.go
package observation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/config"
	"github.com/vexaline/browsebench/internal/mocks"
)

func testPage() *mocks.FakePage {
	main := &mocks.FakeFrame{ID: "F1", ElementCount: 3, FocusedBid: "2"}
	page := mocks.NewFakePage("tab", main)
	page.HTMLValue = "<html><head><script>evil()</script></head><body>hello</body></html>"
	page.ShotValue = []byte{0x89, 0x50, 0x4e, 0x47}
	page.AXNodesByFrame = map[string][]schemas.AXNode{
		"F1": {{ID: "1", Role: "RootWebArea"}},
	}
	return page
}

func allCaptures() config.EnvConfig {
	return config.EnvConfig{CaptureHTML: true, CaptureAXTree: true, CaptureScreenshot: true}
}

func TestExtractAllCaptures(t *testing.T) {
	page := testPage()
	e := NewExtractor(allCaptures(), zap.NewNop())

	capture, err := e.Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Contains(t, capture.HTML, "hello")
	assert.NotContains(t, capture.HTML, "evil()", "script content must be pruned")
	require.NotNil(t, capture.AXTree)
	require.Len(t, capture.AXTree.Nodes, 1)
	assert.Equal(t, "F1:1", capture.AXTree.Nodes[0].ID)
	assert.Equal(t, page.ShotValue, capture.Screenshot)
	assert.Equal(t, "2", capture.FocusedBid)
}

// Disabling a capture never raises; it yields the neutral zero value and the
// underlying call is not attempted.
func TestExtractDisabledCapturesAreNeutral(t *testing.T) {
	page := testPage()
	e := NewExtractor(config.EnvConfig{}, zap.NewNop())

	capture, err := e.Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Empty(t, capture.HTML)
	assert.Nil(t, capture.AXTree)
	assert.Nil(t, capture.Screenshot)

	calls := page.Calls()
	assert.NotContains(t, calls, "html")
	assert.NotContains(t, calls, "screenshot")
	for _, call := range calls {
		assert.NotContains(t, call, "ax:")
	}
}

// Unmarking must never race a capture: every capture call sits between the
// mark and unmark entries of the call log.
func TestExtractUnmarksAfterCaptures(t *testing.T) {
	page := testPage()
	e := NewExtractor(allCaptures(), zap.NewNop())

	_, err := e.Extract(context.Background(), page)
	require.NoError(t, err)

	calls := page.Calls()
	markIdx, unmarkIdx := -1, -1
	var captureIdx []int
	for i, call := range calls {
		switch {
		case call == "mark:F1":
			markIdx = i
		case call == "unmark:F1":
			unmarkIdx = i
		case call == "html" || call == "screenshot" || call == "ax:F1":
			captureIdx = append(captureIdx, i)
		}
	}

	require.NotEqual(t, -1, markIdx)
	require.NotEqual(t, -1, unmarkIdx)
	require.Len(t, captureIdx, 3)
	for _, i := range captureIdx {
		assert.Greater(t, i, markIdx, "capture before marking")
		assert.Less(t, i, unmarkIdx, "capture after unmarking")
	}
}

func TestExtractMarkFailureIsFatal(t *testing.T) {
	main := &mocks.FakeFrame{ID: "F1", EvalErr: errors.New("script blocked")}
	page := mocks.NewFakePage("tab", main)
	e := NewExtractor(allCaptures(), zap.NewNop())

	_, err := e.Extract(context.Background(), page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagging")
}

func TestExtractSkipsFrameWithoutAXTree(t *testing.T) {
	child := &mocks.FakeFrame{ID: "F2", Sandboxed: true}
	main := &mocks.FakeFrame{ID: "F1", Children: []*mocks.FakeFrame{child}}
	page := mocks.NewFakePage("tab", main)
	page.AXNodesByFrame = map[string][]schemas.AXNode{
		"F1": {{ID: "1", Role: "RootWebArea"}},
		// No entry for F2: its capture fails and the merge proceeds.
	}

	e := NewExtractor(config.EnvConfig{CaptureAXTree: true}, zap.NewNop())
	capture, err := e.Extract(context.Background(), page)
	require.NoError(t, err)
	require.NotNil(t, capture.AXTree)
	assert.Len(t, capture.AXTree.Nodes, 1)
}
