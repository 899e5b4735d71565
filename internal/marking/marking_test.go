// internal/marking/marking_test.go
package marking

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/internal/mocks"
)

var prefixRe = regexp.MustCompile(`const prefix = "([^"]*)"`)

func TestMarkRecursesWithChildPrefix(t *testing.T) {
	child := &mocks.FakeFrame{ID: "child", ElementCount: 2}
	main := &mocks.FakeFrame{ID: "main", ElementCount: 5, Children: []*mocks.FakeFrame{child}}
	// The parent's marking pass assigns the hosting element's bid.
	main.OnMark = func(*mocks.FakeFrame) { child.Bid = "a" }

	var childPrefixes []string
	child.EvalFunc = func(expr string, out any) error {
		if m := prefixRe.FindStringSubmatch(expr); m != nil {
			childPrefixes = append(childPrefixes, m[1])
		}
		return nil
	}

	page := mocks.NewFakePage("tab", main)
	p := New(zap.NewNop())
	require.NoError(t, p.Mark(context.Background(), page))

	require.Len(t, childPrefixes, 1)
	assert.Equal(t, "a-", childPrefixes[0], "child frame must be marked under its owner element's bid plus the separator")
	assert.Contains(t, page.Calls(), "mark:main")
}

func TestMarkUnmarkedChildIsFatal(t *testing.T) {
	child := &mocks.FakeFrame{ID: "child"}
	main := &mocks.FakeFrame{ID: "main", Children: []*mocks.FakeFrame{child}}
	// No OnMark: the child's owner element stays bare after the parent pass.

	page := mocks.NewFakePage("tab", main)
	p := New(zap.NewNop())

	err := p.Mark(context.Background(), page)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnmarkedChildFrame)
}

func TestMarkSkipsSandboxedAndDetachedFrames(t *testing.T) {
	sandboxed := &mocks.FakeFrame{ID: "sandboxed", Sandboxed: true}
	detached := &mocks.FakeFrame{ID: "detached", Detached: true}
	main := &mocks.FakeFrame{ID: "main", Children: []*mocks.FakeFrame{sandboxed, detached}}

	page := mocks.NewFakePage("tab", main)
	p := New(zap.NewNop())
	require.NoError(t, p.Mark(context.Background(), page))

	calls := page.Calls()
	assert.Contains(t, calls, "mark:main")
	assert.NotContains(t, calls, "mark:sandboxed")
	assert.NotContains(t, calls, "mark:detached")
}

func TestUnmarkToleratesDetachRace(t *testing.T) {
	racing := &mocks.FakeFrame{ID: "racing", Detached: true, EvalErr: errors.New("frame gone")}
	main := &mocks.FakeFrame{ID: "main", Children: []*mocks.FakeFrame{racing}}

	page := mocks.NewFakePage("tab", main)
	p := New(zap.NewNop())

	require.NoError(t, p.Unmark(context.Background(), page))
	assert.Contains(t, page.Calls(), "unmark:main")
}

func TestUnmarkOtherFailureIsFatal(t *testing.T) {
	broken := &mocks.FakeFrame{ID: "broken", EvalErr: errors.New("script blocked")}
	main := &mocks.FakeFrame{ID: "main", Children: []*mocks.FakeFrame{broken}}

	page := mocks.NewFakePage("tab", main)
	p := New(zap.NewNop())

	err := p.Unmark(context.Background(), page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
