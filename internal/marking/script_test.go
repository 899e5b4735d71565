// internal/marking/script_test.go
package marking

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkedValueRoundTrip(t *testing.T) {
	testCases := []struct {
		bid      string
		original string
	}{
		{"0", "button"},
		{"a-12", ""},
		{"a-b-3", "with_underscore text"},
	}

	for _, tc := range testCases {
		v := MarkedValue(tc.bid, tc.original)
		bid, original, ok := ParseMarkedValue(v)
		require.True(t, ok, "value %q", v)
		assert.Equal(t, tc.bid, bid)
		assert.Equal(t, tc.original, original)
	}
}

func TestParseMarkedValueRejectsUnmarked(t *testing.T) {
	for _, v := range []string{"", "button", "bbid", "bbid_", "somethingelse_0_x"} {
		_, _, ok := ParseMarkedValue(v)
		assert.False(t, ok, "value %q", v)
	}
}

func TestMarkScriptEmbedsPrefix(t *testing.T) {
	script := markScript("a" + frameSeparator)
	assert.Contains(t, script, `const prefix = "a-"`)
	assert.Contains(t, script, BidGuard)
}

// alphaID mirrors the bijective base-26 id function embedded in the mark
// script: 0 -> "a", 25 -> "z", 26 -> "aa".
func alphaID(n int) string {
	var s string
	n++
	for n > 0 {
		n--
		s = string(rune('a'+n%26)) + s
		n /= 26
	}
	return s
}

// Frame-owner ids wrap from "z" to "aa" after 26 frames, so uniqueness
// across frames rests entirely on the separator: the top page's 27th
// frame owner ("aa") and the first owner inside frame "a" ("a-a") must
// stay distinct, as must their descendants.
func TestBidsUniqueAcrossManyFrames(t *testing.T) {
	require.Equal(t, "aa", alphaID(26))

	seen := make(map[string]string)
	add := func(frame, bid string) {
		if prev, dup := seen[bid]; dup {
			t.Fatalf("bid %q assigned in both frame %q and frame %q", bid, prev, frame)
		}
		seen[bid] = frame
	}

	// The top page hosts 30 frames plus some ordinary elements.
	var owners []string
	for i := 0; i < 30; i++ {
		owner := alphaID(i)
		add("top", owner)
		owners = append(owners, owner)
	}
	for i := 0; i < 5; i++ {
		add("top", strconv.Itoa(i))
	}

	// Each child frame repeats the same shape one level down.
	for _, owner := range owners {
		prefix := owner + frameSeparator
		for i := 0; i < 30; i++ {
			add(owner, prefix+alphaID(i))
		}
		for i := 0; i < 5; i++ {
			add(owner, prefix+strconv.Itoa(i))
		}
	}

	assert.Contains(t, seen, "aa")
	assert.Contains(t, seen, "a-a")
}
