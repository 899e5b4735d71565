// internal/harness/canonical_test.go
package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalTaskID(t *testing.T) {
	testCases := []struct {
		name           string
		ref            string
		defaultVersion string
		want           string
	}{
		{"already canonical", "v1.order-pizza", "v1", "v1.order-pizza"},
		{"other version kept", "v2.order-pizza", "v1", "v2.order-pizza"},
		{"bare name gets default", "order-pizza", "v1", "v1.order-pizza"},
		{"legacy slash prefix", "browsebench/v1.order-pizza", "v1", "v1.order-pizza"},
		{"legacy dot prefix", "browsebench.v1.order-pizza", "v1", "v1.order-pizza"},
		{"legacy prefix with bare name", "browsebench/order-pizza", "v1", "v1.order-pizza"},
		{"surrounding whitespace", "  v1.order-pizza ", "v1", "v1.order-pizza"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalTaskID(tc.ref, tc.defaultVersion)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalTaskIDErrors(t *testing.T) {
	testCases := []struct {
		name           string
		ref            string
		defaultVersion string
	}{
		{"empty", "", "v1"},
		{"whitespace only", "   ", "v1"},
		{"legacy prefix only", "browsebench/", "v1"},
		{"trailing dot", "v1.", "v1"},
		{"leading dot", ".name", "v1"},
		{"no version and no default", "order-pizza", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CanonicalTaskID(tc.ref, tc.defaultVersion)
			assert.Error(t, err)
		})
	}
}
