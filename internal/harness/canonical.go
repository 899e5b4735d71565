// internal/harness/canonical.go
package harness

import (
	"fmt"
	"strings"
)

// legacyPrefixes are older benchmark spellings still accepted on input.
// They strip to the bare reference before canonicalization.
var legacyPrefixes = []string{"browsebench/", "browsebench."}

// CanonicalTaskID normalizes a task reference to `<version>.<name>` form.
// Legacy prefixed spellings are accepted; a reference without a version gets
// the configured default; an empty reference is rejected.
func CanonicalTaskID(ref, defaultVersion string) (string, error) {
	ref = strings.TrimSpace(ref)
	for _, prefix := range legacyPrefixes {
		if rest, ok := strings.CutPrefix(ref, prefix); ok {
			ref = rest
			break
		}
	}
	if ref == "" {
		return "", fmt.Errorf("empty task reference")
	}

	version, name, found := strings.Cut(ref, ".")
	if found && version != "" && name != "" {
		return version + "." + name, nil
	}
	if found {
		return "", fmt.Errorf("malformed task reference %q", ref)
	}
	if defaultVersion == "" {
		return "", fmt.Errorf("task reference %q carries no version and no default version is configured", ref)
	}
	return defaultVersion + "." + ref, nil
}
