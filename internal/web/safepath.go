package web

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SafePath resolves a request path against base and rejects anything that
// would escape it. URL paths are treated as relative to base.
func SafePath(base, reqPath string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	rel := filepath.FromSlash(strings.TrimLeft(reqPath, "/"))
	resolved := filepath.Clean(filepath.Join(absBase, rel))
	if !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) && resolved != absBase {
		return "", fmt.Errorf("path %q escapes %q", reqPath, absBase)
	}
	return resolved, nil
}
