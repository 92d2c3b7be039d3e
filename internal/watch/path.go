package watch

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// aliasKey is the string two entries must share to be treated as aliases of
// one resource. It is the cleaned path, optionally NFC-normalized for
// volumes that store names in a normalization-insensitive way.
func aliasKey(path string, normalize bool) string {
	key := filepath.Clean(path)
	if normalize {
		key = norm.NFC.String(key)
	}
	return key
}

// isUnder reports whether path is root or a descendant of it.
func isUnder(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(path, prefix)
}
