package resolve

import (
	"os"
	"path/filepath"
)

// DefaultServerEntryPaths lists the conventional locations of a server entry file, relative to the project root and
// without an extension. They are checked in order.
var DefaultServerEntryPaths = []string{
	"src/server/index",
	"src/server/main",
	"src/server",
	"server/index",
	"server/main",
	"server",
	"lib/server/index",
	"lib/server/main",
	"lib/server",
	"src/index",
	"src/main",
	"src",
}

// ServerEntryExtensions are the extensions tried for every entry candidate.
var ServerEntryExtensions = []string{"js", "ts", "jsx", "tsx"}

// FindMatchingFile returns the first "<base>/<candidate>.<ext>" that exists as a regular file. Candidates are the outer
// loop and extensions the inner one, so "server/index.tsx" wins over "server/main.js". The second return value is
// false when nothing matched. Stat errors count as a miss: a candidate that cannot be read is not an entry file.
func FindMatchingFile(base string, candidates, extensions []string) (string, bool) {
	for _, candidate := range candidates {
		for _, ext := range extensions {
			p := filepath.Join(base, filepath.FromSlash(candidate)+"."+ext)
			info, err := os.Stat(p)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				return p, true
			}
			return abs, true
		}
	}
	return "", false
}

// EntryFile resolves the server entry file of the project at base. An explicit entry is resolved against base and
// returned as-is; the bundler reports it if it does not exist. Without one, the default candidates are searched.
func EntryFile(base, explicit string) (string, bool) {
	if explicit != "" {
		if filepath.IsAbs(explicit) {
			return filepath.Clean(explicit), true
		}
		return filepath.Join(base, filepath.FromSlash(explicit)), true
	}
	return FindMatchingFile(base, DefaultServerEntryPaths, ServerEntryExtensions)
}
