package resolve

import (
	"path/filepath"
)

// DefaultAuthConfigPaths lists the conventional locations of the better-auth configuration module, relative to the
// project root and without an extension.
var DefaultAuthConfigPaths = []string{
	"lib/server/auth",
	"lib/server/auth/index",
	"lib/server/auth/main",
	"server/auth",
	"server/auth/index",
	"server/auth/main",
	"auth",
	"auth/index",
	"auth/main",
	"src/server/auth",
	"src/server/auth/index",
	"src/server/auth/main",
	"src/auth",
	"src/auth/index",
	"src/auth/main",
	"app/server/auth",
	"app/server/auth/index",
	"app/server/auth/main",
	"app/auth",
	"app/auth/index",
	"app/auth/main",
	"src/app/server/auth",
	"src/app/server/auth/index",
	"src/app/server/auth/main",
	"src/app/auth",
	"src/app/auth/index",
	"src/app/auth/main",
}

var AuthConfigExtensions = []string{"ts", "js", "tsx", "jsx", "mjs", "cjs", "mts", "cts"}

// AuthConfig resolves the auth configuration module of the project at base, like EntryFile does for the server entry.
func AuthConfig(base, explicit string) (string, bool) {
	if explicit != "" {
		if filepath.IsAbs(explicit) {
			return filepath.Clean(explicit), true
		}
		return filepath.Join(base, filepath.FromSlash(explicit)), true
	}
	return FindMatchingFile(base, DefaultAuthConfigPaths, AuthConfigExtensions)
}
