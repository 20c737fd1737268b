package resolve

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BareSpecifierFilter matches import specifiers that refer to a package rather than a file. Bundler resolve hooks are
// registered with it.
const BareSpecifierFilter = `^@?\w`

var bareSpecifier = regexp.MustCompile(BareSpecifierFilter)

// ModuleName returns the package name an import specifier refers to. Sub-paths are stripped: "@scope/pkg/sub" becomes
// "@scope/pkg" and "pkg/sub" becomes "pkg". Relative, absolute and malformed specifiers return false, as do node
// builtins with the "node:" prefix.
func ModuleName(specifier string) (string, bool) {
	if !bareSpecifier.MatchString(specifier) || strings.HasPrefix(specifier, "node:") {
		return "", false
	}
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 || parts[1] == "" || parts[0] == "@" {
			return "", false
		}
		return parts[0] + "/" + parts[1], true
	}
	if parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

// IsBuiltin reports whether the specifier refers to a node builtin module.
func IsBuiltin(specifier string) bool {
	if strings.HasPrefix(specifier, "node:") {
		return true
	}
	name := specifier
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	_, ok := builtinModules[name]
	return ok
}

// ModuleRoot finds the installation directory of the package name by walking from dir up to the filesystem root,
// checking "node_modules/<name>" at every level. The bundler only reports import specifiers, so this is how a
// dependency is mapped back to a directory on disk.
func ModuleRoot(name, dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

var builtinModules = map[string]struct{}{}

func init() {
	for _, name := range []string{
		"assert", "async_hooks", "buffer", "child_process", "cluster", "console", "constants", "crypto", "dgram",
		"diagnostics_channel", "dns", "domain", "events", "fs", "http", "http2", "https", "inspector", "module", "net",
		"os", "path", "perf_hooks", "process", "punycode", "querystring", "readline", "repl", "stream",
		"string_decoder", "sys", "timers", "tls", "trace_events", "tty", "url", "util", "v8", "vm", "wasi",
		"worker_threads", "zlib",
	} {
		builtinModules[name] = struct{}{}
	}
}
