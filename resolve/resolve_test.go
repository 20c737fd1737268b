package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("export {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindMatchingFile_FirstCandidateInOrder(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "server", "main.js"))
	touch(t, filepath.Join(base, "src", "server", "main.ts"))
	touch(t, filepath.Join(base, "src", "server", "main.tsx"))

	got, ok := FindMatchingFile(base, DefaultServerEntryPaths, ServerEntryExtensions)
	if !ok {
		t.Fatalf("expected an entry file")
	}
	want := filepath.Join(base, "src", "server", "main.ts")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFindMatchingFile_ExtensionOrder(t *testing.T) {
	for _, exts := range [][]string{{"js", "ts"}, {"ts", "js"}} {
		base := t.TempDir()
		touch(t, filepath.Join(base, "server.js"))
		touch(t, filepath.Join(base, "server.ts"))

		got, ok := FindMatchingFile(base, []string{"server"}, exts)
		if !ok {
			t.Fatalf("exts %v: expected a match", exts)
		}
		if want := filepath.Join(base, "server."+exts[0]); got != want {
			t.Fatalf("exts %v: got %q, want %q", exts, got, want)
		}
	}
}

func TestFindMatchingFile_SkipsDirectoriesAndReportsNotFound(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "src", "server.ts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got, ok := FindMatchingFile(base, DefaultServerEntryPaths, ServerEntryExtensions); ok {
		t.Fatalf("expected not found, got %q", got)
	}
}

func TestEntryFile_Explicit(t *testing.T) {
	base := t.TempDir()
	got, ok := EntryFile(base, "app/server.ts")
	if !ok || got != filepath.Join(base, "app", "server.ts") {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"foo", "foo", true},
		{"foo/sub/path.js", "foo", true},
		{"@scope/pkg", "@scope/pkg", true},
		{"@scope/pkg/sub", "@scope/pkg", true},
		{"@scope", "", false},
		{"./local", "", false},
		{"../up", "", false},
		{"/abs/path", "", false},
		{"node:fs", "", false},
		{"@/alias", "", false},
	}
	for _, tt := range tests {
		got, ok := ModuleName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ModuleName(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsBuiltin(t *testing.T) {
	for _, s := range []string{"fs", "fs/promises", "node:path", "node:test"} {
		if !IsBuiltin(s) {
			t.Errorf("expected %q to be builtin", s)
		}
	}
	for _, s := range []string{"foo", "@scope/fs", "fsx"} {
		if IsBuiltin(s) {
			t.Errorf("did not expect %q to be builtin", s)
		}
	}
}

func TestModuleRoot_WalksParents(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "node_modules", "foo", "package.json"))
	touch(t, filepath.Join(base, "node_modules", "@scope", "bar", "package.json"))
	deep := filepath.Join(base, "src", "server", "routes")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := ModuleRoot("foo", deep)
	if !ok || got != filepath.Join(base, "node_modules", "foo") {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	got, ok = ModuleRoot("@scope/bar", deep)
	if !ok || got != filepath.Join(base, "node_modules", "@scope", "bar") {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if _, ok := ModuleRoot("missing", deep); ok {
		t.Fatalf("expected missing module to be unresolved")
	}
}

func TestReadPackageJSON(t *testing.T) {
	dir := t.TempDir()
	data := `{
		"name": "app",
		"version": "1.0.0",
		"dependencies": {"foo": "^1.2.0"},
		"devDependencies": {"foo": "^0.1.0", "vite": "^6.0.0"},
		"optionalDependencies": {"fsevents": "^2.0.0"},
		"m3-stack": {"server": {"entryFile": "src/main.ts"}}
	}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	pkg, err := ReadPackageJSON(dir)
	if err != nil {
		t.Fatalf("ReadPackageJSON: %v", err)
	}
	if pkg.Name != "app" || len(pkg.M3Stack) == 0 {
		t.Fatalf("unexpected manifest: %+v", pkg)
	}
	if v := pkg.DeclaredVersions()["foo"]; v != "^1.2.0" {
		t.Fatalf("dependencies should win over devDependencies, got %q", v)
	}
	deps := pkg.RuntimeDependencies()
	if len(deps) != 2 || deps[0] != "foo" || deps[1] != "fsevents" {
		t.Fatalf("unexpected runtime deps: %v", deps)
	}
}

func TestAuthConfig(t *testing.T) {
	base := t.TempDir()
	if _, ok := AuthConfig(base, ""); ok {
		t.Fatal("expected no auth config in an empty project")
	}
	touch(t, filepath.Join(base, "src", "auth", "index.mts"))
	touch(t, filepath.Join(base, "src", "server", "auth.ts"))
	got, ok := AuthConfig(base, "")
	if !ok || got != filepath.Join(base, "src", "server", "auth.ts") {
		t.Errorf("AuthConfig = %s, %v", got, ok)
	}
	if got, _ := AuthConfig(base, "lib/auth.ts"); got != filepath.Join(base, "lib", "auth.ts") {
		t.Errorf("explicit AuthConfig = %s", got)
	}
}
