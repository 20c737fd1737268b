package bundler

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewPlan(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "package.json"), `{
		"name": "app",
		"peerDependencies": {"react": "^18.0.0", "zod": "^3.0.0"}
	}`)
	writeFile(t, filepath.Join(base, "src", "server", "main.ts"), "export {}\n")

	plan, ok, err := NewPlan(Settings{
		BasePath: base,
		External: []string{"pg"},
		Internal: []string{"zod"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected an entry file")
	}
	if want := filepath.Join(base, "src", "server", "main.ts"); plan.Entry != want {
		t.Errorf("entry = %s, want %s", plan.Entry, want)
	}
	if want := filepath.Join(base, "dist", "server"); plan.ServerDir != want {
		t.Errorf("server dir = %s, want %s", plan.ServerDir, want)
	}
	if got, want := plan.Externals(), []string{"pg", "react"}; !reflect.DeepEqual(got, want) {
		t.Errorf("externals = %v, want %v", got, want)
	}
	if !plan.IsInternal("zod") || plan.IsExternal("zod") {
		t.Error("internal dependencies must be removed from the external set")
	}
	if plan.Bundler != "esbuild" || plan.Settings.Module != "esm" || plan.Settings.Sourcemap != "linked" {
		t.Errorf("unexpected defaults: %+v", plan.Settings)
	}
	if plan.PackageType() != "module" {
		t.Errorf("package type = %s", plan.PackageType())
	}
}

func TestNewPlan_NoEntry(t *testing.T) {
	_, ok, err := NewPlan(Settings{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no entry in an empty project")
	}
}

func TestNewPlan_ExplicitEntryAndOutDir(t *testing.T) {
	base := t.TempDir()
	plan, ok, err := NewPlan(Settings{BasePath: base, EntryFile: "api/server.js", OutDir: "build", Module: "cjs"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("an explicit entry is always accepted")
	}
	if want := filepath.Join(base, "api", "server.js"); plan.Entry != want {
		t.Errorf("entry = %s, want %s", plan.Entry, want)
	}
	if want := filepath.Join(base, "build"); plan.OutDir != want {
		t.Errorf("out dir = %s, want %s", plan.OutDir, want)
	}
	if plan.PackageType() != "commonjs" {
		t.Errorf("package type = %s", plan.PackageType())
	}
}

func TestNewPlan_InvalidModule(t *testing.T) {
	if _, _, err := NewPlan(Settings{BasePath: t.TempDir(), Module: "umd"}); err == nil {
		t.Fatal("expected an error for an unknown module format")
	}
}
