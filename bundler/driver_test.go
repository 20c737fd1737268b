package bundler

import (
	"context"
	"errors"
	"github.com/rs/zerolog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	for _, name := range []string{"esbuild", "rollup"} {
		d, err := New(name, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		if d.Name() != name {
			t.Errorf("driver name = %s, want %s", d.Name(), name)
		}
	}
	if _, err := New("webpack", zerolog.Nop()); !errors.Is(err, ErrUnknownBundler) {
		t.Fatalf("expected ErrUnknownBundler, got %v", err)
	}
}

func TestBuildError(t *testing.T) {
	res := Result{Bundler: "esbuild", Errors: []Message{
		{Text: `Could not resolve "x"`, File: "src/a.ts", Line: 3, Column: 7},
		{Text: "boom"},
	}}
	err := res.Err()
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected a *BuildError, got %v", err)
	}
	want := "esbuild errors:\nsrc/a.ts:3:7: Could not resolve \"x\"\nboom"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
	if (Result{}).Err() != nil {
		t.Error("a result without errors is not an error")
	}
}

func TestFakeDriver_Watch(t *testing.T) {
	plan := testPlan(t, Settings{})
	f := &FakeDriver{Passes: []FakePass{
		{Result: Result{Errors: []Message{{Text: "syntax error"}}}},
		{Files: map[string]string{"main.js": "ok"}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	var ends []Result
	err := f.Watch(ctx, plan, Hooks{OnEnd: func(r Result) {
		ends = append(ends, r)
		if len(ends) == 2 {
			cancel()
		}
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ends) != 2 || ends[0].Err() == nil || ends[1].Err() != nil {
		t.Fatalf("unexpected passes: %+v", ends)
	}
	if data, err := os.ReadFile(filepath.Join(plan.ServerDir, "main.js")); err != nil || string(data) != "ok" {
		t.Fatalf("main.js = %q, %v", data, err)
	}
}

func TestEsbuild_Build(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "package.json"), `{"name":"app","dependencies":{"foo":"^1.0.0","pg":"^8.0.0"}}`)
	writeFile(t, filepath.Join(base, "src", "server", "main.ts"),
		"import foo from \"foo\"\nimport pg from \"pg\"\nimport { join } from \"node:path\"\nconsole.log(foo, pg, join)\n")
	writeFile(t, filepath.Join(base, "node_modules", "foo", "package.json"), `{"name":"foo","version":"1.0.0","main":"index.js"}`)
	writeFile(t, filepath.Join(base, "node_modules", "foo", "index.js"), "module.exports = 'foo'\n")
	writeFile(t, filepath.Join(base, "node_modules", "pg", "package.json"), `{"name":"pg","version":"8.11.0","main":"index.js"}`)
	writeFile(t, filepath.Join(base, "node_modules", "pg", "index.js"), "module.exports = 'pg'\n")

	plan, ok, err := NewPlan(Settings{BasePath: base, BundleDependencies: true, External: []string{"pg"}})
	if err != nil || !ok {
		t.Fatalf("plan: %v %v", ok, err)
	}
	res, err := NewEsbuild(zerolog.Nop()).Build(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if names := res.Dependencies.Names(); len(names) != 1 || names[0] != "pg" {
		t.Errorf("dependencies = %v, want [pg]", names)
	}
	main, err := os.ReadFile(filepath.Join(base, "dist", "server", "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(main), `from "foo"`) {
		t.Errorf("foo should be bundled:\n%s", main)
	}
	if !strings.Contains(string(main), `from "pg"`) {
		t.Errorf("pg should stay external:\n%s", main)
	}
	found := false
	for _, in := range res.Inputs {
		if in == filepath.Join(base, "src", "server", "main.ts") {
			found = true
		}
	}
	if !found {
		t.Errorf("inputs %v do not contain the entry", res.Inputs)
	}
}

func TestEsbuild_BuildError(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "src", "server", "main.ts"), "import x from './missing'\nconsole.log(x)\n")
	plan, _, err := NewPlan(Settings{BasePath: base, BundleDependencies: true})
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewEsbuild(zerolog.Nop()).Build(context.Background(), plan)
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected a *BuildError, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "esbuild errors:") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestMetafileInputs(t *testing.T) {
	inputs, err := metafileInputs("/base", `{"inputs":{"src/a.ts":{"bytes":1},"<define:x>":{"bytes":1},"node_modules/foo/index.js":{"bytes":2}}}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 2 || inputs[0] != filepath.Join("/base", "node_modules/foo/index.js") {
		t.Errorf("inputs = %v", inputs)
	}
}
