package bundler

import (
	"github.com/rs/zerolog"
	"path/filepath"
	"testing"
)

func testPlan(t *testing.T, s Settings) Plan {
	t.Helper()
	if s.BasePath == "" {
		s.BasePath = t.TempDir()
	}
	if s.EntryFile == "" {
		s.EntryFile = "src/server/main.ts"
	}
	plan, _, err := NewPlan(s)
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func TestCollectorClassify(t *testing.T) {
	plan := testPlan(t, Settings{
		BundleDependencies: true,
		External:           []string{"pg"},
		Internal:           []string{"sharp", "lodash"},
	})
	tests := []struct {
		specifier string
		kind      ImportKind
		external  bool
		recorded  bool
	}{
		{"node:fs", ImportStatement, true, false},
		{"path", ImportStatement, true, false},
		{"hono", ImportStatement, false, false},
		{"hono/cors", ImportStatement, false, false},
		{"pg", ImportStatement, true, true},
		{"@electric-sql/pglite/vector", ImportStatement, true, true},
		{"sharp", ImportStatement, true, true},
		{"lodash", RequireCall, false, false},
		{"dayjs", DynamicImport, true, true},
		{"debug", RequireCall, true, true},
		{"./local", ImportStatement, false, false},
	}
	for _, test := range tests {
		c := newCollector(plan, zerolog.Nop())
		if got := c.classify(test.specifier, "", test.kind); got != test.external {
			t.Errorf("classify(%q) = %v, want %v", test.specifier, got, test.external)
		}
		if recorded := len(c.order) > 0; recorded != test.recorded {
			t.Errorf("classify(%q) recorded = %v, want %v", test.specifier, recorded, test.recorded)
		}
	}
}

func TestCollectorClassify_WithoutBundling(t *testing.T) {
	plan := testPlan(t, Settings{BundleDependencies: false, Internal: []string{"zod"}})
	c := newCollector(plan, zerolog.Nop())
	if !c.classify("hono", "", ImportStatement) {
		t.Error("packages stay external when dependencies are not bundled")
	}
	if c.classify("zod", "", ImportStatement) {
		t.Error("internal packages are always bundled")
	}
}

func TestCollectorDependencies(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "node_modules", "pg", "package.json"), `{"name":"pg","version":"8.11.0"}`)
	writeFile(t, filepath.Join(base, "node_modules", "@libsql", "client", "package.json"), `{"name":"@libsql/client"}`)
	writeFile(t, filepath.Join(base, "node_modules", "dotenv", "package.json"), `{"name":"dotenv"}`)
	plan := testPlan(t, Settings{BasePath: base, BundleDependencies: true, CopyDependencies: []string{"dotenv", "missing"}})

	c := newCollector(plan, zerolog.Nop(), esbuildExternal...)
	importer := filepath.Join(base, "src", "server", "main.ts")
	c.classify("pg", importer, DynamicImport)
	c.classify("pg/lib/client", importer, RequireCall)
	c.classify("@libsql/client", importer, ImportStatement)
	c.classify("not-installed", importer, RequireCall)

	deps := c.dependencies()
	if got := deps.Names(); len(got) != 3 || got[0] != "@libsql/client" || got[1] != "dotenv" || got[2] != "pg" {
		t.Fatalf("dependencies = %v", got)
	}
	if deps["pg"].DynamicImport {
		t.Error("the last record for a name wins")
	}
	if want := filepath.Join(base, "node_modules", "pg"); deps["pg"].Root != want {
		t.Errorf("pg root = %s, want %s", deps["pg"].Root, want)
	}

	c.reset()
	if len(c.dependencies()) != 1 {
		t.Error("reset forgets recorded imports but keeps copy-dependencies")
	}
}
