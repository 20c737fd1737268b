package output

import (
	"encoding/json"
	"github.com/m3stack/m3-stack/config"
	"github.com/rs/zerolog"
	"os"
	"path/filepath"
	"testing"
)

func TestVercelRoutes(t *testing.T) {
	routes := VercelRoutes([]string{"/api", "trpc/"}, []map[string]any{{"src": "/old", "dest": "/new"}})
	if len(routes) != 5 {
		t.Fatalf("routes = %v", routes)
	}
	if routes[0]["src"] != `^/api(/.*)?$` || routes[0]["dest"] != "/api" {
		t.Errorf("first route = %v", routes[0])
	}
	if routes[1]["src"] != `^/trpc(/.*)?$` {
		t.Errorf("second route = %v", routes[1])
	}
	if routes[2]["handle"] != "filesystem" || routes[3]["src"] != "/old" || routes[4]["dest"] != "/index.html" {
		t.Errorf("routes = %v", routes)
	}
}

func TestVercelOutput(t *testing.T) {
	base := project(t)
	p := plan(t, base, nil)
	writeFile(t, filepath.Join(p.ServerDir, "main.js"), "console.log('hi')\n")
	writeFile(t, filepath.Join(p.OutDir, "public", "index.html"), "<html></html>")
	if _, err := NewAssembler(zerolog.Nop()).Assemble(p, deps(base, "foo")); err != nil {
		t.Fatal(err)
	}

	err := VercelOutput(p, config.Vercel{MaxDuration: 10, Regions: []string{"fra1"}}, []string{"/api"})
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(base, ".vercel", "output")
	for _, p := range []string{
		"config.json",
		"static/index.html",
		"functions/api.func/main.js",
		"functions/api.func/package.json",
		"functions/api.func/node_modules/foo/index.js",
	} {
		if !exists(filepath.Join(out, filepath.FromSlash(p))) {
			t.Errorf(".vercel/output/%s is missing", p)
		}
	}

	data, err := os.ReadFile(filepath.Join(out, "functions", "api.func", ".vc-config.json"))
	if err != nil {
		t.Fatal(err)
	}
	var fn functionConfig
	if err := json.Unmarshal(data, &fn); err != nil {
		t.Fatal(err)
	}
	if fn.Runtime != "nodejs22.x" || fn.Handler != "main.js" || fn.LauncherType != "Nodejs" || fn.MaxDuration != 10 {
		t.Errorf(".vc-config.json = %s", data)
	}
	if len(fn.Regions) != 1 || fn.Regions[0] != "fra1" {
		t.Errorf("regions = %v", fn.Regions)
	}
}
