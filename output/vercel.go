package output

import (
	"fmt"
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/config"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// VercelDir is the Build Output API directory, relative to the project root.
const VercelDir = ".vercel/output"

type vercelConfig struct {
	Version int              `json:"version"`
	Routes  []map[string]any `json:"routes"`
}

type functionConfig struct {
	Runtime                   string            `json:"runtime"`
	Handler                   string            `json:"handler"`
	LauncherType              string            `json:"launcherType"`
	ShouldAddHelpers          bool              `json:"shouldAddHelpers"`
	ShouldAddSourcemapSupport bool              `json:"shouldAddSourcemapSupport"`
	MaxDuration               int               `json:"maxDuration,omitempty"`
	Memory                    int               `json:"memory,omitempty"`
	Regions                   []string          `json:"regions,omitempty"`
	Environment               map[string]string `json:"environment,omitempty"`
}

// VercelRoutes returns the routing table: backend routes go to the server function, then existing static files are
// served, then user routes apply, and everything else falls back to the single page app.
func VercelRoutes(backendRoutes []string, userRoutes []map[string]any) []map[string]any {
	var routes []map[string]any
	for _, route := range backendRoutes {
		prefix := "/" + strings.Trim(route, "/")
		routes = append(routes, map[string]any{
			"src":  "^" + regexp.QuoteMeta(prefix) + "(/.*)?$",
			"dest": "/api",
		})
	}
	routes = append(routes, map[string]any{"handle": "filesystem"})
	routes = append(routes, userRoutes...)
	routes = append(routes, map[string]any{"src": "/(.*)", "dest": "/index.html"})
	return routes
}

// VercelOutput converts an assembled output directory into the Vercel Build Output API layout: the client build
// becomes static content and the server bundle with its dependencies becomes the "api" function.
func VercelOutput(plan bundler.Plan, opts config.Vercel, backendRoutes []string) error {
	out := filepath.Join(plan.BasePath, filepath.FromSlash(VercelDir))
	if err := removeDir(out); err != nil {
		return fmt.Errorf("error removing %s: %w", out, err)
	}
	if err := writeJSON(filepath.Join(out, "config.json"), vercelConfig{
		Version: 3,
		Routes:  VercelRoutes(backendRoutes, opts.Routes),
	}); err != nil {
		return err
	}

	if public := filepath.Join(plan.OutDir, "public"); dirExists(public) {
		if err := copyDir(public, filepath.Join(out, "static")); err != nil {
			return fmt.Errorf("error copying static files: %w", err)
		}
	}

	fn := filepath.Join(out, "functions", "api.func")
	if err := copyDir(plan.ServerDir, fn); err != nil {
		return fmt.Errorf("error copying the server bundle: %w", err)
	}
	if modules := filepath.Join(plan.OutDir, "node_modules"); dirExists(modules) {
		if err := copyDir(modules, filepath.Join(fn, "node_modules")); err != nil {
			return fmt.Errorf("error copying dependencies: %w", err)
		}
	}
	if err := copyPath(filepath.Join(plan.OutDir, "package.json"), filepath.Join(fn, "package.json")); err != nil {
		return fmt.Errorf("error copying package.json: %w", err)
	}

	runtime := opts.Runtime
	if runtime == "" {
		runtime = "nodejs22.x"
	}
	return writeJSON(filepath.Join(fn, ".vc-config.json"), functionConfig{
		Runtime:                   runtime,
		Handler:                   "main.js",
		LauncherType:              "Nodejs",
		ShouldAddHelpers:          true,
		ShouldAddSourcemapSupport: true,
		MaxDuration:               opts.MaxDuration,
		Memory:                    opts.Memory,
		Regions:                   opts.Regions,
		Environment:               opts.Environment,
	})
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
