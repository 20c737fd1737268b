// Package client runs the Vite build and dev server of the browser app, pointed at the m3-stack output layout.
package client

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/resolve"
	"os"
	"path/filepath"
	"text/template"
)

// DefaultServerPort is the port the dev server child listens on. The Vite dev server proxies backend routes to it.
const DefaultServerPort = 3999

var viteConfigExtensions = []string{"js", "mjs", "ts", "cjs", "mts", "cts"}

// Options configure the generated Vite configuration.
type Options struct {
	// Root is the project root.
	Root string
	// OutDir is the server output directory; the client is built into its "public" directory.
	OutDir string
	// BackendRoutes are proxied to the server during development.
	BackendRoutes []string
	// ServerPort is the port of the server during development.
	ServerPort int
}

// UserConfig returns the project's own vite.config file, if there is one.
func UserConfig(root string) (string, bool) {
	return resolve.FindMatchingFile(root, []string{"vite.config"}, viteConfigExtensions)
}

// Exists reports whether the project at root has a browser app: an index.html or a Vite configuration.
func Exists(root string) bool {
	if info, err := os.Stat(filepath.Join(root, "index.html")); err == nil && !info.IsDir() {
		return true
	}
	_, ok := UserConfig(root)
	return ok
}

type viteConfig struct {
	Root          string
	OutDir        string
	UserConfig    string
	BackendRoutes []string
	ServerURL     string
}

// WriteConfig renders the Vite configuration for opts and returns its path. The project's own configuration is
// imported and merged over the defaults.
func WriteConfig(opts Options) (string, error) {
	outDir := opts.OutDir
	if outDir == "" {
		outDir = "dist"
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(opts.Root, outDir)
	}
	port := opts.ServerPort
	if port == 0 {
		port = DefaultServerPort
	}
	routes := opts.BackendRoutes
	if routes == nil {
		routes = []string{}
	}
	data := viteConfig{
		Root:          opts.Root,
		OutDir:        filepath.Join(outDir, "public"),
		BackendRoutes: routes,
		ServerURL:     fmt.Sprintf("http://localhost:%d", port),
	}
	if user, ok := UserConfig(opts.Root); ok {
		data.UserConfig = filepath.ToSlash(user)
	}

	dir := filepath.Join(opts.Root, filepath.FromSlash(bundler.TempDir))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error creating %s: %w", dir, err)
	}
	p := filepath.Join(dir, "vite.config.mjs")
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("error creating vite.config.mjs: %w", err)
	}
	defer f.Close()
	if err := viteTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("error writing vite.config.mjs: %w", err)
	}
	return p, nil
}

var (
	//go:embed vite.config.templ
	viteTemplateString string
	viteTemplate       *template.Template
)

func init() {
	var err error
	viteTemplate, err = template.New("vite.config.mjs").Funcs(template.FuncMap{
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}).Parse(viteTemplateString)
	if err != nil {
		panic(err)
	}
}
