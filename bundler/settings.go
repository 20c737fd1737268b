package bundler

import (
	"fmt"
	"github.com/m3stack/m3-stack/resolve"
	"os"
	"path/filepath"
	"sort"
)

// Settings defines what should be bundled into the server program and how it should be bundled. Settings are not
// changed once a build has started.
type Settings struct {
	// BasePath is the root of the project. Relative paths in the other fields are resolved against it.
	BasePath string
	// EntryFile is the server entry file. When empty, the default entry locations are searched.
	EntryFile string
	// OutDir is the output directory. Defaults to "dist".
	OutDir string
	// Bundler is the name of the driver that builds the bundle, like "esbuild" or "rollup".
	Bundler string
	// Target is the build target the settings were made for: "dev", "prod" or "vercel".
	Target string
	// Module is the output format, "esm" or "cjs". Defaults to "esm".
	Module string
	// Sourcemap is one of "linked", "inline", "external", "both" or "none".
	Sourcemap string
	Minify    bool
	// BundleDependencies bundles statically imported packages instead of copying them to the output.
	BundleDependencies bool
	// External lists packages that are never bundled.
	External []string
	// Internal lists packages that are always bundled, even when they are peer dependencies of the project.
	Internal []string
	// CopyDependencies are packages copied to the output even if the bundle never imports them.
	CopyDependencies []string
	// CopyFiles maps sources to destinations relative to OutDir.
	CopyFiles map[string]string
	// Vercel marks a build meant for deployment on Vercel.
	Vercel bool
}

// Plan is everything derived from Settings before the bundler runs. It is computed once per invocation and only read
// afterwards, so it can be shared by the driver, the assembler and the watch loop.
type Plan struct {
	Settings Settings
	// BasePath is the absolute project root.
	BasePath string
	// Entry is the absolute path of the entry file.
	Entry string
	// OutDir is the absolute output directory and ServerDir the directory the bundle is written to inside it.
	OutDir    string
	ServerDir string
	Bundler   string
	// Project is the project's package.json. It is empty when the project has none.
	Project *resolve.PackageJSON

	external map[string]struct{}
	internal map[string]struct{}
}

// NewPlan resolves the entry file and the external dependency set for s. The second return value is false when no
// entry file could be found, in which case there is nothing to build.
func NewPlan(s Settings) (Plan, bool, error) {
	base := s.BasePath
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return Plan{}, false, fmt.Errorf("resolve base path: %w", err)
	}
	s.BasePath = base
	if s.OutDir == "" {
		s.OutDir = "dist"
	}
	if s.Module == "" {
		s.Module = "esm"
	}
	if s.Module != "esm" && s.Module != "cjs" {
		return Plan{}, false, fmt.Errorf("unknown module format %q, expected esm or cjs", s.Module)
	}
	if s.Sourcemap == "" {
		s.Sourcemap = "linked"
	}
	if s.Bundler == "" {
		s.Bundler = "esbuild"
	}

	project, err := resolve.ReadPackageJSON(base)
	if err != nil {
		if !os.IsNotExist(err) {
			return Plan{}, false, err
		}
		project = &resolve.PackageJSON{}
	}

	plan := Plan{
		BasePath: base,
		OutDir:   s.OutDir,
		Bundler:  s.Bundler,
		Project:  project,
		external: map[string]struct{}{},
		internal: map[string]struct{}{},
	}
	if !filepath.IsAbs(plan.OutDir) {
		plan.OutDir = filepath.Join(base, plan.OutDir)
	}
	plan.ServerDir = filepath.Join(plan.OutDir, "server")

	for _, name := range s.Internal {
		plan.internal[name] = struct{}{}
	}
	for _, name := range s.External {
		plan.external[name] = struct{}{}
	}
	for name := range project.PeerDependencies {
		plan.external[name] = struct{}{}
	}
	for name := range plan.internal {
		delete(plan.external, name)
	}
	plan.Settings = s

	entry, ok := resolve.EntryFile(base, s.EntryFile)
	if !ok {
		return plan, false, nil
	}
	plan.Entry = entry
	return plan, true, nil
}

// IsExternal reports whether name was configured to stay out of the bundle.
func (p Plan) IsExternal(name string) bool {
	_, ok := p.external[name]
	return ok
}

// IsInternal reports whether name must always be bundled.
func (p Plan) IsInternal(name string) bool {
	_, ok := p.internal[name]
	return ok
}

// Externals returns the configured external package names, sorted.
func (p Plan) Externals() []string {
	names := make([]string, 0, len(p.external))
	for name := range p.external {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Internals returns the package names that are always bundled, sorted.
func (p Plan) Internals() []string {
	names := make([]string, 0, len(p.internal))
	for name := range p.internal {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PackageType is the "type" field written to the output package.json.
func (p Plan) PackageType() string {
	if p.Settings.Module == "cjs" {
		return "commonjs"
	}
	return "module"
}
