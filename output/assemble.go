package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/dominikbraun/graph"
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/resolve"
	"github.com/rs/zerolog"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidCopyDestination is returned for a copy-files destination that would escape the output directory.
var ErrInvalidCopyDestination = errors.New("invalid copy destination")

// keep lists the top-level output entries that survive pruning.
var keep = map[string]struct{}{
	"public":       {},
	"server":       {},
	"node_modules": {},
	"package.json": {},
}

// Manifest is the package.json written to the output directory.
type Manifest struct {
	Type         string            `json:"type"`
	Main         string            `json:"main"`
	Scripts      map[string]string `json:"scripts"`
	Dependencies map[string]string `json:"dependencies"`
}

// Assembler turns a finished bundle into a deployable output directory.
type Assembler struct {
	log zerolog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(log zerolog.Logger) *Assembler {
	return &Assembler{log: log}
}

// Assemble copies deps and everything they depend on into the output node_modules, writes the output package.json,
// prunes stale top-level entries and copies the configured extra files. Copy destinations are validated before
// anything on disk is touched. Running it twice with the same inputs produces the same tree.
func (a *Assembler) Assemble(plan bundler.Plan, deps bundler.Dependencies) (*Manifest, error) {
	if err := ValidateCopyFiles(plan.Settings.CopyFiles); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(plan.OutDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating %s: %w", plan.OutDir, err)
	}
	modules := filepath.Join(plan.OutDir, "node_modules")
	if err := removeDir(modules); err != nil {
		return nil, fmt.Errorf("error removing %s: %w", modules, err)
	}

	if err := a.copyDependencies(modules, deps); err != nil {
		return nil, err
	}
	manifest := NewManifest(plan, deps)
	if err := writeJSON(filepath.Join(plan.OutDir, "package.json"), manifest); err != nil {
		return nil, err
	}
	if err := prune(plan.OutDir); err != nil {
		return nil, err
	}
	if err := a.copyFiles(plan); err != nil {
		return nil, err
	}
	a.log.Debug().Int("dependencies", len(deps)).Msgf("Assembled %s", plan.OutDir)
	return manifest, nil
}

// CleanServer removes the server bundle directory of plan so no chunk of an earlier build survives. A missing
// directory is not an error.
func CleanServer(plan bundler.Plan) error {
	if err := removeDir(plan.ServerDir); err != nil {
		return fmt.Errorf("error removing %s: %w", plan.ServerDir, err)
	}
	return nil
}

// ValidateCopyFiles rejects destinations that contain ".." or are absolute.
func ValidateCopyFiles(files map[string]string) error {
	for from, to := range files {
		if strings.Contains(to, "..") || strings.HasPrefix(to, "/") || strings.HasPrefix(to, `\`) || filepath.IsAbs(to) {
			return fmt.Errorf("%w: %q (copying %q)", ErrInvalidCopyDestination, to, from)
		}
	}
	return nil
}

// NewManifest builds the output package.json for the direct dependencies of the bundle. Each dependency gets its
// installed version, or the range the project declares when the installed package has none.
func NewManifest(plan bundler.Plan, deps bundler.Dependencies) *Manifest {
	declared := map[string]string{}
	if plan.Project != nil {
		declared = plan.Project.DeclaredVersions()
	}
	m := &Manifest{
		Type: plan.PackageType(),
		Main: "server/main.js",
		Scripts: map[string]string{
			"start": "node --enable-source-maps server/main.js",
		},
		Dependencies: map[string]string{},
	}
	for _, name := range deps.Names() {
		version := ""
		if pkg, err := resolve.ReadPackageJSON(deps[name].Root); err == nil {
			version = pkg.Version
		}
		if version == "" {
			version = declared[name]
		}
		if version == "" {
			version = "*"
		}
		m.Dependencies[name] = version
	}
	return m
}

// dependencyGraph links every package to the packages it needs at runtime, starting from a root vertex connected to
// the direct dependencies. Packages are memoised by name: the first installation found for a name is used. Packages
// installed inside another package's own node_modules are copied along with it and get no vertex of their own.
func (a *Assembler) dependencyGraph(deps bundler.Dependencies) (graph.Graph[string, string], map[string]string, error) {
	const root = ""
	g := graph.New(graph.StringHash, graph.Directed())
	if err := g.AddVertex(root); err != nil {
		return nil, nil, err
	}
	roots := map[string]string{}
	var queue []string
	add := func(from, name, dir string) error {
		if _, ok := roots[name]; !ok {
			if real, err := filepath.EvalSymlinks(dir); err == nil {
				dir = real
			}
			roots[name] = dir
			queue = append(queue, name)
			if err := g.AddVertex(name); err != nil {
				return err
			}
		}
		if err := g.AddEdge(from, name); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return err
		}
		return nil
	}
	for _, name := range deps.Names() {
		if err := add(root, name, deps[name].Root); err != nil {
			return nil, nil, err
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		dir := roots[name]
		pkg, err := resolve.ReadPackageJSON(dir)
		if err != nil {
			a.log.Debug().Err(err).Msgf("Unable to read the manifest of %s", name)
			continue
		}
		for _, child := range pkg.RuntimeDependencies() {
			childDir, ok := resolve.ModuleRoot(child, dir)
			if !ok {
				if _, optional := pkg.OptionalDependencies[child]; !optional {
					a.log.Warn().Msgf("Unable to locate %s, a dependency of %s", child, name)
				}
				continue
			}
			if strings.HasPrefix(childDir, dir+string(filepath.Separator)) {
				continue
			}
			if err := add(name, child, childDir); err != nil {
				return nil, nil, err
			}
		}
	}
	return g, roots, nil
}

// copyDependencies copies the dependency closure of deps into modules in breadth-first order. A package that fails to
// copy is logged and skipped.
func (a *Assembler) copyDependencies(modules string, deps bundler.Dependencies) error {
	if len(deps) == 0 {
		return nil
	}
	g, roots, err := a.dependencyGraph(deps)
	if err != nil {
		return fmt.Errorf("error walking dependencies: %w", err)
	}
	return graph.BFS(g, "", func(name string) bool {
		if name == "" {
			return false
		}
		dst := filepath.Join(modules, filepath.FromSlash(name))
		if err := copyDir(roots[name], dst); err != nil {
			a.log.Error().Err(err).Msgf("Unable to copy dependency %s", name)
			return false
		}
		a.log.Debug().Str("from", roots[name]).Msgf("Copied %s", name)
		return false
	})
}

// prune removes every top-level entry of dir other than the bundle, the public assets, the copied dependencies and the
// package.json.
func prune(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		if _, ok := keep[entry.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("error removing %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// copyFiles copies the configured extra files into the output directory. Sources are resolved against the project
// root first and then as package paths, so "@scope/pkg/assets" copies from the installed package.
func (a *Assembler) copyFiles(plan bundler.Plan) error {
	for from, to := range plan.Settings.CopyFiles {
		src, ok := sourcePath(plan.BasePath, from)
		if !ok {
			return fmt.Errorf("unable to find %q listed in copy-files", from)
		}
		dst := filepath.Join(plan.OutDir, filepath.FromSlash(to))
		if err := copyPath(src, dst); err != nil {
			return fmt.Errorf("error copying %s to %s: %w", from, to, err)
		}
		a.log.Debug().Msgf("Copied %s to %s", from, to)
	}
	return nil
}

func sourcePath(base, from string) (string, bool) {
	p := from
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, filepath.FromSlash(from))
	}
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	name, ok := resolve.ModuleName(from)
	if !ok {
		return "", false
	}
	root, ok := resolve.ModuleRoot(name, base)
	if !ok {
		return "", false
	}
	p = filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(from, name)))
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("error creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}
