package bundler

import (
	"github.com/m3stack/m3-stack/resolve"
	"github.com/rs/zerolog"
	"path/filepath"
	"sync"
)

// alwaysExternal lists native packages that cannot be bundled by any driver.
var alwaysExternal = []string{
	"@electric-sql/pglite",
	"better-sqlite3",
	"sharp",
}

// ImportKind is how a module was imported.
type ImportKind int

const (
	ImportStatement ImportKind = iota
	DynamicImport
	RequireCall
	OtherImport
)

type importRecord struct {
	importer string
	dynamic  bool
}

// collector decides which imports stay out of the bundle and records them as dependencies. Bundlers resolve modules
// concurrently, so it is safe for concurrent use.
type collector struct {
	plan   Plan
	always map[string]struct{}
	log    zerolog.Logger

	mu      sync.Mutex
	imports map[string]importRecord
	order   []string
}

func newCollector(plan Plan, log zerolog.Logger, extra ...string) *collector {
	c := &collector{
		plan:    plan,
		always:  map[string]struct{}{},
		log:     log,
		imports: map[string]importRecord{},
	}
	for _, name := range alwaysExternal {
		c.always[name] = struct{}{}
	}
	for _, name := range extra {
		c.always[name] = struct{}{}
	}
	return c
}

// reset forgets the imports of the previous pass.
func (c *collector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imports = map[string]importRecord{}
	c.order = nil
}

// classify reports whether specifier, imported by importer, must be left out of the bundle. Packages that stay
// external are recorded; builtins are not, since they are never installed.
func (c *collector) classify(specifier, importer string, kind ImportKind) bool {
	if resolve.IsBuiltin(specifier) {
		return true
	}
	name, ok := resolve.ModuleName(specifier)
	if !ok {
		return false
	}
	_, always := c.always[name]
	if !always && c.plan.IsInternal(name) {
		return false
	}
	if !always && c.plan.Settings.BundleDependencies && kind == ImportStatement && !c.plan.IsExternal(name) {
		return false
	}
	c.record(name, importer, kind == DynamicImport)
	return true
}

func (c *collector) record(name, importer string, dynamic bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.imports[name]; !ok {
		c.order = append(c.order, name)
	}
	c.imports[name] = importRecord{importer: importer, dynamic: dynamic}
}

// dependencies maps the recorded imports, and the packages the settings ask to copy, to their installation
// directories. Packages that are not installed are logged and left out.
func (c *collector) dependencies() Dependencies {
	c.mu.Lock()
	defer c.mu.Unlock()
	deps := Dependencies{}
	for _, name := range c.order {
		rec := c.imports[name]
		from := c.plan.BasePath
		if rec.importer != "" && filepath.IsAbs(rec.importer) {
			from = filepath.Dir(rec.importer)
		}
		root, ok := resolve.ModuleRoot(name, from)
		if !ok {
			c.log.Warn().Str("importer", rec.importer).Msgf("Unable to locate external dependency %s", name)
			continue
		}
		deps.Set(Dependency{Name: name, Root: root, DynamicImport: rec.dynamic})
	}
	for _, name := range c.plan.Settings.CopyDependencies {
		if _, ok := deps[name]; ok {
			continue
		}
		root, ok := resolve.ModuleRoot(name, c.plan.BasePath)
		if !ok {
			c.log.Warn().Msgf("Unable to locate dependency %s listed in copy-dependencies", name)
			continue
		}
		deps.Set(Dependency{Name: name, Root: root})
	}
	return deps
}
