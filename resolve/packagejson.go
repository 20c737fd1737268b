package resolve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// PackageJSON holds the fields of a package manifest used while bundling and assembling the output.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Type                 string            `json:"type,omitempty"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`

	// M3Stack and Build carry the raw "m3-stack" and "build" blocks. Their "server" fields may hold server build
	// options, which the config package merges with the configuration file.
	M3Stack json.RawMessage `json:"m3-stack,omitempty"`
	Build   json.RawMessage `json:"build,omitempty"`
}

// ReadPackageJSON reads and decodes "<dir>/package.json".
func ReadPackageJSON(dir string) (*PackageJSON, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	pkg := &PackageJSON{}
	if err := json.Unmarshal(data, pkg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(dir, "package.json"), err)
	}
	return pkg, nil
}

// DeclaredVersions returns every version range declared by the manifest. Dependencies take precedence over dev and
// peer dependencies.
func (p *PackageJSON) DeclaredVersions() map[string]string {
	out := map[string]string{}
	for _, m := range []map[string]string{p.PeerDependencies, p.DevDependencies, p.Dependencies} {
		for name, version := range m {
			out[name] = version
		}
	}
	return out
}

// RuntimeDependencies returns the names of the packages the manifest needs at runtime: regular and optional
// dependencies, sorted by name.
func (p *PackageJSON) RuntimeDependencies() []string {
	names := make([]string, 0, len(p.Dependencies)+len(p.OptionalDependencies))
	for name := range p.Dependencies {
		names = append(names, name)
	}
	for name := range p.OptionalDependencies {
		if _, ok := p.Dependencies[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
