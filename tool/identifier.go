package tool

import (
	"github.com/m3stack/m3-stack/resolve"
)

// Identifier contains general info about a located tool.
type Identifier struct {
	// Name is the executable name of the tool.
	Name string
	// Path is the location of the executable, or of the runner used to start it.
	Path string
	// Version is the installed version of the tool's package. It is empty when it could not be determined, which is
	// the case for tools that are not installed in node_modules.
	Version string
}

// ParseIdentifier builds the Identifier of a tool located at path. The version is read from the package.json of spec's
// package, looked up from base.
func ParseIdentifier(base, path string, spec Spec) Identifier {
	id := Identifier{
		Name: spec.Bin,
		Path: path,
	}
	if spec.Package == "" {
		return id
	}
	root, ok := resolve.ModuleRoot(spec.Package, base)
	if !ok {
		return id
	}
	if pkg, err := resolve.ReadPackageJSON(root); err == nil {
		id.Version = pkg.Version
	}
	return id
}
