package config

import (
	"github.com/kr/pretty"
)

// Targets a server build can be made for.
const (
	TargetDev    = "dev"
	TargetProd   = "prod"
	TargetVercel = "vercel"
)

// Server holds the server build options. They are read from the [server] table of the configuration file and from the
// "m3-stack.server" field of package.json, which is why every field carries both a toml and a json tag.
type Server struct {
	// Bundler is either a bundler name ("esbuild", "rollup") or a table mapping targets to bundler names.
	Bundler any `toml:"bundler" json:"bundler,omitempty"`
	// Bundlers is the table form of Bundler, as written in TOML with [server.bundlers].
	Bundlers map[string]string `toml:"bundlers" json:"bundlers,omitempty"`
	// Module is the output module format: "esm" or "cjs".
	Module string `toml:"module" json:"module,omitempty"`
	// BasePath is the project root. Defaults to the working directory.
	BasePath string `toml:"base-path" json:"basePath,omitempty"`
	// EntryFile is the server entry file, relative to BasePath.
	EntryFile string `toml:"entry-file" json:"entryFile,omitempty"`
	// OutDir is the output directory, relative to BasePath. Defaults to "dist".
	OutDir string `toml:"out-dir" json:"outDir,omitempty"`
	// CopyDependencies are packages copied to the output node_modules even if the bundle never imports them.
	CopyDependencies []string `toml:"copy-dependencies" json:"copyDependencies,omitempty"`
	// CopyFiles maps sources (paths relative to BasePath, or package paths) to destinations inside OutDir.
	CopyFiles map[string]string `toml:"copy-files" json:"copyFiles,omitempty"`
	// ExternalDependencies are never bundled and are copied to the output node_modules instead.
	ExternalDependencies []string `toml:"external-dependencies" json:"externalDependencies,omitempty"`
	// InternalDependencies are always bundled, even when listed as peer dependencies of the project.
	InternalDependencies []string `toml:"internal-dependencies" json:"internalDependencies,omitempty"`
	// IncludePackageJSONOptions controls whether the "m3-stack.server" field of package.json is merged in. Defaults to
	// true.
	IncludePackageJSONOptions *bool `toml:"include-package-json-options" json:"includePackageJsonOptions,omitempty"`
	// Sourcemap is a sourcemap mode name or a boolean.
	Sourcemap any `toml:"sourcemap" json:"sourcemap,omitempty"`
	// BundleDependencies bundles statically imported dependencies. Defaults to true.
	BundleDependencies *bool `toml:"bundle-dependencies" json:"bundleDependencies,omitempty"`
	// Vercel builds for deployment on Vercel. Set automatically by vercel-build.
	Vercel *bool `toml:"vercel" json:"vercel,omitempty"`
	Minify *bool `toml:"minify" json:"minify,omitempty"`
}

// Merge layers over on top of base. Scalars set in over win, lists are unioned (base first) and maps are merged with
// over taking precedence.
func Merge(base, over Server) Server {
	out := base
	if over.Bundler != nil {
		out.Bundler = over.Bundler
	}
	out.Bundlers = mergeMaps(base.Bundlers, over.Bundlers)
	if over.Module != "" {
		out.Module = over.Module
	}
	if over.BasePath != "" {
		out.BasePath = over.BasePath
	}
	if over.EntryFile != "" {
		out.EntryFile = over.EntryFile
	}
	if over.OutDir != "" {
		out.OutDir = over.OutDir
	}
	out.CopyDependencies = union(base.CopyDependencies, over.CopyDependencies)
	out.CopyFiles = mergeMaps(base.CopyFiles, over.CopyFiles)
	out.ExternalDependencies = union(base.ExternalDependencies, over.ExternalDependencies)
	out.InternalDependencies = union(base.InternalDependencies, over.InternalDependencies)
	if over.IncludePackageJSONOptions != nil {
		out.IncludePackageJSONOptions = over.IncludePackageJSONOptions
	}
	if over.Sourcemap != nil {
		out.Sourcemap = over.Sourcemap
	}
	if over.BundleDependencies != nil {
		out.BundleDependencies = over.BundleDependencies
	}
	if over.Vercel != nil {
		out.Vercel = over.Vercel
	}
	if over.Minify != nil {
		out.Minify = over.Minify
	}
	return out
}

// BundlerFor returns the name of the bundler to use for the target. It defaults to "esbuild".
func (s Server) BundlerFor(target string) (string, error) {
	choice := map[string]string{}
	for k, v := range s.Bundlers {
		choice[k] = v
	}
	switch b := s.Bundler.(type) {
	case nil:
	case string:
		if b != "" {
			return b, nil
		}
	case map[string]any:
		for k, v := range b {
			name, ok := v.(string)
			if !ok {
				return "", pretty.Errorf("bundler for target %q must be a string, got %# v", k, v)
			}
			choice[k] = name
		}
	default:
		return "", pretty.Errorf("bundler must be a name or a table of targets, got %# v", s.Bundler)
	}
	if name := choice[target]; name != "" {
		return name, nil
	}
	return "esbuild", nil
}

// SourcemapMode normalizes Sourcemap to one of "linked", "inline", "external", "both" or "none". An unset value
// means "linked".
func (s Server) SourcemapMode() (string, error) {
	switch v := s.Sourcemap.(type) {
	case nil:
		return "linked", nil
	case bool:
		if v {
			return "linked", nil
		}
		return "none", nil
	case string:
		switch v {
		case "linked", "inline", "external", "both", "none":
			return v, nil
		case "", "true":
			return "linked", nil
		case "false":
			return "none", nil
		}
	}
	return "", pretty.Errorf("invalid sourcemap option %# v", s.Sourcemap)
}

// BundlesDependencies reports whether statically imported dependencies are bundled.
func (s Server) BundlesDependencies() bool {
	return s.BundleDependencies == nil || *s.BundleDependencies
}

// Minified reports whether the output should be minified.
func (s Server) Minified() bool {
	return s.Minify != nil && *s.Minify
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func mergeMaps(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
