package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/m3stack/m3-stack/resolve"
	"github.com/rs/zerolog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// esbuildExternal are packages esbuild in particular fails to bundle.
var esbuildExternal = []string{"@libsql/client"}

// Esbuild bundles the server in-process with esbuild.
type Esbuild struct {
	log zerolog.Logger
}

// NewEsbuild creates the esbuild driver.
func NewEsbuild(log zerolog.Logger) Driver {
	return &Esbuild{log: log}
}

func (e *Esbuild) Name() string {
	return "esbuild"
}

func (e *Esbuild) Build(ctx context.Context, plan Plan) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Bundler: e.Name()}, err
	}
	c := newCollector(plan, e.log, esbuildExternal...)
	res := api.Build(e.options(plan, c, Hooks{}))
	out := e.result(plan, c, &res)
	return out, out.Err()
}

func (e *Esbuild) Watch(ctx context.Context, plan Plan, hooks Hooks) error {
	c := newCollector(plan, e.log, esbuildExternal...)
	bctx, cerr := api.Context(e.options(plan, c, hooks))
	if cerr != nil {
		return &BuildError{Bundler: e.Name(), Messages: messages(cerr.Errors)}
	}
	defer bctx.Dispose()
	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("esbuild watch: %w", err)
	}
	e.log.Debug().Msgf("Watching %s", plan.Entry)
	<-ctx.Done()
	return nil
}

func (e *Esbuild) options(plan Plan, c *collector, hooks Hooks) api.BuildOptions {
	format := api.FormatESModule
	if plan.Settings.Module == "cjs" {
		format = api.FormatCommonJS
	}
	opts := api.BuildOptions{
		EntryPoints:       []string{plan.Entry},
		AbsWorkingDir:     plan.BasePath,
		Bundle:            true,
		Outdir:            plan.ServerDir,
		EntryNames:        "main",
		AssetNames:        "assets/[name]",
		Sourcemap:         sourceMap(plan.Settings.Sourcemap),
		Splitting:         format == api.FormatESModule,
		Format:            format,
		Target:            api.ESNext,
		Platform:          api.PlatformNode,
		KeepNames:         true,
		TreeShaking:       api.TreeShakingTrue,
		MinifyWhitespace:  plan.Settings.Minify,
		MinifyIdentifiers: plan.Settings.Minify,
		MinifySyntax:      plan.Settings.Minify,
		Metafile:          true,
		Write:             true,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{e.plugin(plan, c, hooks)},
	}
	if tsconfig := filepath.Join(plan.BasePath, "tsconfig.json"); fileExists(tsconfig) {
		opts.Tsconfig = tsconfig
	}
	return opts
}

// plugin wires the collector into esbuild's resolution and reports every pass to hooks.
func (e *Esbuild) plugin(plan Plan, c *collector, hooks Hooks) api.Plugin {
	return api.Plugin{
		Name: "m3-stack-externals",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				c.reset()
				hooks.start()
				return api.OnStartResult{}, nil
			})
			build.OnResolve(api.OnResolveOptions{Filter: resolve.BareSpecifierFilter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.Kind == api.ResolveEntryPoint {
						return api.OnResolveResult{}, nil
					}
					if c.classify(args.Path, args.Importer, importKind(args.Kind)) {
						return api.OnResolveResult{Path: args.Path, External: true}, nil
					}
					return api.OnResolveResult{}, nil
				})
			if hooks.OnEnd != nil {
				build.OnEnd(func(res *api.BuildResult) (api.OnEndResult, error) {
					hooks.end(e.result(plan, c, res))
					return api.OnEndResult{}, nil
				})
			}
		},
	}
}

func (e *Esbuild) result(plan Plan, c *collector, res *api.BuildResult) Result {
	out := Result{
		Bundler:  e.Name(),
		Errors:   messages(res.Errors),
		Warnings: messages(res.Warnings),
	}
	for _, w := range out.Warnings {
		e.log.Warn().Msg(w.String())
	}
	if len(out.Errors) > 0 {
		return out
	}
	out.Dependencies = c.dependencies()
	inputs, err := metafileInputs(plan.BasePath, res.Metafile)
	if err != nil {
		e.log.Warn().Err(err).Msg("Unable to read the esbuild metafile")
	}
	out.Inputs = inputs
	return out
}

func importKind(kind api.ResolveKind) ImportKind {
	switch kind {
	case api.ResolveJSImportStatement:
		return ImportStatement
	case api.ResolveJSDynamicImport:
		return DynamicImport
	case api.ResolveJSRequireCall, api.ResolveJSRequireResolve:
		return RequireCall
	}
	return OtherImport
}

func sourceMap(mode string) api.SourceMap {
	switch mode {
	case "inline":
		return api.SourceMapInline
	case "external":
		return api.SourceMapExternal
	case "both":
		return api.SourceMapInlineAndExternal
	case "none":
		return api.SourceMapNone
	}
	return api.SourceMapLinked
}

func messages(msgs []api.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		msg := Message{Text: m.Text}
		if m.Location != nil {
			msg.File = m.Location.File
			msg.Line = m.Location.Line
			msg.Column = m.Location.Column
		}
		out = append(out, msg)
	}
	return out
}

type metafile struct {
	Inputs map[string]struct {
		Bytes int `json:"bytes"`
	} `json:"inputs"`
}

// metafileInputs returns the absolute paths of the files listed in an esbuild metafile. Paths in the metafile are
// relative to the working directory; virtual modules are skipped.
func metafileInputs(base, data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var meta metafile
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, err
	}
	inputs := make([]string, 0, len(meta.Inputs))
	for p := range meta.Inputs {
		if strings.Contains(p, ":") && !filepath.IsAbs(p) {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, filepath.FromSlash(p))
		}
		inputs = append(inputs, p)
	}
	sort.Strings(inputs)
	return inputs, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
