package bundler

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/m3stack/m3-stack/tool"
	"github.com/rs/zerolog"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// TempDir is where generated tool configuration is written, relative to the project root.
const TempDir = "node_modules/.tmp-m3-stack"

// EventMarker prefixes the lines the generated rollup plugin prints to report progress.
const EventMarker = "M3STACK_EVENT"

// Rollup bundles the server by running the project's rollup with a generated configuration.
type Rollup struct {
	log zerolog.Logger
	// find locates the rollup executable.
	find func(base string, spec tool.Spec) (tool.Tool, error)
}

// NewRollup creates the rollup driver.
func NewRollup(log zerolog.Logger) Driver {
	return &Rollup{log: log, find: tool.Find}
}

func (r *Rollup) Name() string {
	return "rollup"
}

func (r *Rollup) Build(ctx context.Context, plan Plan) (Result, error) {
	return r.run(ctx, plan, false, Hooks{})
}

func (r *Rollup) Watch(ctx context.Context, plan Plan, hooks Hooks) error {
	_, err := r.run(ctx, plan, true, hooks)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Rollup) run(ctx context.Context, plan Plan, watch bool, hooks Hooks) (Result, error) {
	empty := Result{Bundler: r.Name()}
	rollup, err := r.find(plan.BasePath, tool.Spec{Bin: "rollup", Package: "rollup"})
	if err != nil {
		return empty, err
	}
	cfg, err := writeRollupConfig(plan)
	if err != nil {
		return empty, err
	}
	args := []string{"-c", cfg}
	if watch {
		args = append(args, "--watch")
	}
	cmd := rollup.Command(ctx, args...)
	cmd.Dir = plan.BasePath
	cmd.Stdout = os.Stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return empty, fmt.Errorf("rollup stderr: %w", err)
	}
	r.log.Debug().Str("path", rollup.Identifier().Path).Str("version", rollup.Identifier().Version).
		Msgf("Running rollup with %s", cfg)
	if err := cmd.Start(); err != nil {
		return empty, fmt.Errorf("start rollup: %w", err)
	}

	c := newCollector(plan, r.log)
	last, ended, tail := r.consume(stderr, plan, c, hooks)
	waitErr := cmd.Wait()
	if ended && len(last.Errors) > 0 {
		return last, last.Err()
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return last, ctx.Err()
		}
		msgs := []Message{{Text: waitErr.Error()}}
		for _, line := range tail {
			msgs = append(msgs, Message{Text: line})
		}
		return last, &BuildError{Bundler: r.Name(), Messages: msgs}
	}
	if !ended {
		return last, &BuildError{Bundler: r.Name(), Messages: []Message{{Text: "rollup exited without reporting a result"}}}
	}
	return last, nil
}

type rollupEvent struct {
	Type         string    `json:"type"`
	Errors       []Message `json:"errors"`
	Dependencies []struct {
		Name     string `json:"name"`
		Importer string `json:"importer"`
		Dynamic  bool   `json:"dynamic"`
	} `json:"dependencies"`
	Inputs []string `json:"inputs"`
}

// parseEvent decodes a marker line. Lines without the marker return false.
func parseEvent(line string) (rollupEvent, bool) {
	payload, ok := strings.CutPrefix(strings.TrimSpace(line), EventMarker+" ")
	if !ok {
		return rollupEvent{}, false
	}
	var ev rollupEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return rollupEvent{}, false
	}
	return ev, true
}

const tailLines = 20

// consume reads rollup's stderr until it closes, turning marker lines into hook calls. It returns the last reported
// result, whether any pass ended, and the last lines of other output for error reporting.
func (r *Rollup) consume(stderr io.Reader, plan Plan, c *collector, hooks Hooks) (Result, bool, []string) {
	last := Result{Bundler: r.Name()}
	ended := false
	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		ev, ok := parseEvent(line)
		if !ok {
			r.log.Debug().Msg(line)
			if strings.TrimSpace(line) != "" {
				tail = append(tail, line)
				if len(tail) > tailLines {
					tail = tail[1:]
				}
			}
			continue
		}
		switch ev.Type {
		case "start":
			c.reset()
			hooks.start()
		case "end":
			last = r.eventResult(plan, c, ev)
			ended = true
			hooks.end(last)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		r.log.Warn().Err(err).Msg("Unable to read rollup output")
	}
	return last, ended, tail
}

func (r *Rollup) eventResult(plan Plan, c *collector, ev rollupEvent) Result {
	out := Result{Bundler: r.Name(), Errors: ev.Errors}
	if len(out.Errors) > 0 {
		return out
	}
	for _, dep := range ev.Dependencies {
		c.record(dep.Name, dep.Importer, dep.Dynamic)
	}
	out.Dependencies = c.dependencies()
	for _, p := range ev.Inputs {
		if filepath.IsAbs(p) {
			out.Inputs = append(out.Inputs, p)
		} else {
			out.Inputs = append(out.Inputs, filepath.Join(plan.BasePath, p))
		}
	}
	return out
}

type rollupConfig struct {
	Marker             string
	Entry              string
	OutDir             string
	Format             string
	Sourcemap          any
	Minify             bool
	TypeScript         bool
	Tsconfig           any
	BundleDependencies bool
	External           []string
	Internal           []string
	AlwaysExternal     []string
}

func newRollupConfig(plan Plan) rollupConfig {
	cfg := rollupConfig{
		Marker:             EventMarker,
		Entry:              plan.Entry,
		OutDir:             plan.ServerDir,
		Format:             "es",
		Minify:             plan.Settings.Minify,
		BundleDependencies: plan.Settings.BundleDependencies,
		External:           plan.Externals(),
		Internal:           plan.Internals(),
		AlwaysExternal:     alwaysExternal,
		Tsconfig:           false,
	}
	if plan.Settings.Module == "cjs" {
		cfg.Format = "cjs"
	}
	switch plan.Settings.Sourcemap {
	case "inline":
		cfg.Sourcemap = "inline"
	case "external":
		cfg.Sourcemap = "hidden"
	case "none":
		cfg.Sourcemap = false
	default:
		cfg.Sourcemap = true
	}
	switch filepath.Ext(plan.Entry) {
	case ".ts", ".tsx", ".mts", ".cts":
		cfg.TypeScript = true
	}
	if tsconfig := filepath.Join(plan.BasePath, "tsconfig.json"); fileExists(tsconfig) {
		cfg.Tsconfig = tsconfig
	}
	return cfg
}

// writeRollupConfig renders the rollup configuration for plan and returns its path.
func writeRollupConfig(plan Plan) (string, error) {
	dir := filepath.Join(plan.BasePath, filepath.FromSlash(TempDir))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error creating %s: %w", dir, err)
	}
	p := filepath.Join(dir, "rollup.config.mjs")
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("error creating rollup.config.mjs: %w", err)
	}
	defer f.Close()
	if err := rollupTemplate.Execute(f, newRollupConfig(plan)); err != nil {
		return "", fmt.Errorf("error writing rollup.config.mjs: %w", err)
	}
	return p, nil
}

var (
	//go:embed rollup.templ
	rollupTemplateString string
	rollupTemplate       *template.Template
)

func init() {
	var err error
	rollupTemplate, err = template.New("rollup.config.mjs").Funcs(template.FuncMap{
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}).Parse(rollupTemplateString)
	if err != nil {
		panic(err)
	}
}
