// Package pipeline runs a complete server build: planning, bundling, assembling the output and recording the build in
// the lock file.
package pipeline

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/config"
	"github.com/m3stack/m3-stack/output"
	"github.com/m3stack/m3-stack/watch"
	"github.com/rs/zerolog"
	"path/filepath"
)

// Settings turns the server options of cfg into bundler settings for target. base is used when the options do not
// name a base path; a relative base path is resolved against it.
func Settings(cfg *config.Config, base, target string) (bundler.Settings, error) {
	s := cfg.Server
	name, err := s.BundlerFor(target)
	if err != nil {
		return bundler.Settings{}, err
	}
	sourcemap, err := s.SourcemapMode()
	if err != nil {
		return bundler.Settings{}, err
	}
	root := base
	if s.BasePath != "" {
		root = s.BasePath
		if !filepath.IsAbs(root) {
			root = filepath.Join(base, root)
		}
	}
	return bundler.Settings{
		BasePath:           root,
		EntryFile:          s.EntryFile,
		OutDir:             s.OutDir,
		Bundler:            name,
		Target:             target,
		Module:             s.Module,
		Sourcemap:          sourcemap,
		Minify:             s.Minified(),
		BundleDependencies: s.BundlesDependencies(),
		External:           s.ExternalDependencies,
		Internal:           s.InternalDependencies,
		CopyDependencies:   s.CopyDependencies,
		CopyFiles:          s.CopyFiles,
		Vercel:             target == config.TargetVercel || (s.Vercel != nil && *s.Vercel),
	}, nil
}

// Builder runs server builds.
type Builder struct {
	// Driver replaces the driver named by the settings. It is used by tests.
	Driver    bundler.Driver
	Assembler watch.Assembler

	log zerolog.Logger
}

// NewBuilder creates a Builder that assembles the output with an output.Assembler.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{
		Assembler: output.NewAssembler(log),
		log:       log,
	}
}

// Plan plans a build. The second return value is false when there is no entry file, which is logged.
func (b *Builder) Plan(s bundler.Settings) (bundler.Plan, bool, error) {
	plan, ok, err := bundler.NewPlan(s)
	if err != nil {
		return plan, false, err
	}
	if !ok {
		b.log.Info().Msg("No server entry file found, nothing to build.")
		return plan, false, nil
	}
	b.log.Debug().Str("bundler", plan.Bundler).Str("target", s.Target).Strs("external", plan.Externals()).
		Msgf("Planned server build of %s", plan.Entry)
	return plan, true, nil
}

func (b *Builder) driver(name string) (bundler.Driver, error) {
	if b.Driver != nil {
		return b.Driver, nil
	}
	return bundler.New(name, b.log)
}

// Build bundles the server, assembles the output and writes the lock file, in that order. It returns a nil lock file
// when there is nothing to build.
func (b *Builder) Build(ctx context.Context, s bundler.Settings) (*config.LockFile, error) {
	plan, ok, err := b.Plan(s)
	if err != nil || !ok {
		return nil, err
	}
	driver, err := b.driver(plan.Bundler)
	if err != nil {
		return nil, err
	}
	if err := output.CleanServer(plan); err != nil {
		return nil, err
	}
	b.log.Info().Msgf("Building server with %s...", driver.Name())
	res, err := driver.Build(ctx, plan)
	if err != nil {
		return nil, err
	}
	manifest, err := b.Assembler.Assemble(plan, res.Dependencies)
	if err != nil {
		return nil, err
	}
	lock, err := b.record(plan, res, manifest)
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("build", lock.BuildID).Msgf("Server built to %s", plan.ServerDir)
	return lock, nil
}

// Watch rebuilds the server on every change until ctx is done. When starter is not nil, it runs the server after
// every successful build.
func (b *Builder) Watch(ctx context.Context, s bundler.Settings, starter watch.Starter) error {
	plan, ok, err := b.Plan(s)
	if err != nil || !ok {
		return err
	}
	driver, err := b.driver(plan.Bundler)
	if err != nil {
		return err
	}
	if err := output.CleanServer(plan); err != nil {
		return err
	}
	o := watch.New(b.log, driver, plan, b.Assembler)
	o.Starter = starter
	o.OnAssembled = func(res bundler.Result, manifest *output.Manifest) {
		if _, err := b.record(plan, res, manifest); err != nil {
			b.log.Warn().Err(err).Msg("Unable to write the lock file")
		}
	}
	return o.Run(ctx)
}

func (b *Builder) record(plan bundler.Plan, res bundler.Result, manifest *output.Manifest) (*config.LockFile, error) {
	lock, err := NewLock(plan, res, manifest)
	if err != nil {
		return nil, err
	}
	if err := lock.Write(LockFile(plan.BasePath)); err != nil {
		return nil, err
	}
	return lock, nil
}

// LockFile returns the path of the lock file of the project at base.
func LockFile(base string) string {
	return filepath.Join(base, filepath.FromSlash(config.LockPath))
}

// OutputDir returns the output directory recorded in lock, resolved against base.
func OutputDir(lock *config.LockFile, base string) string {
	out := "dist"
	if lock != nil && lock.Output != "" {
		out = lock.Output
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(base, filepath.FromSlash(out))
}

// NewLock describes a finished build.
func NewLock(plan bundler.Plan, res bundler.Result, manifest *output.Manifest) (*config.LockFile, error) {
	inputs := relativeInputs(plan.BasePath, res.Inputs, plan.Entry)
	hash, err := HashInputs(plan.BasePath, inputs)
	if err != nil {
		return nil, fmt.Errorf("error hashing build inputs: %w", err)
	}
	lock := &config.LockFile{
		Version:      config.LockVersion,
		BuildID:      uuid.NewString(),
		Bundler:      res.Bundler,
		Target:       plan.Settings.Target,
		Entry:        rel(plan.BasePath, plan.Entry),
		Output:       rel(plan.BasePath, plan.OutDir),
		Inputs:       inputs,
		InputHash:    hash,
		Dependencies: map[string]string{},
	}
	if manifest != nil {
		for name, version := range manifest.Dependencies {
			lock.Dependencies[name] = version
		}
	}
	return lock, nil
}

func rel(base, p string) string {
	r, err := filepath.Rel(base, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}
