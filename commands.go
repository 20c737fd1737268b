package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/client"
	"github.com/m3stack/m3-stack/config"
	"github.com/m3stack/m3-stack/drizzle"
	"github.com/m3stack/m3-stack/output"
	"github.com/m3stack/m3-stack/pipeline"
	"github.com/m3stack/m3-stack/resolve"
	"github.com/m3stack/m3-stack/scaffold"
	"github.com/m3stack/m3-stack/tool"
	"github.com/m3stack/m3-stack/watch"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

type app struct {
	log  *zerolog.Logger
	base string
	env  config.Env
	cfg  *config.Config
}

func (a *app) settings(target string) (bundler.Settings, error) {
	s, err := pipeline.Settings(a.cfg, a.base, target)
	if err != nil {
		return s, fmt.Errorf("invalid server options: %w", err)
	}
	return s, nil
}

// run starts a tool in the foreground, wired to the terminal.
func (a *app) run(ctx context.Context, spec tool.Spec, env []string, args ...string) error {
	t, err := tool.Find(a.base, spec)
	if err != nil {
		return err
	}
	id := t.Identifier()
	a.log.Debug().Str("path", id.Path).Str("version", id.Version).Msgf("Running %s %v", id.Name, args)
	cmd := t.Command(ctx, args...)
	cmd.Dir = a.base
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if env != nil {
		cmd.Env = append(os.Environ(), env...)
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%s failed: %w", id.Name, err)
	}
	return nil
}

func (a *app) viteConfig() (string, error) {
	s, err := a.settings(config.TargetProd)
	if err != nil {
		return "", err
	}
	plan, _, err := bundler.NewPlan(s)
	if err != nil {
		return "", err
	}
	return client.WriteConfig(client.Options{
		Root:          a.base,
		OutDir:        plan.OutDir,
		BackendRoutes: a.cfg.BackendRoutes,
		ServerPort:    a.serverPort(),
	})
}

func (a *app) serverPort() int {
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		return port
	}
	return client.DefaultServerPort
}

func (a *app) buildClient(ctx context.Context) error {
	if !client.Exists(a.base) {
		a.log.Debug().Msgf("No index.html or vite.config found, skipping the client build.")
		return nil
	}
	cfg, err := a.viteConfig()
	if err != nil {
		return err
	}
	a.log.Info().Msgf("Building client...")
	return a.run(ctx, tool.Spec{Bin: "vite", Package: "vite"}, nil, "build", "--config", cfg)
}

func (a *app) buildServer(ctx context.Context, target string) (bundler.Settings, *config.LockFile, error) {
	s, err := a.settings(target)
	if err != nil {
		return s, nil, err
	}
	lock, err := pipeline.NewBuilder(*a.log).Build(ctx, s)
	return s, lock, err
}

func (a *app) writeVercelOutput(s bundler.Settings) error {
	plan, ok, err := bundler.NewPlan(s)
	if err != nil || !ok {
		return err
	}
	if err := output.VercelOutput(plan, a.cfg.Vercel, a.cfg.BackendRoutes); err != nil {
		return err
	}
	a.log.Info().Msgf("Vercel output written to %s", output.VercelDir)
	return nil
}

func (a *app) build(ctx context.Context, args []string) error {
	start := time.Now()
	if err := a.buildClient(ctx); err != nil {
		return err
	}
	target := a.env.BuildTarget()
	s, lock, err := a.buildServer(ctx, target)
	if err != nil {
		return err
	}
	if lock != nil && target == config.TargetVercel {
		if err := a.writeVercelOutput(s); err != nil {
			return err
		}
	}
	a.log.Info().Msgf("Done! Finished building in %.3f seconds.", time.Since(start).Seconds())
	return nil
}

func (a *app) vercelBuild(ctx context.Context, args []string) error {
	a.env.Vercel = true
	return a.build(ctx, args)
}

func (a *app) buildWatch(ctx context.Context, args []string) error {
	s, err := a.settings(config.TargetDev)
	if err != nil {
		return err
	}
	return pipeline.NewBuilder(*a.log).Watch(ctx, s, nil)
}

// serverEnv is the environment of the server child in development.
func (a *app) serverEnv() []string {
	env := os.Environ()
	if a.env.NodeEnv == "" {
		env = append(env, "NODE_ENV=development")
	}
	if os.Getenv("PORT") == "" {
		env = append(env, "PORT="+strconv.Itoa(client.DefaultServerPort))
	}
	return env
}

func (a *app) dev(ctx context.Context, args []string) error {
	s, err := a.settings(config.TargetDev)
	if err != nil {
		return err
	}
	node, err := tool.Find(a.base, tool.Spec{Bin: "node"})
	if err != nil {
		return err
	}
	plan, ok, err := bundler.NewPlan(s)
	if err != nil {
		return err
	}
	starter := watch.NodeStarter(node.Identifier().Path, plan.OutDir, filepath.Join(plan.ServerDir, "main.js"), os.Stdout, os.Stderr)
	starter.Env = a.serverEnv()

	g, ctx := errgroup.WithContext(ctx)
	if ok {
		g.Go(func() error {
			return pipeline.NewBuilder(*a.log).Watch(ctx, s, starter)
		})
	} else {
		a.log.Info().Msg("No server entry file found, running the client only.")
	}
	if client.Exists(a.base) {
		cfg, err := a.viteConfig()
		if err != nil {
			return err
		}
		g.Go(func() error {
			a.log.Info().Msgf("Starting Vite dev server, proxying %v to port %d", a.cfg.BackendRoutes, a.serverPort())
			return a.run(ctx, tool.Spec{Bin: "vite", Package: "vite"}, nil, "--config", cfg)
		})
	}
	return g.Wait()
}

func (a *app) start(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	rebuild := fs.Bool("rebuild", false, "Always rebuild the server before starting it.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.settings(config.TargetProd)
	if err != nil {
		return err
	}
	lockPath := pipeline.LockFile(s.BasePath)
	a.log.Debug().Msgf("Reading %s...", lockPath)
	lock, ok := config.GetLock(a.log, lockPath)
	if !ok || *rebuild || !pipeline.Fresh(lock, s) {
		a.log.Info().Msgf("Server build is missing or outdated, rebuilding...")
		built, err := pipeline.NewBuilder(*a.log).Build(ctx, s)
		if err != nil {
			return err
		}
		if built == nil {
			return errors.New("there is no server to start")
		}
		lock = built
	}

	out := pipeline.OutputDir(lock, s.BasePath)
	env := []string{}
	if a.env.NodeEnv == "" {
		env = append(env, "NODE_ENV=production")
	}
	a.log.Info().Str("build", lock.BuildID).Msgf("Starting server...")
	return a.runIn(ctx, out, env, "--enable-source-maps", filepath.Join("server", "main.js"))
}

// runIn runs node in dir.
func (a *app) runIn(ctx context.Context, dir string, env []string, args ...string) error {
	node, err := tool.Find(a.base, tool.Spec{Bin: "node"})
	if err != nil {
		return err
	}
	cmd := node.Command(ctx, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), env...)
	err = cmd.Run()
	var exitErr *exec.ExitError
	if ctx.Err() != nil && (err == nil || errors.As(err, &exitErr)) {
		return nil
	}
	return err
}

func (a *app) authGenerateSchema(ctx context.Context, args []string) error {
	path, ok := resolve.AuthConfig(a.base, a.cfg.Auth.Config)
	if !ok {
		return fmt.Errorf("no auth config found, looked in %s/... Set auth.config in the m3-stack config", resolve.DefaultAuthConfigPaths[0])
	}
	a.log.Info().Msgf("Using auth config at %s", path)
	a.log.Info().Msg("Generating auth schema...")
	err := a.run(ctx, tool.Spec{Bin: "better-auth", Package: "@better-auth/cli"}, nil,
		append([]string{"generate", "--config", path, "--output", "./auth-schema.ts", "--yes"}, args...)...)
	if err != nil {
		return err
	}
	a.log.Info().Msg("Auth schema generated! See ./auth-schema.ts")
	return nil
}

func (a *app) drizzleKit(ctx context.Context, args []string) error {
	cfg := drizzle.New(a.base, a.cfg.Drizzle, a.env)
	a.log.Info().Msgf("Using dialect: %s", cfg.Dialect)
	path, err := drizzle.Write(a.base, cfg)
	if err != nil {
		return err
	}
	return a.run(ctx, tool.Spec{Bin: "drizzle-kit", Package: "drizzle-kit"}, nil, append([]string{"--config", path}, args...)...)
}

func (a *app) create(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: m3-stack create <directory>")
	}
	dir := args[0]
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(a.base, dir)
	}
	written, err := scaffold.Create(scaffold.Project{Dir: dir})
	if err != nil {
		return err
	}
	for _, name := range written {
		a.log.Debug().Msgf("Wrote %s", name)
	}
	a.log.Info().Msgf("Created a new m3-stack app in %s", dir)
	return nil
}
