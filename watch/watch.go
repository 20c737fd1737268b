// Package watch rebuilds the server whenever its sources change and keeps exactly one server process running the
// latest successful build.
package watch

import (
	"context"
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/output"
	"github.com/rs/zerolog"
	"sync"
	"time"
)

// State is where the orchestrator is in its rebuild cycle.
type State int

const (
	Idle State = iota
	Building
	Running
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Running:
		return "running"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// DefaultGrace is how long a child may take to exit before it is killed.
const DefaultGrace = 5 * time.Second

// Assembler writes the output directory after a successful build.
type Assembler interface {
	Assemble(plan bundler.Plan, deps bundler.Dependencies) (*output.Manifest, error)
}

// Orchestrator drives a bundler in watch mode. After every successful build it assembles the output and restarts the
// child. A failed build leaves the running child alone.
type Orchestrator struct {
	Driver    bundler.Driver
	Plan      bundler.Plan
	Assembler Assembler
	// Starter starts the child. When nil, only the output is kept up to date.
	Starter Starter
	Grace   time.Duration
	// OnAssembled is called after the output of a successful build was written.
	OnAssembled func(bundler.Result, *output.Manifest)
	// OnCycle is called at the end of every rebuild cycle with the resulting state.
	OnCycle func(State)

	log zerolog.Logger

	cycle sync.Mutex
	mu    sync.Mutex
	state State
	child Process
	err   error
}

// New creates an orchestrator. Set Starter on the result to run a child.
func New(log zerolog.Logger, driver bundler.Driver, plan bundler.Plan, assembler Assembler) *Orchestrator {
	return &Orchestrator{
		Driver:    driver,
		Plan:      plan,
		Assembler: assembler,
		Grace:     DefaultGrace,
		log:       log,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the error of the last failed cycle, or nil after a successful one.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Run watches until ctx is done. The child is stopped before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info().Msgf("Watching %s", o.Plan.Entry)
	err := o.Driver.Watch(ctx, o.Plan, bundler.Hooks{
		OnStart: o.onStart,
		OnEnd: func(res bundler.Result) {
			o.onEnd(ctx, res)
		},
	})
	o.cycle.Lock()
	defer o.cycle.Unlock()
	o.stopChild()
	return err
}

func (o *Orchestrator) setState(s State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	o.err = err
}

func (o *Orchestrator) onStart() {
	o.setState(Building, nil)
	o.log.Info().Msg("Building server...")
}

func (o *Orchestrator) onEnd(ctx context.Context, res bundler.Result) {
	o.cycle.Lock()
	defer o.cycle.Unlock()
	s := o.finish(ctx, res)
	if o.OnCycle != nil {
		o.OnCycle(s)
	}
}

func (o *Orchestrator) finish(ctx context.Context, res bundler.Result) State {
	if err := res.Err(); err != nil {
		o.log.Error().Msg(err.Error())
		o.log.Warn().Msg("Build failed. Waiting for changes...")
		o.setState(Failed, err)
		return Failed
	}
	manifest, err := o.Assembler.Assemble(o.Plan, res.Dependencies)
	if err != nil {
		o.log.Error().Err(err).Msg("Unable to assemble the output")
		o.setState(Failed, err)
		return Failed
	}
	if o.OnAssembled != nil {
		o.OnAssembled(res, manifest)
	}
	if o.Starter != nil {
		o.stopChild()
		if ctx.Err() != nil {
			o.setState(Idle, nil)
			return Idle
		}
		p, err := o.Starter.Start(ctx)
		if err != nil {
			o.log.Error().Err(err).Msg("Unable to start the server")
			o.setState(Failed, err)
			return Failed
		}
		o.mu.Lock()
		o.child = p
		o.mu.Unlock()
		o.log.Info().Msg("Server started")
	} else {
		o.log.Info().Msgf("Built %s", o.Plan.ServerDir)
	}
	o.setState(Running, nil)
	return Running
}

// stopChild stops the running child, if any. Callers hold o.cycle.
func (o *Orchestrator) stopChild() {
	o.mu.Lock()
	p := o.child
	o.child = nil
	o.mu.Unlock()
	if p == nil {
		return
	}
	if err := p.Stop(o.Grace); err != nil {
		o.log.Warn().Err(err).Msg("Unable to stop the server")
	}
}
