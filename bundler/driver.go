package bundler

import (
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"sort"
)

// ErrUnknownBundler is returned by New for a name no driver was registered under.
var ErrUnknownBundler = errors.New("unknown bundler")

// Hooks are called by a watching driver around every rebuild. OnEnd runs synchronously: the driver does not start the
// next rebuild before it returns.
type Hooks struct {
	OnStart func()
	OnEnd   func(Result)
}

func (h Hooks) start() {
	if h.OnStart != nil {
		h.OnStart()
	}
}

func (h Hooks) end(r Result) {
	if h.OnEnd != nil {
		h.OnEnd(r)
	}
}

// Driver builds the server bundle described by a Plan.
type Driver interface {
	// Name is the name the driver is registered under.
	Name() string
	// Build runs a single bundle pass. If the bundler reported errors, the returned error is a *BuildError and the
	// Result still carries everything that was collected.
	Build(ctx context.Context, plan Plan) (Result, error)
	// Watch builds the bundle and rebuilds it whenever an input changes, calling hooks around every pass. It returns
	// when ctx is done or the bundler cannot be started.
	Watch(ctx context.Context, plan Plan, hooks Hooks) error
}

// Factory creates a driver that logs to log.
type Factory = func(log zerolog.Logger) Driver

var drivers = map[string]Factory{}

// Register makes a driver available under name. Registering a name twice replaces the earlier factory.
func Register(name string, f Factory) {
	drivers[name] = f
}

// New creates the driver registered under name.
func New(name string, log zerolog.Logger) (Driver, error) {
	f, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, expected one of %v", ErrUnknownBundler, name, Names())
	}
	return f(log), nil
}

// Names returns the registered driver names, sorted.
func Names() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("esbuild", NewEsbuild)
	Register("rollup", NewRollup)
}
