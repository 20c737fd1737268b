package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FakePass is one scripted bundle pass of a FakeDriver.
type FakePass struct {
	Result Result
	// Files are written relative to the plan's server directory when the pass has no errors.
	Files map[string]string
}

// FakeDriver replays scripted passes instead of bundling. It is used in tests.
type FakeDriver struct {
	Passes []FakePass
	// Trigger starts the next pass while watching. When nil, Watch runs every scripted pass back to back.
	Trigger chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *FakeDriver) Name() string {
	return "fake"
}

// Calls returns how many passes have run.
func (f *FakeDriver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeDriver) Build(ctx context.Context, plan Plan) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Bundler: f.Name()}, err
	}
	res, err := f.next(plan)
	if err != nil {
		return res, err
	}
	return res, res.Err()
}

func (f *FakeDriver) Watch(ctx context.Context, plan Plan, hooks Hooks) error {
	pass := func() error {
		hooks.start()
		res, err := f.next(plan)
		if err != nil {
			return err
		}
		hooks.end(res)
		return nil
	}
	if f.Trigger == nil {
		for range f.Passes {
			if err := pass(); err != nil {
				return err
			}
		}
		<-ctx.Done()
		return nil
	}
	if err := pass(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.Trigger:
			if err := pass(); err != nil {
				return err
			}
		}
	}
}

func (f *FakeDriver) next(plan Plan) (Result, error) {
	f.mu.Lock()
	if len(f.Passes) == 0 {
		f.mu.Unlock()
		return Result{Bundler: f.Name()}, fmt.Errorf("fake driver has no passes")
	}
	i := f.calls
	if i >= len(f.Passes) {
		i = len(f.Passes) - 1
	}
	f.calls++
	p := f.Passes[i]
	f.mu.Unlock()

	res := p.Result
	res.Bundler = f.Name()
	if len(res.Errors) > 0 {
		return res, nil
	}
	for name, content := range p.Files {
		dst := filepath.Join(plan.ServerDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
			return res, err
		}
		if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
			return res, err
		}
	}
	return res, nil
}
