package tool

import (
	"context"
	"github.com/kr/pretty"
	"os/exec"
)

// Spec names a tool.
type Spec struct {
	// Bin is the name of the executable, such as "vite" or "drizzle-kit".
	Bin string
	// Package is the npm package that provides Bin. It is used to report the version of the tool and by providers
	// that can install packages on demand. It may be empty for tools that are not npm packages, like node.
	Package string
}

// Tool represents a located program.
type Tool interface {
	// Identifier returns information about the tool that was located.
	Identifier() Identifier
	// Command returns a command that runs the tool with the given arguments. The command inherits nothing: callers
	// set its directory, environment and standard streams.
	Command(ctx context.Context, args ...string) *exec.Cmd
}

// Provider tries to locate a tool for the project at base. If the provider cannot locate it, nil is returned without
// an error. An error is only returned when the tool was found but is unusable.
type Provider = func(base string, spec Spec) (Tool, error)

var providers []Provider

// RegisterProvider adds a new provider. Providers are tried in the order they were registered.
func RegisterProvider(p Provider) {
	providers = append(providers, p)
}

// Find locates the tool described by spec for the project at base.
func Find(base string, spec Spec) (Tool, error) {
	for _, provider := range providers {
		t, err := provider(base, spec)
		if err != nil {
			return nil, pretty.Errorf("unable to use %s: %v", spec.Bin, err)
		}
		if t == nil {
			continue
		}
		return t, nil
	}
	return nil, pretty.Errorf("unable to find %s. Is it installed?\n%# v", spec.Bin, spec)
}
