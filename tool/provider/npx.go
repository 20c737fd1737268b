package provider

import (
	"context"
	"github.com/m3stack/m3-stack/tool"
	"os/exec"
)

// NpxTool runs a package through npx, which downloads it when it is not installed.
type NpxTool struct {
	identifier tool.Identifier
	npx        string
	pkg        string
	dir        string
}

// NpxProvider is the fallback for tools that come from an npm package. It requires npx on PATH.
func NpxProvider(base string, spec tool.Spec) (tool.Tool, error) {
	if spec.Package == "" {
		return nil, nil
	}
	npx, err := exec.LookPath("npx")
	if err != nil {
		return nil, nil
	}
	return &NpxTool{
		identifier: tool.Identifier{
			Name: spec.Bin,
			Path: npx,
		},
		npx: npx,
		pkg: spec.Package,
		dir: base,
	}, nil
}

func (n *NpxTool) Identifier() tool.Identifier {
	return n.identifier
}

func (n *NpxTool) Command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, n.npx, append([]string{"--yes", n.pkg}, args...)...)
	cmd.Dir = n.dir
	return cmd
}
