package provider

import (
	"context"
	"github.com/m3stack/m3-stack/tool"
	"os/exec"
)

// PathTool is an executable found on PATH.
type PathTool struct {
	identifier tool.Identifier
	path       string
	dir        string
}

// PathProvider looks the tool up on PATH.
func PathProvider(base string, spec tool.Spec) (tool.Tool, error) {
	p, err := exec.LookPath(spec.Bin)
	if err != nil {
		return nil, nil
	}
	return &PathTool{
		identifier: tool.ParseIdentifier(base, p, spec),
		path:       p,
		dir:        base,
	}, nil
}

func (p *PathTool) Identifier() tool.Identifier {
	return p.identifier
}

func (p *PathTool) Command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.path, args...)
	cmd.Dir = p.dir
	return cmd
}
