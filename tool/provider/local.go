package provider

import (
	"context"
	"github.com/m3stack/m3-stack/tool"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// LocalTool is an executable installed in a node_modules/.bin directory.
type LocalTool struct {
	identifier tool.Identifier
	path       string
	dir        string
}

// LocalProvider looks for the tool in node_modules/.bin of base and of every parent directory, which covers
// workspaces where packages are hoisted to the repository root.
func LocalProvider(base string, spec tool.Spec) (tool.Tool, error) {
	dir, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return nil, err
	}
	names := []string{spec.Bin}
	if runtime.GOOS == "windows" {
		// npm writes .cmd shims on Windows.
		names = append([]string{spec.Bin + ".cmd"}, names...)
	}
	for d := dir; ; {
		for _, name := range names {
			p := filepath.Join(d, "node_modules", ".bin", name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return &LocalTool{
					identifier: tool.ParseIdentifier(dir, p, spec),
					path:       p,
					dir:        dir,
				}, nil
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return nil, nil
		}
		d = parent
	}
}

func (l *LocalTool) Identifier() tool.Identifier {
	return l.identifier
}

func (l *LocalTool) Command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, l.path, args...)
	cmd.Dir = l.dir
	return cmd
}
