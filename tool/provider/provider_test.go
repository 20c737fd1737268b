package provider

import (
	"context"
	"github.com/m3stack/m3-stack/tool"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLocalProvider(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("npm writes .cmd shims on Windows")
	}
	root := t.TempDir()
	bin := filepath.Join(root, "node_modules", ".bin", "vite")
	if err := os.MkdirAll(filepath.Dir(bin), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	project := filepath.Join(root, "packages", "web")
	if err := os.MkdirAll(project, os.ModePerm); err != nil {
		t.Fatal(err)
	}

	found, err := LocalProvider(project, tool.Spec{Bin: "vite", Package: "vite"})
	if err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("expected the hoisted binary to be found")
	}
	if found.Identifier().Path != bin {
		t.Errorf("path = %s, want %s", found.Identifier().Path, bin)
	}
	cmd := found.Command(context.Background(), "build")
	if cmd.Dir != project || cmd.Args[len(cmd.Args)-1] != "build" {
		t.Errorf("command = %v in %s", cmd.Args, cmd.Dir)
	}

	missing, err := LocalProvider(project, tool.Spec{Bin: "rollup"})
	if err != nil || missing != nil {
		t.Errorf("missing tool = %v, %v", missing, err)
	}
}

func TestNpxProvider(t *testing.T) {
	found, err := NpxProvider(t.TempDir(), tool.Spec{Bin: "node"})
	if err != nil || found != nil {
		t.Errorf("tools without a package cannot run through npx: %v, %v", found, err)
	}
	t.Setenv("PATH", t.TempDir())
	found, err = NpxProvider(t.TempDir(), tool.Spec{Bin: "better-auth", Package: "@better-auth/cli"})
	if err != nil || found != nil {
		t.Errorf("without npx on PATH nothing is found: %v, %v", found, err)
	}
}

func TestNpxTool_Command(t *testing.T) {
	n := &NpxTool{npx: "/usr/bin/npx", pkg: "@better-auth/cli", dir: "/app"}
	cmd := n.Command(context.Background(), "generate")
	want := []string{"/usr/bin/npx", "--yes", "@better-auth/cli", "generate"}
	if len(cmd.Args) != len(want) {
		t.Fatalf("args = %v", cmd.Args)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Errorf("args = %v, want %v", cmd.Args, want)
		}
	}
	if cmd.Dir != "/app" {
		t.Errorf("dir = %s", cmd.Dir)
	}
}
