package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLock_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".m3-stack", "build.lock")
	lf := &LockFile{
		Version:      LockVersion,
		BuildID:      "id",
		Bundler:      "esbuild",
		Target:       TargetProd,
		Entry:        "src/server/main.ts",
		Inputs:       []string{"src/server/main.ts"},
		InputHash:    "h1:abc",
		Dependencies: map[string]string{"foo": "1.0.0"},
	}
	if err := lf.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, ok := GetLock(nopLogger(), path)
	if !ok {
		t.Fatalf("expected lock to load")
	}
	if got.InputHash != "h1:abc" || got.Dependencies["foo"] != "1.0.0" || got.Entry != lf.Entry {
		t.Fatalf("unexpected lock: %+v", got)
	}
}

func TestLock_MissingCorruptAndForeignVersions(t *testing.T) {
	dir := t.TempDir()
	if _, ok := GetLock(nopLogger(), filepath.Join(dir, "missing.lock")); ok {
		t.Fatalf("missing lock should not be ok")
	}

	corrupt := filepath.Join(dir, "corrupt.lock")
	if err := os.WriteFile(corrupt, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if lf, ok := GetLock(nopLogger(), corrupt); ok || lf.Version != LockVersion {
		t.Fatalf("corrupt lock should give an empty lock, got %+v ok=%v", lf, ok)
	}

	for _, v := range []string{"0", "99"} {
		p := filepath.Join(dir, "v"+v+".lock")
		if err := os.WriteFile(p, []byte(`{"Version": `+v+`, "InputHash": "x"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if lf, ok := GetLock(nopLogger(), p); ok || lf.InputHash != "" {
			t.Fatalf("version %s should be discarded, got %+v ok=%v", v, lf, ok)
		}
	}
}
