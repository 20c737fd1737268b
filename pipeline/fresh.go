package pipeline

import (
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/config"
	"github.com/rogpeppe/go-internal/dirhash"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// relativeInputs converts bundle inputs to slash-separated paths relative to base, adds the entry and the project
// manifest, and removes duplicates. Inputs that are not files on disk are left out.
func relativeInputs(base string, inputs []string, entry string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(p string) {
		if !fileExists(p) {
			return
		}
		r := rel(base, p)
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	for _, in := range inputs {
		add(in)
	}
	add(entry)
	add(filepath.Join(base, "package.json"))
	sort.Strings(out)
	return out
}

// HashInputs hashes the contents of files, given relative to base, the way go modules hash their directories.
func HashInputs(base string, files []string) (string, error) {
	return dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(base, filepath.FromSlash(name)))
	})
}

// Fresh reports whether the build recorded in lock is a current build for s: it was made for the same target with
// the same bundler, the bundle exists and none of its inputs changed. Paths in lock are relative to s.BasePath.
func Fresh(lock *config.LockFile, s bundler.Settings) bool {
	if lock == nil || lock.InputHash == "" || len(lock.Inputs) == 0 {
		return false
	}
	name := s.Bundler
	if name == "" {
		name = "esbuild"
	}
	if lock.Target != s.Target || lock.Bundler != name {
		return false
	}
	base := s.BasePath
	if !fileExists(filepath.Join(OutputDir(lock, base), "server", "main.js")) {
		return false
	}
	hash, err := HashInputs(base, lock.Inputs)
	if err != nil {
		return false
	}
	return hash == lock.InputHash
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
