package config

import (
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog"
	"os"
	"path/filepath"
)

const LockVersion = 1

// LockPath is where the lock file is kept, relative to the project root.
const LockPath = ".m3-stack/build.lock"

// LockFile describes the server build currently present in the output directory. It is used to determine whether the
// build is up-to-date with the sources.
type LockFile struct {
	// Version is the version the lockfile was made in.
	Version uint
	// BuildID uniquely identifies the build that wrote the lockfile.
	BuildID string
	// Bundler is the bundler that produced the output.
	Bundler string
	// Target is the target the build was made for (dev, prod or vercel).
	Target string
	// Entry is the entry file, relative to the project root.
	Entry string
	// Output is the output directory, relative to the project root.
	Output string
	// Inputs lists every source file that went into the bundle, relative to the project root.
	Inputs []string
	// InputHash is the dirhash of Inputs at the time of the build.
	InputHash string
	// Dependencies maps every external dependency written to the output package.json to its version.
	Dependencies map[string]string
}

// GetLock returns the lockfile at path. If it does not exist, cannot be parsed, or was made by another version, an
// empty lockfile is returned together with false.
func GetLock(log *zerolog.Logger, path string) (*LockFile, bool) {
	empty := func() *LockFile {
		return &LockFile{
			Version:      LockVersion,
			Dependencies: map[string]string{},
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return empty(), false
	} else if err != nil {
		log.Error().Msgf("Error trying to open %s: %v", path, err)
		return empty(), false
	}

	lf := empty()
	if err := json.Unmarshal(data, lf); err != nil {
		// The lock data is only used to check if the server needs rebuilding. In the event that the file could not
		// be parsed, the build is treated as outdated.
		log.Error().Msgf("Error trying to parse %s: %v. Using an empty lock file.", path, err)
		return empty(), false
	}
	if lf.Version > LockVersion {
		log.Warn().Msgf("Unknown lockfile version %d, rebuilding.", lf.Version)
		return empty(), false
	} else if lf.Version < LockVersion {
		// Older versions of the lockfile can be safely discarded.
		return empty(), false
	}
	if lf.Dependencies == nil {
		lf.Dependencies = map[string]string{}
	}
	return lf, true
}

// Write stores the lockfile at path, creating its directory if needed.
func (lf *LockFile) Write(path string) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}
