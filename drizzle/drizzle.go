// Package drizzle derives a drizzle-kit configuration from the database URL, so projects do not need to write one.
package drizzle

import (
	"encoding/json"
	"fmt"
	"github.com/m3stack/m3-stack/bundler"
	"github.com/m3stack/m3-stack/config"
	"github.com/m3stack/m3-stack/resolve"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDatabaseURL is used when neither the configuration nor the environment name a database. It points at a local
// PGlite database.
const DefaultDatabaseURL = "file:./db-data.local"

// DefaultSchema is the schema module used when none of the schema candidates exist.
const DefaultSchema = "./src/server/schema/index.ts"

var schemaCandidates = []string{
	"src/server/schema/index",
	"src/server/schema",
	"src/server/db/schema",
	"src/db/schema",
	"server/schema/index",
	"server/schema",
}

// Credentials are the dbCredentials block of a drizzle-kit configuration.
type Credentials struct {
	URL       string `json:"url"`
	AuthToken string `json:"authToken,omitempty"`
}

// Config is the drizzle-kit configuration written for a run.
type Config struct {
	Schema        string      `json:"schema"`
	Out           string      `json:"out,omitempty"`
	Dialect       string      `json:"dialect"`
	Driver        string      `json:"driver,omitempty"`
	DBCredentials Credentials `json:"dbCredentials"`
}

// DetectDialect guesses the drizzle dialect and driver from a database URL. The second value is the driver, which is
// only set for local PGlite databases.
func DetectDialect(url string) (string, string) {
	switch {
	case strings.HasPrefix(url, "mysql"):
		return "mysql", ""
	case strings.HasPrefix(url, "libsql"), strings.HasPrefix(url, "http"):
		return "turso", ""
	case strings.HasPrefix(url, "file:"):
		return "postgresql", "pglite"
	}
	return "postgresql", ""
}

// New builds the drizzle-kit configuration for the project at base. Options from the configuration file win over the
// environment, and detected values fill in whatever is left.
func New(base string, opts config.Drizzle, env config.Env) Config {
	url := opts.URL
	if url == "" {
		url = env.DatabaseURL
	}
	if url == "" {
		url = DefaultDatabaseURL
	}
	token := opts.AuthToken
	if token == "" {
		token = env.DatabaseToken
	}
	dialect, driver := DetectDialect(url)
	if opts.Dialect != "" {
		dialect, driver = opts.Dialect, opts.Driver
	} else if opts.Driver != "" {
		driver = opts.Driver
	}
	if driver == "pglite" {
		url = strings.TrimPrefix(url, "file:")
	}
	schema := opts.Schema
	if schema == "" {
		schema = DefaultSchema
		if p, ok := resolve.FindMatchingFile(base, schemaCandidates, []string{"ts", "js", "mts", "mjs"}); ok {
			if rel, err := filepath.Rel(base, p); err == nil {
				schema = "./" + filepath.ToSlash(rel)
			}
		}
	}
	return Config{
		Schema:        schema,
		Out:           opts.Out,
		Dialect:       dialect,
		Driver:        driver,
		DBCredentials: Credentials{URL: url, AuthToken: token},
	}
}

// Write stores cfg as an ES module in the temporary tool directory of base and returns its path.
func Write(base string, cfg Config) (string, error) {
	dir := filepath.Join(base, filepath.FromSlash(bundler.TempDir))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "drizzle-config.js")
	if err := os.WriteFile(p, []byte("export default "+string(data)+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("error writing %s: %w", p, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"type": "module"}`+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("error writing %s: %w", filepath.Join(dir, "package.json"), err)
	}
	return p, nil
}
