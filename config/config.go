package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/kr/pretty"
	"github.com/m3stack/m3-stack/resolve"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"os"
	"path/filepath"
)

//go:embed default_config.toml
var defaultConfig []byte

// FileCandidates are the locations of the configuration file, relative to the project root.
var FileCandidates = []string{"m3-stack.toml", ".config/m3-stack.toml"}

type Config struct {
	// Message is printed when the configuration is loaded. Useful to check which file is in use.
	Message string `toml:"message"`

	Bundler struct {
		Debug bool `toml:"debug-log"`
	} `toml:"bundler"`

	Server Server `toml:"server"`

	Drizzle Drizzle `toml:"drizzle"`
	Auth    Auth    `toml:"auth"`

	// BackendRoutes are the path prefixes handled by the server function when deploying to Vercel. Defaults to
	// "/api".
	BackendRoutes []string `toml:"backend-routes"`

	Vercel Vercel `toml:"vercel"`

	// File is the path of the configuration file that was loaded. It is empty when the defaults are used.
	File string `toml:"-"`
}

// Drizzle holds the drizzle-kit options the drizzle-kit command cannot detect by itself.
type Drizzle struct {
	Dialect   string `toml:"dialect" json:"dialect,omitempty"`
	Driver    string `toml:"driver" json:"driver,omitempty"`
	Schema    string `toml:"schema" json:"schema,omitempty"`
	Out       string `toml:"out" json:"out,omitempty"`
	URL       string `toml:"url" json:"-"`
	AuthToken string `toml:"auth-token" json:"-"`
}

// Auth points the schema generator at the auth configuration module.
type Auth struct {
	Config string `toml:"config"`
}

// Vercel configures the serverless function written by vercel-build.
type Vercel struct {
	Runtime     string            `toml:"runtime"`
	Regions     []string          `toml:"regions"`
	Environment map[string]string `toml:"environment"`
	Memory      int               `toml:"memory"`
	MaxDuration int               `toml:"max-duration"`
	Routes      []map[string]any  `toml:"routes"`
}

// Default returns the configuration used when no configuration file exists. Server options are left unset so that
// package.json can still provide them; their defaults are applied when the build is planned.
func Default() *Config {
	return &Config{
		BackendRoutes: []string{"/api"},
		Vercel: Vercel{
			Runtime:     "nodejs22.x",
			MaxDuration: 3,
		},
	}
}

// DefaultFile returns the contents of the default configuration file.
func DefaultFile() []byte {
	return defaultConfig
}

// Load reads the configuration of the project at base. The file named by env.ConfigPath is used if set, otherwise the
// first existing FileCandidates entry. Without a file the defaults are used. Unless disabled, the server options found
// in package.json are merged in, with the configuration file taking precedence.
func Load(log *zerolog.Logger, base string, env Env) (*Config, error) {
	path := env.ConfigPath
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	if path == "" {
		for _, candidate := range FileCandidates {
			p := filepath.Join(base, filepath.FromSlash(candidate))
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	var cfg *Config
	if path == "" {
		log.Info().Msgf("No m3-stack config found. Using defaults.")
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		cfg = Default()
		// Keys present in the file replace the defaults; absent ones keep them.
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, pretty.Errorf("parse %s: %v", path, err)
		}
		cfg.File = path
		log.Info().Msgf("Loaded m3-stack config from %s", path)
	}
	if cfg.Message != "" {
		log.Info().Msgf("Config debug message: %s", cfg.Message)
	}

	if cfg.Server.IncludePackageJSONOptions == nil || *cfg.Server.IncludePackageJSONOptions {
		pkg, err := resolve.ReadPackageJSON(base)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if pkg != nil {
			fromPkg, err := packageJSONServer(pkg)
			if err != nil {
				return nil, err
			}
			if fromPkg != nil {
				log.Debug().Msgf("Merging server options from package.json")
				cfg.Server = Merge(*fromPkg, cfg.Server)
			}
		}
	}
	return cfg, nil
}

// packageJSONServer extracts the server options from the "m3-stack.server" field of package.json, falling back to
// "build.server".
func packageJSONServer(pkg *resolve.PackageJSON) (*Server, error) {
	for _, raw := range []json.RawMessage{pkg.M3Stack, pkg.Build} {
		if len(raw) == 0 {
			continue
		}
		var block struct {
			Server *Server `json:"server"`
		}
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil, pretty.Errorf("parse server options in package.json: %v\n%s", err, raw)
		}
		if block.Server != nil {
			return block.Server, nil
		}
	}
	return nil, nil
}

// WriteDefault writes the default configuration file to path. An existing file is left untouched.
func WriteDefault(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("error trying to create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(defaultConfig); err != nil {
		return fmt.Errorf("error trying to write %s: %w", path, err)
	}
	return nil
}
