package config

import (
	"errors"
	"github.com/joho/godotenv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DotEnvFiles are loaded from the project directory, most specific first.
var DotEnvFiles = []string{".env.local", ".env"}

// Env holds the environment variables the tool reads.
type Env struct {
	// NodeEnv is NODE_ENV. It is passed on to the dev server and decides the default build target.
	NodeEnv string
	// Vercel is set when VERCEL is "1" or "true", as it is inside Vercel builds.
	Vercel bool
	// DatabaseURL is DATABASE_URL.
	DatabaseURL string
	// DatabaseToken is DATABASE_AUTH_TOKEN, or DATABASE_TOKEN when the former is not set.
	DatabaseToken string
	// ConfigPath is M3_STACK_CONFIG, an explicit configuration file path.
	ConfigPath string
}

// LoadDotEnv loads the project's .env files into the process environment.
// Variables that are already set are never overridden, and the first file that
// sets a variable wins. The names of the files that were loaded are returned.
func LoadDotEnv(base string) ([]string, error) {
	var loaded []string
	for _, name := range DotEnvFiles {
		p := filepath.Join(base, name)
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}

func FromEnv() Env {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("VERCEL")))
	return Env{
		NodeEnv:       strings.TrimSpace(os.Getenv("NODE_ENV")),
		Vercel:        v == "1" || v == "true",
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseToken: getEnv("DATABASE_AUTH_TOKEN", strings.TrimSpace(os.Getenv("DATABASE_TOKEN"))),
		ConfigPath:    strings.TrimSpace(os.Getenv("M3_STACK_CONFIG")),
	}
}

// BuildTarget returns the target a production build is made for: vercel inside Vercel builds, prod otherwise.
func (e Env) BuildTarget() string {
	if e.Vercel {
		return TargetVercel
	}
	return TargetProd
}

func getEnv(k, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return fallback
}
