// Package scaffold creates new m3-stack projects.
package scaffold

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/m3stack/m3-stack/config"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// ErrNotEmpty is returned when the target directory already holds user files.
var ErrNotEmpty = errors.New("directory is not empty")

//go:embed template
var templateFS embed.FS

var templates = template.Must(template.New("scaffold").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).ParseFS(templateFS, "template/*.templ"))

// Project describes the project to create.
type Project struct {
	// Dir is the directory of the new project. It is created if it does not exist.
	Dir string
	// Name is the package name. Defaults to "m3-app".
	Name string
	// Title is the page title. Defaults to "m3-stack APP".
	Title string
}

// ignored reports whether a file may exist in the target directory: version control data, hidden files and files
// operating systems create on their own.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "Thumbs.db") || strings.HasPrefix(name, "desktop.ini")
}

// Create writes a new project to p.Dir. It refuses to write into a directory that holds user files.
func Create(p Project) ([]string, error) {
	if p.Dir == "" {
		return nil, fmt.Errorf("invalid name: a directory name must be provided")
	}
	if p.Name == "" {
		p.Name = "m3-app"
	}
	if p.Title == "" {
		p.Title = "m3-stack APP"
	}
	entries, err := os.ReadDir(p.Dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, entry := range entries {
		if !ignored(entry.Name()) {
			return nil, fmt.Errorf("%w: %s contains %s. Choose an empty directory or delete its contents", ErrNotEmpty, p.Dir, entry.Name())
		}
	}

	var written []string
	for _, dir := range []string{"src/app", "src/server"} {
		if err := os.MkdirAll(filepath.Join(p.Dir, filepath.FromSlash(dir)), os.ModePerm); err != nil {
			return written, fmt.Errorf("error creating %s: %w", dir, err)
		}
	}
	for _, name := range []string{"package.json", "tsconfig.json", "index.html"} {
		f, err := os.Create(filepath.Join(p.Dir, name))
		if err != nil {
			return written, fmt.Errorf("error creating %s: %w", name, err)
		}
		err = templates.ExecuteTemplate(f, name+".templ", p)
		f.Close()
		if err != nil {
			return written, fmt.Errorf("error writing %s: %w", name, err)
		}
		written = append(written, name)
	}
	if err := config.WriteDefault(filepath.Join(p.Dir, config.FileCandidates[0])); err != nil {
		return written, err
	}
	written = append(written, config.FileCandidates[0])
	return written, nil
}
