package bundler

import (
	"fmt"
	"sort"
	"strings"
)

// Dependency is a package the bundle imports at runtime instead of containing it.
type Dependency struct {
	// Name is the package name, like "pg" or "@libsql/client".
	Name string
	// Root is the installation directory of the package.
	Root string
	// DynamicImport is true when the package was only seen in an import() expression.
	DynamicImport bool
}

// Dependencies maps package names to the dependency record. When a name is recorded twice, the last record wins.
type Dependencies map[string]Dependency

// Set records dep, replacing any earlier record with the same name.
func (d Dependencies) Set(dep Dependency) {
	d[dep.Name] = dep
}

// Names returns the recorded package names, sorted.
func (d Dependencies) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Message is a diagnostic reported by a bundler.
type Message struct {
	Text   string
	File   string
	Line   int
	Column int
}

func (m Message) String() string {
	if m.File == "" {
		return m.Text
	}
	if m.Line == 0 {
		return fmt.Sprintf("%s: %s", m.File, m.Text)
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.File, m.Line, m.Column, m.Text)
}

// Result is the outcome of one bundle pass.
type Result struct {
	Bundler      string
	Dependencies Dependencies
	// Inputs are the absolute paths of the files that went into the bundle.
	Inputs   []string
	Errors   []Message
	Warnings []Message
}

// Err returns a *BuildError when the pass reported errors, nil otherwise.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &BuildError{Bundler: r.Bundler, Messages: r.Errors}
}

// BuildError joins every error message of a failed bundle pass.
type BuildError struct {
	Bundler  string
	Messages []Message
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s errors:", e.Bundler)
	for _, m := range e.Messages {
		b.WriteString("\n")
		b.WriteString(m.String())
	}
	return b.String()
}
