// Package stack guesses a project's technology stack from marker files in
// its checkout.
package stack

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// markers maps a file at the checkout root to the technology it implies,
// in display order.
var markers = []struct {
	file string
	name string
}{
	{"go.mod", "Go"},
	{"package.json", "Node.js"},
	{"tsconfig.json", "TypeScript"},
	{"Cargo.toml", "Rust"},
	{"pyproject.toml", "Python"},
	{"requirements.txt", "Python"},
	{"Gemfile", "Ruby"},
	{"pom.xml", "Java"},
	{"build.gradle", "Java"},
	{"Dockerfile", "Docker"},
}

// Detect returns the technologies found at path, without duplicates. Go is
// reported with the version from go.mod when it has one.
func Detect(path string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(path, m.file)); err != nil || seen[m.name] {
			continue
		}
		seen[m.name] = true
		name := m.name
		if m.file == "go.mod" {
			if v, err := GoVersion(path); err == nil && v != "" {
				name += " " + v
			}
		}
		out = append(out, name)
	}
	return out
}

// GoVersion returns the go directive of path/go.mod, e.g. "1.26".
func GoVersion(path string) (string, error) {
	return goModField(filepath.Join(path, "go.mod"), "go ")
}

func goModField(goModPath, prefix string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", fmt.Errorf("open go.mod: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	return "", fmt.Errorf("field %q not found in %s", strings.TrimSpace(prefix), goModPath)
}
