package signals

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxDocBytes bounds how much of any single file ReadDocs loads.
const maxDocBytes = 64 * 1024

// defaultDocNames are the documentation files Bootstrap looks for.
var defaultDocNames = []string{
	"README.md", "README", "AGENTS.md", "CLAUDE.md",
	"CONTRIBUTING.md", "ARCHITECTURE.md",
	"docs/README.md", "docs/architecture.md",
}

// manifestNames are the package/manifest files Bootstrap looks for.
var manifestNames = []string{
	"go.mod", "package.json", "pyproject.toml", "Cargo.toml",
	"Makefile", "Dockerfile", "docker-compose.yml",
}

// ReadDocs reads the given paths relative to the collector root.
// Missing or unreadable files are skipped, not errors.
func (c *Collector) ReadDocs(paths []string) map[string]string {
	docs := make(map[string]string)
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(c.Root, p))
		if err != nil {
			continue
		}
		if len(data) > maxDocBytes {
			data = data[:maxDocBytes]
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			docs[p] = text
		}
	}
	return docs
}

// Docs returns the project's standard documentation files that exist.
func (c *Collector) Docs() map[string]string {
	return c.ReadDocs(defaultDocNames)
}

// Manifests returns the project's package/manifest files that exist.
func (c *Collector) Manifests() map[string]string {
	return c.ReadDocs(manifestNames)
}

// ListDir returns the top-level names under the collector root, sorted,
// skipping hidden entries. Empty on error.
func (c *Collector) ListDir() []string {
	dirents, err := os.ReadDir(c.Root)
	if err != nil {
		return nil
	}

	var names []string
	for _, d := range dirents {
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if d.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
