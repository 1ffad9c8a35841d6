package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"BoardWriter/internal/domain"
	"BoardWriter/internal/ports"
)

// Files writes research and article text next to each other in one directory.
type Files struct {
	dir string
	mu  sync.Mutex
}

var _ ports.ArtifactSink = (*Files)(nil)

// NewFiles keeps artifact files inside dir.
func NewFiles(dir string) *Files {
	if dir == "" {
		dir = "."
	}
	return &Files{dir: dir}
}

// Reset truncates the named files, creating them when missing. Empty names are ignored.
func (f *Files) Reset(files ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	for _, name := range files {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(f.dir, name), nil, 0o644); err != nil {
			return fmt.Errorf("truncate %s: %w", name, err)
		}
	}
	return nil
}

// Append adds one section for item to file. An empty file name is a no-op.
func (f *Files) Append(file string, item domain.WorkItem, text string) error {
	if strings.TrimSpace(file) == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	fh, err := os.OpenFile(filepath.Join(f.dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer fh.Close()

	section := fmt.Sprintf("=== %s (%s) ===\n%s\n\n", item.Title, item.ID, strings.TrimRight(text, "\n"))
	if _, err := fh.WriteString(section); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}
