package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"fxarchive/pkg/models"
)

// Layout fixes the file extensions of the two artifacts of an item.
type Layout struct {
	ImageExt string
	TextExt  string
}

// DefaultLayout writes <id>.jpg and <id>.txt.
func DefaultLayout() Layout {
	return Layout{ImageExt: "jpg", TextExt: "txt"}
}

// Manager writes item artifacts under an output root, one sub-directory per
// creation date as recorded. Items without a date go directly under the root.
// Each item owns its own files, so concurrent saves of different items never
// touch the same path.
type Manager struct {
	root   string
	layout Layout
	dirs   sync.Map
	saved  atomic.Int64
}

// NewManager creates the output root if needed.
func NewManager(root string, layout Layout) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if layout.ImageExt == "" || layout.TextExt == "" {
		def := DefaultLayout()
		if layout.ImageExt == "" {
			layout.ImageExt = def.ImageExt
		}
		if layout.TextExt == "" {
			layout.TextExt = def.TextExt
		}
	}
	layout.ImageExt = strings.TrimPrefix(layout.ImageExt, ".")
	layout.TextExt = strings.TrimPrefix(layout.TextExt, ".")

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{root: root, layout: layout}, nil
}

// Dir returns the directory an item's files go to.
func (m *Manager) Dir(item models.ItemRecord) string {
	if folder := item.DateFolder(); folder != "" {
		return filepath.Join(m.root, folder)
	}
	return m.root
}

// PathsFor returns the image and text paths for an item.
func (m *Manager) PathsFor(item models.ItemRecord) (image, text string) {
	dir := m.Dir(item)
	name := SafeName(item.ID)
	return filepath.Join(dir, name+"."+m.layout.ImageExt),
		filepath.Join(dir, name+"."+m.layout.TextExt)
}

// Exists reports whether the item's image file is already on disk.
func (m *Manager) Exists(item models.ItemRecord) bool {
	image, _ := m.PathsFor(item)
	info, err := os.Stat(image)
	return err == nil && info.Mode().IsRegular()
}

// SaveArtifacts writes the decoded image and, when prompt is non-empty, the
// prompt text. If the text cannot be written the image is removed again so a
// failed item leaves nothing half-saved.
func (m *Manager) SaveArtifacts(item models.ItemRecord, image []byte, prompt string) error {
	if err := m.ensureDir(m.Dir(item)); err != nil {
		return err
	}

	imagePath, textPath := m.PathsFor(item)
	if err := WriteFileAtomic(imagePath, image, 0644); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	if prompt != "" {
		if err := WriteFileAtomic(textPath, []byte(prompt), 0644); err != nil {
			os.Remove(imagePath)
			return fmt.Errorf("failed to save prompt: %w", err)
		}
	}

	m.saved.Add(1)
	return nil
}

// ensureDir creates a date folder once; MkdirAll is idempotent, the cache just
// avoids repeating the syscalls for every item of the same day.
func (m *Manager) ensureDir(dir string) error {
	if _, ok := m.dirs.Load(dir); ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	m.dirs.Store(dir, struct{}{})
	return nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.root
}

// SavedCount returns the number of items saved by this manager.
func (m *Manager) SavedCount() int {
	return int(m.saved.Load())
}

// SafeName maps an item id to a file name that cannot escape its directory.
func SafeName(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")
	name := r.Replace(id)
	if name == "." || name == ".." || name == "" {
		return "_" + name
	}
	return name
}
