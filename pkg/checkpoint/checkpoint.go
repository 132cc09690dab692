package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxarchive/pkg/logger"
	"fxarchive/pkg/models"
	"fxarchive/pkg/storage"
)

// DefaultFileName is the checkpoint file written next to the output folder.
const DefaultFileName = "media_keys_crawl_result.json"

// Manager reads and writes the crawl checkpoint: a JSON array of item records
// in crawl order.
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for path.
func NewManager(path string, log logger.Logger) (*Manager, error) {
	if path == "" {
		path = DefaultFileName
	}
	if log == nil {
		log = logger.GetLogger()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	return &Manager{checkpointPath: path, logger: log}, nil
}

// Path returns the checkpoint file path.
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Save replaces the checkpoint with items, atomically.
func (m *Manager) Save(items []models.ItemRecord) error {
	if items == nil {
		items = []models.ItemRecord{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(items); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := storage.WriteFileAtomic(m.checkpointPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint saved", map[string]interface{}{
		"path":  m.checkpointPath,
		"items": len(items),
	})
	return nil
}

// Load reads the checkpoint back. It returns nil, nil when no checkpoint exists.
func (m *Manager) Load() ([]models.ItemRecord, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	var items []models.ItemRecord
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", m.checkpointPath, err)
	}
	if items == nil {
		items = []models.ItemRecord{}
	}

	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("checkpoint entry %d has no media_key", i)
		}
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"path":  m.checkpointPath,
		"items": len(items),
	})
	return items, nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Info summarises the checkpoint on disk.
func (m *Manager) Info() (map[string]interface{}, error) {
	stat, err := os.Stat(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	items, err := m.Load()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"path":       m.checkpointPath,
		"items":      len(items),
		"updated_at": stat.ModTime(),
		"age":        time.Since(stat.ModTime()).Round(time.Second),
	}, nil
}

// Backup copies the current checkpoint to a timestamped sibling file and
// returns its path. It is a no-op when no checkpoint exists.
func (m *Manager) Backup() (string, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s.%s.bak", m.checkpointPath, time.Now().UTC().Format("20060102T150405"))
	if err := storage.WriteFileAtomic(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write checkpoint backup: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint backed up", map[string]interface{}{
		"backup": backupPath,
	})
	return backupPath, nil
}
