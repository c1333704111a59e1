package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rephrase/pkg/naming"
)

// ItemExt is the file extension of stored items.
const ItemExt = ".txt"

// Manager handles file storage for one directory
type Manager struct {
	outputDir string
	items     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		items:     make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records the items already present in the directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ItemExt {
			m.items[strings.TrimSuffix(entry.Name(), ItemExt)] = true
		}
	}

	return nil
}

// HasItem checks if an item with the given key is stored
func (m *Manager) HasItem(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[key]
}

// ItemPath returns the file path for key
func (m *Manager) ItemPath(key string) string {
	return filepath.Join(m.outputDir, key+ItemExt)
}

// SaveItem writes the item text under key, replacing any previous version
func (m *Manager) SaveItem(key, text string) (string, error) {
	path := m.ItemPath(key)
	if err := writeAtomic(path, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to save item %s: %w", key, err)
	}

	m.mu.Lock()
	m.items[key] = true
	m.mu.Unlock()

	return path, nil
}

// ReadItem returns the stored text for key
func (m *Manager) ReadItem(key string) (string, error) {
	data, err := os.ReadFile(m.ItemPath(key))
	if err != nil {
		return "", fmt.Errorf("failed to read item %s: %w", key, err)
	}
	return string(data), nil
}

// ListItems returns the stored item keys in natural numeric order
func (m *Manager) ListItems() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		keys = append(keys, key)
	}
	m.mu.RUnlock()

	naming.SortNatural(keys)
	return keys
}

// WriteFile atomically writes data to name inside the managed directory
func (m *Manager) WriteFile(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	path := filepath.Join(m.outputDir, name)
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetItemCount returns the number of stored items
func (m *Manager) GetItemCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// writeAtomic writes data to a temporary file and renames it into place
func writeAtomic(path string, data []byte) error {
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = out.Write(data)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
