// Package metadata writes the optional JSON side output kept next to each
// fetched item.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ItemMetadata describes one fetched item
type ItemMetadata struct {
	// Core identifiers
	URL      string `json:"url"`
	FinalURL string `json:"final_url,omitempty"`
	Key      string `json:"key"`

	// Storage
	TextFile string `json:"text_file"`
	Bytes    int    `json:"bytes"`

	// Chain
	NextURL string `json:"next_url,omitempty"`

	FetchedAt      time.Time `json:"fetched_at"`
	ContentMissing bool      `json:"content_missing,omitempty"`
}

// DirName is the subdirectory of a job directory that holds sidecars, kept
// apart from item text and the checkpoint so no item key can collide with
// either.
const DirName = "meta"

// Dir returns the sidecar directory of jobDir
func Dir(jobDir string) string {
	return filepath.Join(jobDir, DirName)
}

// Path returns the metadata file for key in jobDir
func Path(jobDir, key string) string {
	return filepath.Join(Dir(jobDir), key+".json")
}

// Save writes the metadata to <jobDir>/meta/<key>.json
func (m *ItemMetadata) Save(jobDir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.MkdirAll(Dir(jobDir), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := os.WriteFile(Path(jobDir, m.Key), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Load reads metadata for key from jobDir
func Load(jobDir, key string) (*ItemMetadata, error) {
	data, err := os.ReadFile(Path(jobDir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta ItemMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// MetadataExists checks if metadata exists for key
func MetadataExists(jobDir, key string) bool {
	_, err := os.Stat(Path(jobDir, key))
	return err == nil
}

// Writer is the walker's side-output hook. A disabled writer does nothing.
type Writer struct {
	jobDir  string
	enabled bool
}

// NewWriter creates a Writer for the job directory
func NewWriter(jobDir string, enabled bool) *Writer {
	return &Writer{jobDir: jobDir, enabled: enabled}
}

// Write saves meta when the writer is enabled
func (w *Writer) Write(meta *ItemMetadata) error {
	if w == nil || !w.enabled {
		return nil
	}
	return meta.Save(w.jobDir)
}

// CleanOrphanedMetadata removes sidecars whose item text (<jobDir>/<key><itemExt>)
// is gone. A job directory without sidecars yields zero.
func CleanOrphanedMetadata(jobDir, itemExt string) (int, error) {
	entries, err := os.ReadDir(Dir(jobDir))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read metadata directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}

		itemPath := filepath.Join(jobDir, strings.TrimSuffix(name, ".json")+itemExt)
		if _, err := os.Stat(itemPath); os.IsNotExist(err) {
			if err := os.Remove(filepath.Join(Dir(jobDir), name)); err != nil {
				return removed, fmt.Errorf("failed to remove orphaned metadata %s: %w", name, err)
			}
			removed++
		}
	}

	return removed, nil
}
