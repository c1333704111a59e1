package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/logger"
)

// FileName is the single state artifact kept in every job directory.
const FileName = "state.json"

// currentVersion is written into every saved record.
const currentVersion = 1

// WalkState is the walker's checkpoint.
type WalkState struct {
	Visited Set `json:"visited"`
	// Cursor is the next identifier to fetch; nil once the walk terminated
	// or before it ever started.
	Cursor *string `json:"cursor"`
	// Last is the final identifier of the most recent successful fetch.
	Last          string    `json:"last,omitempty"`
	RequestsTotal int       `json:"requests_total"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

// SetCursor points the walk at id; an empty id clears the cursor.
func (s *WalkState) SetCursor(id string) {
	if id == "" {
		s.Cursor = nil
		return
	}
	s.Cursor = &id
}

// CursorOr returns the cursor, or fallback when none is recorded.
func (s *WalkState) CursorOr(fallback string) string {
	if s.Cursor == nil || *s.Cursor == "" {
		return fallback
	}
	return *s.Cursor
}

func (s *WalkState) stamp(now time.Time) {
	s.UpdatedAt = now
	s.Version = currentVersion
}

// ProcessState is the processor's checkpoint.
type ProcessState struct {
	Processed Set       `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

func (s *ProcessState) stamp(now time.Time) {
	s.UpdatedAt = now
	s.Version = currentVersion
}

type stamper interface {
	stamp(now time.Time)
}

// Store loads and saves one checkpoint record of type T for a job directory.
type Store[T any] struct {
	checkpointPath string
	logger         logger.Logger
}

// NewStore creates the job directory if needed and returns its store.
func NewStore[T any](jobDir string, log logger.Logger) (*Store[T], error) {
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store[T]{
		checkpointPath: filepath.Join(jobDir, FileName),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file location
func (s *Store[T]) Path() string {
	return s.checkpointPath
}

// Load reads the checkpoint. A missing file yields an empty record.
func (s *Store[T]) Load() (*T, error) {
	state := new(T)

	data, err := os.ReadFile(s.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.DebugWithFields("No checkpoint found, starting fresh", map[string]interface{}{
				"path": s.checkpointPath,
			})
			return state, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, rerrors.CheckpointCorrupt(s.checkpointPath, err)
	}

	s.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"path": s.checkpointPath,
	})
	return state, nil
}

// Save writes the checkpoint to disk atomically
func (s *Store[T]) Save(state *T) error {
	if st, ok := any(state).(stamper); ok {
		st.stamp(time.Now().UTC())
	}

	tempPath := s.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	// Persist the rename itself; not every platform can fsync a directory.
	if dir, err := os.Open(filepath.Dir(s.checkpointPath)); err == nil {
		_ = dir.Sync()
		dir.Close()
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"path": s.checkpointPath,
	})
	return nil
}

// Exists checks if a checkpoint file exists
func (s *Store[T]) Exists() bool {
	_, err := os.Stat(s.checkpointPath)
	return err == nil
}

// Delete removes the checkpoint file
func (s *Store[T]) Delete() error {
	if err := os.Remove(s.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	s.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{
		"path": s.checkpointPath,
	})
	return nil
}

// Backup copies the current checkpoint to state.json.backup
func (s *Store[T]) Backup() (string, error) {
	if !s.Exists() {
		return "", nil
	}

	backupPath := s.checkpointPath + ".backup"

	src, err := os.Open(s.checkpointPath)
	if err != nil {
		return "", fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup file: %w", err)
	}

	s.logger.DebugWithFields("Checkpoint backed up", map[string]interface{}{
		"backup": backupPath,
	})
	return backupPath, nil
}
