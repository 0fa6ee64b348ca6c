package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bulletsmith/internal/errors"
)

// fileEntry is the on-disk envelope wrapping each value with its expiry
type fileEntry struct {
	ExpiresAt time.Time `json:"expiresAt"` // zero means no expiry
	Value     []byte    `json:"value"`
}

// FileStore persists each entry as one JSON file under a directory, named
// after a sanitized form of the key. Suited to single-node deployments where
// cached results must survive restarts.
type FileStore struct {
	dir string
	now func() time.Time
}

var keySanitizer = strings.NewReplacer(":", "_", "/", "_", "\\", "_")

// NewFile creates a file store rooted at dir, creating it if needed
func NewFile(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"file store directory is required", nil)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Failed to create store directory: %s", dir), err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, keySanitizer.Replace(key)+".json")
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read store entry: %s", key), err)
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is treated as a miss so the caller recomputes it
		return nil, false, nil
	}

	if !entry.ExpiresAt.IsZero() && s.now().After(entry.ExpiresAt) {
		_ = os.Remove(s.path(key))
		return nil, false, nil
	}

	return entry.Value, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := fileEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"Failed to encode store entry", err)
	}

	if err := os.WriteFile(s.path(key), data, 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Failed to write store entry: %s", key), err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("FILE_DELETE_FAILED",
			fmt.Sprintf("Failed to delete store entry: %s", key), err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
