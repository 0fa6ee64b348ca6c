package deadletter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bulletsmith/internal/errors"
	"bulletsmith/internal/types"
)

// Entry records one permanently failed job
type Entry struct {
	JobID         string          `json:"jobId"`
	Stage         string          `json:"stage"`
	Reason        string          `json:"reason"`
	Timestamp     string          `json:"timestamp"` // RFC3339 UTC
	InputSnapshot *types.JobInput `json:"inputSnapshot,omitempty"`
	ErrorDetails  map[string]any  `json:"errorDetails,omitempty"`
}

// Log is an append-only record of permanently failed jobs, one JSON line per
// entry. Entries are never edited in place; the file is removed only by an
// explicit Clear. Appends are mutex-serialized and fsynced so an entry that
// was acknowledged survives process restart.
type Log struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *errors.Logger
}

// NewLog creates a dead letter log at path, creating parent directories as
// needed. The file itself is created on first append.
func NewLog(path string, logger *errors.Logger) (*Log, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"dead letter log path is required", nil)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Failed to create dead letter directory: %s", dir), err)
		}
	}
	return &Log{path: path, now: time.Now, logger: logger}, nil
}

// Append durably persists one entry. A zero Timestamp is filled with the
// current UTC time. The write is flushed to disk before Append returns.
func (l *Log) Append(entry Entry) error {
	if l == nil {
		return nil
	}
	if entry.Timestamp == "" {
		entry.Timestamp = l.now().UTC().Format(time.RFC3339)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"Failed to encode dead letter entry", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Failed to open dead letter log: %s", l.path), err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return errors.NewIOError("FILE_WRITE_FAILED",
			"Failed to append dead letter entry", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.NewIOError("FILE_WRITE_FAILED",
			"Failed to sync dead letter log", err)
	}
	return f.Close()
}

// List returns entries in append order. A limit <= 0 returns all entries.
// Corrupt lines are skipped with a warning rather than failing the read.
func (l *Log) List(limit int) ([]Entry, error) {
	if l == nil {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to open dead letter log: %s", l.path), err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			if l.logger != nil {
				l.logger.Warn("Skipping corrupt dead letter line", "error", err.Error())
			}
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			"Failed to scan dead letter log", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// FindByJobID returns the first entry recorded for a job id
func (l *Log) FindByJobID(jobID string) (Entry, bool, error) {
	entries, err := l.List(0)
	if err != nil {
		return Entry{}, false, err
	}
	for _, entry := range entries {
		if entry.JobID == jobID {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

// Count returns the number of recorded entries
func (l *Log) Count() (int, error) {
	entries, err := l.List(0)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes the log file. This is the only destructive operation and is
// reserved for explicit administrative use.
func (l *Log) Clear() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("FILE_DELETE_FAILED",
			fmt.Sprintf("Failed to clear dead letter log: %s", l.path), err)
	}
	return nil
}

// Path returns the log file location
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}
