package deadletter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bulletsmith/internal/types"
)

func TestLogAppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dlq.jsonl")
	log, err := NewLog(path, nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}

	entries := []Entry{
		{JobID: "job-1", Stage: "PROCESS", Reason: "provider unavailable"},
		{JobID: "job-2", Stage: "EXTRACT_SIGNALS", Reason: "retry budget exhausted"},
		{JobID: "job-3", Stage: "VALIDATE", Reason: "consistency check failed"},
	}
	for _, entry := range entries {
		if err := log.Append(entry); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := log.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	for i, entry := range got {
		if entry.JobID != entries[i].JobID {
			t.Errorf("Entry %d: expected job %q, got %q", i, entries[i].JobID, entry.JobID)
		}
		if entry.Timestamp == "" {
			t.Errorf("Entry %d: timestamp was not filled", i)
		}
		if _, err := time.Parse(time.RFC3339, entry.Timestamp); err != nil {
			t.Errorf("Entry %d: timestamp %q is not RFC3339: %v", i, entry.Timestamp, err)
		}
	}
}

func TestLogListLimit(t *testing.T) {
	log, err := NewLog(filepath.Join(t.TempDir(), "dlq.jsonl"), nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := log.Append(Entry{JobID: "job", Stage: "OUTPUT", Reason: "write failed"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := log.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 entries with limit, got %d", len(got))
	}
}

func TestLogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")

	log, err := NewLog(path, nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	entry := Entry{
		JobID:  "job-persist",
		Stage:  "PROCESS",
		Reason: "model returned malformed payload",
		InputSnapshot: &types.JobInput{
			JobID:       "job-persist",
			Role:        "Backend Engineer",
			Description: "Go services on Kubernetes",
			Bullets:     []string{"Built APIs"},
		},
		ErrorDetails: map[string]any{"attempts": float64(4)},
	}
	if err := log.Append(entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reopened, err := NewLog(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	got, ok, err := reopened.FindByJobID("job-persist")
	if err != nil {
		t.Fatalf("FindByJobID failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected entry to survive reopen")
	}
	if got.InputSnapshot == nil || got.InputSnapshot.Role != "Backend Engineer" {
		t.Errorf("Input snapshot not preserved: %+v", got.InputSnapshot)
	}
	if got.ErrorDetails["attempts"] != float64(4) {
		t.Errorf("Error details not preserved: %+v", got.ErrorDetails)
	}
}

func TestLogFindByJobIDMiss(t *testing.T) {
	log, err := NewLog(filepath.Join(t.TempDir(), "dlq.jsonl"), nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	if _, ok, err := log.FindByJobID("absent"); err != nil || ok {
		t.Errorf("Expected clean miss on empty log, got ok=%v err=%v", ok, err)
	}

	if err := log.Append(Entry{JobID: "job-a", Stage: "INGEST", Reason: "x"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, ok, err := log.FindByJobID("job-b"); err != nil || ok {
		t.Errorf("Expected miss for unknown job, got ok=%v err=%v", ok, err)
	}
}

func TestLogSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	log, err := NewLog(path, nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	if err := log.Append(Entry{JobID: "job-1", Stage: "PROCESS", Reason: "x"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("Open for corruption failed: %v", err)
	}
	if _, err := f.WriteString("{truncated\n"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := log.Append(Entry{JobID: "job-2", Stage: "PROCESS", Reason: "y"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := log.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected corrupt line to be skipped, got %d entries", len(got))
	}
	if got[0].JobID != "job-1" || got[1].JobID != "job-2" {
		t.Errorf("Unexpected entries after corruption: %+v", got)
	}
}

func TestLogClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	log, err := NewLog(path, nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	if err := log.Clear(); err != nil {
		t.Errorf("Clear on missing file should succeed, got %v", err)
	}

	if err := log.Append(Entry{JobID: "job-1", Stage: "PROCESS", Reason: "x"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := log.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected log file removed after Clear, stat err=%v", err)
	}

	count, err := log.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty log after Clear, got %d entries", count)
	}

	if err := log.Append(Entry{JobID: "job-2", Stage: "PROCESS", Reason: "y"}); err != nil {
		t.Fatalf("Append after Clear failed: %v", err)
	}
	count, err = log.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 entry after re-append, got %d", count)
	}
}

func TestLogOmitsEmptyOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	log, err := NewLog(path, nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	if err := log.Append(Entry{JobID: "job-1", Stage: "INGEST", Reason: "invalid input"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	line := string(raw)
	if strings.Contains(line, "inputSnapshot") || strings.Contains(line, "errorDetails") {
		t.Errorf("Optional fields should be omitted when empty: %s", line)
	}
	if !strings.Contains(line, `"jobId":"job-1"`) {
		t.Errorf("Expected jobId field in line: %s", line)
	}
}

func TestLogNilSafe(t *testing.T) {
	var log *Log
	if err := log.Append(Entry{JobID: "x"}); err != nil {
		t.Errorf("Nil log Append should be a no-op, got %v", err)
	}
	entries, err := log.List(0)
	if err != nil || entries != nil {
		t.Errorf("Nil log List should return nothing, got %v, %v", entries, err)
	}
	if err := log.Clear(); err != nil {
		t.Errorf("Nil log Clear should be a no-op, got %v", err)
	}
}

func TestNewLogRequiresPath(t *testing.T) {
	if _, err := NewLog("", nil); err == nil {
		t.Error("Expected error for empty path")
	}
}
