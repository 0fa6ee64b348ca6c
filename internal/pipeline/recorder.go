package pipeline

import (
	"time"

	"bulletsmith/internal/errors"
	"bulletsmith/internal/types"
)

// stageRecorder captures stage events for one job. Every event goes to the
// structured logger and into the ordered log that ships with the terminal
// JobOutput, so a caller can reconstruct what happened without access to the
// server logs.
type stageRecorder struct {
	jobID   string
	logger  *errors.Logger
	now     func() time.Time
	entries []types.LogEntry
}

func newStageRecorder(jobID string, logger *errors.Logger) *stageRecorder {
	return &stageRecorder{jobID: jobID, logger: logger, now: time.Now}
}

func (r *stageRecorder) append(level, stage, msg string) {
	r.entries = append(r.entries, types.LogEntry{
		TS:    r.now().UTC().Format(time.RFC3339),
		Level: level,
		Stage: stage,
		Msg:   msg,
		JobID: r.jobID,
	})
}

// Info records a stage event at info level. Extra args go to the structured
// logger only; the job log keeps just the message.
func (r *stageRecorder) Info(stage, msg string, args ...any) {
	r.append("info", stage, msg)
	if r.logger != nil {
		r.logger.Info(msg, append([]any{"stage", stage, "job_id", r.jobID}, args...)...)
	}
}

// Warn records a stage event at warn level
func (r *stageRecorder) Warn(stage, msg string, args ...any) {
	r.append("warn", stage, msg)
	if r.logger != nil {
		r.logger.Warn(msg, append([]any{"stage", stage, "job_id", r.jobID}, args...)...)
	}
}

// Error records a terminal stage failure
func (r *stageRecorder) Error(stage, msg string, err error) {
	r.append("error", stage, msg)
	if r.logger != nil {
		r.logger.LogError(err, msg, "stage", stage, "job_id", r.jobID)
	}
}

// Logs returns the entries recorded so far in order
func (r *stageRecorder) Logs() []types.LogEntry {
	return r.entries
}
