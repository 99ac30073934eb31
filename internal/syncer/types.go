package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fieldsync/internal/entry"
	"fieldsync/internal/logging"
	"fieldsync/internal/services"
)

// MediaItem is one video annotation to synchronize.
type MediaItem struct {
	Path   string
	Params entry.Params
}

// Level grades a progress message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Phase names the step of a cycle a message came from.
type Phase string

const (
	PhaseCycle     Phase = "cycle"
	PhaseReconcile Phase = "reconcile"
	PhaseUpload    Phase = "upload"
	PhaseInference Phase = "inference"
)

// Message is a short human-readable progress note.
type Message struct {
	Level   Level
	Phase   Phase
	EntryID string
	Text    string
	Time    time.Time
}

func (m Message) String() string {
	if m.EntryID == "" {
		return fmt.Sprintf("[%s] %s", m.Phase, m.Text)
	}
	return fmt.Sprintf("[%s] %s: %s", m.Phase, m.EntryID, m.Text)
}

// Reporter receives progress messages as they happen. It may be called from
// several goroutines when sync.workers > 1.
type Reporter func(Message)

// Plan is the outcome of reconciliation.
type Plan struct {
	Upload        []string
	InferenceOnly []string
	Pruned        []string
	Entries       []entry.Entry
}

// Report summarizes a finished cycle.
type Report struct {
	CycleID       string
	ServerURL     string
	Entries       int
	Pruned        int
	NothingToSync bool
	Cancelled     bool
	Upload        UploadSummary
	Inference     PollSummary
	Duration      time.Duration
}

// UploadSummary counts payloads and entries handled by the uploader.
type UploadSummary struct {
	Uploaded int
	Rejected int
	Failed   int
	Skipped  int
}

// PollSummary counts inference outcomes.
type PollSummary struct {
	Completed int
	Failed    int
	Waiting   int
	Reupload  int
	Running   int
	Ignored   int
	Skipped   int
}

// Summary renders the report as one line.
func (r Report) Summary() string {
	if r.NothingToSync {
		return "nothing to synchronize"
	}
	parts := []string{
		fmt.Sprintf("%d entries", r.Entries),
		fmt.Sprintf("%d uploaded", r.Upload.Uploaded),
	}
	if n := r.Upload.Rejected + r.Upload.Failed; n > 0 {
		parts = append(parts, fmt.Sprintf("%d upload failures", n))
	}
	parts = append(parts, fmt.Sprintf("%d completed", r.Inference.Completed))
	if r.Inference.Waiting > 0 {
		parts = append(parts, fmt.Sprintf("%d waiting", r.Inference.Waiting))
	}
	if r.Inference.Reupload > 0 {
		parts = append(parts, fmt.Sprintf("%d reupload requests", r.Inference.Reupload))
	}
	if r.Inference.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d inference failures", r.Inference.Failed))
	}
	if r.Pruned > 0 {
		parts = append(parts, fmt.Sprintf("%d pruned", r.Pruned))
	}
	if r.Cancelled {
		parts = append(parts, "cancelled")
	}
	return strings.Join(parts, ", ")
}

// emitter logs each message and forwards it to the caller's Reporter.
type emitter struct {
	report Reporter
	logger *slog.Logger
	now    func() time.Time
}

func (e emitter) emit(ctx context.Context, level Level, phase Phase, entryID, format string, args ...any) {
	msg := Message{
		Level:   level,
		Phase:   phase,
		EntryID: entryID,
		Text:    fmt.Sprintf(format, args...),
		Time:    e.now(),
	}
	ctx = services.WithEntryID(services.WithPhase(ctx, string(phase)), entryID)
	logger := logging.WithContext(ctx, e.logger)
	switch level {
	case LevelError:
		logger.Error(msg.Text)
	case LevelWarn:
		logger.Warn(msg.Text)
	default:
		logger.Info(msg.Text)
	}
	if e.report != nil {
		e.report(msg)
	}
}
