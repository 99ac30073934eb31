package logging

import (
	"context"
	"log/slog"

	"fieldsync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEntryID is the standardized structured logging key for sync entry identifiers.
	FieldEntryID = "entry_id"
	// FieldPhase is the standardized structured logging key for cycle phase names.
	FieldPhase = "phase"
	// FieldCycleID is the standardized structured logging key for cycle correlation identifiers.
	FieldCycleID = "cycle_id"
	// FieldServerURL identifies the inference server a record relates to.
	FieldServerURL = "server_url"
	// FieldEventType classifies a record for filtering (e.g. upload_failed).
	FieldEventType = "event_type"
	// FieldErrorHint carries a short next step for the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.EntryIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEntryID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if cid, ok := services.CycleIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCycleID, cid))
	}
	if url, ok := services.ServerURLFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldServerURL, url))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
