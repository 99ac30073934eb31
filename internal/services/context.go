package services

import "context"

type contextKey string

const (
	entryIDKey   contextKey = "entry_id"
	phaseKey     contextKey = "phase"
	cycleIDKey   contextKey = "cycle_id"
	serverURLKey contextKey = "server_url"
)

// WithEntryID annotates context with the sync entry identifier.
func WithEntryID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, entryIDKey, id)
}

// EntryIDFromContext extracts the sync entry identifier if present.
func EntryIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(entryIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the cycle phase name (reconcile, upload, inference).
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(phaseKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithCycleID annotates context with the synchronization cycle identifier.
// The identifier doubles as the request correlation ID sent to the server.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithServerURL annotates context with the inference server a cycle targets.
func WithServerURL(ctx context.Context, url string) context.Context {
	if url == "" {
		return ctx
	}
	return context.WithValue(ctx, serverURLKey, url)
}

// ServerURLFromContext returns the server URL if present.
func ServerURLFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(serverURLKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
