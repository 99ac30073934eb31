package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/entry"
	"fieldsync/internal/logging"
	"fieldsync/internal/metrics"
	"fieldsync/internal/services"
	"fieldsync/internal/store"
	"fieldsync/internal/transport"
)

// Inquirer performs the inference status request.
type Inquirer interface {
	Inference(ctx context.Context, key string) (transport.InferenceResult, error)
}

// Poller requests inference status for entries whose uploads are complete.
type Poller struct {
	store    *store.Store
	inquirer Inquirer
	metrics  *metrics.Recorder
	logger   *slog.Logger
	workers  int
	now      func() time.Time
}

// NewPoller builds a Poller. workers <= 1 processes entries in order.
func NewPoller(st *store.Store, inquirer Inquirer, rec *metrics.Recorder, logger *slog.Logger, workers int) *Poller {
	return &Poller{
		store:    st,
		inquirer: inquirer,
		metrics:  rec,
		logger:   logging.NewComponentLogger(logger, "poller"),
		workers:  workers,
		now:      time.Now,
	}
}

// Run polls every entry in ids. Failures stay with their entry.
func (p *Poller) Run(ctx context.Context, ids []string, report Reporter) PollSummary {
	out := emitter{report: report, logger: p.logger, now: p.now}
	var (
		mu      sync.Mutex
		summary PollSummary
	)
	forEachEntry(ctx, ids, p.workers, func(id string) {
		outcome := p.pollEntry(ctx, id, out)
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case "completed":
			summary.Completed++
		case "failed", "error":
			summary.Failed++
		case "waiting":
			summary.Waiting++
		case "reupload":
			summary.Reupload++
		case "running":
			summary.Running++
		case "ignored":
			summary.Ignored++
		default:
			summary.Skipped++
		}
	})
	return summary
}

func (p *Poller) pollEntry(ctx context.Context, id string, out emitter) string {
	ctx = services.WithEntryID(services.WithPhase(ctx, string(PhaseInference)), id)
	current, ok := p.store.Get(id)
	if !ok {
		out.emit(ctx, LevelWarn, PhaseInference, id, "entry no longer tracked; skipping inference")
		return "skipped"
	}
	if !current.UploadsComplete() {
		out.emit(ctx, LevelWarn, PhaseInference, id, "uploads incomplete (video %s, params %s); skipping inference",
			current.VideoUploadStatus, current.ParamUploadStatus)
		return "skipped"
	}

	prior := current.InferenceStatus
	p.store.Modify(ctx, id, func(e entry.Entry) entry.Entry {
		return entry.SetInference(e, entry.InferenceRunning, nil)
	})
	out.emit(ctx, LevelInfo, PhaseInference, id, "requesting inference status")

	result, err := p.inquirer.Inference(ctx, entry.InferenceKey(id))
	if err != nil {
		p.store.Modify(ctx, id, func(e entry.Entry) entry.Entry {
			return entry.SetInference(e, entry.InferenceFailed, nil)
		})
		p.metrics.ObservePoll("error")
		out.emit(ctx, LevelError, PhaseInference, id, "inference request failed (%s): %v", services.FailureKind(err), err)
		return "error"
	}

	outcome := "ignored"
	p.store.Modify(ctx, id, func(fresh entry.Entry) entry.Entry {
		var next entry.Entry
		next, outcome = interpret(fresh, prior, result)
		return next
	})
	p.metrics.ObservePoll(outcome)

	switch outcome {
	case "completed":
		out.emit(ctx, LevelInfo, PhaseInference, id, "inference completed")
	case "failed":
		out.emit(ctx, LevelError, PhaseInference, id, "server reported inference %s", result.Status)
	case "reupload":
		out.emit(ctx, LevelWarn, PhaseInference, id, "server requested reupload (video %t, params %t)",
			result.Reupload.Video, result.Reupload.Params)
	case "reupload_deferred":
		out.emit(ctx, LevelWarn, PhaseInference, id, "server requested reupload while an upload is in flight; leaving statuses unchanged")
	case "waiting":
		out.emit(ctx, LevelInfo, PhaseInference, id, "inference waiting")
	case "running":
		out.emit(ctx, LevelInfo, PhaseInference, id, "inference still running")
	default:
		out.emit(ctx, LevelWarn, PhaseInference, id, "unrecognized inference response ignored")
	}
	if outcome == "reupload_deferred" {
		return "ignored"
	}
	return outcome
}

// interpret applies an inference response to the freshly read entry. prior is
// the inference status held before the poll marked it running.
func interpret(fresh entry.Entry, prior entry.InferenceStatus, result transport.InferenceResult) (entry.Entry, string) {
	switch result.Status {
	case string(entry.InferenceCompleted):
		return entry.SetInference(fresh, entry.InferenceCompleted, result.Raw), "completed"
	case "error", string(entry.InferenceFailed):
		return entry.SetInference(fresh, entry.InferenceFailed, result.Raw), "failed"
	case string(entry.InferenceWaiting):
		if !result.Reupload.Any() {
			return entry.SetInference(fresh, entry.InferenceWaiting, result.Raw), "waiting"
		}
		if fresh.UploadInFlight() {
			return entry.SetInference(fresh, prior, nil), "reupload_deferred"
		}
		next := entry.Invalidate(fresh, result.Reupload.Video, result.Reupload.Params)
		return entry.SetInference(next, entry.InferenceWaiting, result.Raw), "reupload"
	case string(entry.InferenceNew), string(entry.InferenceRunning):
		return entry.SetInference(fresh, entry.InferenceRunning, result.Raw), "running"
	default:
		return entry.SetInference(fresh, prior, nil), "ignored"
	}
}
