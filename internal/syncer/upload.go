package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldsync/internal/entry"
	"fieldsync/internal/logging"
	"fieldsync/internal/metrics"
	"fieldsync/internal/services"
	"fieldsync/internal/store"
	"fieldsync/internal/transport"
)

// Sender performs the two upload requests.
type Sender interface {
	UploadVideo(ctx context.Context, id, mediaPath string, params entry.Params) (transport.UploadResult, error)
	UploadParams(ctx context.Context, id string, params entry.Params) (transport.UploadResult, error)
}

// Uploader sends the payloads of upload-set entries.
type Uploader struct {
	store   *store.Store
	sender  Sender
	metrics *metrics.Recorder
	logger  *slog.Logger
	workers int
	now     func() time.Time
}

// NewUploader builds an Uploader. workers <= 1 processes entries in order.
func NewUploader(st *store.Store, sender Sender, rec *metrics.Recorder, logger *slog.Logger, workers int) *Uploader {
	return &Uploader{
		store:   st,
		sender:  sender,
		metrics: rec,
		logger:  logging.NewComponentLogger(logger, "uploader"),
		workers: workers,
		now:     time.Now,
	}
}

// Run uploads every entry in ids. A failure stays with its entry; Run never
// aborts the batch and never returns an error.
func (u *Uploader) Run(ctx context.Context, ids []string, report Reporter) UploadSummary {
	out := emitter{report: report, logger: u.logger, now: u.now}
	var (
		mu      sync.Mutex
		summary UploadSummary
	)
	tally := func(fn func(*UploadSummary)) {
		mu.Lock()
		defer mu.Unlock()
		fn(&summary)
	}

	forEachEntry(ctx, ids, u.workers, func(id string) {
		u.uploadEntry(ctx, id, out, tally)
	})
	return summary
}

func (u *Uploader) uploadEntry(ctx context.Context, id string, out emitter, tally func(func(*UploadSummary))) {
	ctx = services.WithEntryID(services.WithPhase(ctx, string(PhaseUpload)), id)
	current, ok := u.store.Get(id)
	if !ok {
		out.emit(ctx, LevelWarn, PhaseUpload, id, "entry no longer tracked; skipping upload")
		tally(func(s *UploadSummary) { s.Skipped++ })
		return
	}
	if !current.NeedsUpload() {
		out.emit(ctx, LevelWarn, PhaseUpload, id, "video and params already uploaded; skipping")
		tally(func(s *UploadSummary) { s.Skipped++ })
		return
	}

	var g errgroup.Group
	for _, payload := range []entry.Payload{entry.PayloadVideo, entry.PayloadParams} {
		if current.UploadStatusOf(payload) == entry.UploadUploaded {
			continue
		}
		g.Go(func() error {
			result := u.uploadPayload(ctx, current, payload, out)
			tally(func(s *UploadSummary) {
				switch result {
				case "uploaded":
					s.Uploaded++
				case "rejected":
					s.Rejected++
				default:
					s.Failed++
				}
			})
			return nil
		})
	}
	_ = g.Wait()
}

// uploadPayload moves one payload through uploading to uploaded or failed and
// returns the metric result label.
func (u *Uploader) uploadPayload(ctx context.Context, snapshot entry.Entry, payload entry.Payload, out emitter) string {
	id := snapshot.ID
	u.store.Modify(ctx, id, func(e entry.Entry) entry.Entry {
		return entry.MarkUploading(e, payload)
	})
	out.emit(ctx, LevelInfo, PhaseUpload, id, "sending %s", payload)

	var (
		result transport.UploadResult
		err    error
	)
	switch payload {
	case entry.PayloadVideo:
		result, err = u.sender.UploadVideo(ctx, id, snapshot.MediaPath, snapshot.Params)
	default:
		result, err = u.sender.UploadParams(ctx, id, snapshot.Params)
	}

	if err != nil {
		u.store.Modify(ctx, id, func(e entry.Entry) entry.Entry {
			return entry.FailUpload(e, payload)
		})
		u.metrics.ObserveUpload(string(payload), "failed")
		next := "retrying next sync"
		if !services.IsTransient(err) {
			next = "fix the media item before the next sync"
		}
		out.emit(ctx, LevelError, PhaseUpload, id, "%s upload failed (%s): %v; %s", payload, services.FailureKind(err), err, next)
		return "failed"
	}

	u.store.Modify(ctx, id, func(e entry.Entry) entry.Entry {
		return entry.RecordUpload(e, payload, result.Accepted, result.Raw)
	})
	if result.Accepted {
		u.metrics.ObserveUpload(string(payload), "uploaded")
		out.emit(ctx, LevelInfo, PhaseUpload, id, "%s uploaded", payload)
		return "uploaded"
	}
	u.metrics.ObserveUpload(string(payload), "rejected")
	status := result.Status
	if status == "" {
		status = "no status"
	}
	out.emit(ctx, LevelWarn, PhaseUpload, id, "%s rejected by server (http %d, %s)", payload, result.HTTPStatus, status)
	return "rejected"
}

// forEachEntry calls fn for each id, sequentially when workers <= 1 and through
// a bounded pool otherwise. It stops starting new entries once ctx is done.
func forEachEntry(ctx context.Context, ids []string, workers int, fn func(id string)) {
	if workers <= 1 {
		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}
			fn(id)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(id)
			return nil
		})
	}
	_ = g.Wait()
}
