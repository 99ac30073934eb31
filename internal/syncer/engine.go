package syncer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/metrics"
	"fieldsync/internal/services"
	"fieldsync/internal/store"
	"fieldsync/internal/transport"
)

// Client is the server API a cycle needs.
type Client interface {
	Sender
	Inquirer
}

// ClientFactory builds a Client for a normalized server URL.
type ClientFactory func(serverURL string) (Client, error)

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClientFactory replaces the default HTTP transport, mainly for tests.
func WithClientFactory(f ClientFactory) EngineOption {
	return func(e *Engine) { e.newClient = f }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) EngineOption {
	return func(e *Engine) { e.metrics = rec }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine runs synchronization cycles.
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	metrics   *metrics.Recorder
	logger    *slog.Logger
	newClient ClientFactory
	locks     keyedLock
	now       func() time.Time
}

// NewEngine builds an Engine over st. cfg supplies server metadata, worker
// count, and the cycle deadline; a nil cfg uses defaults.
func NewEngine(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...EngineOption) *Engine {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	e := &Engine{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.newClient == nil {
		e.newClient = func(serverURL string) (Client, error) {
			return transport.NewFromConfig(cfg, serverURL, logger)
		}
	}
	return e
}

// Sync runs one cycle for serverURL (falling back to server.url from the
// config when empty). Cycles for the same server run one at a time. Only a
// failure before or during reconciliation is returned as an error; per-entry
// failures are recorded on the entries and counted in the Report.
func (e *Engine) Sync(ctx context.Context, serverURL string, items []MediaItem, report Reporter) (Report, error) {
	start := e.now()
	out := emitter{report: report, logger: e.logger, now: e.now}

	serverURL = normalizeServerURL(serverURL)
	if serverURL == "" {
		serverURL = normalizeServerURL(e.cfg.Server.URL)
	}
	if err := config.ValidateServerURL(serverURL); err != nil {
		err = services.Wrap(services.ErrConfiguration, string(PhaseReconcile), "server url", "", err)
		out.emit(ctx, LevelError, PhaseReconcile, "", "%v", err)
		return Report{ServerURL: serverURL}, err
	}

	release, err := e.locks.acquire(ctx, serverURL)
	if err != nil {
		return Report{ServerURL: serverURL, Cancelled: true}, services.Wrap(services.ErrTimeout, string(PhaseCycle), "wait for previous cycle", serverURL, err)
	}
	defer release()

	cycleID := uuid.NewString()
	rep := Report{CycleID: cycleID, ServerURL: serverURL}
	ctx = services.WithCycleID(ctx, cycleID)
	ctx = services.WithServerURL(ctx, serverURL)
	if timeout := e.cfg.CycleTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := "ok"
	defer func() {
		e.metrics.ObserveCycle(result, e.now().Sub(start))
	}()

	client, err := e.newClient(serverURL)
	if err != nil {
		result = "error"
		err = services.Wrap(services.ErrConfiguration, string(PhaseReconcile), "build client", serverURL, err)
		out.emit(ctx, LevelError, PhaseReconcile, "", "%v", err)
		return rep, err
	}

	out.emit(ctx, LevelInfo, PhaseCycle, "", "synchronizing %d media items with %s", len(items), serverURL)
	plan, err := Reconcile(ctx, e.store, items)
	if err != nil {
		result = "error"
		out.emit(ctx, LevelError, PhaseReconcile, "", "reconciliation failed: %v", err)
		return rep, err
	}
	rep.Entries = len(plan.Entries)
	rep.Pruned = len(plan.Pruned)
	if rep.Pruned > 0 {
		out.emit(ctx, LevelInfo, PhaseReconcile, "", "pruned %d stale entries", rep.Pruned)
	}
	if len(plan.Entries) == 0 {
		rep.NothingToSync = true
		result = "empty"
		out.emit(ctx, LevelInfo, PhaseCycle, "", "nothing to synchronize")
		return rep, nil
	}
	out.emit(ctx, LevelInfo, PhaseReconcile, "", "%d to upload, %d to poll", len(plan.Upload), len(plan.InferenceOnly))

	workers := e.cfg.Sync.Workers
	rep.Upload = NewUploader(e.store, client, e.metrics, e.logger, workers).Run(ctx, plan.Upload, report)
	rep.Inference = NewPoller(e.store, client, e.metrics, e.logger, workers).Run(ctx, plan.InferenceOnly, report)

	if ctxErr := ctx.Err(); ctxErr != nil {
		rep.Cancelled = true
		result = "cancelled"
		reason := "cycle cancelled"
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			reason = "cycle deadline reached"
		}
		out.emit(ctx, LevelWarn, PhaseCycle, "", "%s; remaining entries wait for the next sync", reason)
	}

	rep.Duration = e.now().Sub(start)
	out.emit(ctx, LevelInfo, PhaseCycle, "", "sync finished: %s", rep.Summary())
	return rep, nil
}

// Store exposes the engine's entry store.
func (e *Engine) Store() *store.Store {
	return e.store
}

func normalizeServerURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
