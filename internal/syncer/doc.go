// Package syncer runs synchronization cycles against an inference server.
//
// A cycle reconciles the caller's media items with the entry store, uploads
// the video and parameter payloads of entries that need them, then polls the
// server for inference on entries whose uploads are complete. Each phase
// reports progress as Messages and keeps failures inside the entry they
// concern; only a failed reconciliation fails the cycle.
//
// Engine serializes cycles per server URL. Within a cycle the two payloads of
// one entry upload concurrently and entries run one at a time unless
// sync.workers allows a bounded pool. Nothing is retried inside a cycle: a
// failed payload is sent again on the next explicit Sync call.
package syncer
