// Package services defines shared utilities consumed by the sync engine and its
// integrations.
//
// Key responsibilities:
//   - Context helpers that stamp entry IDs, phase names, and cycle identifiers
//     for logging and request correlation.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (transport, server, persistence) without string matching.
//
// Use these helpers when wiring new sync logic so error handling and
// observability stay uniform across phases.
package services
