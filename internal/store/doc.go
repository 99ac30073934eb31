// Package store owns the canonical in-memory collection of sync entries and
// mirrors every mutation to a persist.Adapter.
//
// Mutators replace entries wholesale (entries are values) and return a copy of
// the full collection, so no caller ever holds a live reference into the store.
// A mutex serializes mutations and the snapshot save that follows each one, so
// saves land in mutation order. Save failures are logged and counted; the
// in-memory collection stays authoritative for the rest of the process.
//
// Open applies crash recovery: uploads left "uploading" become "failed" and a
// "running" inference goes back to "new", since nothing is in flight after a
// restart.
package store
