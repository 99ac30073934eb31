// Package persist loads and saves the entry collection as a single snapshot.
//
// The SQLite adapter keeps one row in the snapshots table holding the JSON
// array of entries and rewrites it after every store mutation. An exclusive
// file lock next to the database keeps a second fieldsync process from
// interleaving writes; it fails fast with ErrLocked instead of waiting. The
// Memory adapter backs tests and dry runs.
//
// Schema changes bump schemaVersion; users clear the state directory to adopt
// the new schema.
package persist
