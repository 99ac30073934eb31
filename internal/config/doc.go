// Package config loads, normalizes, and validates fieldsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FIELDSYNC_SERVER_URL. The Config type centralizes every knob the sync engine
// and CLI need, so the server endpoint, state directory, and transport
// metadata are discovered in one pass and threaded explicitly into
// constructors rather than read from globals.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
