// Package transport talks to the remote inference server.
//
// Client sends the two upload requests (multipart video, JSON parameters) and
// the inference status request, attaching the environment metadata headers
// every request carries. Network failures come back as errors marked with
// services.ErrTransport; a response the server did send, successful or not, is
// returned as a result with its raw body so callers can store it verbatim.
package transport
