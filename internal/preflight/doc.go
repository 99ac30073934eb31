// Package preflight provides readiness checks for the filesystem paths and
// the inference server that fieldsync depends on.
//
// The CLI "fieldsync doctor" command runs RunAll and renders each Result. The
// checks never mutate state: the state lock is probed and released, and the
// server is only pinged.
package preflight
