// Package observability provides structured logging for the engine, with
// request/collection/node correlation and redaction of sensitive data before
// it reaches a sink.
//
// Metrics and trace export are an explicit external collaborator (see
// SPEC_FULL.md's DOMAIN STACK) and are not implemented here; this package
// only carries the ambient logging concern.
package observability
