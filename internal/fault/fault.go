// Package fault defines the error classifications shared across the
// retrieval pipeline.
//
// Every component either recovers from a failure (the completion gateway's
// rate-limit retry) or propagates it unchanged with its classification
// intact, so the boundary layer (HTTP handlers, CLI) can map classifications
// to user-visible responses with errors.Is().
//
// Example:
//
//	_, err := store.Upsert(ctx, doc)
//	if errors.Is(err, fault.ErrValidation) {
//	    // 400 Bad Request
//	}
package fault

import "errors"

// Sentinel errors for the core pipeline.
// Wrap with fmt.Errorf("%w: details", fault.ErrXxx) and check with errors.Is().
var (
	// ErrValidation indicates malformed input: empty text, wrong embedding
	// dimension, unsupported filter key, non-positive budget.
	// Never retried; surfaced immediately to the caller.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested document or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage indicates a connectivity or constraint failure in the
	// vector index or the ingestion log. Not retried inside the core.
	ErrStorage = errors.New("storage failure")

	// ErrRateLimited indicates transient upstream throttling on the
	// completion call. Retried internally by the gateway.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceBusy indicates the gateway exhausted its retry budget
	// against a rate-limiting upstream.
	ErrServiceBusy = errors.New("service busy")

	// ErrDeadlineExceeded indicates the caller's time budget ran out
	// during retry backoff. Fatal for that call.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrInvalidRequest indicates the upstream rejected the completion
	// request as malformed. Never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrServiceUnavailable indicates the upstream completion service is
	// unreachable or returned a server error. Never retried.
	ErrServiceUnavailable = errors.New("service unavailable")
)
