// Package apierr defines the error taxonomy at the core boundary and how
// each kind maps onto an HTTP response.
package apierr

import (
	"errors"
	"net/http"
)

// Sentinel errors raised by the coordinator. Transport errors to replicas
// and duplicate replicate calls never reach this boundary — they are
// swallowed by the dispatcher and the replica ingress respectively.
var (
	// ErrInvalidWriteConcern is returned when w < 1 or w > N+1.
	ErrInvalidWriteConcern = errors.New("invalid write concern")
	// ErrNoQuorum is returned when the liveness predicate fails; no seq is
	// assigned.
	ErrNoQuorum = errors.New("quorum not satisfied")
)

// StatusFor maps a core error to the HTTP status code it should surface as.
// Unrecognized errors map to 500, which should be unreachable for errors
// actually raised by the coordinator.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidWriteConcern):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoQuorum):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeFor returns the machine-readable error code for err, for the
// {"error": "<code>"} response body.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidWriteConcern):
		return "InvalidWriteConcern"
	case errors.Is(err, ErrNoQuorum):
		return "NoQuorum"
	default:
		return "InternalError"
	}
}
