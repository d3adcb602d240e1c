package insight

import (
	"context"
	"errors"
)

// Sentinel errors for the generation step.
var (
	// ErrUpstreamUnavailable means the generative-content service could not be
	// reached or answered with an error status.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamTimeout means the upstream call exceeded its time bound.
	ErrUpstreamTimeout = errors.New("upstream timed out")

	// ErrMalformedPayload means the upstream text did not parse into a report.
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

// Kind is the error kind carried by an error frame.
type Kind string

const (
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	KindUpstreamTimeout     Kind = "UpstreamTimeout"
	KindMalformedPayload    Kind = "MalformedUpstreamPayload"
)

// KindOf classifies err into a wire error kind.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return KindMalformedPayload
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamTimeout
	default:
		return KindUpstreamUnavailable
	}
}
