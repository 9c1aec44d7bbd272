package engine

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Sentinel errors wrapped by Device implementations so the engine can
// classify failures without knowing device internals.
var (
	ErrNetwork     = errors.New("network failure")
	ErrDecode      = errors.New("decode failure")
	ErrUnsupported = errors.New("unsupported format")
	ErrAborted     = errors.New("operation aborted")

	// ErrNotLoaded is returned by Play/Pause/Seek when no source has been
	// successfully loaded.
	ErrNotLoaded = errors.New("no source loaded")
)

// ErrKind is the closed failure taxonomy surfaced to engine callers.
// Raw device errors never escape the engine unclassified.
type ErrKind int

const (
	KindUnknown ErrKind = iota
	KindNetwork
	KindDecode
	KindFormatUnsupported
	KindAborted
	KindTimeout
)

// String returns the string representation of the error kind.
func (k ErrKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindFormatUnsupported:
		return "format-unsupported"
	case KindAborted:
		return "aborted"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Message returns the stable, human-readable description for the kind.
// UIs render these strings directly, so they must not vary per failure.
func (k ErrKind) Message() string {
	switch k {
	case KindNetwork:
		return "a network error prevented the audio source from loading"
	case KindDecode:
		return "the audio source could not be decoded"
	case KindFormatUnsupported:
		return "the audio format is not supported"
	case KindAborted:
		return "loading was interrupted by a newer command"
	case KindTimeout:
		return "loading the audio source timed out"
	default:
		return "an unknown playback error occurred"
	}
}

// LoadError is a classified engine failure.
type LoadError struct {
	Kind  ErrKind
	cause error
}

// Error implements the error interface with the kind's stable message.
func (e *LoadError) Error() string {
	return e.Kind.Message()
}

// Unwrap exposes the underlying device error for errors.Is chains.
func (e *LoadError) Unwrap() error {
	return e.cause
}

// Classify maps a device or context error onto the closed taxonomy.
func Classify(err error) *LoadError {
	kind := KindUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, ErrAborted):
		kind = KindAborted
	case errors.Is(err, ErrNetwork):
		kind = KindNetwork
	case errors.Is(err, ErrDecode):
		kind = KindDecode
	case errors.Is(err, ErrUnsupported):
		kind = KindFormatUnsupported
	}
	return &LoadError{Kind: kind, cause: err}
}
