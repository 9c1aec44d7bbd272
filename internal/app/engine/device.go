package engine

import (
	"context"
	"time"
)

// Device is the single underlying audio output the engine drives.
//
// Implementations wrap one of the engine's sentinel errors (ErrNetwork,
// ErrDecode, ErrUnsupported) in Open/Start failures so the engine can
// classify them; any other error is reported as unknown.
type Device interface {
	// Open prepares the given source for playback, replacing any
	// previously opened source. It returns the source duration when the
	// device can determine it, zero otherwise. Open honors ctx
	// cancellation and deadlines.
	Open(ctx context.Context, sourceURL string) (time.Duration, error)

	// Start begins or resumes playback of the opened source.
	Start() error

	// Pause suspends playback, keeping the position.
	Pause() error

	// Stop halts playback and rewinds to position zero.
	Stop() error

	// SeekTo moves the playback position. The position has already been
	// clamped by the engine.
	SeekTo(pos time.Duration) error

	// SetGain sets the output gain on a linear 0..1 scale.
	SetGain(v float64) error

	// Position returns the current playback position.
	Position() time.Duration

	// Buffered returns the fraction of the source available for playback,
	// in [0, 1].
	Buffered() float64

	// SetOnEnded registers the callback invoked once when the opened
	// source completes naturally. A new Open replaces the registration.
	SetOnEnded(fn func())

	// Close releases the device.
	Close() error
}
