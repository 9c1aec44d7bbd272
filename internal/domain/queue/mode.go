package queue

import "github.com/cockroachdb/errors"

// PlayMode governs what plays after a natural track end and what the
// next/previous navigation operations mean.
type PlayMode int

const (
	ModeSequence PlayMode = iota // Play in order, stop after the last track
	ModeListLoop                 // Play in order, wrap at the boundaries
	ModeSingle                   // Replay the current track forever
	ModeRandom                   // Pick a random other track after each end
)

// String returns the string representation of the play mode.
func (m PlayMode) String() string {
	switch m {
	case ModeSequence:
		return "sequence"
	case ModeListLoop:
		return "list-loop"
	case ModeSingle:
		return "single"
	case ModeRandom:
		return "random"
	default:
		return "unknown"
	}
}

// ParseMode parses a play mode name as produced by String.
func ParseMode(s string) (PlayMode, error) {
	switch s {
	case "sequence":
		return ModeSequence, nil
	case "list-loop":
		return ModeListLoop, nil
	case "single":
		return ModeSingle, nil
	case "random":
		return ModeRandom, nil
	default:
		return ModeSequence, errors.Newf("unknown play mode: %q", s)
	}
}

// Wraps reports whether next/previous navigation wraps at queue boundaries.
func (m PlayMode) Wraps() bool {
	return m == ModeListLoop
}
