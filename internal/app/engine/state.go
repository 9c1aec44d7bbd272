// Package engine provides the playback engine driving a single audio
// output device.
package engine

// State represents the engine state.
//
// Valid transitions:
//   - Idle    → Loading (via Load)
//   - Loading → Playing, Paused, Error
//   - Playing ⇄ Paused
//   - Playing → Ended   (natural completion)
//   - Ended   → Playing (replay), Idle (via Stop or a new Load)
//   - any     → Error   (device failure)
//   - any     → Idle    (via Stop or the reset at the start of a Load)
//
// Idle and Error are the only states reachable without an active load.
type State int

const (
	StateIdle    State = iota // No source loaded
	StateLoading              // Source being prepared
	StatePlaying              // Source playing
	StatePaused               // Source loaded, playback suspended
	StateEnded                // Source finished naturally
	StateError                // Load or playback failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Loaded reports whether a source is loaded and playable.
func (s State) Loaded() bool {
	return s == StatePlaying || s == StatePaused || s == StateEnded
}
