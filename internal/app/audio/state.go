package audio

import (
	"time"

	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/app/eventbus"
	"github.com/cadenza-player/cadenza/internal/domain/queue"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// Public bus topics emitted by the service. UI adapters, stores and
// statistics collectors subscribe to these; they never see engine topics.
const (
	TopicStateChange    eventbus.Topic = "statechange"     // payload: State
	TopicPlay           eventbus.Topic = "play"            // payload: track.Track
	TopicPause          eventbus.Topic = "pause"           // payload: track.Track
	TopicStop           eventbus.Topic = "stop"            // payload: nil
	TopicSeek           eventbus.Topic = "seek"            // payload: time.Duration
	TopicVolumeChange   eventbus.Topic = "volumechange"    // payload: float64
	TopicQueueChange    eventbus.Topic = "queuechange"     // payload: QueueSnapshot
	TopicPlayModeChange eventbus.Topic = "playmodechange"  // payload: queue.PlayMode
	TopicEnded          eventbus.Topic = "ended"           // payload: track.Track
	TopicQueueComplete  eventbus.Topic = "queue-complete"  // payload: nil
	TopicError          eventbus.Topic = "error"           // payload: string
)

// State is the aggregated, UI-facing playback snapshot. The capability
// flags are recomputed from (index, length, mode, engine state) after
// every mutation and are never stored independently.
type State struct {
	Track          *track.Track   `json:"track,omitempty"`
	IsPlaying      bool           `json:"isPlaying"`
	IsPaused       bool           `json:"isPaused"`
	IsLoading      bool           `json:"isLoading"`
	Position       time.Duration  `json:"position"`
	Duration       time.Duration  `json:"duration"`
	Volume         float64        `json:"volume"`
	Muted          bool           `json:"muted"`
	PreviousVolume float64        `json:"previousVolume"`
	Buffered       float64        `json:"buffered"`
	Err            string         `json:"error,omitempty"`
	Mode           queue.PlayMode `json:"-"`
	ModeName       string         `json:"mode"`
	CanPlayNext    bool           `json:"canPlayNext"`
	CanPlayPrev    bool           `json:"canPlayPrevious"`
	QueueCompleted bool           `json:"queueCompleted"`
}

// QueueSnapshot is an immutable copy of the play queue.
type QueueSnapshot struct {
	Tracks       []track.Track  `json:"tracks"`
	CurrentIndex int            `json:"currentIndex"`
	Mode         queue.PlayMode `json:"-"`
	ModeName     string         `json:"mode"`
}

// snapshotLocked copies the composite state. The track pointer is
// duplicated so callers can never mutate service internals.
func (s *Service) snapshotLocked() State {
	st := s.st
	if s.st.Track != nil {
		t := *s.st.Track
		st.Track = &t
	}
	st.Mode = s.mode
	st.ModeName = s.mode.String()
	return st
}

// queueSnapshotLocked copies the queue.
func (s *Service) queueSnapshotLocked() QueueSnapshot {
	return QueueSnapshot{
		Tracks:       s.q.Tracks(),
		CurrentIndex: s.q.CurrentIndex(),
		Mode:         s.mode,
		ModeName:     s.mode.String(),
	}
}

// recomputeLocked derives the capability flags from the queue position,
// length and play mode. Wrap-around modes can always move while the queue
// is non-empty; Sequence and Single stop at the boundaries.
func (s *Service) recomputeLocked() {
	n := s.q.Len()
	idx := s.q.CurrentIndex()

	switch s.mode {
	case queue.ModeListLoop, queue.ModeRandom:
		s.st.CanPlayNext = n > 0
		s.st.CanPlayPrev = n > 0
	default:
		s.st.CanPlayNext = idx >= 0 && idx < n-1
		s.st.CanPlayPrev = idx > 0
	}
	s.st.QueueCompleted = s.completed
}

// projectEngineLocked sets the boolean flags as a pure projection of the
// engine state.
func (s *Service) projectEngineLocked(es engine.State) {
	s.st.IsPlaying = es == engine.StatePlaying
	s.st.IsPaused = es == engine.StatePaused
	s.st.IsLoading = es == engine.StateLoading
}
