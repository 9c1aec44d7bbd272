package audio

import (
	"context"

	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/domain/queue"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// SetQueue replaces the queue contents and positions playback at
// startIndex without starting playback.
func (s *Service) SetQueue(tracks []track.Track, startIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.q.Replace(tracks, startIndex)
	s.completed = false
	s.sendEventLocked(TopicQueueChange, s.queueSnapshotLocked())
	s.notifyLocked()
}

// AddToQueue inserts a track at the given index; a negative index
// appends. Inserting before the current track shifts the position
// forward so the playing track is unaffected.
func (s *Service) AddToQueue(t track.Track, at int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at < 0 {
		s.q.Append(t)
	} else {
		s.q.Insert(t, at)
	}
	s.completed = false
	s.sendEventLocked(TopicQueueChange, s.queueSnapshotLocked())
	s.notifyLocked()
}

// RemoveFromQueue removes the track at index. Removing the currently
// playing track advances playback to the track that slides into the same
// position, or stops when the queue becomes empty. An out-of-range index
// is ignored.
func (s *Service) RemoveFromQueue(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasPlaying := s.eng.State() == engine.StatePlaying
	wasCurrent, ok := s.q.Remove(index)
	if !ok {
		return
	}
	s.sendEventLocked(TopicQueueChange, s.queueSnapshotLocked())

	if !wasCurrent {
		s.notifyLocked()
		return
	}

	switch {
	case s.q.IsEmpty():
		s.eng.Stop()
		s.st.Track = nil
		s.st.Position = 0
		s.st.Duration = 0
		s.projectEngineLocked(engine.StateIdle)
		s.sendEventLocked(TopicStop, nil)
		s.notifyLocked()
	case wasPlaying:
		_ = s.playIndexLocked(context.Background(), s.q.CurrentIndex())
	default:
		// Removed the current track while not playing: drop the stale
		// source and point at the track now occupying the position.
		s.eng.Stop()
		if cur, ok := s.q.Current(); ok {
			t := cur
			s.st.Track = &t
		}
		s.st.Position = 0
		s.projectEngineLocked(engine.StateIdle)
		s.notifyLocked()
	}
}

// ClearQueue removes every track and stops playback.
func (s *Service) ClearQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eng.Stop()
	s.q.Clear()
	s.completed = false
	s.st.Track = nil
	s.st.Position = 0
	s.st.Duration = 0
	s.projectEngineLocked(engine.StateIdle)
	s.sendEventLocked(TopicQueueChange, s.queueSnapshotLocked())
	s.sendEventLocked(TopicStop, nil)
	s.notifyLocked()
}

// PlayFromQueue starts playback at the given queue index. Out-of-range
// indices are clamped into range; an empty queue sets the user-visible
// error instead of failing.
func (s *Service) PlayFromQueue(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playIndexLocked(ctx, index)
}

// SetPlayMode switches the play-mode policy. Leaving Single while the
// engine sits in Ended resets the snapshot to a clean paused state
// instead of keeping a stale "ended" one; leaving Random re-triggers the
// next-track preload.
func (s *Service) SetPlayMode(mode queue.PlayMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.mode
	if old == mode {
		return
	}
	s.mode = mode

	if old == queue.ModeSingle && s.eng.State() == engine.StateEnded {
		s.st.IsPlaying = false
		s.st.IsPaused = true
		s.st.IsLoading = false
		s.st.Err = ""
	}
	if old == queue.ModeRandom {
		s.preloadNextLocked()
	}
	s.sendEventLocked(TopicPlayModeChange, mode)
	s.notifyLocked()
}
