package audio

import (
	"context"
	"time"

	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// PlayTrack plays the given track immediately. If the track is already in
// the queue the current position moves to it; otherwise the queue is left
// untouched. Resolution and load failures are surfaced in the composite
// state and returned.
func (s *Service) PlayTrack(ctx context.Context, t track.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.q.IndexOf(t.ID)
	if idx >= 0 {
		idx = s.q.SetCurrent(idx)
		if qt, ok := s.q.Track(idx); ok {
			t = qt
		}
	}
	return s.startTrackLocked(ctx, t, idx)
}

// Play resumes in place when a current track exists, is paused and the
// queue is not marked completed. Otherwise it picks a start index: 0 when
// the queue was just completed, the engine is in Ended or Error, or no
// current track exists; the existing current index otherwise.
func (s *Service) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	es := s.eng.State()
	if cur, ok := s.q.Current(); ok && es == engine.StatePaused && !s.completed {
		if err := s.eng.Play(); err != nil {
			return err
		}
		s.projectEngineLocked(engine.StatePlaying)
		s.sendEventLocked(TopicPlay, cur)
		s.notifyLocked()
		return nil
	}

	if s.q.IsEmpty() {
		s.setErrorLocked(msgQueueEmpty)
		return nil
	}

	start := s.q.CurrentIndex()
	if s.completed || start < 0 || es == engine.StateEnded || es == engine.StateError {
		start = 0
	}
	return s.playIndexLocked(ctx, start)
}

// Pause suspends playback. Pausing while already paused still emits the
// pause event.
func (s *Service) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.eng.Pause(); err != nil {
		// Nothing loaded, nothing to pause.
		return
	}
	s.projectEngineLocked(engine.StatePaused)
	cur, _ := s.q.Current()
	s.sendEventLocked(TopicPause, cur)
	s.notifyLocked()
}

// Stop halts playback and resets the position. The current track stays
// visible in the composite state.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eng.Stop()
	s.st.Position = 0
	s.projectEngineLocked(engine.StateIdle)
	s.sendEventLocked(TopicStop, nil)
	s.notifyLocked()
}

// Seek moves the playback position, clamped to the known duration. It is
// a no-op when the duration is unknown.
func (s *Service) Seek(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dur := s.eng.Duration()
	if dur <= 0 {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > dur {
		pos = dur
	}
	s.eng.Seek(pos)
	s.st.Position = pos
	s.sendEventLocked(TopicSeek, pos)
	s.notifyLocked()
}

// SetVolume sets the playback volume, clamped to [0, 1]. Setting a
// volume explicitly leaves any mute state behind.
func (s *Service) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eng.SetVolume(v)
	s.st.Volume = s.eng.Volume()
	s.st.Muted = false
	s.sendEventLocked(TopicVolumeChange, s.st.Volume)
	s.notifyLocked()
}

// ToggleMute silences playback, remembering the volume so a second toggle
// restores it exactly.
func (s *Service) ToggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.st.Muted {
		s.st.PreviousVolume = s.st.Volume
		s.eng.SetVolume(0)
		s.st.Volume = 0
		s.st.Muted = true
	} else {
		s.eng.SetVolume(s.st.PreviousVolume)
		s.st.Volume = s.st.PreviousVolume
		s.st.Muted = false
	}
	s.sendEventLocked(TopicVolumeChange, s.st.Volume)
	s.notifyLocked()
}
