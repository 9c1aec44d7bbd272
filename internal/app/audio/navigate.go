package audio

import (
	"context"

	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/domain/queue"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// PlayNext moves to the next track per the current mode and reports
// whether a change occurred. ListLoop wraps at the end, Sequence does
// not, Random picks a random other track.
func (s *Service) PlayNext(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.q.IsEmpty() {
		s.setErrorLocked(msgQueueEmpty)
		return false
	}
	next, ok := s.nextIndexLocked()
	if !ok {
		return false
	}
	return s.playIndexLocked(ctx, next) == nil
}

// PlayPrevious moves to the previous track, with one UX tie-break: when
// more than a few seconds of the current track have elapsed it restarts
// the current track instead.
func (s *Service) PlayPrevious(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.q.IsEmpty() {
		s.setErrorLocked(msgQueueEmpty)
		return false
	}

	// After queue completion the engine still holds the last track while
	// the queue points back at the first, so restarting would play the
	// wrong one.
	if !s.completed && s.eng.State().Loaded() && s.eng.Position() > s.cfg.PreviousRestartAfter {
		s.eng.Seek(0)
		s.st.Position = 0
		if s.eng.State() != engine.StatePlaying {
			if err := s.eng.Play(); err == nil {
				s.projectEngineLocked(engine.StatePlaying)
			}
		}
		s.sendEventLocked(TopicSeek, s.st.Position)
		s.notifyLocked()
		return true
	}

	var prev int
	var ok bool
	if s.mode == queue.ModeRandom {
		prev, ok = s.q.RandomIndex(s.rng)
	} else {
		prev, ok = s.q.PrevIndex(s.mode.Wraps())
	}
	if !ok {
		return false
	}
	return s.playIndexLocked(ctx, prev) == nil
}

// PlayFirst starts the first track in the queue.
func (s *Service) PlayFirst(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.q.IsEmpty() {
		s.setErrorLocked(msgQueueEmpty)
		return false
	}
	return s.playIndexLocked(ctx, 0) == nil
}

// PlayLast starts the last track in the queue.
func (s *Service) PlayLast(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.q.IsEmpty() {
		s.setErrorLocked(msgQueueEmpty)
		return false
	}
	return s.playIndexLocked(ctx, s.q.Len()-1) == nil
}

// PlayRandom starts a uniformly random track other than the current one.
// A single-track queue replays its only track.
func (s *Service) PlayRandom(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.q.IsEmpty() {
		s.setErrorLocked(msgQueueEmpty)
		return false
	}
	idx, ok := s.q.RandomIndex(s.rng)
	if !ok {
		return false
	}
	return s.playIndexLocked(ctx, idx) == nil
}

// nextIndexLocked computes the index that plays after the current track
// in the current mode.
func (s *Service) nextIndexLocked() (int, bool) {
	if s.mode == queue.ModeRandom {
		return s.q.RandomIndex(s.rng)
	}
	return s.q.NextIndex(s.mode.Wraps())
}

// onEngineEnded runs the song-end decision state machine when the device
// reports natural completion.
func (s *Service) onEngineEnded(payload any) {
	ended, ok := payload.(track.Track)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendEventLocked(TopicEnded, ended)

	switch s.mode {
	case queue.ModeSingle:
		s.replayLocked(ended)

	case queue.ModeListLoop:
		if next, ok := s.q.NextIndex(true); ok {
			_ = s.playIndexLocked(context.Background(), next)
		}

	case queue.ModeRandom:
		next, ok := s.q.RandomIndex(s.rng)
		if !ok {
			return
		}
		if next == s.q.CurrentIndex() {
			// Single-track queue: replay instead of reloading.
			s.replayLocked(ended)
			return
		}
		_ = s.playIndexLocked(context.Background(), next)

	default: // Sequence
		if next, ok := s.q.NextIndex(false); ok {
			_ = s.playIndexLocked(context.Background(), next)
			return
		}
		// End of queue: rewind to the start, mark completion and settle
		// into a paused state. Deliberately no auto-restart.
		s.q.SetCurrent(0)
		s.completed = true
		s.st.Err = ""
		s.st.Position = 0
		s.st.IsPlaying = false
		s.st.IsPaused = true
		s.st.IsLoading = false
		s.sendEventLocked(TopicQueueComplete, nil)
		s.notifyLocked()
	}
}

// replayLocked restarts the just-ended track from position zero.
func (s *Service) replayLocked(t track.Track) {
	if err := s.eng.Play(); err != nil {
		s.setErrorLocked(err.Error())
		return
	}
	s.st.Position = 0
	s.projectEngineLocked(engine.StatePlaying)
	s.sendEventLocked(TopicPlay, t)
	s.notifyLocked()
}
