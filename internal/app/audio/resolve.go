package audio

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/domain/queue"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// playIndexLocked positions the queue at index and starts that track.
// Must be called with the lock held.
func (s *Service) playIndexLocked(ctx context.Context, index int) error {
	if s.q.IsEmpty() {
		s.setErrorLocked(msgQueueEmpty)
		return nil
	}
	idx := s.q.SetCurrent(index)
	t, _ := s.q.Track(idx)
	return s.startTrackLocked(ctx, t, idx)
}

// startTrackLocked is the one path through which any track starts
// playing: fade out what is playing, resolve the source, load it, preload
// the next track and start playback.
// Must be called with the lock held.
func (s *Service) startTrackLocked(ctx context.Context, t track.Track, idx int) error {
	s.playGen++
	s.st.Err = ""
	s.completed = false

	if s.cfg.FadeEnabled && s.eng.State() == engine.StatePlaying {
		s.eng.FadeOut(s.cfg.FadeDuration)
	}

	loaded, warn, err := s.resolveAndLoadLocked(ctx, t, idx)
	if err != nil {
		msg := msgResolutionFatal
		var lerr *engine.LoadError
		if errors.As(err, &lerr) {
			msg = lerr.Error()
		}
		s.st.Track = &t
		s.projectEngineLocked(engine.StateError)
		s.setErrorLocked(msg)
		return err
	}
	s.st.Err = warn

	if s.cfg.FadeEnabled {
		err = s.eng.FadeIn(s.cfg.FadeDuration)
	} else {
		err = s.eng.Play()
	}
	if err != nil {
		s.projectEngineLocked(engine.StateError)
		s.setErrorLocked(err.Error())
		return err
	}

	s.st.Track = &loaded
	s.st.Position = 0
	s.st.Duration = s.eng.Duration()
	s.projectEngineLocked(engine.StatePlaying)
	s.sendEventLocked(TopicPlay, loaded)
	s.notifyLocked()

	s.preloadNextLocked()
	return nil
}

// resolveAndLoadLocked resolves the track's source if needed and loads it
// into the engine. When resolution is exhausted it downgrades to the
// fallback tone; a non-empty warn reports that downgrade. If the fallback
// itself fails to load, the original resolution error is returned.
func (s *Service) resolveAndLoadLocked(ctx context.Context, t track.Track, idx int) (track.Track, string, error) {
	if t.NeedsResolution() {
		url, rerr := s.resolveWithRetry(ctx, t.ID)
		if rerr != nil {
			return s.loadFallbackToneLocked(ctx, t, rerr)
		}
		t = t.WithSource(url)
		if idx >= 0 {
			s.q.BackfillSource(idx, url)
		}
	}
	if err := s.eng.Load(ctx, t); err != nil {
		return t, "", err
	}
	return t, "", nil
}

// loadFallbackToneLocked synthesizes and loads a placeholder tone after
// resolution has been exhausted. Failures here surface the original
// resolution error, never the tone's own.
func (s *Service) loadFallbackToneLocked(ctx context.Context, t track.Track, rerr error) (track.Track, string, error) {
	dur := t.Duration
	if dur <= 0 {
		dur = 3 * time.Second
	}
	locator, terr := s.tones.Generate(s.cfg.ToneFrequency, dur, s.cfg.ToneWaveform)
	if terr != nil {
		zlog.Warn().Msgf("audio: fallback tone generation failed: track=%s err=%v", t.ID, terr)
		return t, "", rerr
	}
	ft := t.WithSource(locator)
	if lerr := s.eng.Load(ctx, ft); lerr != nil {
		zlog.Warn().Msgf("audio: fallback tone load failed: track=%s err=%v", t.ID, lerr)
		return t, "", rerr
	}
	zlog.Info().Msgf("audio: playing fallback tone: track=%s cause=%v", t.ID, rerr)
	return ft, msgFallbackTone, nil
}

// resolveWithRetry asks the resolver for a playable source, retrying a
// bounded number of times with a fixed delay.
func (s *Service) resolveWithRetry(ctx context.Context, trackID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ResolveRetries; attempt++ {
		url, err := s.resolver.Resolve(ctx, trackID)
		if err == nil && url != "" {
			return url, nil
		}
		if err == nil {
			err = errors.Newf("resolver returned no source for track %s", trackID)
		}
		lastErr = err
		zlog.Debug().Msgf("audio: resolution attempt %d/%d failed: track=%s err=%v",
			attempt, s.cfg.ResolveRetries, trackID, err)

		if attempt == s.cfg.ResolveRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "source resolution canceled")
		case <-time.After(s.cfg.ResolveRetryDelay):
		}
	}
	wrapped := errors.Wrapf(lastErr, "source resolution exhausted after %d attempts", s.cfg.ResolveRetries)
	return "", errors.Mark(wrapped, ErrResolutionExhausted)
}

// preloadNextLocked opportunistically resolves the source of the track
// that would play next in the current mode. Fire-and-forget: failures are
// logged and never reach the caller. Random mode is skipped because the
// next pick is unpredictable.
// Must be called with the lock held.
func (s *Service) preloadNextLocked() {
	if s.mode == queue.ModeRandom {
		return
	}
	next, ok := s.q.NextIndex(s.mode.Wraps())
	if !ok {
		return
	}
	t, ok := s.q.Track(next)
	if !ok || !t.NeedsResolution() {
		return
	}
	gen := s.playGen

	go func() {
		url, err := s.resolver.Resolve(s.ctx, t.ID)
		if err != nil || url == "" {
			zlog.Debug().Msgf("audio: preload resolution failed: track=%s err=%v", t.ID, err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.playGen {
			return
		}
		if got, ok := s.q.Track(next); ok && got.ID == t.ID {
			s.q.BackfillSource(next, url)
		}
	}()
}
