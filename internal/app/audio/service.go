// Package audio provides the playback orchestration service: it owns the
// play queue and play-mode policy, resolves playable sources with retry
// and fallback, and aggregates engine events into the UI-facing composite
// state.
package audio

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/app/eventbus"
	"github.com/cadenza-player/cadenza/internal/domain/queue"
)

// ErrResolutionExhausted marks errors returned after every resolution
// attempt has failed, so callers can match them with errors.Is.
var ErrResolutionExhausted = errors.New("source resolution exhausted")

// Stable user-visible messages. The UI renders these strings directly.
const (
	msgQueueEmpty      = "the play queue is empty"
	msgResolutionFatal = "the track source could not be resolved"
	msgFallbackTone    = "source unavailable, playing a placeholder tone"
)

// SongResolver resolves a track ID to a playable source URL. The service
// performs retries itself; resolvers must not retry internally.
type SongResolver interface {
	Resolve(ctx context.Context, trackID string) (string, error)
}

// ToneGenerator synthesizes a fallback tone and returns its source
// locator. It is only consulted after resolution has been exhausted.
type ToneGenerator interface {
	Generate(frequency float64, duration time.Duration, waveform string) (string, error)
}

// Config holds service configuration.
type Config struct {
	FadeEnabled          bool
	FadeDuration         time.Duration // Zero disables fading regardless of FadeEnabled
	ResolveRetries       int           // Zero means the default of 3
	ResolveRetryDelay    time.Duration // Zero means the default of 1s
	PreviousRestartAfter time.Duration // Zero means the default of 3s
	ToneFrequency        float64       // Zero means the default of 440Hz
	ToneWaveform         string        // Empty means "sine"
}

func (c Config) withDefaults() Config {
	if c.ResolveRetries <= 0 {
		c.ResolveRetries = 3
	}
	if c.ResolveRetryDelay <= 0 {
		c.ResolveRetryDelay = time.Second
	}
	if c.PreviousRestartAfter <= 0 {
		c.PreviousRestartAfter = 3 * time.Second
	}
	if c.ToneFrequency <= 0 {
		c.ToneFrequency = 440
	}
	if c.ToneWaveform == "" {
		c.ToneWaveform = "sine"
	}
	if c.FadeDuration <= 0 {
		c.FadeEnabled = false
	}
	return c
}

// busEvent is one queued notification, delivered in mutation order.
type busEvent struct {
	topic   eventbus.Topic
	payload any
}

// Service is the playback orchestrator. It composes the engine and the
// event bus and is the sole writer of the queue and composite state.
type Service struct {
	mu sync.Mutex

	cfg      Config
	eng      *engine.Engine
	bus      *eventbus.Bus
	resolver SongResolver
	tones    ToneGenerator
	rng      *rand.Rand

	q         *queue.Queue
	mode      queue.PlayMode
	st        State
	completed bool

	// playGen invalidates fire-and-forget preloads when a newer play
	// command has already changed the current track.
	playGen uint64

	events chan busEvent
	unsubs []func()
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the service, subscribes it to the engine's async events and
// starts the notification dispatcher.
func New(eng *engine.Engine, bus *eventbus.Bus, resolver SongResolver, tones ToneGenerator, cfg Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg.withDefaults(),
		eng:      eng,
		bus:      bus,
		resolver: resolver,
		tones:    tones,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		q:        queue.New(),
		mode:     queue.ModeSequence,
		events:   make(chan busEvent, 256),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.st.Volume = eng.Volume()
	s.recomputeLocked()

	// Engine topics that originate on engine-owned goroutines (progress
	// ticker, device completion callback). Synchronous engine emissions
	// are not subscribed to: the service is the engine's only caller and
	// updates the composite state itself after each call.
	s.unsubs = append(s.unsubs,
		bus.On(engine.TopicTime, s.onEngineTime),
		bus.On(engine.TopicEnded, s.onEngineEnded),
	)

	go s.dispatch()
	return s
}

// Close stops the dispatcher and detaches from the bus. It does not close
// the engine, which is owned by the composition root.
func (s *Service) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.cancel()
}

// Snapshot returns an immutable copy of the composite state.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Queue returns an immutable copy of the play queue.
func (s *Service) Queue() QueueSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueSnapshotLocked()
}

// Mode returns the current play mode.
func (s *Service) Mode() queue.PlayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// OnStateChange subscribes to composite state snapshots and returns the
// unsubscribe function.
func (s *Service) OnStateChange(cb func(State)) func() {
	return s.bus.On(TopicStateChange, func(payload any) {
		if st, ok := payload.(State); ok {
			cb(st)
		}
	})
}

// dispatch delivers queued notifications in order. Running the bus off
// the service lock lets handlers call back into the service freely.
func (s *Service) dispatch() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.bus.Emit(ev.topic, ev.payload)
		}
	}
}

// sendEventLocked queues a notification without blocking.
// Must be called with the lock held.
func (s *Service) sendEventLocked(topic eventbus.Topic, payload any) {
	select {
	case s.events <- busEvent{topic: topic, payload: payload}:
	case <-s.ctx.Done():
	default:
		zlog.Warn().Msgf("audio: event queue full, dropping %s", topic)
	}
}

// notifyLocked recomputes derived flags and queues a statechange snapshot.
func (s *Service) notifyLocked() {
	s.recomputeLocked()
	s.sendEventLocked(TopicStateChange, s.snapshotLocked())
}

// setErrorLocked records a user-visible error message and notifies.
func (s *Service) setErrorLocked(msg string) {
	s.st.Err = msg
	s.sendEventLocked(TopicError, msg)
	s.notifyLocked()
}

// onEngineTime folds periodic progress reports into the composite state.
func (s *Service) onEngineTime(payload any) {
	tu, ok := payload.(engine.TimeUpdate)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Position = tu.Position
	if tu.Duration > 0 {
		s.st.Duration = tu.Duration
	}
	s.st.Buffered = tu.Buffered
	s.notifyLocked()
}
