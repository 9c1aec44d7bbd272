package engine

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-player/cadenza/internal/app/eventbus"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// Bus topics published by the engine. The audio service aggregates these
// into its composite state; nothing else should need them directly.
const (
	TopicState eventbus.Topic = "engine.state" // payload: State
	TopicTime  eventbus.Topic = "engine.time"  // payload: TimeUpdate
	TopicEnded eventbus.Topic = "engine.ended" // payload: track.Track
	TopicError eventbus.Topic = "engine.error" // payload: *LoadError
)

// TimeUpdate is the periodic progress report published while playing.
type TimeUpdate struct {
	Position time.Duration
	Duration time.Duration
	Buffered float64
}

const (
	defaultLoadTimeout = 10 * time.Second
	fadeTick           = 50 * time.Millisecond
	progressTick       = 100 * time.Millisecond
)

// Config holds engine configuration.
type Config struct {
	LoadTimeout   time.Duration // Zero means the 10s default
	InitialVolume float64       // Clamped into [0, 1]
}

// Engine wraps exactly one audio output device and owns the low-level
// playback state machine, volume, fades, and progress reporting.
type Engine struct {
	mu sync.Mutex

	dev Device
	bus *eventbus.Bus

	state    State
	current  *track.Track
	duration time.Duration
	volume   float64 // configured target volume, fades ramp toward it

	// Supersession: each Load bumps the generation; async completions
	// from an older generation must not touch state.
	loadGen uint64

	progressCancel context.CancelFunc
	fadeCancel     context.CancelFunc

	loadTimeout time.Duration
}

// New creates an engine driving the given device.
func New(dev Device, bus *eventbus.Bus, cfg Config) *Engine {
	timeout := cfg.LoadTimeout
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	return &Engine{
		dev:         dev,
		bus:         bus,
		state:       StateIdle,
		volume:      clampUnit(cfg.InitialVolume),
		loadTimeout: timeout,
	}
}

// Load prepares a track's source for playback, superseding any in-flight
// load or fade. The engine is fully reset to Idle before the new load
// starts; a superseded load can never apply stale state afterwards.
func (e *Engine) Load(ctx context.Context, t track.Track) error {
	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	e.cancelFadeLocked()
	e.stopProgressLocked()
	_ = e.dev.Stop()
	e.current = nil
	e.duration = 0
	e.state = StateIdle
	e.mu.Unlock()
	e.bus.Emit(TopicState, StateIdle)

	e.mu.Lock()
	e.state = StateLoading
	e.mu.Unlock()
	e.bus.Emit(TopicState, StateLoading)

	loadCtx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()
	devDuration, err := e.dev.Open(loadCtx, t.SourceURL)

	e.mu.Lock()
	if gen != e.loadGen {
		// A newer Load took over while Open was in flight.
		e.mu.Unlock()
		return Classify(ErrAborted)
	}
	if err != nil {
		lerr := Classify(err)
		e.state = StateError
		e.mu.Unlock()
		zlog.Warn().Msgf("engine: load failed: track=%s kind=%s err=%v", t.ID, lerr.Kind, err)
		e.bus.Emit(TopicError, lerr)
		e.bus.Emit(TopicState, StateError)
		return lerr
	}

	e.current = &t
	e.duration = devDuration
	if e.duration == 0 {
		e.duration = t.Duration
	}
	e.dev.SetOnEnded(func() { e.onDeviceEnded(gen) })
	_ = e.dev.SetGain(e.volume)
	e.state = StatePaused
	e.mu.Unlock()
	e.bus.Emit(TopicState, StatePaused)
	return nil
}

// Play starts or resumes playback. It requires a previously successful
// Load. Calling Play while already playing is a no-op that still emits
// the state event.
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.current == nil || !e.state.Loaded() {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	if e.state == StatePlaying {
		e.mu.Unlock()
		e.bus.Emit(TopicState, StatePlaying)
		return nil
	}
	if e.state == StateEnded {
		_ = e.dev.SeekTo(0)
	}
	if err := e.dev.Start(); err != nil {
		lerr := Classify(err)
		e.state = StateError
		e.mu.Unlock()
		e.bus.Emit(TopicError, lerr)
		e.bus.Emit(TopicState, StateError)
		return lerr
	}
	e.state = StatePlaying
	e.startProgressLocked()
	e.mu.Unlock()
	e.bus.Emit(TopicState, StatePlaying)
	return nil
}

// Pause suspends playback. Calling Pause while already paused is a no-op
// that still emits the state event.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.current == nil || !e.state.Loaded() {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	if e.state != StatePlaying {
		e.mu.Unlock()
		e.bus.Emit(TopicState, StatePaused)
		return nil
	}
	e.stopProgressLocked()
	_ = e.dev.Pause()
	e.state = StatePaused
	e.mu.Unlock()
	e.bus.Emit(TopicState, StatePaused)
	return nil
}

// Stop halts playback, resets the position to zero and returns to Idle.
// A new Load is required before playing again.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.loadGen++ // invalidate in-flight loads
	e.cancelFadeLocked()
	e.stopProgressLocked()
	_ = e.dev.Stop()
	e.current = nil
	e.duration = 0
	e.state = StateIdle
	e.mu.Unlock()
	e.bus.Emit(TopicState, StateIdle)
}

// Seek moves the position, clamped to [0, duration]. It is a no-op when
// the duration is unknown.
func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	if e.duration <= 0 || !e.state.Loaded() {
		e.mu.Unlock()
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > e.duration {
		pos = e.duration
	}
	_ = e.dev.SeekTo(pos)
	dur := e.duration
	e.mu.Unlock()
	e.bus.Emit(TopicTime, TimeUpdate{
		Position: pos,
		Duration: dur,
		Buffered: e.dev.Buffered(),
	})
}

// SetVolume sets the target volume, clamped to [0, 1]. Any in-flight fade
// is canceled so two ramps never fight over the gain.
func (e *Engine) SetVolume(v float64) {
	v = clampUnit(v)
	e.mu.Lock()
	e.cancelFadeLocked()
	e.volume = v
	_ = e.dev.SetGain(v)
	e.mu.Unlock()
}

// Volume returns the configured target volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the loaded track.
func (e *Engine) Current() (track.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return track.Track{}, false
	}
	return *e.current, true
}

// Position returns the current playback position.
func (e *Engine) Position() time.Duration {
	return e.dev.Position()
}

// Duration returns the duration of the loaded source.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Close stops playback and releases the device.
func (e *Engine) Close() error {
	e.Stop()
	return e.dev.Close()
}

// onDeviceEnded handles natural completion reported by the device.
func (e *Engine) onDeviceEnded(gen uint64) {
	e.mu.Lock()
	if gen != e.loadGen || e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.stopProgressLocked()
	e.state = StateEnded
	ended := *e.current
	e.mu.Unlock()
	e.bus.Emit(TopicState, StateEnded)
	e.bus.Emit(TopicEnded, ended)
}

func (e *Engine) startProgressLocked() {
	e.stopProgressLocked()
	ctx, cancel := context.WithCancel(context.Background())
	e.progressCancel = cancel
	go func() {
		ticker := time.NewTicker(progressTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.bus.Emit(TopicTime, TimeUpdate{
					Position: e.dev.Position(),
					Duration: e.Duration(),
					Buffered: e.dev.Buffered(),
				})
			}
		}
	}()
}

func (e *Engine) stopProgressLocked() {
	if e.progressCancel != nil {
		e.progressCancel()
		e.progressCancel = nil
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
