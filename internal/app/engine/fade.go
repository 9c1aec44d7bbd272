package engine

import (
	"context"
	"time"
)

// FadeOut linearly ramps the gain from the current target volume down to
// zero over d, then pauses. Any in-flight fade is canceled before the new
// ramp starts, so two ramps never fight over the gain. The call blocks
// until the ramp completes or is canceled by a newer command. The
// configured target volume is restored after pausing so a later direct
// Play is not silent.
func (e *Engine) FadeOut(d time.Duration) {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.cancelFadeLocked()
	from := e.volume
	ctx := e.newFadeLocked()
	e.mu.Unlock()

	if !e.runFade(ctx, from, 0, d) {
		return
	}
	_ = e.Pause()
	e.mu.Lock()
	_ = e.dev.SetGain(e.volume)
	e.mu.Unlock()
}

// FadeIn forces the gain to zero, starts playback, then linearly ramps up
// to the configured target volume over d. Any in-flight fade is canceled
// first. The call blocks until the ramp completes or is canceled.
func (e *Engine) FadeIn(d time.Duration) error {
	e.mu.Lock()
	e.cancelFadeLocked()
	to := e.volume
	_ = e.dev.SetGain(0)
	ctx := e.newFadeLocked()
	e.mu.Unlock()

	if err := e.Play(); err != nil {
		e.mu.Lock()
		_ = e.dev.SetGain(e.volume)
		e.mu.Unlock()
		return err
	}
	e.runFade(ctx, 0, to, d)
	return nil
}

// newFadeLocked installs a fresh cancelation context for a fade ramp.
func (e *Engine) newFadeLocked() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	e.fadeCancel = cancel
	return ctx
}

func (e *Engine) cancelFadeLocked() {
	if e.fadeCancel != nil {
		e.fadeCancel()
		e.fadeCancel = nil
	}
}

// runFade steps the device gain from one level to another on a fixed tick.
// It reports whether the ramp ran to completion.
func (e *Engine) runFade(ctx context.Context, from, to float64, d time.Duration) bool {
	steps := int(d / fadeTick)
	if steps < 1 {
		steps = 1
	}
	ticker := time.NewTicker(fadeTick)
	defer ticker.Stop()
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			level := from + (to-from)*float64(i)/float64(steps)
			_ = e.dev.SetGain(level)
		}
	}
	return true
}
