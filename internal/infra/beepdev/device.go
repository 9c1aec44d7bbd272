// Package beepdev provides the gopxl/beep-backed audio output device.
//
// It plays local mp3/flac/wav files and http(s) sources, downloading the
// latter before decoding. One process owns one speaker, matching the
// engine's single-output model.
package beepdev

import (
	"context"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/cadenza-player/cadenza/internal/app/engine"
)

const speakerRate = beep.SampleRate(44100)

// Device implements engine.Device on top of the beep speaker.
type Device struct {
	mu sync.Mutex

	initialized bool
	streamer    beep.StreamSeekCloser
	format      beep.Format
	ctrl        *beep.Ctrl
	volume      *effects.Volume
	file        *os.File
	tmpPath     string // downloaded copy to delete on teardown
	queued      bool   // streamer handed to the speaker
	onEnded     func()

	// gen invalidates completion callbacks from superseded sources.
	gen uint64

	httpClient *http.Client
}

// New creates a beep device.
func New() *Device {
	return &Device{
		httpClient: &http.Client{},
	}
}

// Open prepares the source, replacing any previous one.
func (d *Device) Open(ctx context.Context, sourceURL string) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.teardownLocked()
	d.gen++

	path := sourceURL
	if strings.HasPrefix(sourceURL, "http://") || strings.HasPrefix(sourceURL, "https://") {
		local, err := d.download(ctx, sourceURL)
		if err != nil {
			return 0, err
		}
		d.tmpPath = local
		path = local
	}

	// A local open failure is not a transport problem; leave it for the
	// engine to classify as unknown.
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "opening source")
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		f.Close()
		return 0, errors.Wrapf(engine.ErrUnsupported, "extension %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return 0, errors.Wrapf(engine.ErrDecode, "decoding %s: %v", filepath.Base(path), err)
	}

	if !d.initialized {
		if err := speaker.Init(speakerRate, speakerRate.N(time.Second/10)); err != nil {
			streamer.Close()
			f.Close()
			return 0, errors.Wrap(err, "speaker init failed")
		}
		d.initialized = true
	}

	d.file = f
	d.streamer = streamer
	d.format = format

	var play beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		play = beep.Resample(4, format.SampleRate, speakerRate, streamer)
	}
	d.ctrl = &beep.Ctrl{Streamer: play, Paused: false}
	d.volume = &effects.Volume{Streamer: d.ctrl, Base: 2}

	return format.SampleRate.D(streamer.Len()), nil
}

// Start begins or resumes playback.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil {
		return errors.Wrap(engine.ErrAborted, "no source opened")
	}
	if d.queued {
		speaker.Lock()
		d.ctrl.Paused = false
		speaker.Unlock()
		return nil
	}

	gen := d.gen
	d.queued = true
	speaker.Play(beep.Seq(d.volume, beep.Callback(func() {
		// Run off the speaker goroutine: the ended handler may open the
		// next source, which takes the speaker lock.
		go d.completed(gen)
	})))
	return nil
}

// Pause suspends playback, keeping the position.
func (d *Device) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil {
		return nil
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// Stop halts playback and releases the current source.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.teardownLocked()
	return nil
}

// SeekTo moves the playback position.
func (d *Device) SeekTo(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return nil
	}
	speaker.Lock()
	defer speaker.Unlock()
	return d.streamer.Seek(d.format.SampleRate.N(pos))
}

// SetGain maps the engine's linear 0..1 gain onto beep's logarithmic
// volume scale.
func (d *Device) SetGain(v float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.volume == nil {
		return nil
	}
	speaker.Lock()
	if v <= 0 {
		d.volume.Silent = true
	} else {
		d.volume.Silent = false
		d.volume.Volume = levelToVolume(v)
	}
	speaker.Unlock()
	return nil
}

// Position returns the current playback position.
func (d *Device) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := d.streamer.Position()
	speaker.Unlock()
	return d.format.SampleRate.D(pos)
}

// Buffered reports the playable fraction. Sources are fully local once
// opened, so anything loaded is fully buffered.
func (d *Device) Buffered() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return 0
	}
	return 1
}

// SetOnEnded registers the natural-completion callback.
func (d *Device) SetOnEnded(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEnded = fn
}

// Close releases the device.
func (d *Device) Close() error {
	return d.Stop()
}

func (d *Device) completed(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.onEnded == nil {
		d.mu.Unlock()
		return
	}
	fn := d.onEnded
	d.mu.Unlock()
	fn()
}

// teardownLocked stops the speaker and releases the streamer, file and
// any downloaded copy. Must be called with the lock held.
func (d *Device) teardownLocked() {
	if d.initialized && d.queued {
		speaker.Clear()
	}
	d.queued = false
	if d.streamer != nil {
		d.streamer.Close()
		d.streamer = nil
	}
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
	if d.tmpPath != "" {
		_ = os.Remove(d.tmpPath)
		d.tmpPath = ""
	}
	d.ctrl = nil
	d.volume = nil
}

// download fetches an http(s) source into a temp file.
func (d *Device) download(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", errors.Wrapf(engine.ErrNetwork, "building request: %v", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", errors.Wrapf(engine.ErrNetwork, "fetching source: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(engine.ErrNetwork, "source returned status %d", resp.StatusCode)
	}

	ext := filepath.Ext(strings.SplitN(sourceURL, "?", 2)[0])
	if ext == "" {
		ext = ".mp3"
	}
	f, err := os.CreateTemp("", "cadenza-src-*"+ext)
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", errors.Wrapf(engine.ErrNetwork, "downloading source: %v", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "closing temp file")
	}
	return f.Name(), nil
}

// levelToVolume converts a linear 0..1 level to beep's base-2
// logarithmic volume: 1.0 -> 0, 0.5 -> -1, 0.25 -> -2.
func levelToVolume(level float64) float64 {
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
