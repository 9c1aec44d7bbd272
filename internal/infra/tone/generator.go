// Package tone synthesizes fallback audio for tracks whose source could
// not be resolved.
package tone

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

const sampleRate = 44100

// Generator renders fixed-frequency waveforms to WAV files. The returned
// file path doubles as the track's source locator.
type Generator struct {
	dir string
}

// NewGenerator creates a generator writing into dir, or the system temp
// directory when dir is empty.
func NewGenerator(dir string) *Generator {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Generator{dir: dir}
}

// Generate renders a tone of the given frequency and duration and
// returns the path of the WAV file. Supported waveforms are "sine",
// "square" and "triangle"; anything else falls back to sine.
func (g *Generator) Generate(frequency float64, duration time.Duration, waveform string) (string, error) {
	if frequency <= 0 {
		return "", errors.Newf("invalid tone frequency: %f", frequency)
	}
	if duration <= 0 {
		return "", errors.Newf("invalid tone duration: %v", duration)
	}

	f, err := os.CreateTemp(g.dir, "cadenza-tone-*.wav")
	if err != nil {
		return "", errors.Wrap(err, "failed to create tone file")
	}
	defer f.Close()

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	streamer := &waveStreamer{
		samples: int(float64(sampleRate) * duration.Seconds()),
		freq:    frequency,
		shape:   shapeFor(waveform),
	}
	if err := wav.Encode(f, streamer, format); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "failed to encode tone")
	}
	return filepath.Clean(f.Name()), nil
}

// waveStreamer produces one waveform with a short attack/release
// envelope to avoid clicks.
type waveStreamer struct {
	samples int
	pos     int
	freq    float64
	shape   func(phase float64) float64
}

func (s *waveStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.pos >= s.samples {
			return i, i > 0
		}
		phase := 2 * math.Pi * s.freq * float64(s.pos) / float64(sampleRate)
		value := s.shape(phase) * envelope(s.pos, s.samples) * 0.5
		samples[i][0] = value
		samples[i][1] = value
		s.pos++
	}
	return len(samples), true
}

func (s *waveStreamer) Err() error { return nil }

// envelope ramps the first and last 5% of the samples linearly.
func envelope(pos, total int) float64 {
	fade := total / 20
	if fade < 10 {
		fade = 10
	}
	switch {
	case pos < fade:
		return float64(pos) / float64(fade)
	case pos > total-fade:
		return float64(total-pos) / float64(fade)
	default:
		return 1
	}
}

func shapeFor(waveform string) func(float64) float64 {
	switch waveform {
	case "square":
		return func(phase float64) float64 {
			if math.Sin(phase) >= 0 {
				return 1
			}
			return -1
		}
	case "triangle":
		return func(phase float64) float64 {
			return 2 / math.Pi * math.Asin(math.Sin(phase))
		}
	default:
		return math.Sin
	}
}
