package beepdev

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-player/cadenza/internal/app/engine"
)

func TestLevelToVolume(t *testing.T) {
	tests := []struct {
		level    float64
		expected float64
	}{
		{1.0, 0},
		{0.5, -1},
		{0.25, -2},
		{1.5, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, levelToVolume(tt.level), 1e-9)
	}
}

func TestDevice_OpenUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0644))

	d := New()
	defer d.Close()

	_, err := d.Open(context.Background(), path)
	assert.ErrorIs(t, err, engine.ErrUnsupported)
}

func TestDevice_OpenMissingFile(t *testing.T) {
	d := New()
	defer d.Close()

	_, err := d.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrNetwork,
		"a local open failure is not a network error")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, engine.KindUnknown, engine.Classify(err).Kind)
}

func TestDevice_OpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mp3")
	require.NoError(t, os.WriteFile(path, []byte("definitely not mpeg"), 0644))

	d := New()
	defer d.Close()

	_, err := d.Open(context.Background(), path)
	assert.ErrorIs(t, err, engine.ErrDecode)
}

func TestDevice_OpenHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := New()
	defer d.Close()

	_, err := d.Open(context.Background(), srv.URL+"/song.mp3")
	assert.ErrorIs(t, err, engine.ErrNetwork)
}

func TestDevice_OpenCanceledDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New()
	defer d.Close()

	_, err := d.Open(ctx, srv.URL+"/song.mp3")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDevice_StartWithoutOpen(t *testing.T) {
	d := New()
	defer d.Close()

	assert.ErrorIs(t, d.Start(), engine.ErrAborted)
}

func TestDevice_IdleAccessorsAreSafe(t *testing.T) {
	d := New()
	defer d.Close()

	assert.Equal(t, float64(0), d.Buffered())
	assert.Equal(t, int64(0), int64(d.Position()))
	assert.NoError(t, d.Pause())
	assert.NoError(t, d.SeekTo(0))
	assert.NoError(t, d.SetGain(0.5))
	assert.NoError(t, d.Stop())
}
