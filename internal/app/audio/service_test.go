package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/app/eventbus"
	"github.com/cadenza-player/cadenza/internal/domain/queue"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// fakeDevice is an in-memory Device backing the real engine in tests.
type fakeDevice struct {
	mu       sync.Mutex
	openErr  error
	duration time.Duration
	position time.Duration
	opened   []string
	onEnded  func()
}

func (d *fakeDevice) Open(ctx context.Context, sourceURL string) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return 0, d.openErr
	}
	d.opened = append(d.opened, sourceURL)
	return d.duration, nil
}

func (d *fakeDevice) Start() error { return nil }
func (d *fakeDevice) Pause() error { return nil }

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = 0
	return nil
}

func (d *fakeDevice) SeekTo(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = pos
	return nil
}

func (d *fakeDevice) SetGain(float64) error { return nil }

func (d *fakeDevice) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *fakeDevice) Buffered() float64 { return 1 }

func (d *fakeDevice) SetOnEnded(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEnded = fn
}

func (d *fakeDevice) Close() error { return nil }

// fireEnded simulates natural completion of the loaded source.
func (d *fakeDevice) fireEnded() {
	d.mu.Lock()
	fn := d.onEnded
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *fakeDevice) setPosition(pos time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = pos
}

func (d *fakeDevice) openedSources() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.opened))
	copy(out, d.opened)
	return out
}

// fakeResolver counts calls and delegates to a scriptable function.
type fakeResolver struct {
	mu    sync.Mutex
	calls int
	fn    func(trackID string, call int) (string, error)
}

func (r *fakeResolver) Resolve(ctx context.Context, trackID string) (string, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	fn := r.fn
	r.mu.Unlock()
	if fn == nil {
		return "resolved://" + trackID, nil
	}
	return fn(trackID, call)
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeTones returns a fixed locator or a scripted error.
type fakeTones struct {
	err     error
	locator string
}

func (g *fakeTones) Generate(frequency float64, duration time.Duration, waveform string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if g.locator != "" {
		return g.locator, nil
	}
	return "tone://fallback.wav", nil
}

type fixture struct {
	svc *Service
	dev *fakeDevice
	res *fakeResolver
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	dev := &fakeDevice{duration: 3 * time.Minute}
	bus := eventbus.New()
	eng := engine.New(dev, bus, engine.Config{InitialVolume: 1})
	res := &fakeResolver{}
	svc := New(eng, bus, res, &fakeTones{}, cfg)
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, dev: dev, res: res}
}

func fastConfig() Config {
	return Config{
		ResolveRetries:    3,
		ResolveRetryDelay: time.Millisecond,
	}
}

func localTracks(ids ...string) []track.Track {
	result := make([]track.Track, len(ids))
	for i, id := range ids {
		result[i] = track.Track{
			ID:        id,
			Title:     "Track " + id,
			SourceURL: "file:///" + id + ".mp3",
			Origin:    track.OriginLocal,
		}
	}
	return result
}

func remoteTracks(ids ...string) []track.Track {
	result := make([]track.Track, len(ids))
	for i, id := range ids {
		result[i] = track.Track{ID: id, Title: "Track " + id, Origin: track.OriginRemote}
	}
	return result
}

func TestService_PlayEmptyQueueSetsError(t *testing.T) {
	f := newFixture(t, fastConfig())

	require.NoError(t, f.svc.Play(context.Background()))

	st := f.svc.Snapshot()
	assert.Equal(t, msgQueueEmpty, st.Err)
	assert.False(t, st.IsPlaying)
}

func TestService_PlayStartsCurrentTrack(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b", "c"), 1)

	require.NoError(t, f.svc.Play(context.Background()))

	st := f.svc.Snapshot()
	require.NotNil(t, st.Track)
	assert.Equal(t, "b", st.Track.ID)
	assert.True(t, st.IsPlaying)
	assert.False(t, st.IsPaused)
	assert.Empty(t, st.Err)
	assert.Equal(t, 3*time.Minute, st.Duration)
	assert.Equal(t, 0, f.res.callCount(), "local sources are never resolved")
}

func TestService_PlayResumesWithoutReload(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a"), 0)

	require.NoError(t, f.svc.Play(context.Background()))
	f.svc.Pause()
	assert.True(t, f.svc.Snapshot().IsPaused)

	require.NoError(t, f.svc.Play(context.Background()))

	st := f.svc.Snapshot()
	assert.True(t, st.IsPlaying)
	assert.Len(t, f.dev.openedSources(), 1, "resume must not reload the source")
}

func TestService_PauseWithoutLoadIsNoop(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.Pause()
	assert.False(t, f.svc.Snapshot().IsPaused)
}

func TestService_StopKeepsTrackVisible(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a"), 0)
	require.NoError(t, f.svc.Play(context.Background()))

	f.svc.Stop()

	st := f.svc.Snapshot()
	require.NotNil(t, st.Track)
	assert.Equal(t, "a", st.Track.ID)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, time.Duration(0), st.Position)
}

func TestService_SeekClampsToDuration(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a"), 0)
	require.NoError(t, f.svc.Play(context.Background()))

	f.svc.Seek(10 * time.Minute)
	assert.Equal(t, 3*time.Minute, f.svc.Snapshot().Position)

	f.svc.Seek(-time.Second)
	assert.Equal(t, time.Duration(0), f.svc.Snapshot().Position)
}

func TestService_SeekWithoutDurationIsNoop(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.Seek(time.Minute)
	assert.Equal(t, time.Duration(0), f.svc.Snapshot().Position)
}

func TestService_ToggleMuteRestoresExactVolume(t *testing.T) {
	f := newFixture(t, fastConfig())

	f.svc.SetVolume(0.37)
	f.svc.ToggleMute()

	st := f.svc.Snapshot()
	assert.True(t, st.Muted)
	assert.Equal(t, 0.0, st.Volume)
	assert.Equal(t, 0.37, st.PreviousVolume)

	f.svc.ToggleMute()

	st = f.svc.Snapshot()
	assert.False(t, st.Muted)
	assert.Equal(t, 0.37, st.Volume)
}

func TestService_SetVolumeClearsMute(t *testing.T) {
	f := newFixture(t, fastConfig())

	f.svc.ToggleMute()
	assert.True(t, f.svc.Snapshot().Muted)

	f.svc.SetVolume(0.8)

	st := f.svc.Snapshot()
	assert.False(t, st.Muted)
	assert.Equal(t, 0.8, st.Volume)
}

func TestService_ResolutionRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.res.fn = func(trackID string, call int) (string, error) {
		if call < 3 {
			return "", errors.New("transient")
		}
		return "resolved://" + trackID, nil
	}
	f.svc.SetQueue(remoteTracks("r1"), 0)

	require.NoError(t, f.svc.Play(context.Background()))

	st := f.svc.Snapshot()
	assert.True(t, st.IsPlaying)
	assert.Empty(t, st.Err)
	assert.Equal(t, 3, f.res.callCount())
	assert.Equal(t, []string{"resolved://r1"}, f.dev.openedSources())

	// The resolved URL is backfilled into the queue.
	q := f.svc.Queue()
	assert.Equal(t, "resolved://r1", q.Tracks[0].SourceURL)
}

func TestService_ResolutionExhaustedFallsBackToTone(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.res.fn = func(string, int) (string, error) {
		return "", errors.New("gone")
	}
	f.svc.SetQueue(remoteTracks("r1"), 0)

	require.NoError(t, f.svc.Play(context.Background()))

	st := f.svc.Snapshot()
	assert.True(t, st.IsPlaying)
	assert.Equal(t, msgFallbackTone, st.Err)
	assert.Equal(t, 3, f.res.callCount())
	assert.Equal(t, []string{"tone://fallback.wav"}, f.dev.openedSources())
}

func TestService_EmptyResolverURLCountsAsFailure(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.res.fn = func(string, int) (string, error) {
		return "", nil
	}
	f.svc.SetQueue(remoteTracks("r1"), 0)

	require.NoError(t, f.svc.Play(context.Background()))

	assert.Equal(t, 3, f.res.callCount())
	assert.Equal(t, msgFallbackTone, f.svc.Snapshot().Err)
}

func TestService_FallbackToneFailureSurfacesResolutionError(t *testing.T) {
	dev := &fakeDevice{duration: time.Minute}
	bus := eventbus.New()
	eng := engine.New(dev, bus, engine.Config{InitialVolume: 1})
	res := &fakeResolver{fn: func(string, int) (string, error) {
		return "", errors.New("gone")
	}}
	svc := New(eng, bus, res, &fakeTones{err: errors.New("no disk")}, fastConfig())
	t.Cleanup(svc.Close)

	svc.SetQueue(remoteTracks("r1"), 0)
	err := svc.Play(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolutionExhausted)

	st := svc.Snapshot()
	assert.Equal(t, msgResolutionFatal, st.Err)
	assert.False(t, st.IsPlaying)
	require.NotNil(t, st.Track)
	assert.Equal(t, "r1", st.Track.ID, "the failed track stays visible")
}

func TestService_LoadErrorMessageSurfaced(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.dev.openErr = engine.ErrDecode
	f.svc.SetQueue(localTracks("a"), 0)

	err := f.svc.Play(context.Background())
	require.Error(t, err)

	st := f.svc.Snapshot()
	assert.Equal(t, engine.KindDecode.Message(), st.Err)
	assert.False(t, st.IsPlaying)
}

func TestService_PlayTrackMovesToQueuedTrack(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b", "c"), 0)

	require.NoError(t, f.svc.PlayTrack(context.Background(), track.Track{ID: "c"}))

	assert.Equal(t, 2, f.svc.Queue().CurrentIndex)
	st := f.svc.Snapshot()
	require.NotNil(t, st.Track)
	assert.Equal(t, "c", st.Track.ID)
}

func TestService_PlayTrackOutsideQueueLeavesQueueAlone(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)

	loose := localTracks("x")[0]
	require.NoError(t, f.svc.PlayTrack(context.Background(), loose))

	q := f.svc.Queue()
	assert.Equal(t, 2, len(q.Tracks))
	assert.Equal(t, 1, q.CurrentIndex)
	st := f.svc.Snapshot()
	require.NotNil(t, st.Track)
	assert.Equal(t, "x", st.Track.ID)
}

func TestService_PlayNextSequenceStopsAtEnd(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 0)
	require.NoError(t, f.svc.Play(context.Background()))

	assert.True(t, f.svc.PlayNext(context.Background()))
	assert.Equal(t, 1, f.svc.Queue().CurrentIndex)

	assert.False(t, f.svc.PlayNext(context.Background()), "no next track at the end in sequence mode")
	assert.Equal(t, 1, f.svc.Queue().CurrentIndex)
}

func TestService_PlayNextListLoopWraps(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)
	f.svc.SetPlayMode(queue.ModeListLoop)

	assert.True(t, f.svc.PlayNext(context.Background()))
	assert.Equal(t, 0, f.svc.Queue().CurrentIndex)
}

func TestService_PlayNextEmptyQueue(t *testing.T) {
	f := newFixture(t, fastConfig())
	assert.False(t, f.svc.PlayNext(context.Background()))
	assert.Equal(t, msgQueueEmpty, f.svc.Snapshot().Err)
}

func TestService_PlayPreviousRestartsAfterThreshold(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.setPosition(10 * time.Second)

	assert.True(t, f.svc.PlayPrevious(context.Background()))
	assert.Equal(t, 1, f.svc.Queue().CurrentIndex, "deep into the track previous restarts instead of navigating")
	assert.Equal(t, time.Duration(0), f.svc.Snapshot().Position)
	assert.Len(t, f.dev.openedSources(), 1, "restart must not reload")
}

func TestService_PlayPreviousNavigatesEarlyInTrack(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.setPosition(time.Second)

	assert.True(t, f.svc.PlayPrevious(context.Background()))
	assert.Equal(t, 0, f.svc.Queue().CurrentIndex)
}

func TestService_PlayPreviousAtStartSequence(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 0)
	require.NoError(t, f.svc.Play(context.Background()))
	f.dev.setPosition(time.Second)

	assert.False(t, f.svc.PlayPrevious(context.Background()))
	assert.Equal(t, 0, f.svc.Queue().CurrentIndex)
}

func TestService_PlayPreviousAfterCompletionDoesNotRestart(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)
	require.NoError(t, f.svc.Play(context.Background()))
	f.dev.fireEnded()
	require.True(t, f.svc.Snapshot().QueueCompleted)

	// The engine still holds the ended last track; a deep position must
	// not trigger the restart tie-break once the queue points at the top.
	f.dev.setPosition(10 * time.Second)

	assert.False(t, f.svc.PlayPrevious(context.Background()))
	assert.Equal(t, 0, f.svc.Queue().CurrentIndex)
	st := f.svc.Snapshot()
	assert.False(t, st.IsPlaying)
	assert.Len(t, f.dev.openedSources(), 1, "the ended track must not restart")
}

func TestService_PlayFirstLast(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b", "c"), 1)

	assert.True(t, f.svc.PlayLast(context.Background()))
	assert.Equal(t, 2, f.svc.Queue().CurrentIndex)

	assert.True(t, f.svc.PlayFirst(context.Background()))
	assert.Equal(t, 0, f.svc.Queue().CurrentIndex)
}

func TestService_EndedSequenceAdvances(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 0)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.fireEnded()

	assert.Equal(t, 1, f.svc.Queue().CurrentIndex)
	st := f.svc.Snapshot()
	require.NotNil(t, st.Track)
	assert.Equal(t, "b", st.Track.ID)
	assert.True(t, st.IsPlaying)
}

func TestService_EndedSequenceCompletesAtEnd(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.fireEnded()

	st := f.svc.Snapshot()
	assert.True(t, st.QueueCompleted)
	assert.False(t, st.IsPlaying)
	assert.True(t, st.IsPaused)
	assert.Equal(t, time.Duration(0), st.Position)
	assert.Empty(t, st.Err)
	assert.Equal(t, 0, f.svc.Queue().CurrentIndex, "completion rewinds to the first track")
	assert.Len(t, f.dev.openedSources(), 1, "completion must not autoplay")
}

func TestService_PlayAfterCompletionRestartsFromTop(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)
	require.NoError(t, f.svc.Play(context.Background()))
	f.dev.fireEnded()
	require.True(t, f.svc.Snapshot().QueueCompleted)

	require.NoError(t, f.svc.Play(context.Background()))

	st := f.svc.Snapshot()
	assert.False(t, st.QueueCompleted)
	assert.True(t, st.IsPlaying)
	require.NotNil(t, st.Track)
	assert.Equal(t, "a", st.Track.ID)
}

func TestService_EndedListLoopWraps(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 1)
	f.svc.SetPlayMode(queue.ModeListLoop)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.fireEnded()

	assert.Equal(t, 0, f.svc.Queue().CurrentIndex)
	assert.True(t, f.svc.Snapshot().IsPlaying)
}

func TestService_EndedSingleReplays(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b"), 0)
	f.svc.SetPlayMode(queue.ModeSingle)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.fireEnded()

	assert.Equal(t, 0, f.svc.Queue().CurrentIndex, "single mode never advances")
	st := f.svc.Snapshot()
	assert.True(t, st.IsPlaying)
	assert.Equal(t, time.Duration(0), st.Position)
	assert.Len(t, f.dev.openedSources(), 1, "replay must not reload")
}

func TestService_EndedRandomSingleTrackReplays(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("only"), 0)
	f.svc.SetPlayMode(queue.ModeRandom)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.fireEnded()

	st := f.svc.Snapshot()
	assert.True(t, st.IsPlaying)
	assert.Len(t, f.dev.openedSources(), 1)
}

func TestService_EndedRandomMovesToOtherTrack(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.svc.SetQueue(localTracks("a", "b", "c"), 1)
	f.svc.SetPlayMode(queue.ModeRandom)
	require.NoError(t, f.svc.Play(context.Background()))

	f.dev.fireEnded()

	assert.NotEqual(t, 1, f.svc.Queue().CurrentIndex, "random end pick excludes the ended track")
	assert.True(t, f.svc.Snapshot().IsPlaying)
}

func TestService_CanPlayFlags(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		current  int
		mode     queue.PlayMode
		canNext  bool
		canPrev  bool
	}{
		{"sequence middle", []string{"a", "b", "c"}, 1, queue.ModeSequence, true, true},
		{"sequence first", []string{"a", "b", "c"}, 0, queue.ModeSequence, true, false},
		{"sequence last", []string{"a", "b", "c"}, 2, queue.ModeSequence, false, true},
		{"single track sequence", []string{"a"}, 0, queue.ModeSequence, false, false},
		{"list loop wraps", []string{"a"}, 0, queue.ModeListLoop, true, true},
		{"random always movable", []string{"a", "b"}, 0, queue.ModeRandom, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fastConfig())
			f.svc.SetQueue(localTracks(tt.ids...), tt.current)
			f.svc.SetPlayMode(tt.mode)

			st := f.svc.Snapshot()
			assert.Equal(t, tt.canNext, st.CanPlayNext)
			assert.Equal(t, tt.canPrev, st.CanPlayPrev)
		})
	}
}

func TestService_EmptyQueueFlags(t *testing.T) {
	f := newFixture(t, fastConfig())
	st := f.svc.Snapshot()
	assert.False(t, st.CanPlayNext)
	assert.False(t, st.CanPlayPrev)
}

func TestService_StateChangeNotifications(t *testing.T) {
	f := newFixture(t, fastConfig())

	var mu sync.Mutex
	var snapshots []State
	unsub := f.svc.OnStateChange(func(st State) {
		mu.Lock()
		snapshots = append(snapshots, st)
		mu.Unlock()
	})
	defer unsub()

	f.svc.SetQueue(localTracks("a"), 0)
	require.NoError(t, f.svc.Play(context.Background()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		if len(snapshots) == 0 {
			return false
		}
		last := snapshots[len(snapshots)-1]
		return last.IsPlaying && last.Track != nil && last.Track.ID == "a"
	}, time.Second, 5*time.Millisecond)
}
