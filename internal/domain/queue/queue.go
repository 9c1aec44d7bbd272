// Package queue provides the ordered play queue entity.
//
// The queue is not safe for concurrent use on its own; the audio service
// is its sole writer and guards access with its own lock.
package queue

import (
	"math/rand"

	"github.com/cadenza-player/cadenza/internal/domain/track"
)

// Queue is an ordered, mutable sequence of tracks with a current position.
//
// Invariants maintained by every mutation:
//   - current ∈ [-1, len-1]
//   - current == -1 exactly when the queue is empty
type Queue struct {
	tracks  []track.Track
	current int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		tracks:  make([]track.Track, 0),
		current: -1,
	}
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// CurrentIndex returns the current position, -1 when the queue is empty.
func (q *Queue) CurrentIndex() int {
	return q.current
}

// Current returns the track at the current position.
func (q *Queue) Current() (track.Track, bool) {
	if q.current < 0 || q.current >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[q.current], true
}

// Track returns the track at the given index.
func (q *Queue) Track(index int) (track.Track, bool) {
	if index < 0 || index >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[index], true
}

// IndexOf returns the index of the first track with the given ID, or -1.
func (q *Queue) IndexOf(id string) int {
	for i := range q.tracks {
		if q.tracks[i].ID == id {
			return i
		}
	}
	return -1
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []track.Track {
	result := make([]track.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Replace swaps the queue contents and positions playback at startIndex,
// clamped into range. An empty track list resets the position to -1.
func (q *Queue) Replace(tracks []track.Track, startIndex int) {
	q.tracks = make([]track.Track, len(tracks))
	copy(q.tracks, tracks)
	if len(q.tracks) == 0 {
		q.current = -1
		return
	}
	q.current = clamp(startIndex, 0, len(q.tracks)-1)
}

// Append adds a track to the end of the queue. Appending to an empty
// queue makes the new track current.
func (q *Queue) Append(t track.Track) int {
	q.tracks = append(q.tracks, t)
	if q.current < 0 {
		q.current = 0
	}
	return len(q.tracks) - 1
}

// Insert adds a track at the given index, clamped into [0, len].
// Inserting at or before the current position shifts it forward by one;
// inserting into an empty queue makes the new track current.
func (q *Queue) Insert(t track.Track, index int) int {
	index = clamp(index, 0, len(q.tracks))
	q.tracks = append(q.tracks, track.Track{})
	copy(q.tracks[index+1:], q.tracks[index:])
	q.tracks[index] = t
	switch {
	case q.current < 0:
		q.current = index
	case q.current >= index:
		q.current++
	}
	return index
}

// Remove deletes the track at index. It reports whether the removed track
// was the current one, and whether the index was valid.
//
// Removing before the current position shifts it back by one. Removing the
// current track leaves the position in place so the next track slides into
// it, clamping at the end of the queue.
func (q *Queue) Remove(index int) (wasCurrent bool, ok bool) {
	if index < 0 || index >= len(q.tracks) {
		return false, false
	}
	wasCurrent = index == q.current
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	switch {
	case len(q.tracks) == 0:
		q.current = -1
	case q.current > index:
		q.current--
	case q.current >= len(q.tracks):
		q.current = len(q.tracks) - 1
	}
	return wasCurrent, true
}

// Clear removes all tracks and resets the position.
func (q *Queue) Clear() {
	q.tracks = q.tracks[:0]
	q.current = -1
}

// SetCurrent moves the current position to index, clamped into range.
// It returns the effective index, or -1 if the queue is empty.
func (q *Queue) SetCurrent(index int) int {
	if len(q.tracks) == 0 {
		q.current = -1
		return -1
	}
	q.current = clamp(index, 0, len(q.tracks)-1)
	return q.current
}

// NextIndex returns the index after the current one. When wrap is set the
// index wraps past the end back to 0.
func (q *Queue) NextIndex(wrap bool) (int, bool) {
	if len(q.tracks) == 0 {
		return -1, false
	}
	next := q.current + 1
	if next >= len(q.tracks) {
		if !wrap {
			return -1, false
		}
		next = 0
	}
	return next, true
}

// PrevIndex returns the index before the current one. When wrap is set the
// index wraps past the start to the last track.
func (q *Queue) PrevIndex(wrap bool) (int, bool) {
	if len(q.tracks) == 0 {
		return -1, false
	}
	prev := q.current - 1
	if prev < 0 {
		if !wrap {
			return -1, false
		}
		prev = len(q.tracks) - 1
	}
	return prev, true
}

// RandomIndex picks a uniformly random index excluding the current one.
// A single-track queue returns the current index again.
func (q *Queue) RandomIndex(rng *rand.Rand) (int, bool) {
	n := len(q.tracks)
	if n == 0 {
		return -1, false
	}
	if n == 1 {
		return 0, true
	}
	// Draw from [0, n-1) and skip over the current slot.
	idx := rng.Intn(n - 1)
	if idx >= q.current {
		idx++
	}
	return idx, true
}

// BackfillSource stores a resolved source locator on the track at index.
// Identity and display fields are never touched.
func (q *Queue) BackfillSource(index int, url string) bool {
	if index < 0 || index >= len(q.tracks) {
		return false
	}
	q.tracks[index].SourceURL = url
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
