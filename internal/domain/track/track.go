// Package track provides the Track domain entity.
package track

import "time"

// Origin indicates where a track's playable source comes from.
type Origin string

const (
	// OriginLocal means the track carries a playable source URL already.
	OriginLocal Origin = "LOCAL"
	// OriginRemote means the source URL must be resolved through a resolver
	// before the track can be loaded.
	OriginRemote Origin = "REMOTE"
)

// Track represents one playable item in the queue.
// Identity and display fields are immutable once the track is enqueued;
// only SourceURL may be backfilled after remote resolution.
type Track struct {
	ID        string        `json:"id"`                  // Stable track identifier
	Title     string        `json:"title"`               // Display title
	Artist    string        `json:"artist"`              // Display artist
	Duration  time.Duration `json:"duration"`            // Known duration (may be zero until loaded)
	SourceURL string        `json:"sourceUrl,omitempty"` // Playable source locator, empty until resolved
	Origin    Origin        `json:"origin"`              // LOCAL or REMOTE
}

// NeedsResolution reports whether the track's source locator must be
// resolved remotely before loading.
func (t *Track) NeedsResolution() bool {
	return t.SourceURL == "" || t.Origin == OriginRemote
}

// WithSource returns a copy of the track with the source locator backfilled.
func (t Track) WithSource(url string) Track {
	t.SourceURL = url
	return t
}
