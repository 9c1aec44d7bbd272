// Package resolver provides source-resolution providers that map track
// IDs to playable source URLs.
//
// Providers do not retry internally; the audio service owns the retry
// policy.
package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a provider has no source for a track.
var ErrNotFound = errors.New("no source found for track")

// Provider resolves one track ID to a playable source URL.
type Provider interface {
	Resolve(ctx context.Context, trackID string) (string, error)
}

// ProviderWithMetadata pairs a provider with its display name.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries providers in order and returns the first successful
// resolution. It satisfies the audio service's SongResolver interface.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{providers: providers}
}

// Resolve asks each provider in order for a source URL.
func (c *Chain) Resolve(ctx context.Context, trackID string) (string, error) {
	var lastErr error
	for _, p := range c.providers {
		url, err := p.Provider.Resolve(ctx, trackID)
		if err == nil && url != "" {
			return url, nil
		}
		if err != nil {
			zlog.Debug().Msgf("resolver: provider %s failed: track=%s err=%v", p.DisplayName, trackID, err)
			lastErr = err
		}
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "resolution canceled")
		}
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return "", errors.Wrapf(lastErr, "no provider resolved track %s", trackID)
}
