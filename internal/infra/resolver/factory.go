package resolver

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-player/cadenza/internal/infra/config"
)

// NewChainFromConfig creates a provider chain from configuration.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	if len(cfg.Resolver.Providers) == 0 {
		return nil, errors.New("no resolver providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Resolver.Providers {
		var provider Provider
		var err error
		switch pcfg.Type {
		case "http":
			provider, err = newHTTPFromSettings(pcfg.Settings)
		case "file":
			provider, err = newFileFromSettings(pcfg.Settings)
		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})
		zlog.Info().Msgf("resolver: registered provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(providers), nil
}

func newHTTPFromSettings(settings map[string]any) (*HTTPProvider, error) {
	var s HTTPSettings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "invalid http provider settings")
	}
	if s.BaseURL == "" {
		return nil, errors.New("http provider requires base_url")
	}
	return NewHTTPProvider(s), nil
}

func newFileFromSettings(settings map[string]any) (*FileProvider, error) {
	var s FileSettings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "invalid file provider settings")
	}
	if s.Root == "" {
		return nil, errors.New("file provider requires root")
	}
	return NewFileProvider(s), nil
}
