package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// HTTPSettings configures the HTTP resolver provider.
type HTTPSettings struct {
	BaseURL    string  `mapstructure:"base_url"`
	Token      string  `mapstructure:"token"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	TimeoutMs  int     `mapstructure:"timeout_ms"`
}

// HTTPProvider resolves track sources against a metadata API:
// GET {base_url}/tracks/{id}/source returns {"url": "..."}.
// Successful resolutions are cached for the provider's lifetime.
type HTTPProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter

	cacheMu sync.RWMutex
	cache   map[string]string
}

type sourceResponse struct {
	URL string `json:"url"`
}

// NewHTTPProvider creates an HTTP resolver provider.
func NewHTTPProvider(s HTTPSettings) *HTTPProvider {
	timeout := time.Duration(s.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	perSec := s.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	return &HTTPProvider{
		baseURL:    s.BaseURL,
		token:      s.Token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		cache:      make(map[string]string),
	}
}

// Resolve fetches the source URL for a track.
func (p *HTTPProvider) Resolve(ctx context.Context, trackID string) (string, error) {
	p.cacheMu.RLock()
	cached, ok := p.cache[trackID]
	p.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "rate limit wait canceled")
	}

	endpoint := fmt.Sprintf("%s/tracks/%s/source", p.baseURL, url.PathEscape(trackID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build request")
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "source request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", errors.Wrapf(ErrNotFound, "track %s", trackID)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("source request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}

	var sr sourceResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", errors.Wrap(err, "failed to parse response")
	}
	if sr.URL == "" {
		return "", errors.Wrapf(ErrNotFound, "track %s", trackID)
	}

	p.cacheMu.Lock()
	p.cache[trackID] = sr.URL
	p.cacheMu.Unlock()

	return sr.URL, nil
}
