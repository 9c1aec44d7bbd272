package resolver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// FileSettings configures the file resolver provider.
type FileSettings struct {
	Root       string   `mapstructure:"root"`
	Extensions []string `mapstructure:"extensions"`
}

// FileProvider resolves track IDs to files under a library root:
// {root}/{id}.{ext} for each configured extension.
type FileProvider struct {
	root       string
	extensions []string
}

// NewFileProvider creates a file resolver provider.
func NewFileProvider(s FileSettings) *FileProvider {
	exts := s.Extensions
	if len(exts) == 0 {
		exts = []string{"mp3", "flac", "wav"}
	}
	return &FileProvider{
		root:       s.Root,
		extensions: exts,
	}
}

// Resolve returns the path of the first existing library file for the
// track ID.
func (p *FileProvider) Resolve(ctx context.Context, trackID string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	// Track IDs map directly to file names; reject anything that would
	// escape the library root.
	if trackID != filepath.Base(trackID) {
		return "", errors.Newf("invalid track id: %q", trackID)
	}
	for _, ext := range p.extensions {
		path := filepath.Join(p.root, trackID+"."+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "track %s", trackID)
}
