package mirror

import (
	"os"
	"path/filepath"
)

// Paths resolves the platform directories a client stores data under.
type Paths interface {
	// FilesRoot is the durable per-user application directory.
	FilesRoot() (string, error)
	// CacheDir is a directory the platform may purge.
	CacheDir() (string, error)
}

// OSPaths resolves directories from the current user's environment.
type OSPaths struct{}

// FilesRoot returns ~/.offsearch.
func (OSPaths) FilesRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".offsearch"), nil
}

// CacheDir returns the user cache directory joined with "offsearch".
func (OSPaths) CacheDir() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "offsearch"), nil
}

// StaticPaths returns fixed directories.
type StaticPaths struct {
	Files string
	Cache string
}

func (p StaticPaths) FilesRoot() (string, error) { return p.Files, nil }
func (p StaticPaths) CacheDir() (string, error)  { return p.Cache, nil }
