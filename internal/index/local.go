package index

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// artifact filenames look like q2-types-2021.4.0.tar.gz; the version
// starts at the last dash followed by a digit.
var artifactRe = regexp.MustCompile(`^([a-z0-9][a-z0-9._-]*)-(\d[^-]*)\.tar\.(gz|xz)$`)

// LocalChannel indexes a directory of built package artifacts, the local
// counterpart to a remote Channel.
type LocalChannel struct {
	dir      string
	packages map[string][]string
}

// NewLocalChannel creates a local channel over the given directory.
func NewLocalChannel(dir string) *LocalChannel {
	return &LocalChannel{
		dir:      dir,
		packages: make(map[string][]string),
	}
}

// Load scans the directory for package artifacts. A missing directory is
// an empty channel, not an error.
func (c *LocalChannel) Load() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading channel dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := artifactRe.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		name, version := matches[1], matches[2]
		c.packages[name] = append(c.packages[name], version)
	}
	return nil
}

// EnsureDir creates the channel directory if needed.
func (c *LocalChannel) EnsureDir() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating channel dir: %w", err)
	}
	return nil
}

// ArtifactPath returns where an artifact for the given filename lives.
func (c *LocalChannel) ArtifactPath(filename string) string {
	return filepath.Join(c.dir, filename)
}

// Name returns the channel name.
func (c *LocalChannel) Name() string {
	return "local"
}

// Versions returns the artifact versions found for a package.
func (c *LocalChannel) Versions(pkg string) []string {
	return c.packages[pkg]
}
