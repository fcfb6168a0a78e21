// Package index provides candidate package versions for the solver,
// either from a remote channel's repodata or from a local directory of
// built artifacts.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

const (
	repodataFile = "repodata.json"
	cacheTTL     = 24 * time.Hour
)

// Provider yields known versions for a package name. Providers are
// consulted in order; the first one that knows a package wins.
type Provider interface {
	Name() string
	Versions(pkg string) []string
}

// repodata is the channel index document: a mapping from package name to
// the versions the channel serves.
type repodata struct {
	Packages map[string][]string `json:"packages" yaml:"packages"`
}

// Channel is a remote package channel indexed by a repodata file,
// fetched over HTTP and cached on disk.
type Channel struct {
	url       string
	name      string
	cacheDir  string
	cacheFile string
	packages  map[string][]string
}

// NewChannel creates a channel for the given base URL. The channel name
// is the last path element of the URL.
func NewChannel(channelURL, cacheDir string) *Channel {
	channelURL = strings.TrimSuffix(channelURL, "/")
	name := channelURL
	if u, err := url.Parse(channelURL); err == nil && u.Path != "" {
		name = filepath.Base(u.Path)
	}
	// Different channels may share a last path element, so the cache key
	// carries a digest of the full URL.
	sum := sha256.Sum256([]byte(channelURL))
	cacheName := fmt.Sprintf("%s-%s-%s", name, hex.EncodeToString(sum[:8]), repodataFile)
	return &Channel{
		url:       channelURL,
		name:      name,
		cacheDir:  cacheDir,
		cacheFile: filepath.Join(cacheDir, cacheName),
		packages:  make(map[string][]string),
	}
}

// Load downloads and parses the channel repodata, reusing a fresh cache.
func (c *Channel) Load() error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	if !c.isCacheValid() {
		if err := c.download(); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(c.cacheFile)
	if err != nil {
		return fmt.Errorf("reading cached repodata: %w", err)
	}
	return c.parse(data)
}

func (c *Channel) isCacheValid() bool {
	info, err := os.Stat(c.cacheFile)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < cacheTTL
}

func (c *Channel) download() error {
	repodataURL := fmt.Sprintf("%s/%s", c.url, repodataFile)

	resp, err := http.Get(repodataURL)
	if err != nil {
		return fmt.Errorf("downloading repodata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading repodata: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading repodata: %w", err)
	}

	// A partial write must never land under the cache key: isCacheValid
	// would trust its mtime for the full TTL.
	if err := renameio.WriteFile(c.cacheFile, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

func (c *Channel) parse(data []byte) error {
	var doc repodata
	if err := json.Unmarshal(data, &doc); err != nil {
		// The qiime2 release channels publish YAML channeldata too.
		if yerr := yaml.Unmarshal(data, &doc); yerr != nil {
			return fmt.Errorf("parsing repodata: %w", err)
		}
	}
	if doc.Packages == nil {
		return fmt.Errorf("repodata has no packages section")
	}
	c.packages = doc.Packages
	return nil
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// URL returns the channel base URL, without a trailing slash.
func (c *Channel) URL() string {
	return c.url
}

// Versions returns the versions the channel serves for a package.
func (c *Channel) Versions(pkg string) []string {
	return c.packages[pkg]
}
