// Package source stages a recipe's project source into the work
// directory, from a local path or a downloaded archive.
package source

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"

	"github.com/qiime2/q2-recipe/internal/fetch"
	"github.com/qiime2/q2-recipe/internal/recipe"
)

// Stager stages recipe sources.
type Stager struct {
	fetcher *fetch.Fetcher
	log     zerolog.Logger
}

// NewStager creates a stager using the given fetcher for url sources.
func NewStager(fetcher *fetch.Fetcher, log zerolog.Logger) *Stager {
	return &Stager{fetcher: fetcher, log: log}
}

// Stage materializes the recipe source under workDir and returns the
// staged source root. Path sources are resolved relative to recipeDir.
func (s *Stager) Stage(ctx context.Context, src recipe.SourceSection, recipeDir, workDir string) (string, error) {
	switch {
	case src.Path != "":
		return s.stagePath(src.Path, recipeDir, workDir)
	case src.URL != "":
		return s.stageURL(ctx, src, workDir)
	}
	return "", fmt.Errorf("source has neither path nor url")
}

func (s *Stager) stagePath(srcPath, recipeDir, workDir string) (string, error) {
	from := srcPath
	if !filepath.IsAbs(from) {
		from = filepath.Join(recipeDir, from)
	}
	info, err := os.Stat(from)
	if err != nil {
		return "", fmt.Errorf("source path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source path %s is not a directory", from)
	}

	dest := filepath.Join(workDir, "src")
	s.log.Debug().Str("from", from).Str("to", dest).Msg("copying source tree")
	if err := copyTree(from, dest); err != nil {
		return "", fmt.Errorf("copying source tree: %w", err)
	}
	return dest, nil
}

func (s *Stager) stageURL(ctx context.Context, src recipe.SourceSection, workDir string) (string, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return "", fmt.Errorf("source url: %w", err)
	}
	archive := filepath.Join(workDir, "downloads", filepath.Base(u.Path))

	s.log.Debug().Str("url", src.URL).Msg("fetching source archive")
	if err := s.fetcher.FetchOne(ctx, fetch.Job{URL: src.URL, DestPath: archive}); err != nil {
		return "", err
	}

	if src.SHA256 != "" {
		if err := verifySHA256(archive, src.SHA256); err != nil {
			return "", err
		}
	}

	dest := filepath.Join(workDir, "src")
	root, err := extractTarball(archive, dest)
	if err != nil {
		return "", fmt.Errorf("extracting source archive: %w", err)
	}
	return root, nil
}

func verifySHA256(path, want string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("hashing archive: %w", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("sha256 mismatch for %s: got %s, want %s", filepath.Base(path), got, want)
	}
	return nil
}

// extractTarball extracts a .tar.gz or .tar.xz archive to destDir and
// returns the extracted root directory path.
func extractTarball(tarballPath, destDir string) (string, error) {
	file, err := os.Open(tarballPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var reader io.Reader
	switch {
	case strings.HasSuffix(tarballPath, ".tar.xz"):
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return "", fmt.Errorf("decompressing xz: %w", err)
		}
		reader = xzReader
	case strings.HasSuffix(tarballPath, ".tar.gz"), strings.HasSuffix(tarballPath, ".tgz"):
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return "", fmt.Errorf("decompressing gzip: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(tarballPath))
	}

	tarReader := tar.NewReader(reader)
	var rootDir string

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		// Reject entries escaping the destination
		if strings.Contains(header.Name, "..") {
			return "", fmt.Errorf("archive entry %q escapes destination", header.Name)
		}

		// Get the root directory name from the first entry
		parts := strings.SplitN(header.Name, "/", 2)
		if rootDir == "" && len(parts) > 0 {
			rootDir = parts[0]
		}

		target := filepath.Join(destDir, header.Name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(f, tarReader); err != nil {
				f.Close()
				return "", err
			}
			f.Close()
		}
	}

	return filepath.Join(destDir, rootDir), nil
}

func copyTree(from, to string) error {
	return filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			// Symlinks and specials are not part of a staged source.
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(from, to string, mode fs.FileMode) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
