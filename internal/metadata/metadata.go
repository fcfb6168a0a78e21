// Package metadata discovers the project version from the source tree,
// standing in for the setup metadata the recipe's version placeholder is
// resolved from at build time.
package metadata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	pkgInfoVersionRe = regexp.MustCompile(`^Version:\s*(\S+)`)
	sectionRe        = regexp.MustCompile(`^\[([^\]]+)\]`)
	cfgVersionRe     = regexp.MustCompile(`^version\s*=\s*(\S+)`)
)

// LoadVersion resolves the package version from a source directory.
// Sources are tried in order: PKG-INFO, setup.cfg ([metadata] section),
// then a plain VERSION file. Failure names everything that was tried.
func LoadVersion(dir string) (string, error) {
	if v, ok, err := fromPKGInfo(filepath.Join(dir, "PKG-INFO")); err != nil {
		return "", err
	} else if ok {
		return v, nil
	}

	if v, ok, err := fromSetupCfg(filepath.Join(dir, "setup.cfg")); err != nil {
		return "", err
	} else if ok {
		return v, nil
	}

	if v, ok, err := fromVersionFile(filepath.Join(dir, "VERSION")); err != nil {
		return "", err
	} else if ok {
		return v, nil
	}

	return "", fmt.Errorf("no project version found in %s (tried PKG-INFO, setup.cfg, VERSION)", dir)
}

func fromPKGInfo(path string) (string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if matches := pkgInfoVersionRe.FindStringSubmatch(scanner.Text()); matches != nil {
			return matches[1], true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("reading %s: %w", path, err)
	}
	return "", false, nil
}

func fromSetupCfg(path string) (string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	inMetadata := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if matches := sectionRe.FindStringSubmatch(line); matches != nil {
			inMetadata = matches[1] == "metadata"
			continue
		}
		if !inMetadata {
			continue
		}
		if matches := cfgVersionRe.FindStringSubmatch(line); matches != nil {
			v := matches[1]
			// attr: and file: values need setuptools to evaluate;
			// fall through to the next source instead.
			if strings.HasPrefix(v, "attr:") || strings.HasPrefix(v, "file:") {
				return "", false, nil
			}
			return v, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("reading %s: %w", path, err)
	}
	return "", false, nil
}

func fromVersionFile(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", path, err)
	}

	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", false, nil
	}
	// Only the first line counts if the file has trailing content.
	if idx := strings.IndexByte(v, '\n'); idx != -1 {
		v = strings.TrimSpace(v[:idx])
	}
	return v, true, nil
}
