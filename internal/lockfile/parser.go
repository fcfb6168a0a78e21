package lockfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/qiime2/q2-recipe/internal/solver"
)

var (
	pkgNameRe    = regexp.MustCompile(`^  (\S+)$`)
	versionRe    = regexp.MustCompile(`^    version: (.+)$`)
	constraintRe = regexp.MustCompile(`^    constraint: (.+)$`)
	channelRe    = regexp.MustCompile(`^    channel: (.+)$`)
)

// Parser reads lockfiles.
type Parser struct {
	r io.Reader
}

// NewParser creates a new lockfile parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// Parse reads pins from a lockfile.
func (p *Parser) Parse() ([]solver.Pin, error) {
	var pins []solver.Pin
	var current *solver.Pin

	scanner := bufio.NewScanner(p.r)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip header and PACKAGES line
		if strings.HasPrefix(line, "#") || line == "PACKAGES" {
			continue
		}
		if line == "" {
			continue
		}

		// Package name (2-space indent)
		if matches := pkgNameRe.FindStringSubmatch(line); matches != nil {
			if current != nil {
				pins = append(pins, *current)
			}
			current = &solver.Pin{Name: matches[1]}
			continue
		}

		if current == nil {
			continue
		}

		if matches := versionRe.FindStringSubmatch(line); matches != nil {
			current.Version = matches[1]
			continue
		}
		if matches := constraintRe.FindStringSubmatch(line); matches != nil {
			current.Constraint = matches[1]
			continue
		}
		if matches := channelRe.FindStringSubmatch(line); matches != nil {
			current.Channel = matches[1]
		}
	}

	// Don't forget the last package
	if current != nil {
		pins = append(pins, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading lockfile: %w", err)
	}

	for _, pin := range pins {
		if pin.Version == "" {
			return nil, fmt.Errorf("lockfile entry %s has no version", pin.Name)
		}
	}
	return pins, nil
}

// Read parses a lockfile from disk.
func Read(path string) ([]solver.Pin, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening lockfile: %w", err)
	}
	defer file.Close()
	return NewParser(file).Parse()
}
