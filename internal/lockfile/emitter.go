// Package lockfile reads and writes the pinned-environment lockfile
// produced by a solve.
package lockfile

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/google/renameio/v2"

	"github.com/qiime2/q2-recipe/internal/depspec"
	"github.com/qiime2/q2-recipe/internal/solver"
)

const header = "# q2recipe lock format: version 1.0\n"

// Emitter writes lockfiles.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new lockfile emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes pins sorted by package name.
func (e *Emitter) Emit(pins []solver.Pin) error {
	sorted := make([]solver.Pin, len(pins))
	copy(sorted, pins)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	if _, err := fmt.Fprint(e.w, header); err != nil {
		return err
	}
	if _, err := fmt.Fprint(e.w, "PACKAGES\n"); err != nil {
		return err
	}

	for _, pin := range sorted {
		if err := e.emitPin(pin); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitPin(pin solver.Pin) error {
	if _, err := fmt.Fprintf(e.w, "  %s\n", pin.Name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "    version: %s\n", pin.Version); err != nil {
		return err
	}
	if pin.Constraint != "" {
		if _, err := fmt.Fprintf(e.w, "    constraint: %s\n", pin.Constraint); err != nil {
			return err
		}
	}
	if pin.Channel != "" {
		if _, err := fmt.Fprintf(e.w, "    channel: %s\n", pin.Channel); err != nil {
			return err
		}
	}
	return nil
}

// Write serializes pins to a lockfile on disk, atomically.
func Write(path string, pins []solver.Pin) error {
	var buf bytes.Buffer
	if err := NewEmitter(&buf).Emit(pins); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}
	return nil
}

// Verify checks an existing lockfile's pins against the given specs:
// every spec must be pinned and every pinned version must still satisfy
// its constraints. Used to detect drift after a recipe or variant
// change.
func Verify(pins []solver.Pin, specs []depspec.Spec) error {
	byName := make(map[string]solver.Pin, len(pins))
	for _, pin := range pins {
		byName[pin.Name] = pin
	}

	var problems []string
	for _, spec := range specs {
		pin, ok := byName[spec.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s is not pinned", spec.Name))
			continue
		}
		ok, err := spec.Satisfies(pin.Version)
		if err != nil {
			return fmt.Errorf("verifying %s: %w", spec.Name, err)
		}
		if !ok {
			problems = append(problems, fmt.Sprintf("%s pinned at %s no longer satisfies %q", spec.Name, pin.Version, spec.String()))
		}
	}

	if len(problems) > 0 {
		return &DriftError{Problems: problems}
	}
	return nil
}

// DriftError reports lockfile pins that have fallen out of step with
// the recipe.
type DriftError struct {
	Problems []string
}

func (e *DriftError) Error() string {
	msg := "lockfile drift:"
	for _, p := range e.Problems {
		msg += "\n  " + p
	}
	return msg
}
