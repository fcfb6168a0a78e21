// Package solver checks that a recipe's dependency sets are jointly
// satisfiable against the configured channels and pins the versions a
// target environment would receive.
package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/qiime2/q2-recipe/internal/depspec"
	"github.com/qiime2/q2-recipe/internal/index"
)

// Pin is a solved package: a concrete version satisfying every
// constraint placed on the package across the merged dependency sets.
type Pin struct {
	Name       string
	Version    string
	Channel    string
	Constraint string // merged constraint, recipe syntax
}

// Conflict is a package whose merged constraints no indexed version
// satisfies.
type Conflict struct {
	Name  string
	Specs []string // the clashing spec strings
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: no version satisfies %s", c.Name, strings.Join(c.Specs, " and "))
}

// Result reports the outcome of a solve.
type Result struct {
	Pins      []Pin
	Missing   []string // packages no channel knows about
	Conflicts []Conflict
}

// Satisfiable reports whether the merged dependency sets can coexist.
func (r *Result) Satisfiable() bool {
	return len(r.Conflicts) == 0
}

// Solver resolves dependency specs against an ordered list of channels.
type Solver struct {
	providers []index.Provider
	log       zerolog.Logger
}

// New creates a solver. Channel order is priority order.
func New(providers []index.Provider, log zerolog.Logger) *Solver {
	return &Solver{providers: providers, log: log}
}

// Solve merges the given specs per package and pins each package to the
// highest indexed version satisfying every constraint on it. Spec lists
// from different recipe sections may be concatenated; that is how the
// run and test.requires sets are checked for joint satisfiability.
func (s *Solver) Solve(specs []depspec.Spec) (*Result, error) {
	grouped := make(map[string][]depspec.Spec)
	for _, spec := range specs {
		grouped[spec.Name] = append(grouped[spec.Name], spec)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &Result{}
	for _, name := range names {
		pkgSpecs := grouped[name]

		provider, versions := s.lookup(name)
		if provider == nil {
			s.log.Debug().Str("package", name).Msg("not in any channel")
			if conflict := exactPinConflict(pkgSpecs); conflict != nil {
				result.Conflicts = append(result.Conflicts, *conflict)
			} else {
				result.Missing = append(result.Missing, name)
			}
			continue
		}

		best, err := s.pickBest(versions, pkgSpecs)
		if err != nil {
			return nil, fmt.Errorf("solving %s: %w", name, err)
		}
		if best == "" {
			result.Conflicts = append(result.Conflicts, Conflict{
				Name:  name,
				Specs: specStrings(pkgSpecs),
			})
			continue
		}

		s.log.Debug().Str("package", name).Str("version", best).Str("channel", provider.Name()).Msg("pinned")
		result.Pins = append(result.Pins, Pin{
			Name:       name,
			Version:    best,
			Channel:    provider.Name(),
			Constraint: mergedConstraint(pkgSpecs),
		})
	}

	return result, nil
}

func (s *Solver) lookup(name string) (index.Provider, []string) {
	for _, p := range s.providers {
		if versions := p.Versions(name); len(versions) > 0 {
			return p, versions
		}
	}
	return nil, nil
}

// pickBest returns the highest version satisfying every spec, or empty
// if none does. Versions the index serves that do not parse are skipped.
func (s *Solver) pickBest(versions []string, specs []depspec.Spec) (string, error) {
	parsed := make([]*semver.Version, 0, len(versions))
	for _, raw := range versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			s.log.Debug().Str("version", raw).Msg("skipping unparseable version")
			continue
		}
		parsed = append(parsed, v)
	}
	sort.Sort(sort.Reverse(semver.Collection(parsed)))

	for _, v := range parsed {
		ok := true
		for _, spec := range specs {
			con, err := spec.Constraint()
			if err != nil {
				return "", err
			}
			if !con.Check(v) {
				ok = false
				break
			}
		}
		if ok {
			return v.Original(), nil
		}
	}
	return "", nil
}

// exactPinConflict detects contradictions that need no index: two exact
// pins on different versions can never be satisfied together.
func exactPinConflict(specs []depspec.Spec) *Conflict {
	var exact []depspec.Spec
	for _, spec := range specs {
		raw := strings.TrimSpace(spec.Raw)
		if strings.HasPrefix(raw, "==") || (strings.HasPrefix(raw, "=") && !strings.HasPrefix(raw, "=>")) {
			exact = append(exact, spec)
		}
	}
	for i := 1; i < len(exact); i++ {
		if pinnedVersion(exact[i]) != pinnedVersion(exact[0]) {
			return &Conflict{
				Name:  exact[0].Name,
				Specs: specStrings(specs),
			}
		}
	}
	return nil
}

func pinnedVersion(spec depspec.Spec) string {
	return strings.TrimSpace(strings.TrimLeft(spec.Raw, "= "))
}

func specStrings(specs []depspec.Spec) []string {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		out = append(out, spec.String())
	}
	return out
}

func mergedConstraint(specs []depspec.Spec) string {
	parts := make([]string, 0, len(specs))
	seen := make(map[string]bool)
	for _, spec := range specs {
		raw := strings.TrimSpace(spec.Raw)
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true
		parts = append(parts, raw)
	}
	return strings.Join(parts, ",")
}
