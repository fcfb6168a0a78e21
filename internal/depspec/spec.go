package depspec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Spec is a single dependency match spec as written in a recipe's
// requirements or test.requires list, e.g. "pandas >=1.0,<2.0" or
// "qiime2 2021.4.*".
type Spec struct {
	Name string
	Raw  string // constraint portion, empty means any version
}

var (
	nameRe     = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	wildcardRe = regexp.MustCompile(`^v?\d+(\.\d+)*\.\*$`)
	bareVerRe  = regexp.MustCompile(`^v?\d+(\.\d+)*$`)
)

// Parse splits a "name [constraint]" string into a Spec.
func Parse(s string) (Spec, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Spec{}, fmt.Errorf("empty dependency spec")
	}

	name := fields[0]
	if !nameRe.MatchString(name) {
		return Spec{}, fmt.Errorf("invalid package name %q", name)
	}

	spec := Spec{Name: name, Raw: strings.Join(fields[1:], " ")}
	if spec.Raw != "" {
		if _, err := spec.Constraint(); err != nil {
			return Spec{}, err
		}
	}
	return spec, nil
}

// ParseAll parses a list of spec strings, reporting the first failure.
func ParseAll(specs []string) ([]Spec, error) {
	parsed := make([]Spec, 0, len(specs))
	for _, s := range specs {
		spec, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing spec %q: %w", s, err)
		}
		parsed = append(parsed, spec)
	}
	return parsed, nil
}

// Constraint translates the raw constraint into semver form. Conda-style
// clauses are comma-separated; "==" means exact, a bare version means
// minimum, and "2021.4.*" pins a release line.
func (s Spec) Constraint() (*semver.Constraints, error) {
	if strings.TrimSpace(s.Raw) == "" {
		return semver.NewConstraint(">=0.0.0-0")
	}

	clauses := strings.Split(s.Raw, ",")
	translated := make([]string, 0, len(clauses))
	for _, c := range clauses {
		t, err := translateClause(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", s.Raw, err)
		}
		translated = append(translated, t)
	}

	con, err := semver.NewConstraint(strings.Join(translated, ", "))
	if err != nil {
		return nil, fmt.Errorf("constraint %q: %w", s.Raw, err)
	}
	return con, nil
}

func translateClause(c string) (string, error) {
	if c == "" {
		return "", fmt.Errorf("empty constraint clause")
	}

	switch {
	case strings.HasPrefix(c, ">="), strings.HasPrefix(c, "<="),
		strings.HasPrefix(c, "!="):
		return c, nil
	case strings.HasPrefix(c, "=="):
		return "=" + strings.TrimSpace(c[2:]), nil
	case strings.HasPrefix(c, ">"), strings.HasPrefix(c, "<"),
		strings.HasPrefix(c, "="):
		return c, nil
	case wildcardRe.MatchString(c):
		return c, nil
	case bareVerRe.MatchString(c):
		// Bare versions are minimums, matching conda's default.
		return ">=" + c, nil
	}
	return "", fmt.Errorf("unrecognized clause %q", c)
}

// Satisfies reports whether the given concrete version matches this spec.
func (s Spec) Satisfies(version string) (bool, error) {
	con, err := s.Constraint()
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("version %q: %w", version, err)
	}
	return con.Check(v), nil
}

// String renders the spec back to its recipe form.
func (s Spec) String() string {
	if s.Raw == "" {
		return s.Name
	}
	return s.Name + " " + s.Raw
}
