package recipe

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/qiime2/q2-recipe/internal/depspec"
)

var (
	packageNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	importPathRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// ValidationError aggregates every problem found in a recipe so authors
// see them all at once instead of fixing one per run.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recipe: %s", strings.Join(e.Problems, "; "))
}

// Parse decodes a rendered recipe document. Unknown fields are an error.
func Parse(r io.Reader) (*Recipe, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rec Recipe
	if err := dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty recipe document")
		}
		return nil, fmt.Errorf("decoding recipe: %w", err)
	}
	return &rec, nil
}

// ParseLenient decodes a recipe without strict field checking. Used on
// unrendered documents, where only structural fields like source.path are
// needed before placeholder values exist.
func ParseLenient(data []byte) (*Recipe, error) {
	var rec Recipe
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding recipe: %w", err)
	}
	return &rec, nil
}

// Validate checks the recipe for structural problems. All problems are
// collected into a single ValidationError.
func (r *Recipe) Validate() error {
	var problems []string

	if r.Package.Name == "" {
		problems = append(problems, "package.name is required")
	} else if !packageNameRe.MatchString(r.Package.Name) {
		problems = append(problems, fmt.Sprintf("package.name %q must be lowercase letters, digits, '.', '_' or '-'", r.Package.Name))
	}

	if r.Package.Version == "" {
		problems = append(problems, "package.version is required")
	}

	switch {
	case r.Source.Path == "" && r.Source.URL == "":
		problems = append(problems, "source requires either path or url")
	case r.Source.Path != "" && r.Source.URL != "":
		problems = append(problems, "source path and url are mutually exclusive")
	}
	if r.Source.SHA256 != "" && r.Source.URL == "" {
		problems = append(problems, "source.sha256 only applies to url sources")
	}

	if strings.TrimSpace(r.Build.Script) == "" {
		problems = append(problems, "build.script is required")
	}

	problems = append(problems, specProblems("requirements.host", r.Requirements.Host)...)
	problems = append(problems, specProblems("requirements.run", r.Requirements.Run)...)
	problems = append(problems, specProblems("test.requires", r.Test.Requires)...)

	for _, imp := range r.Test.Imports {
		if !importPathRe.MatchString(imp) {
			problems = append(problems, fmt.Sprintf("test.imports entry %q is not a valid module path", imp))
		}
	}
	for _, cmd := range r.Test.Commands {
		if strings.TrimSpace(cmd) == "" {
			problems = append(problems, "test.commands contains an empty command")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func specProblems(section string, specs []string) []string {
	var problems []string
	for _, s := range specs {
		if _, err := depspec.Parse(s); err != nil {
			problems = append(problems, fmt.Sprintf("%s entry %q: %v", section, s, err))
		}
	}
	return problems
}
