// Package render resolves {{ variable }} placeholders in a recipe
// document against the variant variable table.
package render

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	directiveRe   = regexp.MustCompile(`^\s*\{%.*%\}\s*$`)
)

// UnresolvedError reports every placeholder that had no value, so recipe
// authors can fix the variant config in one pass.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholders: %s", strings.Join(e.Names, ", "))
}

// Renderer substitutes placeholder variables into recipe text.
type Renderer struct {
	vars map[string]string
}

// New creates a renderer over the given variable table.
func New(vars map[string]string) *Renderer {
	return &Renderer{vars: vars}
}

// Render substitutes all placeholders in src. Lines holding only
// {% ... %} directives are dropped. Every unresolved or malformed
// placeholder is an error; resolved values must be non-empty.
func (r *Renderer) Render(src []byte) ([]byte, error) {
	var out bytes.Buffer
	unresolved := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(src))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if directiveRe.MatchString(line) {
			continue
		}

		rendered := placeholderRe.ReplaceAllStringFunc(line, func(m string) string {
			name := placeholderRe.FindStringSubmatch(m)[1]
			val, ok := r.vars[name]
			if !ok || strings.TrimSpace(val) == "" {
				unresolved[name] = true
				return m
			}
			return val
		})

		// Unresolved placeholders stay in the output verbatim; strip the
		// well-formed ones before looking for a stray opener.
		if strings.Contains(placeholderRe.ReplaceAllString(rendered, ""), "{{") {
			return nil, fmt.Errorf("malformed placeholder on line %d: %s", lineNo, strings.TrimSpace(rendered))
		}

		out.WriteString(rendered)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading recipe text: %w", err)
	}

	if len(unresolved) > 0 {
		names := make([]string, 0, len(unresolved))
		for name := range unresolved {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &UnresolvedError{Names: names}
	}

	return out.Bytes(), nil
}

// StripDirectives removes {% ... %} directive lines, leaving a document
// that parses as YAML even before placeholders are substituted.
func StripDirectives(src []byte) []byte {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		line := scanner.Text()
		if directiveRe.MatchString(line) {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// Placeholders lists the distinct variable names referenced in src,
// sorted. Directive lines are excluded.
func Placeholders(src []byte) []string {
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		line := scanner.Text()
		if directiveRe.MatchString(line) {
			continue
		}
		for _, m := range placeholderRe.FindAllStringSubmatch(line, -1) {
			seen[m[1]] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteFile writes rendered output atomically.
func WriteFile(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
