// Package builder runs a recipe's delegated build command in a staged
// source tree.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Spec describes one build invocation.
type Spec struct {
	Script  string // shell command from build.script
	SrcDir  string // staged source tree, the working directory
	Prefix  string // install prefix the script targets
	Name    string // package name, exported as PKG_NAME
	Version string // package version, exported as PKG_VERSION
	Python  string // interpreter path, exported as PYTHON
	Env     map[string]string
}

// Result reports a finished build.
type Result struct {
	Duration time.Duration
	Output   string
}

// Builder executes build scripts.
type Builder struct {
	log zerolog.Logger
}

// New creates a builder.
func New(log zerolog.Logger) *Builder {
	return &Builder{log: log}
}

// Run executes the build script through the shell. The script's exit
// status is the build's verdict; on failure the error carries the exit
// code and the output tail.
func (b *Builder) Run(ctx context.Context, spec Spec) (*Result, error) {
	if strings.TrimSpace(spec.Script) == "" {
		return nil, fmt.Errorf("build script is empty")
	}
	if spec.Prefix != "" {
		if err := os.MkdirAll(spec.Prefix, 0755); err != nil {
			return nil, fmt.Errorf("creating prefix: %w", err)
		}
	}

	b.log.Info().Str("script", spec.Script).Str("dir", spec.SrcDir).Msg("running build script")

	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Script)
	cmd.Dir = spec.SrcDir
	cmd.Env = buildEnv(spec)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Duration: time.Since(start),
		Output:   output.String(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("build script: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			b.log.Error().Int("exit_code", exitErr.ExitCode()).Msg("build script failed")
			return result, fmt.Errorf("build script exited with code %d: %s", exitErr.ExitCode(), tail(result.Output, 20))
		}
		return result, fmt.Errorf("build script: %w", err)
	}

	b.log.Info().Dur("duration", result.Duration).Msg("build script succeeded")
	return result, nil
}

// buildEnv merges the process environment with the build variables the
// script contract promises.
func buildEnv(spec Spec) []string {
	vars := map[string]string{
		"PREFIX":      spec.Prefix,
		"SRC_DIR":     spec.SrcDir,
		"PKG_NAME":    spec.Name,
		"PKG_VERSION": spec.Version,
		"PYTHON":      spec.Python,
	}
	for k, v := range spec.Env {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		if vars[k] != "" {
			env = append(env, k+"="+vars[k])
		}
	}
	return env
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
