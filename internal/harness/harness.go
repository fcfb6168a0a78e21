// Package harness runs a built package's validation: the import smoke
// test followed by the recipe's test commands.
package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// StepKind distinguishes the two validation step types.
type StepKind string

const (
	StepImport  StepKind = "import"
	StepCommand StepKind = "command"
)

// StepResult is the outcome of one validation step.
type StepResult struct {
	Kind   StepKind
	Name   string // module path or command line
	OK     bool
	Output string
}

// Report collects the outcome of a full harness run.
type Report struct {
	Steps []StepResult
}

// OK reports whether every step passed.
func (r *Report) OK() bool {
	for _, step := range r.Steps {
		if !step.OK {
			return false
		}
	}
	return true
}

// Failed returns the steps that did not pass.
func (r *Report) Failed() []StepResult {
	var failed []StepResult
	for _, step := range r.Steps {
		if !step.OK {
			failed = append(failed, step)
		}
	}
	return failed
}

// Config describes a harness run.
type Config struct {
	Python   string   // interpreter used for import checks
	Imports  []string // modules expected to be importable
	Commands []string // test commands, run in order
	Dir      string   // working directory for commands
	Env      map[string]string
}

// Harness validates built packages.
type Harness struct {
	log zerolog.Logger
}

// New creates a harness.
func New(log zerolog.Logger) *Harness {
	return &Harness{log: log}
}

// Run executes the import checks and then each test command. All steps
// run even after a failure so the report is complete; the error is
// non-nil only if the harness itself could not execute.
func (h *Harness) Run(ctx context.Context, cfg Config) (*Report, error) {
	python := cfg.Python
	if python == "" {
		python = "python"
	}

	report := &Report{}

	for _, module := range cfg.Imports {
		h.log.Debug().Str("module", module).Msg("import check")
		ok, output := h.runStep(ctx, cfg, python, "-c", fmt.Sprintf("import %s", module))
		report.Steps = append(report.Steps, StepResult{
			Kind:   StepImport,
			Name:   module,
			OK:     ok,
			Output: output,
		})
		if !ok {
			h.log.Warn().Str("module", module).Msg("import failed")
		}
		if ctx.Err() != nil {
			return report, fmt.Errorf("test run: %w", ctx.Err())
		}
	}

	for _, command := range cfg.Commands {
		h.log.Debug().Str("command", command).Msg("test command")
		ok, output := h.runStep(ctx, cfg, "sh", "-c", command)
		report.Steps = append(report.Steps, StepResult{
			Kind:   StepCommand,
			Name:   command,
			OK:     ok,
			Output: output,
		})
		if !ok {
			h.log.Warn().Str("command", command).Msg("test command failed")
		}
		if ctx.Err() != nil {
			return report, fmt.Errorf("test run: %w", ctx.Err())
		}
	}

	return report, nil
}

func (h *Harness) runStep(ctx context.Context, cfg Config, name string, args ...string) (bool, string) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cfg.Dir
	cmd.Env = stepEnv(cfg.Env)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	return err == nil, strings.TrimSpace(output.String())
}

func stepEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
