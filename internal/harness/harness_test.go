package harness

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

// fakePython writes an interpreter stand-in that succeeds only for the
// given module names.
func fakePython(t *testing.T, importable ...string) string {
	t.Helper()
	var cases string
	for _, m := range importable {
		cases += "  'import " + m + "') exit 0 ;;\n"
	}
	script := "#!/bin/sh\ncase \"$2\" in\n" + cases + "  *) echo \"ModuleNotFoundError\" >&2; exit 1 ;;\nesac\n"

	path := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestHarness_Run_AllGreen(t *testing.T) {
	skipWithoutShell(t)

	report, err := New(zerolog.Nop()).Run(context.Background(), Config{
		Python:   fakePython(t, "q2_vsearch", "qiime2.plugins.vsearch"),
		Imports:  []string{"q2_vsearch", "qiime2.plugins.vsearch"},
		Commands: []string{"echo tests passed"},
		Dir:      t.TempDir(),
	})
	require.NoError(t, err)

	assert.True(t, report.OK())
	require.Len(t, report.Steps, 3)
	assert.Equal(t, StepImport, report.Steps[0].Kind)
	assert.Equal(t, "q2_vsearch", report.Steps[0].Name)
	assert.Equal(t, StepCommand, report.Steps[2].Kind)
	assert.Contains(t, report.Steps[2].Output, "tests passed")
}

func TestHarness_Run_ImportFailure(t *testing.T) {
	skipWithoutShell(t)

	report, err := New(zerolog.Nop()).Run(context.Background(), Config{
		Python:  fakePython(t, "q2_vsearch"),
		Imports: []string{"q2_vsearch", "qiime2.plugins.vsearch"},
	})
	require.NoError(t, err)

	assert.False(t, report.OK())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "qiime2.plugins.vsearch", failed[0].Name)
	assert.Contains(t, failed[0].Output, "ModuleNotFoundError")
}

func TestHarness_Run_CommandFailure(t *testing.T) {
	skipWithoutShell(t)

	report, err := New(zerolog.Nop()).Run(context.Background(), Config{
		Commands: []string{"echo first", "exit 4", "echo still runs"},
		Dir:      t.TempDir(),
	})
	require.NoError(t, err)

	assert.False(t, report.OK())
	require.Len(t, report.Steps, 3)
	assert.True(t, report.Steps[0].OK)
	assert.False(t, report.Steps[1].OK)
	// Later steps still run, so the report is complete.
	assert.True(t, report.Steps[2].OK)
}

func TestHarness_Run_CancelledDuringImports(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(zerolog.Nop()).Run(ctx, Config{
		Python:  fakePython(t, "q2_vsearch", "qiime2.plugins.vsearch"),
		Imports: []string{"q2_vsearch", "qiime2.plugins.vsearch"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// The run stops after the step that observed the cancellation
	// instead of marking every remaining import as a plain failure.
	assert.Len(t, report.Steps, 1)
}

func TestHarness_Run_CommandEnvAndDir(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0644))

	report, err := New(zerolog.Nop()).Run(context.Background(), Config{
		Commands: []string{"test -f marker", `test "$PKG_NAME" = q2-vsearch`},
		Dir:      dir,
		Env:      map[string]string{"PKG_NAME": "q2-vsearch"},
	})
	require.NoError(t, err)
	assert.True(t, report.OK())
}
