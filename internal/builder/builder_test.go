package builder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

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

func TestBuilder_Run(t *testing.T) {
	skipWithoutShell(t)

	srcDir := t.TempDir()
	prefix := filepath.Join(t.TempDir(), "prefix")

	result, err := New(zerolog.Nop()).Run(context.Background(), Spec{
		Script:  `echo "installing $PKG_NAME-$PKG_VERSION" && touch "$PREFIX/installed"`,
		SrcDir:  srcDir,
		Prefix:  prefix,
		Name:    "q2-vsearch",
		Version: "2021.4.0",
	})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "installing q2-vsearch-2021.4.0")
	assert.FileExists(t, filepath.Join(prefix, "installed"))
}

func TestBuilder_Run_WorkingDirectory(t *testing.T) {
	skipWithoutShell(t)

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "marker"), []byte("here"), 0644))

	result, err := New(zerolog.Nop()).Run(context.Background(), Spec{
		Script: "cat marker",
		SrcDir: srcDir,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "here")
}

func TestBuilder_Run_Failure(t *testing.T) {
	skipWithoutShell(t)

	_, err := New(zerolog.Nop()).Run(context.Background(), Spec{
		Script: "echo doomed >&2; exit 3",
		SrcDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "doomed")
}

func TestBuilder_Run_EmptyScript(t *testing.T) {
	_, err := New(zerolog.Nop()).Run(context.Background(), Spec{Script: "  "})
	require.Error(t, err)
}

func TestBuilder_Run_Timeout(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := New(zerolog.Nop()).Run(ctx, Spec{
		Script: "sleep 10",
		SrcDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTail(t *testing.T) {
	long := strings.Repeat("line\n", 30) + "last\n"
	got := tail(long, 5)
	if strings.Count(got, "\n") != 4 || !strings.HasSuffix(got, "last") {
		t.Errorf("tail() = %q", got)
	}
}
