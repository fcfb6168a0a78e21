package lockfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qiime2/q2-recipe/internal/depspec"
	"github.com/qiime2/q2-recipe/internal/solver"
)

var samplePins = []solver.Pin{
	{Name: "qiime2", Version: "2021.4.0", Channel: "qiime2-2021.4", Constraint: "2021.4.*,>=2021.4"},
	{Name: "pandas", Version: "1.2.4", Channel: "conda-forge", Constraint: ">=1.0"},
	{Name: "pytest", Version: "6.2.4", Channel: "conda-forge"},
}

func TestEmitter_Emit(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEmitter(&buf).Emit(samplePins); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	want := `# q2recipe lock format: version 1.0
PACKAGES
  pandas
    version: 1.2.4
    constraint: >=1.0
    channel: conda-forge
  pytest
    version: 6.2.4
    channel: conda-forge
  qiime2
    version: 2021.4.0
    constraint: 2021.4.*,>=2021.4
    channel: qiime2-2021.4
`
	if buf.String() != want {
		t.Errorf("Emit() =\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestEmitter_Emit_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEmitter(&buf).Emit(nil); err != nil {
		t.Fatal(err)
	}
	want := "# q2recipe lock format: version 1.0\nPACKAGES\n"
	if buf.String() != want {
		t.Errorf("Emit() = %q, want %q", buf.String(), want)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q2recipe.lock")
	if err := Write(path, samplePins); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	pins, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(pins) != len(samplePins) {
		t.Fatalf("Read() returned %d pins, want %d", len(pins), len(samplePins))
	}

	// Emitted sorted by name.
	if pins[0].Name != "pandas" || pins[1].Name != "pytest" || pins[2].Name != "qiime2" {
		t.Errorf("pin order = %s, %s, %s", pins[0].Name, pins[1].Name, pins[2].Name)
	}
	if pins[2] != samplePins[0] {
		t.Errorf("qiime2 pin = %+v, want %+v", pins[2], samplePins[0])
	}
}

func TestParser_Parse_MissingVersion(t *testing.T) {
	doc := "# q2recipe lock format: version 1.0\nPACKAGES\n  pandas\n    channel: conda-forge\n"
	if _, err := NewParser(strings.NewReader(doc)).Parse(); err == nil {
		t.Error("Parse() expected error for entry without version")
	}
}

func TestVerify(t *testing.T) {
	specs, err := depspec.ParseAll([]string{"qiime2 2021.4.*", "pandas >=1.0", "pytest"})
	if err != nil {
		t.Fatal(err)
	}

	if err := Verify(samplePins, specs); err != nil {
		t.Errorf("Verify() error = %v, want nil", err)
	}
}

func TestVerify_Drift(t *testing.T) {
	// Epoch moved on; the old pins no longer satisfy the recipe.
	specs, err := depspec.ParseAll([]string{"qiime2 2021.8.*", "numpy >=1.20"})
	if err != nil {
		t.Fatal(err)
	}

	err = Verify(samplePins, specs)
	var derr *DriftError
	if !errors.As(err, &derr) {
		t.Fatalf("Verify() error = %v, want *DriftError", err)
	}
	if len(derr.Problems) != 2 {
		t.Errorf("Verify() reported %d problems, want 2: %v", len(derr.Problems), derr.Problems)
	}
}

func TestWrite_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q2recipe.lock")

	if err := Write(path, samplePins); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("lock dir has %d entries, want 1 (no temp files left)", len(entries))
	}
}
